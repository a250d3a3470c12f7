package daemon

import (
	"context"
)

// stopAwareContext returns a context that is canceled when either the parent
// context is done or the daemon stop channel is closed. Scheduled tasks use
// it so that a Stop interrupts an in-flight remote listing.
//
// Callers MUST call the returned cancel func when the derived context is no
// longer needed; otherwise the stop-listener goroutine lives as long as the
// parent context.
func (d *Daemon) stopAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	if d == nil || d.stopChan == nil {
		return ctx, cancel
	}

	go func() {
		select {
		case <-d.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
