// Package journal keeps an append-only record of what the engine did to each
// work order: dispatched remote updates and expired timers. The journal is an
// audit trail only. Timer state is never restored from it.
package journal

import (
	"context"
	"time"
)

// Store persists journal entries.
type Store interface {
	// Append adds an entry for a work order.
	Append(ctx context.Context, workOrderID string, typ EntryType, payload []byte, metadata map[string]string) error

	// ByWorkOrder returns all entries of one work order, oldest first.
	ByWorkOrder(ctx context.Context, workOrderID string) ([]Entry, error)

	// Range returns entries recorded within [start, end], oldest first.
	Range(ctx context.Context, start, end time.Time) ([]Entry, error)

	Close() error
}

// NopStore discards everything. It backs the "none" journal driver.
type NopStore struct{}

func (NopStore) Append(context.Context, string, EntryType, []byte, map[string]string) error {
	return nil
}
func (NopStore) ByWorkOrder(context.Context, string) ([]Entry, error)         { return nil, nil }
func (NopStore) Range(context.Context, time.Time, time.Time) ([]Entry, error) { return nil, nil }
func (NopStore) Close() error                                                 { return nil }
