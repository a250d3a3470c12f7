// Package remote defines the contract with the system of record for work
// orders. Implementations perform blocking network I/O and are only ever
// called from dispatcher workers or from caller goroutines, never from the
// scheduler loop.
package remote

import (
	"context"

	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// System is the remote work order service.
type System interface {
	// ListWorkOrders returns the current remote truth for the configured owner.
	ListWorkOrders(ctx context.Context) ([]workorder.WorkOrder, error)
	UpdateState(ctx context.Context, id string, state workorder.State) error
	AppendLog(ctx context.Context, id, title, note string) error
}

// Lister is the read side of System.
type Lister interface {
	ListWorkOrders(ctx context.Context) ([]workorder.WorkOrder, error)
}
