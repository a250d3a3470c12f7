// Package events carries in-process notifications out of the lifecycle engine.
package events

import (
	"time"

	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// TimerExpired is published once when a countdown reaches zero and the work
// order has been returned locally. It is not durable.
type TimerExpired struct {
	WorkOrderID string          `json:"work_order_id"`
	State       workorder.State `json:"state"`
	ExpiredAt   time.Time       `json:"expired_at"`
}

// WorkOrdersLoaded is published after the view was replaced from the remote system.
type WorkOrdersLoaded struct {
	Count     int       `json:"count"`
	Cause     string    `json:"cause"` // clear|soft_clear|refresh|load
	Corrected int       `json:"corrected"`
	Orphaned  int       `json:"orphaned"`
	LoadedAt  time.Time `json:"loaded_at"`
}
