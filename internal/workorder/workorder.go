// Package workorder defines the service-desk work order record shared by the
// view, the timer registry, the controller and the remote clients.
package workorder

import "slices"

// NoInformation is shown for text fields the remote system left empty.
const NoInformation = "No information"

// State is a work order status. Only a few values carry local meaning; any
// other value reported by the remote system is kept verbatim.
type State string

const (
	StateQueued     State = "QUEUED"
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
)

func (s State) String() string { return string(s) }

// ConfigItem is a configuration item attached to a work order.
type ConfigItem struct {
	ID          string `json:"id"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// WorkOrder is one row of the local view.
type WorkOrder struct {
	ID          string       `json:"wo_id"`
	State       State        `json:"state"`
	Description string       `json:"description"`
	DealCode    string       `json:"dc"`
	ConfigItems []ConfigItem `json:"cids"`
	ProjectInfo string       `json:"project_info"`
	PM          string       `json:"pm"`
	LastUpdate  string       `json:"last_update"`

	// RemainingMinutes mirrors the countdown owned by the timer registry.
	// It is zero whenever no timer runs for the work order.
	RemainingMinutes int `json:"time_min"`
}

// Clone returns a deep copy.
func (w WorkOrder) Clone() WorkOrder {
	w.ConfigItems = slices.Clone(w.ConfigItems)
	return w
}

// CloneAll deep-copies a slice of work orders.
func CloneAll(in []WorkOrder) []WorkOrder {
	if in == nil {
		return nil
	}
	out := make([]WorkOrder, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
