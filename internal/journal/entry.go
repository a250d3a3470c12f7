package journal

import "time"

// EntryType names the kind of a journal entry.
type EntryType string

const (
	TypeJobRecorded  EntryType = "JobRecorded"
	TypeTimerExpired EntryType = "TimerExpired"
)

// Entry is one stored journal row. Payload holds the JSON encoding of the
// typed record for Type.
type Entry struct {
	ID          int64             `json:"id"`
	WorkOrderID string            `json:"work_order_id"`
	Type        EntryType         `json:"type"`
	Timestamp   time.Time         `json:"timestamp"`
	Payload     []byte            `json:"-"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
