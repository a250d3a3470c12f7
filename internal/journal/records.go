package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/events"
)

// JobRecorded is the payload of a TypeJobRecorded entry.
type JobRecorded struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	State      string    `json:"state,omitempty"`
	Title      string    `json:"title,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewJobRecorded captures a dispatcher result. Notes are left out; the remote
// work log already holds them.
func NewJobRecorded(res dispatcher.Result) JobRecorded {
	r := JobRecorded{
		JobID:      res.Job.ID,
		Kind:       string(res.Job.Kind),
		Reason:     string(res.Job.Reason),
		State:      string(res.Job.State),
		Title:      res.Job.Title,
		Outcome:    string(res.Outcome),
		Attempts:   res.Attempts,
		DurationMS: res.Duration.Milliseconds(),
		FinishedAt: res.FinishedAt.UTC(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// TimerExpired is the payload of a TypeTimerExpired entry.
type TimerExpired struct {
	State     string    `json:"state"`
	ExpiredAt time.Time `json:"expired_at"`
}

// NewTimerExpired captures an expiry notification.
func NewTimerExpired(evt events.TimerExpired) TimerExpired {
	return TimerExpired{State: string(evt.State), ExpiredAt: evt.ExpiredAt.UTC()}
}

// Record is a decoded entry.
type Record struct {
	Entry
	Job    *JobRecorded  `json:"job,omitempty"`
	Expiry *TimerExpired `json:"expiry,omitempty"`
}

// Decode unmarshals the payload of e according to its type. Unknown types
// decode to a Record with neither payload set.
func Decode(e Entry) (Record, error) {
	rec := Record{Entry: e}
	switch e.Type {
	case TypeJobRecorded:
		var p JobRecorded
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return rec, fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
		}
		rec.Job = &p
	case TypeTimerExpired:
		var p TimerExpired
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return rec, fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
		}
		rec.Expiry = &p
	}
	return rec, nil
}

// DecodeAll decodes entries in order, stopping at the first malformed payload.
func DecodeAll(entries []Entry) ([]Record, error) {
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		rec, err := Decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
