package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/events"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
)

// Sink writes dispatcher results and timer expiries to a Store. Journal
// failures are logged and swallowed; they never affect the job outcome.
type Sink struct {
	store Store
	// OnRecord, when set, is called after every successful append. The
	// history projection hooks in here.
	OnRecord func(Entry)
}

// NewSink returns a Sink over store.
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

var _ dispatcher.ResultSink = (*Sink)(nil)

// Record implements dispatcher.ResultSink.
func (s *Sink) Record(ctx context.Context, res dispatcher.Result) {
	payload, err := json.Marshal(NewJobRecorded(res))
	if err != nil {
		slog.Warn("Failed to encode journal entry", logfields.JobID(res.Job.ID), logfields.Error(err))
		return
	}
	meta := map[string]string{"kind": string(res.Job.Kind), "outcome": string(res.Outcome)}
	s.append(ctx, res.Job.WorkOrderID, TypeJobRecorded, payload, meta)
}

// RecordExpiry journals a timer expiry.
func (s *Sink) RecordExpiry(ctx context.Context, evt events.TimerExpired) {
	payload, err := json.Marshal(NewTimerExpired(evt))
	if err != nil {
		slog.Warn("Failed to encode journal entry", logfields.WorkOrderID(evt.WorkOrderID), logfields.Error(err))
		return
	}
	s.append(ctx, evt.WorkOrderID, TypeTimerExpired, payload, nil)
}

// Follow journals every TimerExpired published on bus until ctx ends.
func (s *Sink) Follow(ctx context.Context, bus *events.Bus, buffer int) {
	ch, unsubscribe := events.Subscribe[events.TimerExpired](bus, buffer)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			s.RecordExpiry(context.WithoutCancel(ctx), evt)
		}
	}
}

func (s *Sink) append(ctx context.Context, id string, typ EntryType, payload []byte, meta map[string]string) {
	if err := s.store.Append(ctx, id, typ, payload, meta); err != nil {
		slog.Warn("Failed to append journal entry",
			logfields.WorkOrderID(id),
			slog.String("entry_type", string(typ)),
			logfields.Error(err))
		return
	}
	if s.OnRecord != nil {
		s.OnRecord(Entry{WorkOrderID: id, Type: typ, Timestamp: time.Now().UTC(), Payload: payload, Metadata: meta})
	}
}
