// Package testsccd provides an in-memory remote.System for tests.
package testsccd

import (
	"context"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// FailMode defines how the test service desk should behave
type FailMode int

const (
	FailModeNone FailMode = iota
	FailModeAuth
	FailModeNetwork
	FailModeRemote
	FailModePanic
)

// CallKind identifies a recorded call.
type CallKind string

const (
	CallList   CallKind = "list"
	CallUpdate CallKind = "update_state"
	CallLog    CallKind = "append_log"
)

// Call is one recorded invocation.
type Call struct {
	Kind  CallKind
	ID    string
	State workorder.State
	Title string
	Note  string
	At    time.Time
}

// TestSCCD implements remote.System over an in-memory set of work orders.
type TestSCCD struct {
	mu          sync.Mutex
	records     []workorder.WorkOrder
	calls       []Call
	failMode    FailMode
	listFail    bool
	failIDs     map[string]FailMode
	delay       time.Duration
	gate        chan struct{}
	applyWrites bool
	notify      chan Call
}

// New creates a test service desk holding the given records.
func New(records ...workorder.WorkOrder) *TestSCCD {
	return &TestSCCD{
		records: workorder.CloneAll(records),
		failIDs: make(map[string]FailMode),
	}
}

// SetRecords replaces the remote truth returned by ListWorkOrders.
func (s *TestSCCD) SetRecords(records ...workorder.WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = workorder.CloneAll(records)
}

// SetFailMode makes every mutating call fail with the given mode.
func (s *TestSCCD) SetFailMode(mode FailMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMode = mode
}

// FailListing makes ListWorkOrders fail with a network error.
func (s *TestSCCD) FailListing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFail = fail
}

// FailFor makes mutating calls for id fail with the given mode.
func (s *TestSCCD) FailFor(id string, mode FailMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIDs[id] = mode
}

// SetDelay adds latency to every call.
func (s *TestSCCD) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Block makes mutating calls wait until Release is called or their context ends.
func (s *TestSCCD) Block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Release unblocks calls held by Block.
func (s *TestSCCD) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// ApplyWrites makes successful UpdateState calls change the stored records,
// so a later listing reflects them.
func (s *TestSCCD) ApplyWrites(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyWrites = on
}

// Notify returns a channel receiving every completed mutating call.
func (s *TestSCCD) Notify(buffer int) <-chan Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = make(chan Call, buffer)
	return s.notify
}

// Calls returns the recorded calls in order.
func (s *TestSCCD) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallsOf returns the recorded calls of one kind.
func (s *TestSCCD) CallsOf(kind CallKind) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (s *TestSCCD) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *TestSCCD) ListWorkOrders(ctx context.Context) ([]workorder.WorkOrder, error) {
	if err := s.wait(ctx, false); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Kind: CallList, At: time.Now()})
	if s.listFail {
		return nil, errors.NetworkError("sccd unreachable").Build()
	}
	return workorder.CloneAll(s.records), nil
}

func (s *TestSCCD) UpdateState(ctx context.Context, id string, state workorder.State) error {
	return s.mutate(ctx, Call{Kind: CallUpdate, ID: id, State: state})
}

func (s *TestSCCD) AppendLog(ctx context.Context, id, title, note string) error {
	return s.mutate(ctx, Call{Kind: CallLog, ID: id, Title: title, Note: note})
}

func (s *TestSCCD) mutate(ctx context.Context, call Call) error {
	if err := s.wait(ctx, true); err != nil {
		return err
	}

	s.mu.Lock()
	call.At = time.Now()
	s.calls = append(s.calls, call)
	mode := s.failMode
	if m, ok := s.failIDs[call.ID]; ok {
		mode = m
	}
	if mode == FailModeNone && s.applyWrites && call.Kind == CallUpdate {
		for i := range s.records {
			if s.records[i].ID == call.ID {
				s.records[i].State = call.State
			}
		}
	}
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		select {
		case notify <- call:
		default:
		}
	}
	return failure(mode, call.ID)
}

func (s *TestSCCD) wait(ctx context.Context, mutating bool) error {
	s.mu.Lock()
	delay, gate := s.delay, s.gate
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if mutating && gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
	}
	return nil
}

func failure(mode FailMode, id string) error {
	switch mode {
	case FailModeAuth:
		return errors.AuthError("sccd rejected credentials").WithContext("id", id).Build()
	case FailModeNetwork:
		return errors.NetworkError("sccd unreachable").WithContext("id", id).Build()
	case FailModeRemote:
		return errors.RemoteError("sccd returned 500").WithContext("id", id).Build()
	case FailModePanic:
		panic("testsccd: simulated panic for " + id)
	default:
		return nil
	}
}
