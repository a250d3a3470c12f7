package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/retry"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Kind is the remote mutation a job performs.
type Kind string

const (
	KindUpdateState   Kind = "update_state"
	KindAppendLog     Kind = "append_log"
	KindRenderMWEmail Kind = "render_mw_email"
)

// Reason records what triggered a job.
type Reason string

const (
	ReasonManual    Reason = "manual"
	ReasonExpiry    Reason = "expiry"
	ReasonReconcile Reason = "reconcile"
)

// Outcome is the final status of a job.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeDropped   Outcome = "dropped"
)

// Job describes one remote mutation. Jobs are values; workers never share
// them with the scheduler loop after submission.
type Job struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	WorkOrderID string          `json:"work_order_id"`
	State       workorder.State `json:"state,omitempty"`
	Title       string          `json:"title,omitempty"`
	Note        string          `json:"note,omitempty"`
	Reason      Reason          `json:"reason"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UpdateState creates a job persisting a state change.
func UpdateState(id string, state workorder.State, reason Reason) Job {
	return newJob(KindUpdateState, id, reason, func(j *Job) { j.State = state })
}

// AppendLog creates a job adding a work log entry.
func AppendLog(id, title, note string) Job {
	return newJob(KindAppendLog, id, ReasonManual, func(j *Job) {
		j.Title = title
		j.Note = note
	})
}

// RenderMWEmail creates a job rendering a maintenance-window e-mail from a note.
func RenderMWEmail(id, title, note string) Job {
	return newJob(KindRenderMWEmail, id, ReasonManual, func(j *Job) {
		j.Title = title
		j.Note = note
	})
}

func newJob(kind Kind, id string, reason Reason, fill func(*Job)) Job {
	j := Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		WorkOrderID: id,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	fill(&j)
	return j
}

// Result is the outcome of executing a job.
type Result struct {
	Job        Job
	Outcome    Outcome
	Err        error
	Attempts   int
	Duration   time.Duration
	FinishedAt time.Time
}

// Executor performs the remote side effect of a job.
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job Job) error

func (f ExecutorFunc) Execute(ctx context.Context, job Job) error { return f(ctx, job) }

// Execute runs the job through exec, retrying transient failures as the
// policy allows. Failures, including panics, are captured in the Result.
func (j Job) Execute(ctx context.Context, exec Executor, policy retry.Policy) Result {
	start := time.Now()
	res := Result{Job: j}

	for {
		res.Attempts++
		err := runOnce(ctx, exec, j)
		if err == nil {
			res.Outcome, res.Err = OutcomeSucceeded, nil
			break
		}
		res.Err = err
		if ctx.Err() != nil {
			res.Outcome = OutcomeCanceled
			break
		}
		if res.Attempts > policy.MaxRetries || !retryable(err) {
			res.Outcome = OutcomeFailed
			break
		}
		if werr := policy.Wait(ctx, res.Attempts); werr != nil {
			res.Outcome = OutcomeCanceled
			break
		}
	}

	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(start)
	return res
}

func runOnce(ctx context.Context, exec Executor, j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.DispatcherError("job panicked").
				WithContext("job_id", j.ID).
				WithContext("panic", fmt.Sprint(r)).
				Build()
		}
	}()
	return exec.Execute(ctx, j)
}

func retryable(err error) bool {
	switch errors.GetRetryStrategy(err) {
	case errors.RetryBackoff, errors.RetryImmediate, errors.RetryRateLimit:
		return true
	default:
		return false
	}
}
