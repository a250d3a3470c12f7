package dispatcher

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/remote"
)

// MailRenderer renders a maintenance-window e-mail and returns where it was written.
type MailRenderer interface {
	Render(ctx context.Context, workOrderID, note string) (string, error)
}

// RemoteExecutor routes jobs to the remote system and the e-mail renderer.
type RemoteExecutor struct {
	Remote remote.System
	Mail   MailRenderer
}

func (e RemoteExecutor) Execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindUpdateState:
		return e.Remote.UpdateState(ctx, job.WorkOrderID, job.State)
	case KindAppendLog:
		return e.Remote.AppendLog(ctx, job.WorkOrderID, job.Title, job.Note)
	case KindRenderMWEmail:
		if e.Mail == nil {
			return errors.DispatcherError("maintenance-window e-mail rendering is not configured").Build()
		}
		path, err := e.Mail.Render(ctx, job.WorkOrderID, job.Note)
		if err != nil {
			return err
		}
		slog.Info("Maintenance-window e-mail written", logfields.WorkOrderID(job.WorkOrderID), logfields.Path(path))
		return nil
	default:
		return errors.DispatcherError("unknown job kind").WithContext("kind", string(job.Kind)).Build()
	}
}
