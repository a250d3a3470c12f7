package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/archive"
	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
)

// JournalCmd groups the journal subcommands.
type JournalCmd struct {
	Show   JournalShowCmd   `cmd:"" help:"Show the recorded jobs and expiries of one work order"`
	Export JournalExportCmd `cmd:"" help:"Export journal entries as JSON lines"`
}

// JournalShowCmd implements 'journal show'.
type JournalShowCmd struct {
	WorkOrderID string `arg:"" name:"id" help:"Work order identifier"`
	JSON        bool   `help:"Print JSON instead of a table"`
}

func (j *JournalShowCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	store, err := openJournal(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closeJournal(store)

	entries, err := store.ByWorkOrder(ctx, j.WorkOrderID)
	if err != nil {
		return err
	}
	records, err := journal.DecodeAll(entries)
	if err != nil {
		return errors.WrapError(err, errors.CategoryJournal, "journal holds a malformed entry").
			WithContext("work_order_id", j.WorkOrderID).Build()
	}
	return writeRecords(g.out(), records, j.JSON)
}

func writeRecords(w io.Writer, records []journal.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tKIND\tSTATE\tOUTCOME\tATTEMPTS\tERROR")
	for _, r := range records {
		at := r.Timestamp.Local().Format(time.DateTime)
		switch {
		case r.Job != nil:
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				at, r.Type, r.Job.Kind, r.Job.State, r.Job.Outcome, r.Job.Attempts, r.Job.Error)
		case r.Expiry != nil:
			fmt.Fprintf(tw, "%s\t%s\t-\t%s\t-\t-\t\n", at, r.Type, r.Expiry.State)
		default:
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t\n", at, r.Type)
		}
	}
	return tw.Flush()
}

// JournalExportCmd implements 'journal export'.
type JournalExportCmd struct {
	Since   time.Duration `help:"Export entries recorded within this window before --to" default:"24h"`
	From    string        `help:"Start of the range (RFC 3339); overrides --since" placeholder:"TIME"`
	To      string        `help:"End of the range (RFC 3339); defaults to now" placeholder:"TIME"`
	Output  string        `short:"o" help:"Output file; - writes to stdout" default:"-"`
	Archive bool          `help:"Upload the export to the configured archive bucket instead"`
}

func (j *JournalExportCmd) Run(g *Global, root *CLI) error {
	start, end, err := exportRange(time.Now(), j.Since, j.From, j.To)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	store, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	defer closeJournal(store)

	if j.Archive {
		if cfg.Archive.Bucket == "" {
			return errors.ConfigError("archive.bucket is required for --archive").Build()
		}
		up, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		key, n, err := up.ArchiveJournal(ctx, store, start, end)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(g.out(), "Uploaded %d entries to %s\n", n, key)
		} else {
			fmt.Fprintln(g.out(), "No entries in range")
		}
		return nil
	}

	w := g.out()
	if j.Output != "-" {
		f, err := os.Create(j.Output)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create export file").
				WithContext("path", j.Output).Build()
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	n, err := journal.Export(ctx, store, w, start, end)
	if err != nil {
		return err
	}
	slog.Info("Journal exported", logfields.Count(n), slog.Time("start", start), slog.Time("end", end))
	return nil
}

// exportRange resolves the export window. from overrides since; to
// defaults to now.
func exportRange(now time.Time, since time.Duration, from, to string) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return time.Time{}, time.Time{}, errors.ValidationError("--to must be an RFC 3339 time").
				WithContext("value", to).Build()
		}
		end = t
	}

	start := end.Add(-since)
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return time.Time{}, time.Time{}, errors.ValidationError("--from must be an RFC 3339 time").
				WithContext("value", from).Build()
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.ValidationError("export range starts after it ends").Build()
	}
	return start, end, nil
}

func openJournal(ctx context.Context, configPath string) (journal.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return journal.Open(ctx, cfg.Journal)
}

func closeJournal(store journal.Store) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close journal", logfields.Error(err))
	}
}
