package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wodesk/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Out receives command output meant for the user.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"wodesk.yaml" env:"WODESK_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve   ServeCmd   `cmd:"" help:"Run the lifecycle engine with its local API"`
	List    ListCmd    `cmd:"" help:"List work orders held by the service desk"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Journal JournalCmd `cmd:"" help:"Inspect or export the dispatch journal"`
	MWEmail MWEmailCmd `cmd:"" name:"mw-email" help:"Render a maintenance-window e-mail from a log note"`
	AddCI   AddCICmd   `cmd:"" name:"add-ci" help:"Attach configuration items to a work order in the service desk"`
}

// logLevel backs the default handler so the level can change after startup.
var logLevel = new(slog.LevelVar)

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, config.LogFormatText)))
	return nil
}

func newLogHandler(w io.Writer, format config.LogFormat) slog.Handler {
	opts := &slog.HandlerOptions{Level: logLevel}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// applyLogging switches the default handler to the configured format and
// level. -v keeps debug output regardless of the configured level.
func applyLogging(cfg config.LoggingConfig, verbose bool) {
	if !verbose {
		logLevel.Set(cfg.Level.SlogLevel())
	}
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, cfg.Format)))
}
