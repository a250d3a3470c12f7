package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/daemon"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen  string `help:"Override http.listen" placeholder:"ADDR"`
	NoWatch bool   `name:"no-watch" help:"Do not apply configuration file changes at runtime"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.HTTP.Listen = s.Listen
	}
	applyLogging(cfg.Logging, root.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := daemon.Options{}
	if !root.Verbose {
		opts.LevelVar = logLevel
	}
	watchPath := root.Config
	if s.NoWatch {
		watchPath = ""
	}

	d, err := daemon.New(ctx, cfg, watchPath, opts)
	if err != nil {
		return err
	}
	slog.Info("Daemon created, waiting for shutdown signal...")
	return d.Run(ctx)
}
