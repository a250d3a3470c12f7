package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wodesk/cmd/wodesk/commands"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("wodesk"),
		kong.Description("Service-desk work order lifecycle engine with countdown timers."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default(), Out: os.Stdout}, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
