package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"deck-backend/internal/cli"
)

var CLI struct {
	Server string `help:"Deck API base URL." env:"DECK_API_URL" default:"http://localhost:8080"`
	Debug  bool   `help:"Verbose logging."`

	Render      cli.RenderCmd `cmd:"" help:"Render a deck to PNG files locally."`
	Checkpoints struct {
		List    cli.CheckpointListCmd    `cmd:"" help:"List pending checkpoints." default:"1"`
		Approve cli.CheckpointApproveCmd `cmd:"" help:"Approve a pending checkpoint."`
		Reject  cli.CheckpointRejectCmd  `cmd:"" help:"Reject a pending checkpoint."`
		Clear   cli.CheckpointClearCmd   `cmd:"" help:"Drop every checkpoint held by the server."`
	} `cmd:"" help:"Review pipeline checkpoints."`
	Runs struct {
		Start cli.RunStartCmd `cmd:"" help:"Submit a deck to the design pipeline."`
		Get   cli.RunGetCmd   `cmd:"" help:"Show a run."`
	} `cmd:"" help:"Manage design pipeline runs."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("deckctl"),
		kong.Description("Render decks and review design pipeline checkpoints"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
	)

	level := log.InfoLevel
	if CLI.Debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: CLI.Debug,
		Level:           level,
		Prefix:          "deckctl",
	})

	appCtx := &cli.Context{
		API: cli.NewClient(CLI.Server),
		Log: logger,
		Out: os.Stdout,
	}
	if err := ctx.Run(appCtx); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}
