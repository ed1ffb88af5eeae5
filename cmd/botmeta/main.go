// Package main is the botmeta command: an HTTP API for managing Telegram bot
// profile metadata plus one-shot probe, validate and languages commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	apperrors "github.com/edgard/botmeta/internal/errors"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// run executes the command line in args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintln(stderr, styles.err.Render("error:"), err)
		if code := apperrors.Code(err); code != apperrors.CodeUnknown {
			fmt.Fprintln(stderr, styles.help.Render("code: "+code))
		}
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "botmeta",
		Usage:     "Manage Telegram bot names, descriptions and commands across languages",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (defaults to ./config.yaml when present)",
				Sources: cli.EnvVars("BOTMETA_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			probeCommand(),
			validateCommand(),
			languagesCommand(),
		},
	}
}

func tokenFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "token",
		Aliases:  []string{"t"},
		Usage:    "Bot API token",
		Sources:  cli.EnvVars("BOTMETA_TOKEN"),
		Required: true,
	}
}

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Usage:   "Base URL of a running botmeta server to send the request through",
		Sources: cli.EnvVars("BOTMETA_SERVER"),
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}
