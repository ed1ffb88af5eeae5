package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/edgard/botmeta/internal/apiclient"
	"github.com/edgard/botmeta/internal/app"
	"github.com/edgard/botmeta/internal/config"
	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/logger"
	"github.com/edgard/botmeta/internal/metadata"
	"github.com/edgard/botmeta/internal/probe"
	"github.com/edgard/botmeta/internal/telegram"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API and the optional coverage watch",
		Action: serveAction,
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "List the languages a bot has dedicated metadata for",
		Flags: []cli.Flag{
			tokenFlag(),
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Report progress while probing",
			},
			serverFlag(),
			jsonFlag(),
		},
		Action: probeAction,
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "Check a bot token and show the bot it belongs to",
		Flags:  []cli.Flag{tokenFlag(), serverFlag(), jsonFlag()},
		Action: validateAction,
	}
}

func languagesCommand() *cli.Command {
	return &cli.Command{
		Name:   "languages",
		Usage:  "List the language codes that are probed",
		Flags:  []cli.Flag{jsonFlag()},
		Action: languagesAction,
	}
}

// coverageProber is satisfied by a local prober and by a botmeta server client.
type coverageProber interface {
	Probe(ctx context.Context, token string) (probe.Result, error)
	ProbeStream(ctx context.Context, token string, fn func(probe.Event)) error
}

type localProber struct {
	*probe.Prober
}

// ProbeStream drains the local event channel into fn.
func (p localProber) ProbeStream(ctx context.Context, token string, fn func(probe.Event)) error {
	events, err := p.Stream(ctx, token)
	if err != nil {
		return err
	}
	for ev := range events {
		fn(ev)
	}
	return ctx.Err()
}

// setup loads configuration and installs the logger.
func setup(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewLogger(cfg.Log)
	return cfg, log, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	log.Info("Configuration loaded",
		"addr", cfg.Server.Addr,
		"probe_concurrency", cfg.Probe.Concurrency,
		"watch_enabled", cfg.Watch.Enabled)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func probeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	token := cmd.String("token")
	if err := metadata.ValidateToken(token); err != nil {
		return err
	}

	out := cmd.Root().Writer
	asJSON := cmd.Bool("json")
	enc := json.NewEncoder(out)

	var p coverageProber = localProber{probe.NewProber(telegram.NewClient(cfg.Telegram, log), cfg.Probe, nil, log)}
	if addr := cmd.String("server"); addr != "" {
		p = apiclient.New(addr, log)
	}

	if cmd.Bool("stream") {
		var encErr error
		err := p.ProbeStream(ctx, token, func(ev probe.Event) {
			if !asJSON {
				printEvent(out, ev)
				return
			}
			if encErr == nil {
				encErr = enc.Encode(ev)
			}
		})
		if err != nil {
			return err
		}
		return encErr
	}

	res, err := p.Probe(ctx, token)
	if err != nil {
		return err
	}
	if asJSON {
		return enc.Encode(res)
	}
	printProbeResult(out, res)
	return nil
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	token := cmd.String("token")
	if err := metadata.ValidateToken(token); err != nil {
		return err
	}

	var bot telegram.BotIdentity
	if addr := cmd.String("server"); addr != "" {
		bot, err = apiclient.New(addr, log).Validate(ctx, token)
	} else {
		bot, err = telegram.NewClient(cfg.Telegram, log).ValidateCredential(ctx, token)
	}
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return json.NewEncoder(cmd.Root().Writer).Encode(bot)
	}
	printIdentity(cmd.Root().Writer, bot)
	return nil
}

func languagesAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return json.NewEncoder(cmd.Root().Writer).Encode(languages.All)
	}
	printLanguages(cmd.Root().Writer, languages.All)
	return nil
}
