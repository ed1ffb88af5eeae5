// Package probe discovers which languages carry a dedicated localization of
// a bot's metadata by reading every language from the Bot API and comparing
// it with the default.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/botmeta/internal/config"
	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/metadata"
	"github.com/edgard/botmeta/internal/runner"
)

// Fetcher reads bot metadata. *telegram.Client satisfies it.
type Fetcher interface {
	FetchDefaultMetadata(ctx context.Context, token string) (metadata.BotMetadata, error)
	FetchLocalizedMetadata(ctx context.Context, token, code string) (metadata.BotMetadata, error)
}

// Result is the outcome of one probe run. Failed lists languages whose fetch
// did not succeed; they are never part of Configured.
type Result struct {
	Configured []string `json:"configuredLanguages"`
	Failed     []string `json:"failedLanguages"`
	Checked    int      `json:"checked"`
}

// Prober runs language coverage probes.
type Prober struct {
	fetcher Fetcher
	table   []languages.Language
	opts    runner.Options
	log     *slog.Logger
}

// NewProber creates a Prober over table, or over languages.All when table is nil.
// Zero fields of cfg fall back to the runner defaults.
func NewProber(fetcher Fetcher, cfg config.ProbeConfig, table []languages.Language, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = languages.All
	}

	opts := runner.DefaultOptions()
	if cfg.Concurrency > 0 {
		opts.Concurrency = cfg.Concurrency
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		opts.BaseDelay = cfg.BaseDelay
	}
	opts.Logger = logger

	return &Prober{
		fetcher: fetcher,
		table:   table,
		opts:    opts,
		log:     logger.With("component", "prober"),
	}
}

// IsConfigured reports whether candidate counts as a dedicated localization:
// it must carry some content and differ from the default.
func IsConfigured(def, candidate metadata.BotMetadata) bool {
	return !candidate.IsEmpty() && metadata.Differs(def, candidate)
}

// Probe checks every language and returns the configured ones. Only a failure
// to read the default metadata is returned as an error.
func (p *Prober) Probe(ctx context.Context, token string) (Result, error) {
	def, err := p.fetchDefault(ctx, token)
	if err != nil {
		return Result{}, err
	}
	return p.run(ctx, token, def, nil), nil
}

// Stream is Probe with live progress. The default metadata is read before
// Stream returns, so its failure is reported as the error. The channel then
// yields one start event, a progress event per language and one done event
// before closing. It is buffered for the whole run: a consumer may stop
// reading at any time without stalling the probe.
func (p *Prober) Stream(ctx context.Context, token string) (<-chan Event, error) {
	def, err := p.fetchDefault(ctx, token)
	if err != nil {
		return nil, err
	}

	total := len(p.table)
	events := make(chan Event, total+2)
	events <- Event{Type: EventStart, Total: total}

	go func() {
		defer close(events)
		res := p.run(ctx, token, def, func(checked, total int) {
			events <- Event{Type: EventProgress, Checked: checked, Total: total}
		})
		events <- Event{Type: EventDone, ConfiguredLanguages: res.Configured}
	}()

	return events, nil
}

func (p *Prober) fetchDefault(ctx context.Context, token string) (metadata.BotMetadata, error) {
	def, err := p.fetcher.FetchDefaultMetadata(ctx, token)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to fetch default metadata", "error", err)
		return metadata.BotMetadata{}, fmt.Errorf("fetch default metadata: %w", err)
	}
	return def, nil
}

func (p *Prober) run(ctx context.Context, token string, def metadata.BotMetadata, progress runner.ProgressFunc) Result {
	startTime := time.Now()

	tasks := make([]runner.Task[metadata.BotMetadata], len(p.table))
	for i, lang := range p.table {
		code := lang.Code
		tasks[i] = runner.Task[metadata.BotMetadata]{
			Key: code,
			Run: func(ctx context.Context) (metadata.BotMetadata, error) {
				return p.fetcher.FetchLocalizedMetadata(ctx, token, code)
			},
		}
	}

	opts := p.opts
	opts.OnProgress = progress
	results := runner.Run(ctx, tasks, opts)

	res := Result{Configured: []string{}, Failed: []string{}, Checked: len(results)}
	for _, r := range results {
		if r.Err != nil {
			p.log.WarnContext(ctx, "Language fetch failed, treating as not configured",
				"language_code", r.Key, "attempts", r.Attempts, "error", r.Err)
			res.Failed = append(res.Failed, r.Key)
			continue
		}
		if IsConfigured(def, r.Value) {
			res.Configured = append(res.Configured, r.Key)
		}
	}

	p.log.InfoContext(ctx, "Language probe finished",
		"checked", res.Checked,
		"configured", len(res.Configured),
		"failed", len(res.Failed),
		"duration", time.Since(startTime),
	)
	return res
}
