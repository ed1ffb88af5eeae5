package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/edgard/botmeta/internal/config"
	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/probe"
)

// Prober runs a coverage probe. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, token string) (probe.Result, error)
}

// Notifier delivers a message through the watched bot. *telegram.Client satisfies it.
type Notifier interface {
	SendMessage(ctx context.Context, token string, chatID int64, text string) error
}

// Change lists languages that appeared or disappeared between two probes.
type Change struct {
	Added   []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Diff compares two configured sets. Added keeps the order of cur and
// Removed the order of prev.
func Diff(prev, cur []string) Change {
	var ch Change
	for _, code := range cur {
		if !slices.Contains(prev, code) {
			ch.Added = append(ch.Added, code)
		}
	}
	for _, code := range prev {
		if !slices.Contains(cur, code) {
			ch.Removed = append(ch.Removed, code)
		}
	}
	return ch
}

// Watch probes one bot and remembers the last configured set in memory.
type Watch struct {
	prober   Prober
	notifier Notifier
	token    string
	chatID   int64
	log      *slog.Logger

	mu     sync.Mutex
	last   []string
	seeded bool
}

// NewWatch creates a Watch for cfg.Token. notifier may be nil when no admin
// chat is configured.
func NewWatch(cfg config.WatchConfig, prober Prober, notifier Notifier, logger *slog.Logger) *Watch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watch{
		prober:   prober,
		notifier: notifier,
		token:    cfg.Token,
		chatID:   cfg.AdminChatID,
		log:      logger.With("component", "coverage_watch"),
	}
}

// Last returns the configured set recorded by the latest successful check.
func (w *Watch) Last() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.last)
}

// Check runs one probe and compares it with the previous one. The first
// successful check only records a baseline. A language whose fetch failed
// keeps its previous state so a transient error is not reported as a removal.
func (w *Watch) Check(ctx context.Context) (Change, error) {
	res, err := w.prober.Probe(ctx, w.token)
	if err != nil {
		return Change{}, fmt.Errorf("coverage probe failed: %w", err)
	}
	if len(res.Failed) > 0 {
		w.log.WarnContext(ctx, "Some languages could not be checked", "failed_languages", res.Failed)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cur := slices.Clone(res.Configured)
	for _, code := range w.last {
		if slices.Contains(res.Failed, code) && !slices.Contains(cur, code) {
			cur = append(cur, code)
		}
	}

	if !w.seeded {
		w.last, w.seeded = cur, true
		w.log.InfoContext(ctx, "Coverage baseline recorded", "configured_languages", cur)
		return Change{}, nil
	}

	ch := Diff(w.last, cur)
	w.last = cur
	if ch.Empty() {
		w.log.DebugContext(ctx, "Coverage unchanged", "configured_count", len(cur))
		return ch, nil
	}

	w.log.InfoContext(ctx, "Coverage changed", "added", ch.Added, "removed", ch.Removed)
	if w.chatID != 0 && w.notifier != nil {
		if err := w.notifier.SendMessage(ctx, w.token, w.chatID, Summary(ch, len(cur))); err != nil {
			return ch, fmt.Errorf("failed to notify admin chat: %w", err)
		}
	}
	return ch, nil
}

// Summary renders a change as a plain text message.
func Summary(ch Change, configured int) string {
	var b strings.Builder
	b.WriteString("Language coverage changed.\n")
	if len(ch.Added) > 0 {
		fmt.Fprintf(&b, "Added: %s\n", describe(ch.Added))
	}
	if len(ch.Removed) > 0 {
		fmt.Fprintf(&b, "Removed: %s\n", describe(ch.Removed))
	}
	fmt.Fprintf(&b, "Configured languages: %d", configured)
	return b.String()
}

func describe(codes []string) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = fmt.Sprintf("%s (%s)", code, languages.Name(code))
	}
	return strings.Join(parts, ", ")
}
