package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/botmeta/internal/config"
	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/metadata"
	"github.com/edgard/botmeta/internal/probe"
	"github.com/edgard/botmeta/internal/server"
	"github.com/edgard/botmeta/internal/telegram"
	"github.com/edgard/botmeta/internal/telegram/telegramtest"
)

const testToken = "123456:TEST-token_abc"

func init() {
	gin.SetMode(gin.TestMode)
}

var table = []languages.Language{{Code: "de", Name: "German"}, {Code: "fr", Name: "French"}}

// newStack serves the real HTTP API backed by a fake Bot API.
func newStack(t *testing.T) (*Client, *telegramtest.Server) {
	t.Helper()

	api := telegramtest.NewServer(t)
	api.SetLocale("", metadata.BotMetadata{Name: "Foo"})
	api.SetLocale("de", metadata.BotMetadata{Name: "Foo DE"})

	tg := telegram.NewClient(config.TelegramConfig{APIURL: api.URL, RequestTimeout: 5 * time.Second}, nil)
	prober := probe.NewProber(tg, config.ProbeConfig{Concurrency: 2, MaxRetries: 1, BaseDelay: time.Millisecond}, table, nil)
	srv := server.New(config.ServerConfig{}, tg, prober, nil, nil)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return New(hs.URL+"/", nil), api
}

func TestProbe(t *testing.T) {
	t.Parallel()
	c, _ := newStack(t)

	res, err := c.Probe(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"de"}, res.Configured)
	assert.Empty(t, res.Failed)
	assert.Equal(t, len(table), res.Checked)
}

func TestProbeStream(t *testing.T) {
	t.Parallel()
	c, _ := newStack(t)

	var events []probe.Event
	err := c.ProbeStream(context.Background(), testToken, func(ev probe.Event) { events = append(events, ev) })
	require.NoError(t, err)

	require.Len(t, events, len(table)+2)
	assert.Equal(t, probe.Event{Type: probe.EventStart, Total: 2}, events[0])
	assert.Equal(t, probe.Event{Type: probe.EventProgress, Checked: 2, Total: 2}, events[2])
	assert.Equal(t, probe.Event{Type: probe.EventDone, ConfiguredLanguages: []string{"de"}}, events[3])
}

func TestValidate(t *testing.T) {
	t.Parallel()
	c, _ := newStack(t)

	bot, err := c.Validate(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "test_bot", bot.Username)
}

func TestServerErrorsKeepTheirCode(t *testing.T) {
	t.Parallel()
	c, api := newStack(t)
	api.RejectToken(testToken)

	_, err := c.Validate(context.Background(), testToken)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCredentialInvalid, apperrors.Code(err))
	assert.Contains(t, err.Error(), "server answered 401")

	err = c.ProbeStream(context.Background(), testToken, func(probe.Event) {})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCredentialInvalid, apperrors.Code(err))

	_, err = c.Probe(context.Background(), "bad")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.Code(err))
}

func TestNonJSONError(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(hs.Close)

	_, err := New(hs.URL, nil).Probe(context.Background(), testToken)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnknown, apperrors.Code(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestUnreachableServer(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(http.NotFoundHandler())
	url := hs.URL
	hs.Close()

	_, err := New(url, nil).Validate(context.Background(), testToken)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNetwork, apperrors.Code(err))
}
