package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
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
	"github.com/edgard/botmeta/internal/telegram"
	"github.com/edgard/botmeta/internal/telegram/telegramtest"
	"github.com/edgard/botmeta/internal/translate"
)

const testToken = "123456:TEST-token_abc"

func init() {
	gin.SetMode(gin.TestMode)
}

var testTable = []languages.Language{
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
}

func defaultMetadata() metadata.BotMetadata {
	return metadata.BotMetadata{
		Name:             "Foo",
		Description:      "D",
		ShortDescription: "S",
		Commands:         []metadata.BotCommand{{Command: "start", Description: "Start"}},
	}
}

type fakeTranslator struct {
	got translate.Request
	out metadata.BotMetadata
	err error
}

func (f *fakeTranslator) Translate(_ context.Context, req translate.Request) (metadata.BotMetadata, error) {
	f.got = req
	return f.out, f.err
}

type fixture struct {
	api        *telegramtest.Server
	translator *fakeTranslator
	handler    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := telegramtest.NewServer(t)
	api.SetLocale("", defaultMetadata())
	api.SetLocale("es", defaultMetadata())
	fr := defaultMetadata()
	fr.Commands = []metadata.BotCommand{{Command: "start", Description: "Démarrer"}}
	api.SetLocale("fr", fr)

	client := telegram.NewClient(config.TelegramConfig{APIURL: api.URL, RequestTimeout: 5 * time.Second}, nil)
	prober := probe.NewProber(client, config.ProbeConfig{Concurrency: 4, MaxRetries: 3, BaseDelay: time.Millisecond}, testTable, nil)
	tr := &fakeTranslator{}

	srv := New(config.ServerConfig{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second, ShutdownTimeout: time.Second}, client, prober, tr, nil)
	return &fixture{api: api, translator: tr, handler: srv.Handler()}
}

func (f *fixture) post(t *testing.T, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndLanguages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/languages", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK        bool               `json:"ok"`
		Languages []languageResponse `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	require.Len(t, body.Languages, len(languages.All))
	for _, l := range body.Languages {
		if l.Code == "de" {
			assert.Equal(t, "Deutsch", l.NativeName)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.post(t, "/api/telegram/validate", gin.H{"bot_token": testToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "test_bot", body["bot"].(map[string]any)["username"])
}

func TestValidateRejectedToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.RejectToken(testToken)

	w := f.post(t, "/api/telegram/validate", gin.H{"bot_token": testToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, apperrors.CodeCredentialInvalid, body["code"])
	assert.NotContains(t, w.Body.String(), testToken)
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body any
	}{
		{name: "malformed token", path: "/api/telegram/validate", body: gin.H{"bot_token": "abc"}},
		{name: "missing token", path: "/api/telegram/metadata", body: gin.H{}},
		{name: "unknown language", path: "/api/telegram/metadata", body: gin.H{"bot_token": testToken, "language_code": "EN"}},
		{name: "delete needs language", path: "/api/telegram/delete-localization", body: gin.H{"bot_token": testToken}},
		{name: "name too long", path: "/api/telegram/save", body: gin.H{
			"bot_token": testToken,
			"metadata":  gin.H{"name": strings.Repeat("x", 65)},
		}},
		{name: "translate without languages", path: "/api/translate", body: gin.H{"metadata": gin.H{}}},
		{name: "not json", path: "/api/telegram/probe-languages", body: "nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.post(t, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, apperrors.CodeValidation, body["code"])
		})
	}
	assert.Empty(t, f.api.Calls(), "invalid requests never reach the Bot API")
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.post(t, "/api/telegram/metadata", gin.H{"bot_token": testToken, "language_code": "fr"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		OK       bool                 `json:"ok"`
		Metadata metadata.BotMetadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Démarrer", body.Metadata.Commands[0].Description)

	w = f.post(t, "/api/telegram/metadata", gin.H{"bot_token": testToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, defaultMetadata(), body.Metadata)
}

func TestMetadataRateLimited(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.Fail("getMyName", "", telegramtest.RateLimited)

	w := f.post(t, "/api/telegram/metadata", gin.H{"bot_token": testToken})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperrors.CodeRateLimited, decode(t, w)["code"])
}

func TestSave(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	md := gin.H{
		"name":              "Foo DE",
		"description":       "Beschreibung",
		"short_description": "Kurz",
		"commands":          []gin.H{{"command": "start", "description": "Starten"}},
	}
	w := f.post(t, "/api/telegram/save", gin.H{"bot_token": testToken, "language_code": "de", "metadata": md})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		OK      bool              `json:"ok"`
		Results metadata.Outcomes `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Len(t, body.Results, 4)
	assert.Equal(t, "Foo DE", f.api.Locale("de").Name)
}

func TestSavePartialFailureIsMultiStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.Fail("setMyCommands", "de", telegramtest.BadRequest)

	w := f.post(t, "/api/telegram/save", gin.H{"bot_token": testToken, "language_code": "de", "metadata": defaultMetadata()})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	var body struct {
		OK      bool              `json:"ok"`
		Results metadata.Outcomes `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, []metadata.Field{metadata.FieldCommands}, body.Results.FailedFields())
}

func TestDeleteLocalization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.post(t, "/api/telegram/delete-localization", gin.H{"bot_token": testToken, "language_code": "fr"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, f.api.Locale("fr").IsEmpty())
	assert.Len(t, f.api.CallsTo("deleteMyCommands"), 1)
	assert.Empty(t, f.api.CallsTo("setMyCommands"))
}

func TestProbeLanguages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.Fail("getMyName", "de", telegramtest.BadRequest)

	w := f.post(t, "/api/telegram/probe-languages", gin.H{"bot_token": testToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		OK         bool     `json:"ok"`
		Configured []string `json:"configuredLanguages"`
		Failed     []string `json:"failedLanguages"`
		Checked    int      `json:"checked"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, []string{"fr"}, body.Configured)
	assert.Equal(t, []string{"de"}, body.Failed)
	assert.Equal(t, len(testTable), body.Checked)
}

func TestProbeLanguagesStream(t *testing.T) {
	t.Parallel()

	for _, mode := range []struct {
		name    string
		path    string
		headers []string
	}{
		{name: "query", path: "/api/telegram/probe-languages?stream=1"},
		{name: "accept header", path: "/api/telegram/probe-languages", headers: []string{"Accept", NDJSONContentType}},
	} {
		t.Run(mode.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			w := f.post(t, mode.path, gin.H{"bot_token": testToken}, mode.headers...)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, NDJSONContentType, w.Header().Get("Content-Type"))

			var events []probe.Event
			require.NoError(t, probe.DecodeEvents(w.Body, func(ev probe.Event) { events = append(events, ev) }))
			require.Len(t, events, len(testTable)+2)

			assert.Equal(t, probe.Event{Type: probe.EventStart, Total: len(testTable)}, events[0])
			for i, ev := range events[1 : len(testTable)+1] {
				assert.Equal(t, probe.EventProgress, ev.Type)
				assert.Equal(t, i+1, ev.Checked)
			}
			done := events[len(events)-1]
			assert.Equal(t, probe.EventDone, done.Type)
			assert.Equal(t, []string{"fr"}, done.ConfiguredLanguages)
		})
	}
}

func TestProbeLanguagesStreamDefaultFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.RejectToken(testToken)

	w := f.post(t, "/api/telegram/probe-languages?stream=1", gin.H{"bot_token": testToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, apperrors.CodeCredentialInvalid, body["code"])
}

func TestRejectedTokenIsUnauthorizedEverywhere(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.RejectToken(testToken)

	for _, path := range []string{"/api/telegram/metadata", "/api/telegram/probe-languages"} {
		w := f.post(t, path, gin.H{"bot_token": testToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, apperrors.CodeCredentialInvalid, decode(t, w)["code"], path)
	}

	w := f.post(t, "/api/telegram/save", gin.H{"bot_token": testToken, "language_code": "de", "metadata": defaultMetadata()})
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	var body struct {
		OK      bool              `json:"ok"`
		Code    string            `json:"code"`
		Results metadata.Outcomes `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, apperrors.CodeCredentialInvalid, body.Code)
	assert.Len(t, body.Results.FailedFields(), 4)
	assert.NotContains(t, w.Body.String(), testToken)

	w = f.post(t, "/api/telegram/delete-localization", gin.H{"bot_token": testToken, "language_code": "fr"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRemoteServerErrorIsNotCredentialFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.api.Fail("getMe", "", telegramtest.Failure{Code: 500, Description: "Internal Server Error"})

	w := f.post(t, "/api/telegram/validate", gin.H{"bot_token": testToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeRemote, decode(t, w)["code"])
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.translator.out = metadata.BotMetadata{Name: "Foo FR"}

	w := f.post(t, "/api/translate", gin.H{
		"api_key":     "k",
		"source_lang": "en",
		"target_lang": "fr",
		"metadata":    defaultMetadata(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Foo FR", decode(t, w)["metadata"].(map[string]any)["name"])
	assert.Equal(t, "k", f.translator.got.APIKey)
	assert.Equal(t, "fr", f.translator.got.TargetLang)
	assert.Equal(t, defaultMetadata(), f.translator.got.Metadata)
}

func TestTranslateUpstreamFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.translator.err = errors.New("gemini translation failed: quota")

	w := f.post(t, "/api/translate", gin.H{"source_lang": "en", "target_lang": "fr", "metadata": defaultMetadata()})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, statusFor(apperrors.CodeValidation))
	assert.Equal(t, http.StatusBadRequest, statusFor(apperrors.CodeRemote))
	assert.Equal(t, http.StatusUnauthorized, statusFor(apperrors.CodeCredentialInvalid))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(apperrors.CodeRateLimited))
	assert.Equal(t, http.StatusBadGateway, statusFor(apperrors.CodeNetwork))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperrors.CodeUnknown))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	srv := New(config.ServerConfig{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second, ShutdownTimeout: time.Second}, nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
