// Package telegramtest provides an in-memory Bot API for tests. It speaks the
// {ok, result, description, error_code} envelope and keeps bot metadata per
// language code, with "" standing for the default localization.
package telegramtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/edgard/botmeta/internal/metadata"
)

// Failure is an ok=false reply.
type Failure struct {
	Code        int
	Description string
	RetryAfter  int
}

var (
	RateLimited  = Failure{Code: http.StatusTooManyRequests, Description: "Too Many Requests: retry after 1", RetryAfter: 1}
	Unauthorized = Failure{Code: http.StatusUnauthorized, Description: "Unauthorized"}
	BadRequest   = Failure{Code: http.StatusBadRequest, Description: "Bad Request: invalid parameters"}
)

// AnyLanguage makes a failure match every language code.
const AnyLanguage = "*"

// Call records one request the server received.
type Call struct {
	Token        string
	Method       string
	LanguageCode string
}

// Message records one sendMessage request.
type Message struct {
	ChatID int64
	Text   string
}

type failure struct {
	Failure
	remaining int // <0 means forever
}

// Server is a fake Bot API backed by httptest.
type Server struct {
	URL string

	srv      *httptest.Server
	mu       sync.Mutex
	locales  map[string]metadata.BotMetadata
	failures map[string]*failure
	rejected map[string]bool
	calls    []Call
	messages []Message
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		locales:  make(map[string]metadata.BotMetadata),
		failures: make(map[string]*failure),
		rejected: make(map[string]bool),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// SetLocale stores md for code.
func (s *Server) SetLocale(code string, md metadata.BotMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locales[code] = md.Clone()
}

// Locale returns what is currently stored for code.
func (s *Server) Locale(code string) metadata.BotMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locales[code].Clone()
}

// Fail makes every call to method for code fail with f.
func (s *Server) Fail(method, code string, f Failure) {
	s.FailTimes(method, code, -1, f)
}

// FailTimes makes the next n calls to method for code fail with f.
func (s *Server) FailTimes(method, code string, n int, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+"|"+code] = &failure{Failure: f, remaining: n}
}

// RejectToken answers every call made with token with 401.
func (s *Server) RejectToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[token] = true
}

// Calls returns every call received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the calls made to method.
func (s *Server) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Messages returns every message sent through sendMessage.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	token, method, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/bot"), "/")
	if !ok {
		writeFailure(w, Failure{Code: http.StatusNotFound, Description: "Not Found"})
		return
	}
	_ = r.ParseMultipartForm(1 << 20)
	code := r.FormValue("language_code")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Token: token, Method: method, LanguageCode: code})

	if s.rejected[token] {
		writeFailure(w, Unauthorized)
		return
	}
	if f, ok := s.takeFailure(method, code); ok {
		writeFailure(w, f)
		return
	}

	md := s.locales[code]
	switch method {
	case "getMe":
		writeResult(w, map[string]any{
			"id":              1,
			"is_bot":          true,
			"first_name":      "Test Bot",
			"username":        "test_bot",
			"can_join_groups": true,
		})
	case "getMyName":
		writeResult(w, map[string]string{"name": md.Name})
	case "getMyDescription":
		writeResult(w, map[string]string{"description": md.Description})
	case "getMyShortDescription":
		writeResult(w, map[string]string{"short_description": md.ShortDescription})
	case "getMyCommands":
		cmds := md.Commands
		if cmds == nil {
			cmds = []metadata.BotCommand{}
		}
		writeResult(w, cmds)
	case "setMyName":
		md.Name = r.FormValue("name")
		s.locales[code] = md
		writeResult(w, true)
	case "setMyDescription":
		md.Description = r.FormValue("description")
		s.locales[code] = md
		writeResult(w, true)
	case "setMyShortDescription":
		md.ShortDescription = r.FormValue("short_description")
		s.locales[code] = md
		writeResult(w, true)
	case "setMyCommands":
		var cmds []metadata.BotCommand
		if err := json.Unmarshal([]byte(r.FormValue("commands")), &cmds); err != nil {
			writeFailure(w, Failure{Code: http.StatusBadRequest, Description: "Bad Request: can't parse commands JSON object"})
			return
		}
		md.Commands = cmds
		s.locales[code] = md
		writeResult(w, true)
	case "deleteMyCommands":
		md.Commands = nil
		s.locales[code] = md
		writeResult(w, true)
	case "sendMessage":
		chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
		text := r.FormValue("text")
		s.messages = append(s.messages, Message{ChatID: chatID, Text: text})
		writeResult(w, map[string]any{
			"message_id": len(s.messages),
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       text,
		})
	default:
		writeFailure(w, Failure{Code: http.StatusNotFound, Description: "Not Found: method not found"})
	}
}

func (s *Server) takeFailure(method, code string) (Failure, bool) {
	for _, key := range []string{method + "|" + code, method + "|" + AnyLanguage} {
		f, ok := s.failures[key]
		if !ok || f.remaining == 0 {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
		}
		return f.Failure, true
	}
	return Failure{}, false
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

// writeFailure answers with HTTP 200 and ok=false; the client only reads the envelope.
func writeFailure(w http.ResponseWriter, f Failure) {
	body := map[string]any{
		"ok":          false,
		"error_code":  f.Code,
		"description": f.Description,
	}
	if f.RetryAfter > 0 {
		body["parameters"] = map[string]any{"retry_after": f.RetryAfter}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
