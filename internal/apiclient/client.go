// Package apiclient calls a running botmeta HTTP API, so the CLI can probe
// through a shared server instead of talking to Telegram directly.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/probe"
	"github.com/edgard/botmeta/internal/telegram"
)

const (
	probePath    = "/api/telegram/probe-languages"
	validatePath = "/api/telegram/validate"
)

// Client is a botmeta API client. Requests are bounded by their context only,
// since a streamed probe can legitimately run for minutes.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

type tokenBody struct {
	BotToken string `json:"bot_token"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// New creates a client for the server at baseURL.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", "botmeta-cli")
	return &Client{http: client, log: logger.With("component", "api_client")}
}

// Probe runs a batch probe on the server.
func (c *Client) Probe(ctx context.Context, token string) (probe.Result, error) {
	body, err := c.post(ctx, probePath, token, false)
	if err != nil {
		return probe.Result{}, err
	}
	defer body.Close()

	var res probe.Result
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return probe.Result{}, fmt.Errorf("decode probe response: %w", err)
	}
	return res, nil
}

// ProbeStream runs a streamed probe and hands every event to fn as it arrives.
func (c *Client) ProbeStream(ctx context.Context, token string, fn func(probe.Event)) error {
	body, err := c.post(ctx, probePath, token, true)
	if err != nil {
		return err
	}
	defer body.Close()

	err = probe.DecodeEvents(body, fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("read probe stream: %w", err)
	}
	return nil
}

// Validate checks token through the server.
func (c *Client) Validate(ctx context.Context, token string) (telegram.BotIdentity, error) {
	body, err := c.post(ctx, validatePath, token, false)
	if err != nil {
		return telegram.BotIdentity{}, err
	}
	defer body.Close()

	var out struct {
		Bot telegram.BotIdentity `json:"bot"`
	}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return telegram.BotIdentity{}, fmt.Errorf("decode validate response: %w", err)
	}
	return out.Bot, nil
}

// post sends {bot_token} to path and returns the unread body of a 2xx response.
func (c *Client) post(ctx context.Context, path, token string, stream bool) (io.ReadCloser, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(tokenBody{BotToken: token}).
		SetDoNotParseResponse(true)
	if stream {
		req.SetQueryParam("stream", "1").SetHeader("Accept", "application/x-ndjson")
	}

	c.log.DebugContext(ctx, "Calling botmeta server", "path", path, "stream", stream)
	resp, err := req.Post(path)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeNetwork, "botmeta server request failed", err)
	}

	body := resp.RawBody()
	if resp.IsSuccess() {
		return body, nil
	}
	defer body.Close()
	return nil, decodeError(resp.StatusCode(), body)
}

func decodeError(status int, r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, 64<<10))

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(raw))
		if eb.Error == "" {
			eb.Error = http.StatusText(status)
		}
	}
	code := eb.Code
	if code == "" {
		code = apperrors.CodeUnknown
	}
	return apperrors.New(code, fmt.Sprintf("server answered %d: %s", status, eb.Error), nil)
}
