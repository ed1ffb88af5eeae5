package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"

	apperrors "github.com/edgard/botmeta/internal/errors"
)

// Matches the go-telegram fallback message for error codes it has no sentinel for.
var unmappedResponse = regexp.MustCompile(`^error response from telegram for method \S+, (\d{3}) (.*)$`)

var sentinels = []struct {
	err    error
	status int
}{
	{tgbot.ErrorBadRequest, http.StatusBadRequest},
	{tgbot.ErrorUnauthorized, http.StatusUnauthorized},
	{tgbot.ErrorForbidden, http.StatusForbidden},
	{tgbot.ErrorNotFound, http.StatusNotFound},
	{tgbot.ErrorTooManyRequests, http.StatusTooManyRequests},
}

// normalizeError maps any failure of a Bot API call to *apperrors.RemoteError.
// The token is scrubbed from descriptions since transport errors embed the request URL.
func normalizeError(method, token string, err error) error {
	var remote *apperrors.RemoteError
	if errors.As(err, &remote) {
		return err
	}

	var tooMany *tgbot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		re := apperrors.NewRemoteError(method, http.StatusTooManyRequests, description(tooMany.Message, token), apperrors.KindRateLimited, err)
		re.RetryAfter = tooMany.RetryAfter
		return re
	}

	if isTransportError(err) {
		return apperrors.NewRemoteError(method, 0, description(err.Error(), token), apperrors.KindNetwork, err)
	}

	status, desc := parseEnvelopeError(err)
	return apperrors.NewRemoteError(method, status, description(desc, token), apperrors.KindRemote, err)
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// parseEnvelopeError recovers the remote error_code and description from an
// error produced by go-telegram for an ok=false response.
func parseEnvelopeError(err error) (int, string) {
	msg := err.Error()

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, strings.TrimPrefix(msg, s.err.Error()+", ")
		}
	}

	if m := unmappedResponse.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		return status, m[2]
	}

	return 0, msg
}

func description(msg, token string) string {
	if token != "" {
		msg = strings.ReplaceAll(msg, token, "<redacted>")
	}
	for _, s := range sentinels {
		msg = strings.TrimPrefix(msg, s.err.Error()+", ")
	}
	return msg
}
