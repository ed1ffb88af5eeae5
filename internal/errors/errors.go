// Package errors defines the application error taxonomy and the normalized
// failure type for calls against the Telegram Bot API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard error codes for the application.
const (
	CodeUnknown           = "UNKNOWN"
	CodeCredentialInvalid = "CREDENTIAL_INVALID"
	CodeRateLimited       = "RATE_LIMITED"
	CodeRemote            = "REMOTE"
	CodeNetwork           = "NETWORK"
	CodeValidation        = "VALIDATION"
	CodeConfig            = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't contain one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

type ValidationError struct {
	base Error
}

func (e *ValidationError) Error() string { return e.base.Error() }
func (e *ValidationError) Code() string  { return e.base.Code() }
func (e *ValidationError) Unwrap() error { return e.base.Unwrap() }

func NewValidationError(message string, cause error) error {
	return &ValidationError{
		base: Error{
			code:    CodeValidation,
			message: message,
			err:     cause,
		},
	}
}

type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string { return e.base.Error() }
func (e *ConfigError) Code() string  { return e.base.Code() }
func (e *ConfigError) Unwrap() error { return e.base.Unwrap() }

func NewConfigError(message string, cause error) error {
	return &ConfigError{
		base: Error{
			code:    CodeConfig,
			message: message,
			err:     cause,
		},
	}
}

// CredentialError reports a bot token the remote platform refused.
type CredentialError struct {
	base Error
}

func (e *CredentialError) Error() string { return e.base.Error() }
func (e *CredentialError) Code() string  { return e.base.Code() }
func (e *CredentialError) Unwrap() error { return e.base.Unwrap() }

func NewCredentialError(message string, cause error) error {
	return &CredentialError{
		base: Error{
			code:    CodeCredentialInvalid,
			message: message,
			err:     cause,
		},
	}
}

// Kind classifies a RemoteError.
type Kind int

const (
	KindRemote Kind = iota
	KindRateLimited
	KindNetwork
	KindCredential
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindCredential:
		return "credential"
	default:
		return "remote"
	}
}

// RemoteError is the single failure shape for every Bot API call. Description
// carries the remote human-readable cause; Status is the remote error_code
// (0 when unknown).
type RemoteError struct {
	Method      string
	Description string
	Status      int
	RetryAfter  int
	Kind        Kind
	err         error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d)", e.Method, e.Description, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Description)
}

func (e *RemoteError) Code() string {
	switch e.Kind {
	case KindRateLimited:
		return CodeRateLimited
	case KindNetwork:
		return CodeNetwork
	case KindCredential:
		return CodeCredentialInvalid
	default:
		return CodeRemote
	}
}

func (e *RemoteError) Unwrap() error {
	return e.err
}

// NewRemoteError builds a RemoteError. A 429 status, or a description carrying
// the rate-limit signature, always yields KindRateLimited. A 401 status yields
// KindCredential.
func NewRemoteError(method string, status int, description string, kind Kind, cause error) *RemoteError {
	switch {
	case status == http.StatusTooManyRequests || hasRateLimitSignature(description):
		kind = KindRateLimited
	case status == http.StatusUnauthorized:
		kind = KindCredential
	}
	return &RemoteError{
		Method:      method,
		Description: description,
		Status:      status,
		Kind:        kind,
		err:         cause,
	}
}

// IsRateLimited reports whether err was caused by the remote request-rate
// policy. Errors outside the taxonomy are classified by message.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Kind == KindRateLimited
	}
	return hasRateLimitSignature(err.Error())
}

func hasRateLimitSignature(msg string) bool {
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}

// New returns an application error carrying code. It is used where the code
// arrives from elsewhere, such as an API error envelope.
func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}
