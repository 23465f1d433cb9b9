// Package apperrors defines the proxy's unified failure taxonomy and its
// mapping onto HTTP status codes and the OpenAI error envelope.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

// Kind is one of the taxonomy members named in the translation design.
type Kind string

const (
	KindConfig         Kind = "config"
	KindAuthentication Kind = "authentication"
	KindInvalidRequest Kind = "invalid_request"
	KindUpstream       Kind = "upstream"
	KindConversion     Kind = "conversion"
	KindNetwork        Kind = "network"
	KindTimeout        Kind = "timeout"
	KindQuotaExceeded  Kind = "quota_exceeded"
)

// Error is the single error type returned across package boundaries in the
// core. Status and Body are only meaningful for KindUpstream, carrying the
// upstream's verbatim status code and response body.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
	Err     error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Upstream builds a KindUpstream error carrying the verbatim upstream status
// and body; message stays developer-facing.
func Upstream(status int, body string) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("upstream responded with status %d", status),
		Status:  status,
		Body:    body,
	}
}

// HTTPStatus maps a Kind (and, for Upstream, its carried status) onto the
// HTTP status the core hands back to its caller.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfig, KindAuthentication, KindConversion:
		return http.StatusInternalServerError
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUpstream:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadGateway
	case KindNetwork, KindTimeout:
		return http.StatusGatewayTimeout
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// errorType maps a Kind onto the OpenAI error envelope's "type" field.
func (e *Error) errorType() string {
	switch e.Kind {
	case KindInvalidRequest:
		return "invalid_request_error"
	case KindAuthentication:
		return "authentication_error"
	case KindQuotaExceeded:
		return "insufficient_quota"
	case KindUpstream:
		return "upstream_error"
	case KindNetwork, KindTimeout:
		return "timeout_error"
	default:
		return "api_error"
	}
}

// Envelope renders the OpenAI-shaped {"error": {...}} envelope. Upstream
// 4xx bodies are passed through verbatim instead (callers that have the raw
// upstream body should prefer writing it directly when Kind == KindUpstream).
func (e *Error) Envelope() openaiapi.ErrorBody {
	return openaiapi.ErrorBody{
		Error: openaiapi.ErrorDetail{
			Message: e.Message,
			Type:    e.errorType(),
		},
	}
}

// As reports whether err (or anything it wraps) is an *Error, writing it
// into target. Thin wrapper around errors.As for call-site brevity.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
