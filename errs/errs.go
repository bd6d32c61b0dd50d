// Package errs provides structured error types shared by the venue
// clients and services.
package errs

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Kind identifies a venue failure category.
type Kind string

const (
	// KindConfig indicates missing or malformed venue configuration.
	KindConfig Kind = "config"
	// KindAuth indicates authentication or authorization errors.
	KindAuth Kind = "auth"
	// KindRateLimited indicates that the request exceeded rate limits.
	KindRateLimited Kind = "rate_limited"
	// KindTransport indicates a network or HTTP transport failure.
	KindTransport Kind = "transport"
	// KindNormalization indicates an unparseable or unexpected payload.
	KindNormalization Kind = "normalization"
	// KindGateway indicates an error reported by the gateway socket.
	KindGateway Kind = "gateway"
)

// E captures structured error information produced by venue clients.
type E struct {
	Broker  string
	Kind    Kind
	HTTP    int
	RawCode string
	Message string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the broker and failure kind.
func New(broker string, kind Kind, opts ...Option) *E {
	e := &E{
		Broker: strings.TrimSpace(broker),
		Kind:   kind,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw venue error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	broker := strings.TrimSpace(e.Broker)
	if broker == "" {
		broker = "unknown"
	}
	parts = append(parts, "broker="+broker)

	kind := strings.TrimSpace(string(e.Kind))
	if kind == "" {
		kind = "unknown"
	}
	parts = append(parts, "kind="+kind)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// KindOf reports the failure kind carried by err, or empty when err does
// not wrap an envelope.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err wraps an envelope of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromHTTPStatus classifies a non-2xx venue response into an envelope.
func FromHTTPStatus(broker string, status int, body string) *E {
	kind := KindTransport
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	return New(broker, kind, WithHTTP(status), WithMessage(truncate(body, 256)))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
