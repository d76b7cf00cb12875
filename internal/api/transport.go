package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// TokenSource supplies the current bearer token, or "" when anonymous.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

var errNilRequest = errors.New("api: nil request or URL")

// bearerTransport is the single place the Authorization header is set.
type bearerTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

// Bearer wraps base so every outgoing request carries
// "Authorization: Bearer <token>" while tokens reports a non-empty token.
// Anonymous requests pass through untouched. The token is read per request,
// so a logout takes effect on the very next call.
func Bearer(base http.RoundTripper, tokens TokenSource) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{base: base, tokens: tokens}
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errNilRequest
	}
	token := ""
	if t.tokens != nil {
		token = t.tokens.Token()
	}
	if token == "" {
		return t.base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}

// loggingTransport logs every round trip.
type loggingTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

// Logging wraps base with a debug log line per request.
func Logging(base http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTransport{base: base, logger: logger}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("http request failed",
			"method", req.Method,
			"host", req.URL.Host,
			"path", req.URL.Path,
			"error", err,
		)
		return nil, err
	}
	t.logger.Debug("http request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
