package stubapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequestID(t *testing.T) {
	h := Observe(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stocks", nil)
	req.Header.Set(headerRequestID, "cli-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "cli-42", rec.Header().Get(headerRequestID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stocks", nil))
	assert.Len(t, rec.Header().Get(headerRequestID), 36, "fresh uuid")

	req = httptest.NewRequest(http.MethodGet, "/api/stocks", nil)
	req.Header.Set(headerRequestID, strings.Repeat("x", 65))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get(headerRequestID), 36, "oversized id replaced")
}

func TestObservePanic(t *testing.T) {
	var logs bytes.Buffer
	h := Observe(slog.New(slog.NewJSONHandler(&logs, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stocks", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["message"])
	assert.Contains(t, logs.String(), `"msg":"handler panic"`)
	assert.Contains(t, logs.String(), `"status":500`)
}

func TestAccessLogNamesUser(t *testing.T) {
	var logs bytes.Buffer
	tokens := newTokenIssuer("test-secret", time.Minute)
	token, err := tokens.Issue("alice")
	require.NoError(t, err)

	var seen string
	inner := BearerAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = usernameFrom(r.Context())
	}))
	h := Observe(slog.New(slog.NewJSONHandler(&logs, nil)))(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "alice", seen)
	assert.Contains(t, logs.String(), `"user":"alice"`)
	assert.Contains(t, logs.String(), `"status":200`)
}

func TestBearerAuthWithoutObserve(t *testing.T) {
	tokens := newTokenIssuer("test-secret", time.Minute)
	token, err := tokens.Issue("bob")
	require.NoError(t, err)

	var seen string
	h := BearerAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = usernameFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "bob", seen)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchlist", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
