package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport captures the request it is asked to send.
type recordingTransport struct {
	got *http.Request
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.got = req
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestBearerDecoratesEveryRequest(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"authenticated", "abc123", "Bearer abc123"},
		{"anonymous", "", ""},
	}

	for _, tt := range tests {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			t.Run(tt.name+" "+method, func(t *testing.T) {
				rec := &recordingTransport{}
				rt := Bearer(rec, TokenFunc(func() string { return tt.token }))

				req := httptest.NewRequest(method, "http://backend/api/stocks", nil)
				_, err := rt.RoundTrip(req)
				require.NoError(t, err)

				assert.Equal(t, tt.want, rec.got.Header.Get("Authorization"))
				assert.Empty(t, req.Header.Get("Authorization"), "caller's request is not mutated")
			})
		}
	}
}

func TestBearerAnonymousLeavesHeadersUntouched(t *testing.T) {
	rec := &recordingTransport{}
	rt := Bearer(rec, TokenFunc(func() string { return "" }))

	req := httptest.NewRequest(http.MethodGet, "http://backend/api/stocks", nil)
	req.Header.Set("X-Trace", "1")
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)

	assert.Same(t, req, rec.got)
	assert.Equal(t, http.Header{"X-Trace": {"1"}}, rec.got.Header)
}

func TestBearerReadsTokenPerRequest(t *testing.T) {
	rec := &recordingTransport{}
	token := "first"
	rt := Bearer(rec, TokenFunc(func() string { return token }))

	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend/a", nil))
	require.NoError(t, err)
	assert.Equal(t, "Bearer first", rec.got.Header.Get("Authorization"))

	token = "" // logout
	_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend/b", nil))
	require.NoError(t, err)
	assert.Empty(t, rec.got.Header.Get("Authorization"), "no stale token after logout")
}

func TestBearerNilRequest(t *testing.T) {
	rec := &recordingTransport{}
	_, err := Bearer(rec, TokenFunc(func() string { return "t" })).RoundTrip(nil)
	assert.ErrorIs(t, err, errNilRequest)
	assert.Nil(t, rec.got, "nothing is sent")
}
