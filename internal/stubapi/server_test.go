package stubapi

import (
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
	"golang.org/x/time/rate"

	"github.com/iammorganparry/stockview/internal/model"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{
		Secret: "test-secret",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, s.AddUser("alice", "hunter2"))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func login(t *testing.T, base string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, base+"/api/login", "", `{"username":"alice","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLogin(t *testing.T) {
	_, srv := newTestServer(t)

	login(t, srv.URL)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/login", "", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "bad credentials", body["message"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/login", "", `{"username":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginRateLimited(t *testing.T) {
	s := New(Config{
		Secret:     "test-secret",
		LoginRate:  rate.Every(time.Hour),
		LoginBurst: 2,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body := `{"username":"mallory","password":"guess"}`
	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodPost, srv.URL+"/api/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/register", "", `{"username":"bob","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/register", "", `{"username":"bob","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "username taken", body["message"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/register", "", `{"username":"bo","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/login", "", `{"username":"bob","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/stockdata?stockCode=600519", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/watchlist", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/stocks", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "stock list is public")
}

func TestStockData(t *testing.T) {
	_, srv := newTestServer(t)
	token := login(t, srv.URL)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/stockdata?stockCode=600519", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["dates"], klineDays)
	assert.Len(t, body["klineData"], klineDays)
	assert.Len(t, body["volumes"], klineDays)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/stockdata?stockCode=999999", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "999999")
}

func TestWatchlist(t *testing.T) {
	_, srv := newTestServer(t)
	token := login(t, srv.URL)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/watchlist", token, `{"code":"600519"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/watchlist", token, `{"code":"600519"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "adding twice is fine")
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/watchlist", token, `{"code":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/watchlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var items []model.WatchItem
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&items))
	raw.Body.Close()
	require.Len(t, items, 1)
	assert.Equal(t, "Kweichow Moutai", items[0].Name)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/watchlist/600519", token, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTokenExpiry(t *testing.T) {
	issuer := newTokenIssuer("k", time.Minute)
	now := time.Date(2024, 12, 3, 9, 30, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	user, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	now = now.Add(2 * time.Minute)
	_, err = issuer.Verify(token)
	assert.Error(t, err)

	_, err = newTokenIssuer("other", time.Minute).Verify(token)
	assert.Error(t, err, "wrong secret")
}

func TestGenerateKLineDeterministic(t *testing.T) {
	a := generateKLine("600519")
	b := generateKLine("600519")
	require.Len(t, a, klineDays)
	assert.Equal(t, a, b)
	assert.Equal(t, "2024-12-03", a[len(a)-1].Date, "newest day last")
	for _, c := range a {
		assert.True(t, c.Low.LessThanOrEqual(c.Open) && c.Low.LessThanOrEqual(c.Close), c.Date)
		assert.True(t, c.High.GreaterThanOrEqual(c.Open) && c.High.GreaterThanOrEqual(c.Close), c.Date)
	}
}

func TestMarketOf(t *testing.T) {
	assert.Equal(t, "SH", marketOf("600519"))
	assert.Equal(t, "SZ", marketOf("000001"))
}
