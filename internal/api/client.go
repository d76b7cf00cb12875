package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iammorganparry/stockview/internal/model"
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Status  int
	Message string // server-provided message, may be empty
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// ServerMessage returns the message the backend sent with the error.
func (e *StatusError) ServerMessage() string { return e.Message }

// Client talks to the stock backend. All requests go through the Bearer
// transport, so callers never set Authorization themselves.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	tokens TokenSource
}

// NewClient creates a client for baseURL. Call Authorize before sharing it
// to attach the session's token to outgoing requests.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}
	c.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: Bearer(Logging(http.DefaultTransport, logger), TokenFunc(c.token)),
	}
	return c
}

// Authorize installs the token source read by the Bearer transport.
func (c *Client) Authorize(tokens TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends a JSON request and decodes a JSON response into result.
// Request construction errors are returned as-is.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// statusError reads {"message": ...} or {"error": ...} from an error body.
func statusError(status int, body []byte) *StatusError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	return &StatusError{Status: status, Message: msg}
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.LoginResult, error) {
	var result model.LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/login", creds, &result); err != nil {
		return model.LoginResult{}, err
	}
	if result.Token == "" {
		return model.LoginResult{}, fmt.Errorf("login response has no token")
	}
	return result, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, creds model.Credentials) error {
	return c.do(ctx, http.MethodPost, "/api/register", creds, nil)
}

// Stocks returns the browsable stock list.
func (c *Client) Stocks(ctx context.Context) ([]model.Stock, error) {
	var stocks []model.Stock
	if err := c.do(ctx, http.MethodGet, "/api/stocks", nil, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// stockData is the wire shape of /api/stockdata. klineData rows are
// [open, close, low, high].
type stockData struct {
	Dates     []string            `json:"dates"`
	KLineData [][]decimal.Decimal `json:"klineData"`
	Volumes   []decimal.Decimal   `json:"volumes"`
}

// StockData returns the k-line series for code.
func (c *Client) StockData(ctx context.Context, code string) (*model.KLine, error) {
	var data stockData
	path := "/api/stockdata?" + url.Values{"stockCode": {code}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	if len(data.KLineData) != len(data.Dates) || len(data.Volumes) != len(data.Dates) {
		return nil, fmt.Errorf("stock data for %s: mismatched series lengths (%d dates, %d candles, %d volumes)",
			code, len(data.Dates), len(data.KLineData), len(data.Volumes))
	}

	kline := &model.KLine{Code: code, Candles: make([]model.Candle, 0, len(data.Dates))}
	for i, date := range data.Dates {
		row := data.KLineData[i]
		if len(row) != 4 {
			return nil, fmt.Errorf("stock data for %s: row %d has %d values, want 4", code, i, len(row))
		}
		kline.Candles = append(kline.Candles, model.Candle{
			Date:   date,
			Open:   row[0],
			Close:  row[1],
			Low:    row[2],
			High:   row[3],
			Volume: data.Volumes[i].IntPart(),
		})
	}
	return kline, nil
}

// Watchlist returns the signed-in user's watchlist.
func (c *Client) Watchlist(ctx context.Context) ([]model.WatchItem, error) {
	var items []model.WatchItem
	if err := c.do(ctx, http.MethodGet, "/api/watchlist", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToWatchlist adds code to the watchlist. Adding twice is not an error.
func (c *Client) AddToWatchlist(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/api/watchlist", map[string]string{"code": code}, nil)
}

// RemoveFromWatchlist removes code from the watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, "/api/watchlist/"+url.PathEscape(code), nil, nil)
}
