package stubapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/stockview/internal/model"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

func decodeCredentials(r *http.Request) (model.Credentials, bool) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		return creds, false
	}
	creds.Username = strings.TrimSpace(creds.Username)
	return creds, creds.Username != "" && creds.Password != ""
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if !s.allowLogin(creds.Username) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}
	if !s.checkPassword(creds.Username, creds.Password) {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	token, err := s.tokens.Issue(creds.Username)
	if err != nil {
		s.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResult{Token: token, Username: creds.Username})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if len(creds.Username) < minUsernameLen {
		writeError(w, http.StatusBadRequest, "username must be at least 3 characters")
		return
	}
	if len(creds.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if err := s.AddUser(creds.Username, creds.Password); err != nil {
		if errors.Is(err, errUserExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("register user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": creds.Username})
}

func (s *Server) stocks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogue)
}

// stockData answers in the chart feed's shape:
// dates, klineData rows of [open, close, low, high], volumes.
func (s *Server) stockData(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("stockCode")
	if code == "" {
		writeError(w, http.StatusBadRequest, "stockCode is required")
		return
	}
	if _, ok := findStock(code); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data for stock " + code})
		return
	}

	candles := generateKLine(code)
	resp := struct {
		Dates     []string     `json:"dates"`
		KLineData [][4]float64 `json:"klineData"`
		Volumes   []int64      `json:"volumes"`
	}{
		Dates:     make([]string, len(candles)),
		KLineData: make([][4]float64, len(candles)),
		Volumes:   make([]int64, len(candles)),
	}
	for i, c := range candles {
		resp.Dates[i] = c.Date
		resp.KLineData[i] = [4]float64{
			c.Open.InexactFloat64(), c.Close.InexactFloat64(),
			c.Low.InexactFloat64(), c.High.InexactFloat64(),
		}
		resp.Volumes[i] = c.Volume
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watchItems(usernameFrom(r.Context())))
}

func (s *Server) addWatchlist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if _, ok := findStock(body.Code); !ok {
		writeError(w, http.StatusNotFound, "unknown stock "+body.Code)
		return
	}

	user := usernameFrom(r.Context())
	s.mu.Lock()
	if s.watchlist[user] == nil {
		s.watchlist[user] = make(map[string]watchEntry)
	}
	if _, ok := s.watchlist[user][body.Code]; !ok {
		s.watchSeq++
		s.watchlist[user][body.Code] = watchEntry{seq: s.watchSeq, added: time.Now().Unix()}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeWatchlist(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	user := usernameFrom(r.Context())

	s.mu.Lock()
	delete(s.watchlist[user], code)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
