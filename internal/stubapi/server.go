// Package stubapi is an in-process stand-in for the stock backend. It serves
// the same endpoints the client calls and is used by tests and demo mode.
package stubapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/iammorganparry/stockview/internal/model"
)

var errUserExists = errors.New("username taken")

// watchEntry orders watchlist items by insertion.
type watchEntry struct {
	seq   int
	added int64
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
	// LoginRate and LoginBurst bound login attempts per username.
	LoginRate  rate.Limit
	LoginBurst int
	Logger     *slog.Logger
}

// Server holds the stub's in-memory state.
type Server struct {
	tokens *tokenIssuer
	logger *slog.Logger

	mu        sync.Mutex
	users     map[string][]byte // username -> bcrypt hash
	watchlist map[string]map[string]watchEntry
	watchSeq  int
	limiters  map[string]*rate.Limiter
	loginRate rate.Limit
	burst     int
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.LoginRate == 0 {
		cfg.LoginRate = rate.Every(time.Second)
	}
	if cfg.LoginBurst == 0 {
		cfg.LoginBurst = 5
	}
	return &Server{
		tokens:    newTokenIssuer(cfg.Secret, cfg.TokenTTL),
		logger:    cfg.Logger,
		users:     make(map[string][]byte),
		watchlist: make(map[string]map[string]watchEntry),
		limiters:  make(map[string]*rate.Limiter),
		loginRate: cfg.LoginRate,
		burst:     cfg.LoginBurst,
	}
}

// Handler returns the chi router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(Observe(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Get("/stocks", s.stocks)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(s.tokens))
			r.Get("/stockdata", s.stockData)
			r.Get("/watchlist", s.listWatchlist)
			r.Post("/watchlist", s.addWatchlist)
			r.Delete("/watchlist/{code}", s.removeWatchlist)
		})
	})

	return r
}

// AddUser registers a user directly, bypassing validation.
func (s *Server) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return errUserExists
	}
	s.users[username] = hash
	return nil
}

func (s *Server) checkPassword(username, password string) bool {
	s.mu.Lock()
	hash, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func (s *Server) allowLogin(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[username]
	if !ok {
		l = rate.NewLimiter(s.loginRate, s.burst)
		s.limiters[username] = l
	}
	return l.Allow()
}

func (s *Server) watchItems(username string) []model.WatchItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.watchlist[username]
	codes := make([]string, 0, len(entries))
	for code := range entries {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return entries[codes[i]].seq < entries[codes[j]].seq })

	items := make([]model.WatchItem, 0, len(codes))
	for _, code := range codes {
		stock, _ := findStock(code)
		items = append(items, model.WatchItem{Code: code, Name: stock.Name, AddedAt: entries[code].added})
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
