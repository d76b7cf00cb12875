// Package session owns the client's authentication state: the bearer token
// and username obtained at login, mirrored to a durable kv.Store so a later
// process start sees the same session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iammorganparry/stockview/internal/kv"
	"github.com/iammorganparry/stockview/internal/model"
)

// Keys of the two persisted records.
const (
	KeyToken    = "token"
	KeyUsername = "username"
)

const defaultLoginFailure = "login failed"

// ErrSuperseded is returned by Login when a newer Login or Logout started
// while it was in flight. Its result was discarded.
var ErrSuperseded = errors.New("session: superseded by a newer action")

// Session is the token/username pair. Username is meaningful only while
// Token is non-empty.
type Session struct {
	Token    string
	Username string
}

// Authenticated reports whether the session holds a token.
func (s Session) Authenticated() bool { return s.Token != "" }

// AuthError is a failed login or registration. Message is safe to show.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// Authenticator performs the network side of login and registration.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (model.LoginResult, error)
	Register(ctx context.Context, creds model.Credentials) error
}

// Store is the process-wide session. It is safe for concurrent use.
type Store struct {
	kv     kv.Store
	auth   Authenticator
	logger *slog.Logger

	mu         sync.RWMutex
	current    Session
	generation uint64
}

// Open restores the session persisted in store.
func Open(ctx context.Context, store kv.Store, auth Authenticator, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	token, err := store.Get(ctx, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("restore session token: %w", err)
	}
	s := &Store{kv: store, auth: auth, logger: logger}
	if token == "" {
		return s, nil
	}
	username, err := store.Get(ctx, KeyUsername)
	if err != nil {
		return nil, fmt.Errorf("restore session username: %w", err)
	}
	s.current = Session{Token: token, Username: username}
	logger.Debug("session restored", "username", username)
	return s, nil
}

// Login authenticates creds and persists the resulting session. Any failure
// clears the persisted and in-memory session before returning an *AuthError,
// so a failed attempt never leaves an old token in effect.
func (s *Store) Login(ctx context.Context, creds model.Credentials) (Session, error) {
	gen := s.begin()

	result, err := s.auth.Login(ctx, creds)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("discarding stale login response", "username", creds.Username)
		return Session{}, ErrSuperseded
	}

	if err == nil && (result.Token == "" || result.Username == "") {
		err = errors.New("incomplete login response")
	}
	if err != nil {
		s.resetLocked(ctx)
		s.logger.Info("login failed", "username", creds.Username, "error", err)
		return Session{}, &AuthError{Message: loginMessage(err), Err: err}
	}

	next := Session{Token: result.Token, Username: result.Username}
	if err := s.kv.Put(ctx, map[string]string{
		KeyToken:    next.Token,
		KeyUsername: next.Username,
	}); err != nil {
		s.resetLocked(ctx)
		return Session{}, &AuthError{Message: "could not save session", Err: err}
	}

	s.current = next
	s.logger.Info("logged in", "username", next.Username)
	return next, nil
}

// Logout clears the session. It always leaves the in-memory session empty;
// the returned error only reports a failure to clear durable storage.
func (s *Store) Logout(ctx context.Context) error {
	s.begin()

	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.current.Username
	s.current = Session{}
	if err := s.kv.Delete(ctx, KeyToken, KeyUsername); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	if was != "" {
		s.logger.Info("logged out", "username", was)
	}
	return nil
}

// Register creates an account. It does not change the session.
func (s *Store) Register(ctx context.Context, creds model.Credentials) error {
	if err := s.auth.Register(ctx, creds); err != nil {
		msg := serverMessage(err)
		if msg == "" {
			msg = "registration failed"
		}
		return &AuthError{Message: msg, Err: err}
	}
	return nil
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Authenticated()
}

func (s *Store) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Username
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// snapshot returns a copy of the session.
func (s *Store) snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// begin starts a new action and returns its generation.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// resetLocked drops the session in memory and in storage. s.mu must be held.
func (s *Store) resetLocked(ctx context.Context) {
	s.current = Session{}
	// A cancelled login must still clear storage.
	if err := s.kv.Delete(context.WithoutCancel(ctx), KeyToken, KeyUsername); err != nil {
		s.logger.Error("failed to clear persisted session", "error", err)
	}
}

func loginMessage(err error) string {
	if msg := serverMessage(err); msg != "" {
		return msg
	}
	return defaultLoginFailure
}

// serverMessage extracts a backend-provided message, if any.
func serverMessage(err error) string {
	var m interface{ ServerMessage() string }
	if errors.As(err, &m) {
		return m.ServerMessage()
	}
	return ""
}
