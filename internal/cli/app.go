// Package cli implements the stockview subcommands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/iammorganparry/stockview/internal/api"
	"github.com/iammorganparry/stockview/internal/config"
	"github.com/iammorganparry/stockview/internal/kv"
	"github.com/iammorganparry/stockview/internal/session"
	"github.com/iammorganparry/stockview/internal/stubapi"
)

// Demo credentials seeded into the in-process backend.
const (
	DemoUser     = "demo"
	DemoPassword = "demo123"
)

// App carries what every subcommand shares: the streams, the config loader
// and the top-level flags.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// LoadConfig is config.Load unless replaced.
	LoadConfig func() (*config.Config, error)

	demo bool
}

func New(in io.Reader, out, errOut io.Writer) *App {
	return &App{In: in, Out: out, Err: errOut, LoadConfig: config.Load}
}

// SetFlags registers the flags accepted before the subcommand name.
func (a *App) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&a.demo, "demo", false, "run against an in-process demo backend with a throwaway session (user demo, password demo123)")
	f.BoolVar(&a.demo, "ephemeral", false, "alias of -demo")
}

// Register the subcommands.
func Register(c *subcommands.Commander, a *App) {
	c.Register(&uiCmd{app: a}, "")

	c.Register(&loginCmd{app: a}, "session")
	c.Register(&registerCmd{app: a}, "session")
	c.Register(&logoutCmd{app: a}, "session")
	c.Register(&statusCmd{app: a}, "session")

	c.Register(&stocksCmd{app: a}, "market")
	c.Register(&quoteCmd{app: a}, "market")
	c.Register(&watchCmd{app: a}, "market")

	c.Register(&stubCmd{app: a}, "backend")
}

// env is the wired client stack for one command run.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *api.Client
	session *session.Store
	closers []func() error
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// open loads config, builds the logger and wires the kv store, API client
// and session together. A nil logOut sends logs to the configured log file.
func (a *App) open(ctx context.Context, logOut io.Writer) (*env, error) {
	cfg, err := a.LoadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg}
	if logOut == nil {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, f.Close)
		logOut = f
	}
	e.logger = NewLogger(logOut, cfg.LogLevel)

	if a.demo {
		url, stop, err := startDemoBackend(cfg.Stub, e.logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, stop)
		cfg.APIURL = url
		cfg.Session = config.SessionConfig{Backend: config.BackendMemory}
	}

	store, err := kv.Open(ctx, cfg.Session)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	e.closers = append(e.closers, store.Close)

	e.client = api.NewClient(cfg.APIURL, cfg.HTTPTimeout, e.logger)
	e.session, err = session.Open(ctx, store, e.client, e.logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.client.Authorize(e.session)
	return e, nil
}

// fail reports err on the error stream and returns ExitFailure.
func (a *App) fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, format+"\n", args...)
	return subcommands.ExitFailure
}

// NewLogger returns the JSON slog logger used by every command. level
// "debug" enables debug output.
func NewLogger(w io.Writer, level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// startDemoBackend serves a stub backend on a loopback port and returns its
// URL and a stop function.
func startDemoBackend(cfg config.StubConfig, logger *slog.Logger) (string, func() error, error) {
	stub := stubapi.New(stubapi.Config{Secret: cfg.Secret, TokenTTL: cfg.TokenTTL, Logger: logger})
	if err := stub.AddUser(DemoUser, DemoPassword); err != nil {
		return "", nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen for demo backend: %w", err)
	}
	srv := &http.Server{Handler: stub.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("demo backend stopped", "error", err)
		}
	}()
	logger.Info("demo backend started", "addr", ln.Addr().String())

	stop := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
