package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/iammorganparry/stockview/internal/stubapi"
)

// userFlags collects repeated -user name:password flags.
type userFlags []string

func (u *userFlags) String() string { return strings.Join(*u, ",") }

func (u *userFlags) Set(v string) error {
	name, pass, ok := strings.Cut(v, ":")
	if !ok || name == "" || pass == "" {
		return fmt.Errorf("want name:password, got %q", v)
	}
	*u = append(*u, v)
	return nil
}

type stubCmd struct {
	app   *App
	addr  string
	users userFlags
}

func (*stubCmd) Name() string     { return "stub" }
func (*stubCmd) Synopsis() string { return "serve the bundled demo backend" }
func (*stubCmd) Usage() string {
	return `stockview stub [-addr :5000] [-user name:password ...]

  Serves login, registration, stock data and watchlist endpoints with
  generated prices and in-memory accounts. Point STOCKVIEW_API_URL at it.
`
}

func (c *stubCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address (defaults to the configured stub address)")
	f.Var(&c.users, "user", "seed an account as name:password; may be repeated")
}

func (c *stubCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.app.LoadConfig()
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	logger := NewLogger(c.app.Err, cfg.LogLevel)

	addr := c.addr
	if addr == "" {
		addr = cfg.Stub.Addr
	}

	stub := stubapi.New(stubapi.Config{Secret: cfg.Stub.Secret, TokenTTL: cfg.Stub.TokenTTL, Logger: logger})
	for _, u := range c.users {
		name, pass, _ := strings.Cut(u, ":")
		if err := stub.AddUser(name, pass); err != nil {
			return c.app.fail("Error seeding %s: %v", name, err)
		}
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      stub.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("stub backend starting", "addr", addr, "users", len(c.users))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return subcommands.ExitFailure
	}
	logger.Info("stub backend stopped")
	return subcommands.ExitSuccess
}
