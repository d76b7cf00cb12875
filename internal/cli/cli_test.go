package cli

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/stockview/internal/config"
	"github.com/iammorganparry/stockview/internal/stubapi"
)

type testEnv struct {
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stub := stubapi.New(stubapi.Config{Secret: "test-secret", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, stub.AddUser("alice", "hunter2"))
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.APIURL = srv.URL
	cfg.LogLevel = "error"
	cfg.LogFile = filepath.Join(dir, "stockview.log")
	cfg.Session = config.SessionConfig{Backend: config.BackendSQLite, Path: filepath.Join(dir, "session.db")}
	return &testEnv{cfg: cfg}
}

// run executes one command line against a fresh App, as a new process would.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (subcommands.ExitStatus, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := New(strings.NewReader(stdin), &out, &errOut)
	app.LoadConfig = func() (*config.Config, error) {
		c := *e.cfg
		return &c, nil
	}

	fs := flag.NewFlagSet("stockview", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	commander := subcommands.NewCommander(fs, "stockview")
	commander.Output = io.Discard
	commander.Error = io.Discard
	Register(commander, app)
	app.SetFlags(fs)
	require.NoError(t, fs.Parse(args))

	status := commander.Execute(context.Background())
	return status, out.String(), errOut.String()
}

func TestLoginStatusLogout(t *testing.T) {
	e := newTestEnv(t)

	status, out, _ := e.run(t, "", "status")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "not signed in")

	status, out, _ = e.run(t, "", "login", "-u", "alice", "-p", "hunter2")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "signed in as alice\n", out)

	status, out, _ = e.run(t, "", "status")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "signed in as alice", "session survives between runs")
	assert.Contains(t, out, "session store: sqlite")

	status, out, _ = e.run(t, "", "logout")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "signed out\n", out)

	status, _, _ = e.run(t, "", "logout")
	assert.Equal(t, subcommands.ExitSuccess, status, "logout twice is fine")

	_, out, _ = e.run(t, "", "status")
	assert.Contains(t, out, "not signed in")
}

func TestLoginFailureClearsSession(t *testing.T) {
	e := newTestEnv(t)
	status, _, _ := e.run(t, "", "login", "-u", "alice", "-p", "hunter2")
	require.Equal(t, subcommands.ExitSuccess, status)

	status, _, errOut := e.run(t, "", "login", "-u", "alice", "-p", "wrong")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, errOut, "bad credentials")

	_, out, _ := e.run(t, "", "status")
	assert.Contains(t, out, "not signed in")
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	e := newTestEnv(t)

	status, out, _ := e.run(t, "hunter2\n", "login", "-u", "alice")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "signed in as alice\n", out)

	status, _, _ = e.run(t, "", "login", "-p", "x")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestRegisterThenLogin(t *testing.T) {
	e := newTestEnv(t)

	status, out, _ := e.run(t, "", "register", "-u", "bob", "-p", "secret1")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "account bob created")

	status, _, errOut := e.run(t, "", "register", "-u", "bob", "-p", "secret1")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, errOut, "username taken")

	status, _, _ = e.run(t, "", "login", "-u", "bob", "-p", "secret1")
	assert.Equal(t, subcommands.ExitSuccess, status)
}

func TestWatchCommands(t *testing.T) {
	e := newTestEnv(t)

	status, _, errOut := e.run(t, "", "watch", "list")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, errOut, "Not signed in")

	_, _, _ = e.run(t, "", "login", "-u", "alice", "-p", "hunter2")

	_, out, _ := e.run(t, "", "watch")
	assert.Equal(t, "watchlist is empty\n", out)

	status, out, _ = e.run(t, "", "watch", "add", "600519")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "added 600519\n", out)

	_, out, _ = e.run(t, "", "watch", "list")
	assert.Contains(t, out, "Kweichow Moutai")

	status, _, _ = e.run(t, "", "watch", "add", "999999")
	assert.Equal(t, subcommands.ExitFailure, status)

	status, _, _ = e.run(t, "", "watch", "rm", "600519")
	require.Equal(t, subcommands.ExitSuccess, status)
	_, out, _ = e.run(t, "", "watch", "list")
	assert.Equal(t, "watchlist is empty\n", out)

	status, _, _ = e.run(t, "", "watch", "add")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestMarketCommands(t *testing.T) {
	e := newTestEnv(t)

	status, out, _ := e.run(t, "", "stocks")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "600519")
	assert.Contains(t, out, "SZ")

	status, _, errOut := e.run(t, "", "quote", "600519")
	assert.Equal(t, subcommands.ExitFailure, status, "stock data needs a session")
	assert.Contains(t, errOut, "401")

	_, _, _ = e.run(t, "", "login", "-u", "alice", "-p", "hunter2")
	status, out, _ = e.run(t, "", "quote", "-n", "3", "600519")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "120 days")
	assert.Contains(t, out, "2024-12-03")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5, "summary, header and three days")

	status, _, _ = e.run(t, "", "quote")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestDemoMode(t *testing.T) {
	e := newTestEnv(t)
	e.cfg.APIURL = "http://127.0.0.1:1"

	status, out, _ := e.run(t, "", "-demo", "login", "-u", DemoUser, "-p", DemoPassword)
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "signed in as demo\n", out)

	_, out, _ = e.run(t, "", "-ephemeral", "status")
	assert.Contains(t, out, "not signed in", "demo sessions are not kept")
	assert.Contains(t, out, "session store: memory")
}

func TestUserFlags(t *testing.T) {
	var u userFlags
	require.NoError(t, u.Set("alice:hunter2"))
	require.NoError(t, u.Set("bob:pa:ss"))
	assert.Error(t, u.Set("carol"))
	assert.Error(t, u.Set(":x"))
	assert.Equal(t, "alice:hunter2,bob:pa:ss", u.String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "debug").Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger(&buf, "info").Debug("hidden")
	assert.Empty(t, buf.String())
}
