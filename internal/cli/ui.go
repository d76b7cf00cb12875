package cli

import (
	"context"
	"flag"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/subcommands"

	"github.com/iammorganparry/stockview/internal/tui"
)

type uiCmd struct {
	app      *App
	start    string
	activity bool
}

func (*uiCmd) Name() string     { return "ui" }
func (*uiCmd) Synopsis() string { return "browse stocks in the terminal UI" }
func (*uiCmd) Usage() string {
	return `stockview ui [-start <path>] [-activity]

  Opens the interactive browser. Logs go to the configured log file since
  the UI owns the terminal. Press ? inside for keys.
`
}

func (c *uiCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "/", "first page to open, e.g. /watchlist or /chart?stockCode=600519")
	f.BoolVar(&c.activity, "activity", false, "show the activity panel")
}

func (c *uiCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.app.open(ctx, nil)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	r, err := tui.NewRouter(e.session, e.logger)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}

	m := tui.NewRootModel(ctx, tui.Options{
		Router:   r,
		Auth:     e.session,
		Backend:  e.client,
		Logger:   e.logger,
		Start:    c.start,
		Activity: c.activity,
	})
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(c.app.In),
		tea.WithOutput(c.app.Out),
	)
	if _, err := p.Run(); err != nil {
		e.logger.Error("ui exited", "error", err)
		return c.app.fail("Error running program: %v", err)
	}
	return subcommands.ExitSuccess
}
