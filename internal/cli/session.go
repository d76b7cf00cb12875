package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/iammorganparry/stockview/internal/model"
)

// readCredentials fills a missing password from the first line of In.
func (a *App) readCredentials(username, password string) (model.Credentials, error) {
	if username == "" {
		return model.Credentials{}, fmt.Errorf("-u is required")
	}
	if password == "" {
		line, err := bufio.NewReader(a.In).ReadString('\n')
		if err != nil && line == "" {
			return model.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	return model.Credentials{Username: username, Password: password}, nil
}

type loginCmd struct {
	app      *App
	username string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in and store the session" }
func (*loginCmd) Usage() string {
	return `stockview login -u <username> [-p <password>]

  Signs in against the backend and stores the token for later commands.
  Without -p the password is read from the first line of stdin. A failed
  sign in clears any stored session.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.StringVar(&c.password, "p", "", "password (read from stdin when empty)")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	creds, err := c.app.readCredentials(c.username, c.password)
	if err != nil {
		fmt.Fprintln(c.app.Err, err)
		return subcommands.ExitUsageError
	}

	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	sess, err := e.session.Login(ctx, creds)
	if err != nil {
		return c.app.fail("Login failed: %v", err)
	}
	fmt.Fprintf(c.app.Out, "signed in as %s\n", sess.Username)
	return subcommands.ExitSuccess
}

type registerCmd struct {
	app      *App
	username string
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account on the backend" }
func (*registerCmd) Usage() string {
	return `stockview register -u <username> [-p <password>]

  Creates an account. It does not sign in; run login afterwards.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username")
	f.StringVar(&c.password, "p", "", "password (read from stdin when empty)")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	creds, err := c.app.readCredentials(c.username, c.password)
	if err != nil {
		fmt.Fprintln(c.app.Err, err)
		return subcommands.ExitUsageError
	}

	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	if err := e.session.Register(ctx, creds); err != nil {
		return c.app.fail("Registration failed: %v", err)
	}
	fmt.Fprintf(c.app.Out, "account %s created\n", creds.Username)
	return subcommands.ExitSuccess
}

type logoutCmd struct {
	app *App
}

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "forget the stored session" }
func (*logoutCmd) Usage() string {
	return `stockview logout

  Clears the stored token and username. Safe to run when signed out.
`
}

func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	if err := e.session.Logout(ctx); err != nil {
		return c.app.fail("Logout failed: %v", err)
	}
	fmt.Fprintln(c.app.Out, "signed out")
	return subcommands.ExitSuccess
}

type statusCmd struct {
	app *App
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show who is signed in" }
func (*statusCmd) Usage() string {
	return `stockview status

  Prints the signed-in user, the backend URL and the session store in use.
`
}

func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	if e.session.IsAuthenticated() {
		fmt.Fprintf(c.app.Out, "signed in as %s\n", e.session.Username())
	} else {
		fmt.Fprintln(c.app.Out, "not signed in")
	}
	fmt.Fprintf(c.app.Out, "backend: %s\n", e.client.BaseURL())
	fmt.Fprintf(c.app.Out, "session store: %s\n", e.cfg.Session.Backend)
	return subcommands.ExitSuccess
}
