package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
)

type stocksCmd struct {
	app *App
}

func (*stocksCmd) Name() string     { return "stocks" }
func (*stocksCmd) Synopsis() string { return "list the stocks the backend knows" }
func (*stocksCmd) Usage() string {
	return `stockview stocks

  Lists code, name and market for every stock. No sign in needed.
`
}

func (*stocksCmd) SetFlags(*flag.FlagSet) {}

func (c *stocksCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	stocks, err := e.client.Stocks(ctx)
	if err != nil {
		return c.app.fail("Error listing stocks: %v", err)
	}
	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tMARKET")
	for _, s := range stocks {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Code, s.Name, s.Market)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type quoteCmd struct {
	app  *App
	days int
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "show recent daily prices for a stock" }
func (*quoteCmd) Usage() string {
	return `stockview quote [-n <days>] <code>

  Prints the latest daily candles for <code>, newest first. Requires a
  signed-in session.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "n", 5, "number of trading days to show")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.days <= 0 {
		fmt.Fprint(c.app.Err, c.Usage())
		return subcommands.ExitUsageError
	}
	code := f.Arg(0)

	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	kline, err := e.client.StockData(ctx, code)
	if err != nil {
		return c.app.fail("Error fetching %s: %v", code, err)
	}

	low, high := kline.Range()
	fmt.Fprintf(c.app.Out, "%s  %d days, range %s - %s\n", code, len(kline.Candles), low.StringFixed(2), high.StringFixed(2))

	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DATE\tOPEN\tCLOSE\tLOW\tHIGH\tCHANGE\tVOLUME\t")
	for i := len(kline.Candles) - 1; i >= 0 && i >= len(kline.Candles)-c.days; i-- {
		k := kline.Candles[i]
		change := k.Change().StringFixed(2)
		if k.Change().IsPositive() {
			change = "+" + change
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			k.Date, k.Open.StringFixed(2), k.Close.StringFixed(2),
			k.Low.StringFixed(2), k.High.StringFixed(2), change, k.Volume)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type watchCmd struct {
	app *App
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "list or edit the watchlist" }
func (*watchCmd) Usage() string {
	return `stockview watch list
stockview watch add <code>
stockview watch rm <code>

  Manages the signed-in user's watchlist.
`
}

func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		args = []string{"list"}
	}
	action := args[0]
	switch {
	case action == "list" && len(args) == 1:
	case (action == "add" || action == "rm") && len(args) == 2:
	default:
		fmt.Fprint(c.app.Err, c.Usage())
		return subcommands.ExitUsageError
	}

	e, err := c.app.open(ctx, c.app.Err)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	defer e.Close()

	if !e.session.IsAuthenticated() {
		return c.app.fail("Not signed in. Run stockview login first.")
	}

	switch action {
	case "add":
		if err := e.client.AddToWatchlist(ctx, args[1]); err != nil {
			return c.app.fail("Error adding %s: %v", args[1], err)
		}
		fmt.Fprintf(c.app.Out, "added %s\n", args[1])
	case "rm":
		if err := e.client.RemoveFromWatchlist(ctx, args[1]); err != nil {
			return c.app.fail("Error removing %s: %v", args[1], err)
		}
		fmt.Fprintf(c.app.Out, "removed %s\n", args[1])
	default:
		items, err := e.client.Watchlist(ctx)
		if err != nil {
			return c.app.fail("Error loading watchlist: %v", err)
		}
		if len(items) == 0 {
			fmt.Fprintln(c.app.Out, "watchlist is empty")
			return subcommands.ExitSuccess
		}
		w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tADDED")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", item.Code, item.Name, time.Unix(item.AddedAt, 0).Format(time.DateOnly))
		}
		w.Flush()
	}
	return subcommands.ExitSuccess
}
