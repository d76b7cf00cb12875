// Package router holds the navigation table for the terminal UI: static and
// dynamically registered routes, the auth guard and the view registry.
package router

import (
	"errors"
	"fmt"
	"net/url"
)

// CatchAll matches any path without an exact route.
const CatchAll = "*"

// View names used by the default route table.
const (
	ViewStockList  = "StockList"
	ViewStockChart = "StockChart"
	ViewWatchlist  = "Watchlist"
	ViewLogin      = "Login"
	ViewRegister   = "Register"
)

const (
	PathHome     = "/"
	PathChart    = "/chart"
	PathWatch    = "/watchlist"
	PathLogin    = "/login"
	PathRegister = "/register"
)

// RedirectParam carries the requested target through a login redirect.
const RedirectParam = "redirect"

var ErrViewNotFound = errors.New("view not found")

// Route describes one navigable path. A route either names a View or
// redirects elsewhere.
type Route struct {
	Path         string
	Name         string
	Title        string
	View         string
	RequiresAuth bool
	Redirect     string
}

// Location is a navigation target: a path plus its query.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses "/chart?stockCode=600519" style targets.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	if u.IsAbs() || u.Host != "" {
		return Location{}, fmt.Errorf("parse location %q: must be a path", raw)
	}
	path := u.Path
	if path == "" {
		path = PathHome
	}
	return Location{Path: path, Query: u.Query()}, nil
}

func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// Get returns the first value of a query parameter.
func (l Location) Get(key string) string {
	return l.Query.Get(key)
}

func (l Location) clone() Location {
	out := Location{Path: l.Path}
	if l.Query != nil {
		out.Query = make(url.Values, len(l.Query))
		for k, v := range l.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	return out
}

// View is whatever a ViewFactory builds for a location.
type View interface {
	Name() string
}

type ViewFactory func(Location) (View, error)

// Views maps view names to their factories.
type Views map[string]ViewFactory

// Resolve builds the named view for loc.
func (v Views) Resolve(name string, loc Location) (View, error) {
	factory, ok := v[name]
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrViewNotFound, name)
	}
	view, err := factory(loc)
	if err != nil {
		return nil, fmt.Errorf("load view %q: %w", name, err)
	}
	if view == nil {
		return nil, fmt.Errorf("%w: %q returned nothing", ErrViewNotFound, name)
	}
	return view, nil
}

// DefaultRoutes is the application's static route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: PathHome, Name: "stocks", Title: "Stocks", View: ViewStockList},
		{Path: PathChart, Name: "chart", Title: "Chart", View: ViewStockChart, RequiresAuth: true},
		{Path: PathWatch, Name: "watchlist", Title: "Watchlist", View: ViewWatchlist, RequiresAuth: true},
		{Path: PathLogin, Name: "login", Title: "Login", View: ViewLogin},
		{Path: PathRegister, Name: "register", Title: "Register", View: ViewRegister},
		{Path: CatchAll, Redirect: PathHome},
	}
}
