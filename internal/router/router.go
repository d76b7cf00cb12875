package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

const maxRedirects = 8

var (
	ErrNoRoute      = errors.New("no route")
	ErrRedirectLoop = errors.New("too many redirects")
)

// NavigationError reports a navigation that could not be completed. The
// router's state is left as it was before the attempt.
type NavigationError struct {
	Path string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.Path, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// AuthState reports whether there is a signed-in user.
type AuthState interface {
	IsAuthenticated() bool
}

type Config struct {
	Routes []Route
	Views  Views
	Auth   AuthState
	// LoginPath is where the guard sends anonymous users. Defaults to /login.
	LoginPath string
	// PublicPaths must never require auth. Defaults to LoginPath and /register.
	PublicPaths []string
	Logger      *slog.Logger
}

// Navigation is a completed navigation.
type Navigation struct {
	Requested  Location
	Location   Location
	Route      Route
	View       View
	Redirected bool
}

// Router owns the route table and the current location.
type Router struct {
	views     Views
	auth      AuthState
	loginPath string
	logger    *slog.Logger

	mu      sync.RWMutex
	routes  []Route
	index   map[string]int
	// dynamic holds paths added after New; their titles follow the last To.
	dynamic map[string]bool
	current Location
	title   string
	view    View
}

// New validates the static route table and returns a router positioned
// nowhere. Call Push to enter the first location.
func New(cfg Config) (*Router, error) {
	if cfg.LoginPath == "" {
		cfg.LoginPath = PathLogin
	}
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = []string{cfg.LoginPath, PathRegister}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Views == nil {
		cfg.Views = Views{}
	}

	r := &Router{
		views:     cfg.Views,
		auth:      cfg.Auth,
		loginPath: cfg.LoginPath,
		logger:    cfg.Logger,
		index:     make(map[string]int, len(cfg.Routes)),
		dynamic:   make(map[string]bool),
	}
	for _, route := range cfg.Routes {
		if err := validateRoute(route); err != nil {
			return nil, err
		}
		if _, dup := r.index[route.Path]; dup {
			return nil, fmt.Errorf("route %s: duplicate path", route.Path)
		}
		r.index[route.Path] = len(r.routes)
		r.routes = append(r.routes, route)
	}

	for _, path := range cfg.PublicPaths {
		i, ok := r.index[path]
		if !ok {
			continue
		}
		if r.routes[i].RequiresAuth {
			return nil, fmt.Errorf("route %s: public route cannot require auth", path)
		}
	}
	if _, ok := r.index[cfg.LoginPath]; !ok {
		return nil, fmt.Errorf("route %s: login route missing", cfg.LoginPath)
	}
	return r, nil
}

func validateRoute(route Route) error {
	switch {
	case route.Path == "":
		return errors.New("route with empty path")
	case route.Path == CatchAll:
		if route.Redirect == "" || route.View != "" {
			return fmt.Errorf("route %s: catch-all may only redirect", CatchAll)
		}
	case !strings.HasPrefix(route.Path, "/"):
		return fmt.Errorf("route %s: path must start with /", route.Path)
	case route.View == "" && route.Redirect == "":
		return fmt.Errorf("route %s: needs a view or a redirect", route.Path)
	}
	return nil
}

// Current returns the active location.
func (r *Router) Current() Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.clone()
}

// Title returns the display title of the active location.
func (r *Router) Title() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.title
}

// View returns the view built for the active location.
func (r *Router) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// Routes returns a copy of the route table in registration order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.routes...)
}

// AddRoute registers route unless its path is already known. It reports
// whether the route was added.
func (r *Router) AddRoute(route Route) bool {
	if validateRoute(route) != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[route.Path]; ok {
		return false
	}
	r.index[route.Path] = len(r.routes)
	r.routes = append(r.routes, route)
	r.dynamic[route.Path] = true
	r.logger.Debug("route added", "path", route.Path, "view", route.View)
	return true
}

// removeRoute drops a route added after New.
func (r *Router) removeRoute(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[path]
	if !ok || !r.dynamic[path] {
		return
	}
	r.routes = append(r.routes[:i], r.routes[i+1:]...)
	delete(r.index, path)
	delete(r.dynamic, path)
	for j := i; j < len(r.routes); j++ {
		r.index[r.routes[j].Path] = j
	}
	r.logger.Debug("route removed", "path", path)
}

// retitle sets the title of a route added after New and returns the old one.
func (r *Router) retitle(path, title string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[path]
	if !ok || !r.dynamic[path] {
		return "", false
	}
	old := r.routes[i].Title
	r.routes[i].Title = title
	return old, true
}

// Push navigates to loc, running the guard. On failure the router keeps its
// previous location and a *NavigationError is returned.
func (r *Router) Push(loc Location) (*Navigation, error) {
	requested := loc.clone()
	if requested.Path == "" {
		requested.Path = PathHome
	}

	route, target, redirected, err := r.resolve(requested)
	if err == nil {
		var view View
		view, err = r.views.Resolve(route.View, target)
		if err == nil {
			nav := &Navigation{
				Requested:  requested,
				Location:   target,
				Route:      route,
				View:       view,
				Redirected: redirected,
			}
			r.commit(nav)
			return nav, nil
		}
	}

	r.logger.Warn("navigation failed", "path", requested.Path, "error", err)
	return nil, &NavigationError{Path: requested.Path, Err: err}
}

// Reload re-runs the guard for the active location, e.g. after logout.
func (r *Router) Reload() (*Navigation, error) {
	return r.Push(r.Current())
}

// To registers "/"+path as a route whose view is named path, navigates there
// with query and sets the title. Later Push or Reload of that path keeps the
// last title given here. It does nothing when path is already active. A
// failed navigation leaves the route table as it was.
func (r *Router) To(path string, query url.Values, title string) (*Navigation, error) {
	if strings.TrimPrefix(r.Current().Path, "/") == path {
		return nil, nil
	}

	full := "/" + path
	added := r.AddRoute(Route{Path: full, Name: path, Title: title, View: path})
	prev, retitled := r.retitle(full, title)

	nav, err := r.Push(Location{Path: full, Query: query})
	if err != nil {
		if added {
			r.removeRoute(full)
		} else if retitled {
			r.retitle(full, prev)
		}
		return nil, err
	}
	if nav.Location.Path == full {
		r.mu.Lock()
		r.title = title
		r.mu.Unlock()
	}
	return nav, nil
}

func (r *Router) commit(nav *Navigation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nav.Location.clone()
	r.title = nav.Route.Title
	r.view = nav.View
	r.logger.Debug("navigated", "path", nav.Location.Path, "view", nav.Route.View, "redirected", nav.Redirected)
}

func (r *Router) resolve(loc Location) (Route, Location, bool, error) {
	authenticated := r.auth != nil && r.auth.IsAuthenticated()

	r.mu.RLock()
	defer r.mu.RUnlock()

	target := loc
	redirected := false
	for hops := 0; hops <= maxRedirects; hops++ {
		route, ok := r.matchLocked(target.Path)
		if !ok {
			return Route{}, Location{}, false, ErrNoRoute
		}
		if route.Redirect != "" {
			target = Location{Path: route.Redirect}
			redirected = true
			continue
		}
		if Guard(route, authenticated) == RedirectToLogin {
			target = Location{
				Path:  r.loginPath,
				Query: url.Values{RedirectParam: {target.String()}},
			}
			redirected = true
			continue
		}
		return route, target, redirected, nil
	}
	return Route{}, Location{}, false, ErrRedirectLoop
}

func (r *Router) matchLocked(path string) (Route, bool) {
	if i, ok := r.index[path]; ok {
		return r.routes[i], true
	}
	if i, ok := r.index[CatchAll]; ok {
		return r.routes[i], true
	}
	return Route{}, false
}
