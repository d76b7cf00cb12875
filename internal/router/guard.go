package router

// Decision is the outcome of Guard.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-to-login"
	default:
		return "unknown"
	}
}

// Guard decides whether a navigation to route may proceed. It has no side
// effects and never looks at anything but its arguments.
func Guard(route Route, authenticated bool) Decision {
	if route.RequiresAuth && !authenticated {
		return RedirectToLogin
	}
	return Allow
}
