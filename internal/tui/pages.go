package tui

import (
	"errors"
	"log/slog"

	"github.com/iammorganparry/stockview/internal/router"
)

// viewDetail is registered on demand through router.To.
const viewDetail = "detail"

const paramStockCode = "stockCode"

var errMissingStockCode = errors.New("stockCode is required")

// page is the router.View for every screen. The root model keeps the
// screen state; a page only records which screen and location it is.
type page struct {
	name string
	loc  router.Location
}

func (p page) Name() string { return p.name }

func (p page) stockCode() string { return p.loc.Get(paramStockCode) }

func plainPage(name string) router.ViewFactory {
	return func(loc router.Location) (router.View, error) {
		return page{name: name, loc: loc}, nil
	}
}

func stockPage(name string) router.ViewFactory {
	return func(loc router.Location) (router.View, error) {
		if loc.Get(paramStockCode) == "" {
			return nil, errMissingStockCode
		}
		return page{name: name, loc: loc}, nil
	}
}

// Views returns the view registry for the default route table plus the
// detail view.
func Views() router.Views {
	return router.Views{
		router.ViewStockList:  plainPage(router.ViewStockList),
		router.ViewStockChart: stockPage(router.ViewStockChart),
		router.ViewWatchlist:  plainPage(router.ViewWatchlist),
		router.ViewLogin:      plainPage(router.ViewLogin),
		router.ViewRegister:   plainPage(router.ViewRegister),
		viewDetail:            stockPage(viewDetail),
	}
}

// NewRouter builds the application router over auth.
func NewRouter(auth router.AuthState, logger *slog.Logger) (*router.Router, error) {
	return router.New(router.Config{
		Routes: router.DefaultRoutes(),
		Views:  Views(),
		Auth:   auth,
		Logger: logger,
	})
}
