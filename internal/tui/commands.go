package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/iammorganparry/stockview/internal/model"
	"github.com/iammorganparry/stockview/internal/router"
	"github.com/iammorganparry/stockview/internal/session"
)

// Messages
type navigateMsg struct {
	loc router.Location
}

type stocksLoadedMsg struct {
	stocks []model.Stock
	err    error
}

type klineLoadedMsg struct {
	code  string
	kline *model.KLine
	err   error
}

type watchlistLoadedMsg struct {
	items []model.WatchItem
	err   error
}

// watchlistChangedMsg is sent after an add or remove round trip
type watchlistChangedMsg struct {
	code  string
	added bool
	err   error
}

type loginResultMsg struct {
	session session.Session
	err     error
}

type registerResultMsg struct {
	username string
	err      error
}

type logoutDoneMsg struct {
	err error
}

func navigateCmd(loc router.Location) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{loc: loc}
	}
}

func (m Model) loadStocksCmd() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		stocks, err := backend.Stocks(ctx)
		return stocksLoadedMsg{stocks: stocks, err: err}
	}
}

func (m Model) loadKLineCmd(code string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		kline, err := backend.StockData(ctx, code)
		return klineLoadedMsg{code: code, kline: kline, err: err}
	}
}

func (m Model) loadWatchlistCmd() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		items, err := backend.Watchlist(ctx)
		return watchlistLoadedMsg{items: items, err: err}
	}
}

func (m Model) addToWatchlistCmd(code string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		return watchlistChangedMsg{code: code, added: true, err: backend.AddToWatchlist(ctx, code)}
	}
}

func (m Model) removeFromWatchlistCmd(code string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		return watchlistChangedMsg{code: code, err: backend.RemoveFromWatchlist(ctx, code)}
	}
}

func (m Model) loginCmd(creds model.Credentials) tea.Cmd {
	ctx, auth := m.ctx, m.auth
	return func() tea.Msg {
		sess, err := auth.Login(ctx, creds)
		return loginResultMsg{session: sess, err: err}
	}
}

func (m Model) registerCmd(creds model.Credentials) tea.Cmd {
	ctx, auth := m.ctx, m.auth
	return func() tea.Msg {
		return registerResultMsg{username: creds.Username, err: auth.Register(ctx, creds)}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	ctx, auth := m.ctx, m.auth
	return func() tea.Msg {
		return logoutDoneMsg{err: auth.Logout(ctx)}
	}
}
