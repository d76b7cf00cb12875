package tui

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/iammorganparry/stockview/internal/model"
	"github.com/iammorganparry/stockview/internal/router"
	"github.com/iammorganparry/stockview/internal/session"
)

// Backend is the part of the API client the screens use.
type Backend interface {
	Stocks(ctx context.Context) ([]model.Stock, error)
	StockData(ctx context.Context, code string) (*model.KLine, error)
	Watchlist(ctx context.Context) ([]model.WatchItem, error)
	AddToWatchlist(ctx context.Context, code string) error
	RemoveFromWatchlist(ctx context.Context, code string) error
}

// Auth is the part of the session store the screens use.
type Auth interface {
	Login(ctx context.Context, creds model.Credentials) (session.Session, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, creds model.Credentials) error
	IsAuthenticated() bool
	Username() string
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

type Options struct {
	Router  *router.Router
	Auth    Auth
	Backend Backend
	Logger  *slog.Logger
	// Start is the first location, "/" when empty.
	Start string
	// Activity shows the activity panel from the start.
	Activity bool
}

// Model is the root Bubble Tea model
type Model struct {
	ctx context.Context

	// Terminal dimensions
	width  int
	height int
	ready  bool

	router  *router.Router
	auth    Auth
	backend Backend
	logger  *slog.Logger
	start   string

	// Current screen
	page     page
	showHelp bool
	loading  bool

	// Stock list
	stocks []model.Stock
	cursor int

	// Detail and chart
	kline    *model.KLine
	viewport viewport.Model

	// Watchlist
	watch       []model.WatchItem
	watchCursor int

	// Login and register forms
	inputs []textinput.Model
	focus  int
	busy   bool

	status     string
	statusKind statusKind

	activity ActivityPanel
	keys     KeyMap
}

// NewRootModel creates the root model. Navigation to the start location
// happens in Init.
func NewRootModel(ctx context.Context, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Start == "" {
		opts.Start = router.PathHome
	}

	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "User: "
	username.PromptStyle = InputPromptStyle
	username.CharLimit = 64
	username.Width = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Pass: "
	password.PromptStyle = InputPromptStyle
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 128
	password.Width = 32

	return Model{
		ctx:      ctx,
		router:   opts.Router,
		auth:     opts.Auth,
		backend:  opts.Backend,
		logger:   opts.Logger,
		start:    opts.Start,
		viewport: viewport.New(80, 20),
		inputs:   []textinput.Model{username, password},
		activity: NewActivityPanel(opts.Activity),
		keys:     DefaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	loc, err := router.ParseLocation(m.start)
	if err != nil {
		m.logger.Warn("bad start location", "start", m.start, "error", err)
		loc = router.Location{Path: router.PathHome}
	}
	return tea.Batch(textinput.Blink, navigateCmd(loc))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 10)
		m.viewport.Height = max(msg.Height-9, 3)
		m.ready = true
		m.refreshChart()
		return m, nil

	case navigateMsg:
		return m, m.navigate(m.router.Push(msg.loc))

	case stocksLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.setError("load stocks", msg.err)
			return m, nil
		}
		m.stocks = msg.stocks
		m.cursor = clampIndex(m.cursor, len(m.stocks))
		return m, nil

	case klineLoadedMsg:
		if msg.code != m.page.stockCode() {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.kline = nil
			m.setError("load "+msg.code, msg.err)
			return m, nil
		}
		m.kline = msg.kline
		m.refreshChart()
		return m, nil

	case watchlistLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.setError("load watchlist", msg.err)
			return m, nil
		}
		m.watch = msg.items
		m.watchCursor = clampIndex(m.watchCursor, len(m.watch))
		return m, nil

	case watchlistChangedMsg:
		if msg.err != nil {
			m.setError("update watchlist", msg.err)
			return m, nil
		}
		if msg.added {
			m.setStatus(statusSuccess, "added "+msg.code+" to watchlist")
		} else {
			m.setStatus(statusSuccess, "removed "+msg.code+" from watchlist")
		}
		m.activity.AddEvent("watchlist", m.status)
		if m.page.name == router.ViewWatchlist {
			return m, m.loadWatchlistCmd()
		}
		return m, nil

	case loginResultMsg:
		if errors.Is(msg.err, session.ErrSuperseded) {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.inputs[1].SetValue("")
			m.setError("sign in failed", msg.err)
			m.activity.AddEvent("login", "failed: "+msg.err.Error())
			return m, nil
		}
		m.setStatus(statusSuccess, "signed in as "+msg.session.Username)
		m.activity.AddEvent("login", msg.session.Username)
		if m.page.name != router.ViewLogin {
			return m, nil
		}
		return m, m.navigate(m.router.Push(m.redirectTarget()))

	case registerResultMsg:
		m.busy = false
		if msg.err != nil {
			m.setError("registration failed", msg.err)
			return m, nil
		}
		m.activity.AddEvent("register", msg.username)
		loc := router.Location{Path: router.PathLogin}
		if target := m.page.loc.Get(router.RedirectParam); target != "" {
			loc.Query = url.Values{router.RedirectParam: {target}}
		}
		cmd := m.navigate(m.router.Push(loc))
		m.inputs[0].SetValue(msg.username)
		m.focusField(1)
		m.setStatus(statusSuccess, "account created for "+msg.username+", sign in to continue")
		return m, cmd

	case logoutDoneMsg:
		if msg.err != nil {
			m.setError("sign out", msg.err)
		} else {
			m.setStatus(statusInfo, "signed out")
		}
		m.activity.AddEvent("logout", "")
		m.watch = nil
		return m, m.navigate(m.router.Reload())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.isForm() {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// navigate applies the result of a router call and starts whatever the new
// screen needs to load.
func (m *Model) navigate(nav *router.Navigation, err error) tea.Cmd {
	if err != nil {
		m.setError("navigation failed", err)
		m.activity.AddEvent("nav", "error: "+err.Error())
		return nil
	}
	if nav == nil {
		return nil
	}

	p, _ := nav.View.(page)
	m.page = p
	m.showHelp = false
	m.activity.AddEvent("nav", nav.Requested.String()+" -> "+nav.Location.String())
	if nav.Redirected && p.name == router.ViewLogin && nav.Requested.Path != router.PathLogin {
		m.setStatus(statusWarning, "sign in to open "+nav.Requested.Path)
	}

	switch p.name {
	case router.ViewStockList:
		m.loading = true
		return m.loadStocksCmd()
	case router.ViewStockChart, viewDetail:
		m.loading = true
		m.kline = nil
		return m.loadKLineCmd(p.stockCode())
	case router.ViewWatchlist:
		m.loading = true
		return m.loadWatchlistCmd()
	case router.ViewLogin, router.ViewRegister:
		m.resetForm()
		return textinput.Blink
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		return m, tea.Quit
	}
	if m.isForm() {
		return m.handleFormKey(msg)
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Debug):
		m.activity.Toggle()
		return m, nil
	case key.Matches(msg, m.keys.Home), key.Matches(msg, m.keys.Back) && m.page.name != router.ViewStockList:
		return m, m.navigate(m.router.Push(router.Location{Path: router.PathHome}))
	case key.Matches(msg, m.keys.Watchlist):
		return m, m.navigate(m.router.Push(router.Location{Path: router.PathWatch}))
	case key.Matches(msg, m.keys.Login):
		return m, m.navigate(m.router.Push(router.Location{Path: router.PathLogin}))
	case key.Matches(msg, m.keys.Register):
		return m, m.navigate(m.router.Push(router.Location{Path: router.PathRegister}))
	case key.Matches(msg, m.keys.Logout):
		if !m.auth.IsAuthenticated() {
			m.setStatus(statusInfo, "not signed in")
			return m, nil
		}
		return m, m.logoutCmd()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.navigate(m.router.Reload())
	}

	switch m.page.name {
	case router.ViewStockList:
		return m.handleListKey(msg)
	case router.ViewWatchlist:
		return m.handleWatchlistKey(msg)
	case router.ViewStockChart, viewDetail:
		return m.handleStockKey(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = clampIndex(m.cursor-1, len(m.stocks))
	case key.Matches(msg, m.keys.Down):
		m.cursor = clampIndex(m.cursor+1, len(m.stocks))
	case len(m.stocks) == 0:
		return m, nil
	case key.Matches(msg, m.keys.Open):
		stock := m.stocks[m.cursor]
		return m, m.openDetail(stock.Code, stock.Name)
	case key.Matches(msg, m.keys.Chart):
		return m, m.openChart(m.stocks[m.cursor].Code)
	case key.Matches(msg, m.keys.Add):
		return m, m.watchStock(m.stocks[m.cursor].Code)
	}
	return m, nil
}

func (m Model) handleWatchlistKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.watchCursor = clampIndex(m.watchCursor-1, len(m.watch))
	case key.Matches(msg, m.keys.Down):
		m.watchCursor = clampIndex(m.watchCursor+1, len(m.watch))
	case len(m.watch) == 0:
		return m, nil
	case key.Matches(msg, m.keys.Open):
		item := m.watch[m.watchCursor]
		return m, m.openDetail(item.Code, item.Name)
	case key.Matches(msg, m.keys.Chart):
		return m, m.openChart(m.watch[m.watchCursor].Code)
	case key.Matches(msg, m.keys.Remove):
		return m, m.removeFromWatchlistCmd(m.watch[m.watchCursor].Code)
	}
	return m, nil
}

func (m Model) handleStockKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	code := m.page.stockCode()
	switch {
	case key.Matches(msg, m.keys.Chart) && m.page.name == viewDetail:
		return m, m.openChart(code)
	case key.Matches(msg, m.keys.Open) && m.page.name == router.ViewStockChart:
		return m, m.openDetail(code, m.stockName(code))
	case key.Matches(msg, m.keys.Add):
		return m, m.watchStock(code)
	case key.Matches(msg, m.keys.Up, m.keys.Down, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, m.navigate(m.router.Push(router.Location{Path: router.PathHome}))
	case key.Matches(msg, m.keys.NextField):
		m.focusField((m.focus + 1) % len(m.inputs))
		return m, textinput.Blink
	case key.Matches(msg, m.keys.PrevField):
		m.focusField((m.focus + len(m.inputs) - 1) % len(m.inputs))
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Submit):
		return m.submitForm()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	creds := model.Credentials{
		Username: m.inputs[0].Value(),
		Password: m.inputs[1].Value(),
	}
	if creds.Username == "" || creds.Password == "" {
		m.setStatus(statusWarning, "username and password are required")
		return m, nil
	}

	m.busy = true
	if m.page.name == router.ViewRegister {
		m.setStatus(statusInfo, "creating account...")
		return m, m.registerCmd(creds)
	}
	m.setStatus(statusInfo, "signing in...")
	return m, m.loginCmd(creds)
}

// openDetail registers the detail route on first use and navigates to it.
func (m *Model) openDetail(code, name string) tea.Cmd {
	return m.navigate(m.router.To(viewDetail, url.Values{paramStockCode: {code}}, name))
}

func (m *Model) openChart(code string) tea.Cmd {
	return m.navigate(m.router.Push(router.Location{
		Path:  router.PathChart,
		Query: url.Values{paramStockCode: {code}},
	}))
}

// watchStock adds code to the watchlist, asking for a sign in first when
// there is no session.
func (m *Model) watchStock(code string) tea.Cmd {
	if !m.auth.IsAuthenticated() {
		return m.navigate(m.router.Push(router.Location{
			Path:  router.PathLogin,
			Query: url.Values{router.RedirectParam: {m.router.Current().String()}},
		}))
	}
	return m.addToWatchlistCmd(code)
}

// redirectTarget is where a successful sign in lands.
func (m Model) redirectTarget() router.Location {
	home := router.Location{Path: router.PathHome}
	raw := m.page.loc.Get(router.RedirectParam)
	if raw == "" {
		return home
	}
	loc, err := router.ParseLocation(raw)
	if err != nil || loc.Path == router.PathLogin || loc.Path == router.PathRegister {
		return home
	}
	return loc
}

func (m Model) isForm() bool {
	return m.page.name == router.ViewLogin || m.page.name == router.ViewRegister
}

func (m *Model) resetForm() {
	m.busy = false
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.focusField(0)
}

func (m *Model) focusField(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m *Model) refreshChart() {
	if m.kline == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(renderCandles(m.kline, m.viewport.Width))
	m.viewport.GotoTop()
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.status = text
	m.statusKind = kind
}

func (m *Model) setError(action string, err error) {
	m.setStatus(statusError, action+": "+err.Error())
	m.logger.Warn(action, "error", err)
}

func (m Model) stockName(code string) string {
	for _, s := range m.stocks {
		if s.Code == code {
			return s.Name
		}
	}
	for _, w := range m.watch {
		if w.Code == code {
			return w.Name
		}
	}
	return code
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
