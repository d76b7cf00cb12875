package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/iammorganparry/stockview/internal/model"
	"github.com/iammorganparry/stockview/internal/router"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.helpView()
	}

	body := m.renderBody()
	if m.activity.Visible() {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.activity.Render(m.width-2, 10))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("STOCKVIEW")
	pageTitle := PageTitleStyle.Render(m.router.Title())

	user := DimStyle.Render("anonymous")
	if m.auth.IsAuthenticated() {
		user = UserStyle.Render(m.auth.Username())
	}

	left := title + "  " + pageTitle
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(user)-2, 1)
	return lipgloss.NewStyle().
		PaddingLeft(1).
		Render(left+strings.Repeat(" ", gap)+user) + "\n"
}

func (m Model) renderBody() string {
	var content string
	switch m.page.name {
	case router.ViewStockList:
		content = m.renderStockList()
	case viewDetail:
		content = m.renderDetail()
	case router.ViewStockChart:
		content = m.renderChart()
	case router.ViewWatchlist:
		content = m.renderWatchlist()
	case router.ViewLogin:
		content = m.renderForm("Sign in")
	case router.ViewRegister:
		content = m.renderForm("Create account")
	default:
		content = DimStyle.Render("nothing here")
	}
	return PanelStyle.Width(max(m.width-2, 20)).Render(content)
}

func (m Model) renderStockList() string {
	if m.loading && len(m.stocks) == 0 {
		return DimStyle.Render("Loading stocks...")
	}
	if len(m.stocks) == 0 {
		return DimStyle.Render("No stocks")
	}
	var b strings.Builder
	for i, s := range m.stocks {
		row := fmt.Sprintf("%-8s %-24s %s", s.Code, s.Name, s.Market)
		if i == m.cursor {
			b.WriteString(SelectedRowStyle.Render("> " + row))
		} else {
			b.WriteString(RowStyle.Render("  " + row))
		}
		b.WriteString("\n")
	}
	b.WriteString(DimStyle.Render("enter details · c chart · a watch"))
	return b.String()
}

func (m Model) renderWatchlist() string {
	if m.loading && len(m.watch) == 0 {
		return DimStyle.Render("Loading watchlist...")
	}
	if len(m.watch) == 0 {
		return DimStyle.Render("Watchlist is empty. Press a on a stock to add it.")
	}
	var b strings.Builder
	for i, w := range m.watch {
		row := fmt.Sprintf("%-8s %s", w.Code, w.Name)
		if i == m.watchCursor {
			b.WriteString(SelectedRowStyle.Render("> " + row))
		} else {
			b.WriteString(RowStyle.Render("  " + row))
		}
		b.WriteString("\n")
	}
	b.WriteString(DimStyle.Render("enter details · c chart · x remove"))
	return b.String()
}

func (m Model) renderDetail() string {
	code := m.page.stockCode()
	header := CodeStyle.Render(code) + " " + m.stockName(code)
	if m.kline == nil {
		if m.loading {
			return header + "\n" + DimStyle.Render("Loading...")
		}
		return header
	}

	last, ok := m.kline.Last()
	if !ok {
		return header + "\n" + DimStyle.Render("No trading days")
	}
	low, high := m.kline.Range()
	lines := []string{
		header,
		"",
		fmt.Sprintf("Date    %s", last.Date),
		fmt.Sprintf("Close   %s  %s", last.Close.StringFixed(2), formatChange(last.Change())),
		fmt.Sprintf("Open    %s", last.Open.StringFixed(2)),
		fmt.Sprintf("Day     %s - %s", last.Low.StringFixed(2), last.High.StringFixed(2)),
		fmt.Sprintf("Period  %s - %s (%d days)", low.StringFixed(2), high.StringFixed(2), len(m.kline.Candles)),
		fmt.Sprintf("Volume  %d", last.Volume),
		"",
		sparkline(m.kline.Candles, 60),
		"",
		DimStyle.Render("c chart · a watch · esc back"),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderChart() string {
	code := m.page.stockCode()
	header := CodeStyle.Render(code) + " " + m.stockName(code)
	if m.kline == nil {
		if m.loading {
			return header + "\n" + DimStyle.Render("Loading...")
		}
		return header
	}
	return header + "\n" + m.viewport.View()
}

// renderCandles lists candles newest first under a sparkline of closes.
func renderCandles(k *model.KLine, width int) string {
	var b strings.Builder
	b.WriteString(sparkline(k.Candles, max(width-2, 10)))
	b.WriteString("\n\n")
	b.WriteString(DimStyle.Render(fmt.Sprintf("%-10s %10s %10s %10s %10s %12s", "date", "open", "close", "low", "high", "volume")))
	b.WriteString("\n")
	for i := len(k.Candles) - 1; i >= 0; i-- {
		c := k.Candles[i]
		row := fmt.Sprintf("%-10s %10s %10s %10s %10s %12d",
			c.Date,
			c.Open.StringFixed(2), c.Close.StringFixed(2),
			c.Low.StringFixed(2), c.High.StringFixed(2),
			c.Volume)
		b.WriteString(changeStyle(c.Change()).Render(row))
		b.WriteString("\n")
	}
	return b.String()
}

// sparkline scales the last width closes onto block characters.
func sparkline(candles []model.Candle, width int) string {
	if len(candles) == 0 || width <= 0 {
		return ""
	}
	if len(candles) > width {
		candles = candles[len(candles)-width:]
	}

	low, high := candles[0].Close, candles[0].Close
	for _, c := range candles[1:] {
		low = decimal.Min(low, c.Close)
		high = decimal.Max(high, c.Close)
	}
	span := high.Sub(low)
	top := decimal.NewFromInt(int64(len(sparkBlocks) - 1))

	out := make([]rune, len(candles))
	for i, c := range candles {
		idx := 0
		if !span.IsZero() {
			idx = int(c.Close.Sub(low).Mul(top).Div(span).Round(0).IntPart())
		}
		out[i] = sparkBlocks[idx]
	}
	return string(out)
}

// Rising prices are red and falling prices green, as on mainland boards.
func changeStyle(d decimal.Decimal) lipgloss.Style {
	switch d.Sign() {
	case 1:
		return UpStyle
	case -1:
		return DownStyle
	default:
		return RowStyle
	}
}

func formatChange(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Sign() > 0 {
		s = "+" + s
	}
	return changeStyle(d).Render(s)
}

func (m Model) renderForm(title string) string {
	lines := []string{PageTitleStyle.Render(title), ""}
	for i, in := range m.inputs {
		style := InputStyle
		if i == m.focus {
			style = FocusedInputStyle
		}
		lines = append(lines, style.Render(in.View()))
	}
	hint := "enter submit · tab next field · esc back"
	if m.busy {
		hint = "working..."
	}
	if target := m.page.loc.Get(router.RedirectParam); target != "" && m.page.name == router.ViewLogin {
		lines = append(lines, DimStyle.Render("continue to "+target+" after signing in"))
	}
	lines = append(lines, "", DimStyle.Render(hint))
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	var status string
	switch m.statusKind {
	case statusSuccess:
		status = SuccessStyle.Render(m.status)
	case statusWarning:
		status = WarningStyle.Render(m.status)
	case statusError:
		status = ErrorStyle.Render(m.status)
	default:
		status = DimStyle.Render(m.status)
	}

	var help []string
	for _, b := range m.keys.ShortHelp() {
		help = append(help, b.Help().Key+" "+b.Help().Desc)
	}
	return StatusBarStyle.Render(status) + "\n" + StatusBarStyle.Render(DimStyle.Render(strings.Join(help, " · ")))
}

func (m Model) helpView() string {
	var b strings.Builder
	b.WriteString(HelpTitleStyle.Render("Keys"))
	b.WriteString("\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			b.WriteString(renderBinding(binding))
		}
		b.WriteString("\n")
	}
	b.WriteString(DimStyle.Render("? or esc to close"))
	return HelpStyle.Render(b.String())
}

func renderBinding(b key.Binding) string {
	h := b.Help()
	return HelpKeyStyle.Render(fmt.Sprintf("%-10s", h.Key)) + " " + HelpDescStyle.Render(h.Desc) + "\n"
}
