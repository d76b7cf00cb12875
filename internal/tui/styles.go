package tui

import "github.com/charmbracelet/lipgloss"

// One Dark Pro color palette
var (
	ColorFgPrimary   = lipgloss.Color("#ABB2BF")
	ColorFgSecondary = lipgloss.Color("#828997")
	ColorFgMuted     = lipgloss.Color("#636B78")
	ColorFgComment   = lipgloss.Color("#5C6370")
	ColorBgHighlight = lipgloss.Color("#2C313C")

	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")
	ColorCyan    = lipgloss.Color("#56B6C2")

	ColorBorder = lipgloss.Color("#3F4451")
)

// Component styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	PageTitleStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	SelectedRowStyle = lipgloss.NewStyle().
				Background(ColorBgHighlight).
				Foreground(ColorFgPrimary).
				Bold(true)

	RowStyle = lipgloss.NewStyle().
			Foreground(ColorFgSecondary)

	CodeStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	// Price movement
	UpStyle = lipgloss.NewStyle().
		Foreground(ColorRed)

	DownStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	// Status bar styles
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			PaddingLeft(1).
			PaddingRight(1)

	UserStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	// Form styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	FocusedInputStyle = InputStyle.
				BorderForeground(ColorGreen)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	// Help overlay styles
	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)

	HelpTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	// Dimmed/info style for less important messages
	DimStyle = lipgloss.NewStyle().
			Foreground(ColorFgComment)
)
