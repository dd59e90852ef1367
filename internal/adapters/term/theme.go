package term

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette of the terminal views. Colors are ANSI 256
// codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Header     lipgloss.Color
	Border     lipgloss.Color
	Leader     lipgloss.Color
	Pending    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme suits a dark terminal.
var DefaultTheme = Theme{ //nolint:gochecknoglobals // palette
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),
	Header:     lipgloss.Color("117"),
	Border:     lipgloss.Color("240"),
	Leader:     lipgloss.Color("114"),
	Pending:    lipgloss.Color("221"),
	Warning:    lipgloss.Color("215"),
	Error:      lipgloss.Color("203"),
}
