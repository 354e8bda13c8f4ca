package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Local things are pink, the peer is indigo.
var (
	Primary   = lipgloss.Color("#f472b6")
	Secondary = lipgloss.Color("#818cf8")
	Success   = lipgloss.Color("#34d399")
	Warning   = lipgloss.Color("#fbbf24")
	Error     = lipgloss.Color("#f87171")
	Muted     = lipgloss.Color("#6B7280")
)

func bold(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

var (
	SuccessStyle    = bold(Success)
	ErrorStyle      = bold(Error)
	WarningStyle    = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle      = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle       = lipgloss.NewStyle().Bold(true)
	LocalNameStyle  = bold(Primary)
	RemoteNameStyle = bold(Secondary)
	SpinnerStyle    = lipgloss.NewStyle().Foreground(Primary)

	HeaderStyle = bold(Primary).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 2)
	FooterStyle = MutedStyle.MarginTop(1)

	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	TableRowStyle    = tableCellStyle.Foreground(lipgloss.Color("255"))
	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconLink    = "🔗"
	IconRoom    = "🚪"
	IconPlay    = "▶"
	IconPause   = "⏸"
	IconChat    = "💬"
	IconCopy    = "📋"
)

// Output is where the Print helpers write.
var Output io.Writer = os.Stdout

func PrintError(msg string) {
	fmt.Fprintf(Output, "%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Fprintf(Output, "%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Fprintf(Output, "%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Fprintf(Output, "%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
