// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// TitleStyle styles report titles.
var TitleStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// RankStyle styles the rank column of report entries.
var RankStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// NameStyle styles channel names.
var NameStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Bold(true)

// MutedStyle styles secondary detail text.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ValueStyle styles highlighted numeric values.
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)
