// Package ui provides consistent styling and components for the popkeys CLI
package ui

import (
	"fmt"
	"strings"

	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across the application
var (
	ColorPrimary   = lipgloss.Color("39")  // Bright blue
	ColorSecondary = lipgloss.Color("205") // Pink/magenta
	ColorSuccess   = lipgloss.Color("82")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorInfo      = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
	ColorMuted  = lipgloss.Color("238") // Dark gray
)

var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	KeyLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary).
			Width(14)

	TimeStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)
)

// Status icons
var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconActive  = "●"
	IconIdle    = "○"
)

// keyIcons gives each media key a symbol for the event list
var keyIcons = map[mediakey.Type]string{
	mediakey.Play:         "▶",
	mediakey.Pause:        "⏸",
	mediakey.Stop:         "■",
	mediakey.Previous:     "⏮",
	mediakey.Next:         "⏭",
	mediakey.VolumeLower:  "🔉",
	mediakey.VolumeHigher: "🔊",
}

// KeyIcon returns the symbol for key, "?" for Unknown
func KeyIcon(key mediakey.Type) string {
	if icon, ok := keyIcons[key]; ok {
		return icon
	}
	return "?"
}

// FormatStatus renders an active or idle indicator before status
func FormatStatus(active bool, status string) string {
	if active {
		return SuccessStyle.Render(IconActive) + " " + status
	}
	return ErrorStyle.Render(IconIdle) + " " + status
}

// FormatField renders a "name: value" line for status output
func FormatField(name string, value any) string {
	return SubtleStyle.Render(fmt.Sprintf("%-12s", name+":")) + " " + TextStyle.Render(fmt.Sprint(value))
}

// FormatSuccess prefixes msg with a success icon
func FormatSuccess(msg string) string {
	return SuccessStyle.Render(IconSuccess) + " " + msg
}

// FormatError prefixes msg with an error icon
func FormatError(msg string) string {
	return ErrorStyle.Render(IconError) + " " + msg
}

// FormatWarning prefixes msg with a warning icon
func FormatWarning(msg string) string {
	return WarningStyle.Render(IconWarning) + " " + msg
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}

	return lipgloss.NewStyle().
		Foreground(ColorMuted).
		Render(strings.Repeat(char, width))
}
