// Package ui provides terminal styling for triage CLI output.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/triagehq/triage/internal/types"
)

// Semantic colors, adaptive light/dark.
var (
	ColorOpen = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorProgress = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorClosed = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorHigh = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	openStyle     = lipgloss.NewStyle().Foreground(ColorOpen)
	progressStyle = lipgloss.NewStyle().Foreground(ColorProgress)
	closedStyle   = lipgloss.NewStyle().Foreground(ColorClosed)
	highStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorHigh)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorClosed)
	idStyle       = lipgloss.NewStyle().Foreground(ColorAccent)

	// HeaderStyle renders section headers in CLI output.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// RenderStatus renders an issue status with its semantic color.
func RenderStatus(s types.Status) string {
	if !ShouldUseColor() {
		return string(s)
	}
	switch s {
	case types.StatusOpen:
		return openStyle.Render(string(s))
	case types.StatusInProgress:
		return progressStyle.Render(string(s))
	case types.StatusClosed:
		return closedStyle.Render(string(s))
	}
	return string(s)
}

// RenderPriority renders a priority; high is bold red, empty is a dash.
func RenderPriority(p types.Priority) string {
	if p == "" {
		return "-"
	}
	if !ShouldUseColor() {
		return string(p)
	}
	switch p {
	case types.PriorityHigh:
		return highStyle.Render(string(p))
	case types.PriorityMedium:
		return progressStyle.Render(string(p))
	case types.PriorityLow:
		return mutedStyle.Render(string(p))
	}
	return string(p)
}

// RenderID renders an issue or event ID with accent color.
func RenderID(id string) string {
	if !ShouldUseColor() {
		return id
	}
	return idStyle.Render(id)
}

// RenderMuted renders secondary text (timestamps, counts).
func RenderMuted(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return mutedStyle.Render(s)
}
