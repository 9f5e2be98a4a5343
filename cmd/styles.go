package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/khrees2412/jobportal/internal/presence"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// levelStyle colors a presence level the way the camera badge does
func levelStyle(l presence.Level) lipgloss.Style {
	switch l {
	case presence.LevelVerified:
		return okStyle
	case presence.LevelUncertain:
		return warnStyle
	case presence.LevelAbsent:
		return errStyle
	default:
		return valueStyle
	}
}
