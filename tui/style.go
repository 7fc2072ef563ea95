package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleOutput = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleBroadcast = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleWhisper = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	styleSource = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Italic(true)

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindOutput lineKind = iota
	kindBroadcast
	kindWhisper
	kindSystem
	kindError
	kindWarning
	kindSource
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[broadcast] "):
		return kindBroadcast
	case strings.HasPrefix(line, "[to "):
		return kindWhisper
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.Contains(line, ": error: "):
		return kindError
	case strings.Contains(line, ": warning: "):
		return kindWarning
	case strings.HasPrefix(line, "    "):
		return kindSource
	default:
		return kindOutput
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindBroadcast:
		return styleBroadcast.Render(line)
	case kindWhisper:
		return styleWhisper.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindWarning:
		return styleWarning.Render(line)
	case kindSource:
		return styleSource.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleOutput.Render(line)
	}
}

// styledPlayerInput renders the echoed input in green with "> " prefix.
func styledPlayerInput(input string) string {
	return stylePlayerInput.Render("> " + input)
}
