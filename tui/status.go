package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/questscript/cli"
	"github.com/nathoo/questscript/types"
)

// renderStatusBar produces a full-width inverted status line showing
// loaded scripts, online players, waiting runs and the tick count. While
// an /explain line is being typed the left side previews its parse.
func (m Model) renderStatusBar() string {
	world := m.engine.World()

	left := fmt.Sprintf(" Scripts: %d | Players: %d", len(m.engine.Scripts()), len(world.Players()))
	if m.preview != "" {
		left = " " + m.preview
	}
	right := fmt.Sprintf("Waiting: %d | T:%d ", m.engine.Pending(), world.Ticks)

	// Drop the preview's tail if it does not fit.
	if room := m.width - lipgloss.Width(right) - 1; lipgloss.Width(left) > room && room > 3 {
		left = truncate(left, room)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

// previewOf parses the text of an "/explain <category> <text>" line
// being typed and summarizes the outcome. Other input has no preview.
func (m Model) previewOf(input string) string {
	rest, ok := strings.CutPrefix(input, "/explain ")
	if !ok {
		return ""
	}
	word, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	match, diags, err := m.engine.Explain(strings.TrimSpace(text), types.Category(strings.ToLower(word)))
	switch {
	case err != nil:
		return "✗ " + err.Error()
	case match == nil:
		msg := "no match"
		if len(diags) > 0 {
			msg = diags[0].Message
		}
		return "✗ " + msg
	default:
		return "✓ " + cli.DescribeMatch(match)[0]
	}
}

// truncate shortens s to at most n cells, ending in "…".
func truncate(s string, n int) string {
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > n-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
