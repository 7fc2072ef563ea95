// Package tui provides a Bubble Tea terminal UI for the questscript
// engine. It runs the same commands as the cli REPL and previews how an
// /explain line parses while it is typed.
package tui

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// History holds submitted lines, oldest first, and walks them with a
// cursor. When a query is set only entries fuzzily matching it are
// visited, so typing "/exp" and pressing up recalls earlier /explain
// lines.
type History struct {
	entries []string
	max     int
	cursor  int // -1 = not navigating, 0..len-1 = position in entries
	query   string
}

// NewHistory creates a history buffer with the given maximum size.
func NewHistory(max int) *History {
	return &History{
		entries: make([]string, 0, max),
		max:     max,
		cursor:  -1,
	}
}

// Push adds a line to history. Consecutive duplicates are skipped.
func (h *History) Push(line string) {
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > h.max {
		h.entries = h.entries[1:]
	}
}

// SetQuery filters navigation to entries matching q and restarts it
// from the newest entry. An empty query visits everything.
func (h *History) SetQuery(q string) {
	h.query = q
	h.cursor = -1
}

func (h *History) matches(i int) bool {
	return h.query == "" || fuzzy.MatchFold(h.query, h.entries[i])
}

// Prev returns the previous (older) matching entry. At the oldest match
// it stays there. Returns ("", false) if nothing matches.
func (h *History) Prev() (string, bool) {
	start := h.cursor - 1
	if h.cursor == -1 {
		start = len(h.entries) - 1
	}
	for i := start; i >= 0; i-- {
		if h.matches(i) {
			h.cursor = i
			return h.entries[i], true
		}
	}
	if h.cursor >= 0 {
		return h.entries[h.cursor], true
	}
	return "", false
}

// Next returns the next (newer) matching entry.
// Returns ("", false) when past the most recent match (back to fresh input).
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	for i := h.cursor + 1; i < len(h.entries); i++ {
		if h.matches(i) {
			h.cursor = i
			return h.entries[i], true
		}
	}
	h.cursor = -1
	return "", false
}

// Navigating reports whether Prev has moved the cursor.
func (h *History) Navigating() bool { return h.cursor != -1 }

// ResetCursor ends navigation and clears the query.
func (h *History) ResetCursor() {
	h.cursor = -1
	h.query = ""
}

// Complete returns the candidates fuzzily matching the word being
// typed, best match first.
func Complete(word string, candidates []string) []string {
	if word == "" {
		return nil
	}
	ranks := fuzzy.RankFindFold(word, candidates)
	sort.Sort(ranks)
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}
