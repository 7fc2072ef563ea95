// Package parselog collects the diagnostics produced while parsing a
// line. Parsing tries many candidates and most of them fail, so messages
// are held in nested handlers: a handler that succeeds passes its log on,
// a handler that fails passes on only its best error.
package parselog

import (
	"github.com/nathoo/questscript/types"
)

// Entry is a single logged message.
type Entry struct {
	Severity types.Severity
	Quality  types.Quality
	Message  string
}

// Sink receives the entries that survive every handler.
type Sink interface {
	Emit(e Entry)
}

// Log is a stack of handlers. Messages go to the innermost handler, or
// to the sink when no handler is open. A Log is not safe for concurrent
// use; each parser owns one.
type Log struct {
	sink  Sink
	stack []*Handler
}

// New creates a log writing to sink. A nil sink drops messages.
func New(sink Sink) *Log {
	return &Log{sink: sink}
}

// SetSink replaces the sink.
func (l *Log) SetSink(s Sink) { l.sink = s }

// Start opens a new innermost handler.
func (l *Log) Start() *Handler {
	h := &Handler{log: l}
	l.stack = append(l.stack, h)
	return h
}

// Error logs an error with the given quality.
func (l *Log) Error(msg string, q types.Quality) {
	l.emit(Entry{Severity: types.SeverityError, Quality: q, Message: msg})
}

// Warning logs a warning.
func (l *Log) Warning(msg string) {
	l.emit(Entry{Severity: types.SeverityWarning, Message: msg})
}

// Depth returns the number of open handlers.
func (l *Log) Depth() int { return len(l.stack) }

func (l *Log) emit(e Entry) {
	if n := len(l.stack); n > 0 {
		l.stack[n-1].add(e)
		return
	}
	if l.sink != nil {
		l.sink.Emit(e)
	}
}

// Handler buffers the messages of one parse attempt.
type Handler struct {
	log     *Log
	entries []Entry
	best    *Entry
	stopped bool
}

func (h *Handler) add(e Entry) {
	if e.Severity == types.SeverityError {
		if h.best == nil || e.Quality > h.best.Quality {
			h.best = &e
		}
		return
	}
	h.entries = append(h.entries, e)
}

// Clear drops buffered warnings. The best error is kept so that it can
// still be reported if every remaining candidate fails too.
func (h *Handler) Clear() {
	h.entries = nil
}

// HasError reports whether an error has been logged.
func (h *Handler) HasError() bool { return h.best != nil }

// Error returns the best error logged so far.
func (h *Handler) Error() (Entry, bool) {
	if h.best == nil {
		return Entry{}, false
	}
	return *h.best, true
}

// Stop closes the handler and every handler opened after it, discarding
// their messages. Stopping twice is a no-op.
func (h *Handler) Stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	st := h.log.stack
	for i := len(st) - 1; i >= 0; i-- {
		if st[i] == h {
			for _, above := range st[i+1:] {
				above.stopped = true
			}
			h.log.stack = st[:i]
			return
		}
	}
}

// PrintLog closes the handler after a successful parse and passes its
// warnings to the enclosing handler. Errors left behind by candidates
// that failed are dropped.
func (h *Handler) PrintLog() {
	if h.stopped {
		return
	}
	h.Stop()
	for _, e := range h.entries {
		h.log.emit(e)
	}
}

// PrintError closes the handler and passes on only its best error. If
// there is none, or it ranks below q, def is reported with quality q
// instead (unless def is empty).
func (h *Handler) PrintError(def string, q types.Quality) {
	if h.stopped {
		return
	}
	h.Stop()
	if h.best != nil && (def == "" || h.best.Quality >= q) {
		h.log.emit(*h.best)
		return
	}
	if def != "" {
		h.log.emit(Entry{Severity: types.SeverityError, Quality: q, Message: def})
	}
}
