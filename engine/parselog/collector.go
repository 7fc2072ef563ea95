package parselog

import (
	"go.uber.org/zap"

	"github.com/nathoo/questscript/types"
)

// Collector is the sink used while loading scripts. It stamps each entry
// with the current file and line, keeps it as a Diagnostic and writes it
// to the logger.
type Collector struct {
	logger *zap.SugaredLogger

	file string
	line int
	text string

	Diagnostics []types.Diagnostic
}

// NewCollector creates a collector. A nil logger logs nothing.
func NewCollector(logger *zap.SugaredLogger) *Collector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collector{logger: logger}
}

// At sets the location subsequent entries are attributed to.
func (c *Collector) At(file string, line int, text string) {
	c.file, c.line, c.text = file, line, text
}

// Emit implements Sink.
func (c *Collector) Emit(e Entry) {
	d := types.Diagnostic{
		Severity: e.Severity,
		Quality:  e.Quality,
		File:     c.file,
		Line:     c.line,
		Text:     c.text,
		Message:  e.Message,
	}
	c.Diagnostics = append(c.Diagnostics, d)

	fields := []any{"file", c.file, "line", c.line}
	if c.text != "" {
		fields = append(fields, "text", c.text)
	}
	if e.Severity == types.SeverityError {
		fields = append(fields, "quality", QualityName(e.Quality))
		c.logger.Errorw(e.Message, fields...)
		return
	}
	c.logger.Warnw(e.Message, fields...)
}

// Errors counts the error diagnostics collected so far.
func (c *Collector) Errors() int {
	n := 0
	for _, d := range c.Diagnostics {
		if d.Severity == types.SeverityError {
			n++
		}
	}
	return n
}

// Reset drops collected diagnostics.
func (c *Collector) Reset() {
	c.Diagnostics = nil
	c.At("", 0, "")
}

// QualityName names an error quality for logs.
func QualityName(q types.Quality) string {
	switch q {
	case types.QualityNotAnExpression:
		return "not_an_expression"
	case types.QualitySemanticError:
		return "semantic_error"
	default:
		return "none"
	}
}
