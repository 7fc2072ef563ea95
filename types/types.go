// Package types defines the shared data structures for the questscript engine.
// This package contains only type definitions, no logic and no methods.
package types

// Category is the kind of syntax element a line of script is parsed as.
type Category string

const (
	CategoryExpression Category = "expression"
	CategoryEffect     Category = "effect"
	CategoryCondition  Category = "condition"
	CategoryEvent      Category = "event"
	CategorySection    Category = "section"
)

// Quality ranks parse errors. When several candidates fail, the error
// with the highest quality is the one reported.
type Quality int

const (
	QualityNone Quality = iota
	QualityNotAnExpression
	QualitySemanticError
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// ParseFlags restrict what a type slot accepts.
type ParseFlags int

const (
	ParseExpressions ParseFlags = 1 << iota
	ParseLiterals
	ParseAll = ParseExpressions | ParseLiterals
)

// Diagnostic is a single message produced while loading a script.
type Diagnostic struct {
	Severity Severity
	Quality  Quality
	File     string
	Line     int    // 1-based, 0 when not tied to a line
	Text     string // the offending line, trimmed
	Message  string
}

// RegexMatch is what a <regex> pattern element captured.
type RegexMatch struct {
	Text   string
	Groups []string // group 0 is the whole match
	Start  int      // byte offset into the matched input
	End    int
}

// Event is something that happened in the game world. Triggers
// registered for Type run when it is fired.
type Event struct {
	Type string
	Data map[string]any // "player", "target", "message", "world", ...
}

// Result is the output of firing one event or advancing the clock.
type Result struct {
	Events []Event
	Output []string
	Errors []string // run-time problems, e.g. a function that failed
}
