package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/questscript/engine/syntax"
	"github.com/nathoo/questscript/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) merge(o *ValidationError) {
	e.Errors = append(e.Errors, o.Errors...)
	e.Warnings = append(e.Warnings, o.Warnings...)
}

func (e *ValidationError) empty() bool {
	return len(e.Errors) == 0 && len(e.Warnings) == 0
}

// validate checks a compiled addon element before it is registered.
// Errors reject the element; warnings only get logged.
func validate(el compiledElement, reg *syntax.Registry, ve *ValidationError) bool {
	in := el.info
	where := fmt.Sprintf("%s: %s %q", in.Source, in.Category, in.Name)

	if len(in.Patterns) == 0 {
		ve.Errors = append(ve.Errors, where+" has no patterns")
		return false
	}

	ok := true
	for _, src := range in.Patterns {
		if strings.TrimSpace(src) == "" {
			ve.Errors = append(ve.Errors, where+" has an empty pattern")
			ok = false
			continue
		}
		if err := reg.ValidatePattern(src); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s", where, err))
			ok = false
			continue
		}
		// A pattern that starts with a type slot is tried against many
		// lines it was not meant for.
		if strings.HasPrefix(src, "%") && in.Category != types.CategoryExpression {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf("%s: pattern %q begins with an expression", where, src))
		}
	}
	return ok
}
