package function

import (
	"fmt"
	"strings"

	"github.com/coregx/coregex"

	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/lex"
)

const namePattern = `[\p{L}][\p{L}\p{N}_]*`

var (
	nameRe       = coregex.MustCompile(`^` + namePattern + `$`)
	definitionRe = lex.MustCompile(`(?i)^function (` + namePattern + `)\((.*)\)(?: :: (.+))?$`)
	paramRe      = lex.MustCompile(`^\s*(.+?)\s*:\s*(.+?)(?:\s*=\s*(.+))?\s*$`)
	// CallRe matches "name(args)". Group 1 is the name, group 2 the
	// argument text.
	CallRe = lex.MustCompile(`^(` + namePattern + `)\((.*)\)$`)
)

// DefaultParser parses the default value of a parameter as an expression
// of the given type, or returns nil.
type DefaultParser func(text, typ string) lang.Expression

// IsDefinition reports whether a line looks like a function header.
func IsDefinition(line string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "function ")
}

// ParseSignature parses a header such as
//
//	function greet(p: player, greeting: text = "hi") :: text
//
// The header must not include the trailing colon.
func ParseSignature(script, header string, classes *lang.Classes, parseDefault DefaultParser) (*Signature, error) {
	m := lex.Submatch(definitionRe, strings.TrimSpace(header))
	if m == nil {
		return nil, fmt.Errorf("invalid function definition, check for typos and that the name only contains letters, digits and underscores")
	}
	name, args, ret := m[1], m[2], m[3]

	sig := &Signature{Script: script, Name: name, Single: true, Origin: OriginScript}

	// Split on top-level commas only; defaults may contain lists or calls.
	start := 0
	for i := 0; i <= len(args); i = lex.Next(args, i) {
		if i == -1 {
			return nil, fmt.Errorf("invalid text, variables or parentheses in the parameters of function %s", name)
		}
		if i < len(args) && args[i] != ',' {
			continue
		}
		piece := args[start:i]
		start = i + 1
		if strings.TrimSpace(piece) == "" && len(sig.Params) == 0 && i == len(args) {
			break
		}
		p, err := parseParam(piece, len(sig.Params)+1, classes, parseDefault)
		if err != nil {
			return nil, err
		}
		for _, q := range sig.Params {
			if strings.EqualFold(q.Name, p.Name) {
				return nil, fmt.Errorf("each parameter name must be unique, but %q occurs at least twice", p.Name)
			}
		}
		sig.Params = append(sig.Params, p)
		if i == len(args) {
			break
		}
	}

	if ret != "" {
		ci, plural, ok := classes.Lookup(strings.TrimSpace(ret))
		if !ok {
			return nil, fmt.Errorf("cannot recognise the type %q", ret)
		}
		sig.ReturnType = ci.CodeName
		sig.Single = !plural
	}
	return sig, nil
}

func parseParam(text string, n int, classes *lang.Classes, parseDefault DefaultParser) (Parameter, error) {
	m := lex.Submatch(paramRe, text)
	if m == nil {
		return Parameter{}, fmt.Errorf("the %s parameter's definition is invalid, it should look like 'name: type' or 'name: type = default value'", Ordinal(n))
	}
	ci, plural, ok := classes.Lookup(m[2])
	if !ok {
		return Parameter{}, fmt.Errorf("cannot recognise the type %q", m[2])
	}
	p := Parameter{Name: m[1], Type: ci.CodeName, Single: !plural}
	if def := m[3]; def != "" {
		if parseDefault != nil {
			p.Default = parseDefault(def, ci.CodeName)
		}
		if p.Default == nil {
			return Parameter{}, fmt.Errorf("'%s' is not %s", def, classes.Describe(ci.CodeName))
		}
	}
	return p, nil
}

// Ordinal formats n as "1st", "2nd", "3rd", "4th" and so on.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
