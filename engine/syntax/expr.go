package syntax

import (
	"fmt"
	"strings"

	"github.com/coregx/coregex"

	"github.com/nathoo/questscript/engine/function"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/lex"
	"github.com/nathoo/questscript/types"
)

// StringType is the code name of the text type quoted strings produce.
const StringType = "string"

const (
	msgMultipleAndOr = "list has multiple 'and' or 'or', will default to 'and'; use brackets if you want to define multiple lists"
	msgMissingAndOr  = "list is missing 'and' or 'or', defaulting to 'and'"
)

var (
	listSepRe  = coregex.MustCompile(`(?i)^(?:\s*,?\s+(and|n?or)\s+|\s*,\s*)`)
	variableRe = lex.MustCompile(`(?i)^(?:(?:the )?var(?:iable)? )?\{(.+)\}$`)
)

// ParseExpression parses text as an expression yielding values of one
// of want. Lists ("a, b and c") are accepted. Nil means the text did not
// parse; the reason is in the log.
func (p *Parser) ParseExpression(text string, want ...string) lang.Expression {
	if len(want) == 0 {
		want = []string{lang.ObjectType}
	}
	var e lang.Expression
	if !p.withBudget(text, func() bool {
		e = p.parseExpression(lex.Collapse(text), types.ParseAll, want)
		return e != nil
	}) {
		return nil
	}
	return e
}

// ParseDefault parses the default value of a function parameter. Text
// wrapped in percent signs is an expression; anything else must be a
// literal of typ.
func (p *Parser) ParseDefault(text, typ string) lang.Expression {
	text = strings.TrimSpace(text)
	percent := len(text) > 1 && strings.HasPrefix(text, "%") && strings.HasSuffix(text, "%")
	var e lang.Expression
	if !p.withBudget(text, func() bool {
		switch {
		case percent:
			e = p.parseExpression(text[1:len(text)-1], types.ParseExpressions, []string{typ})
		case typ == StringType && lex.Quoted(text):
			e = p.parseString(text)
		case typ == StringType:
			e = lang.NewLiteral(StringType, text, text)
		default:
			e = p.parseExpression(text, types.ParseLiterals, []string{typ})
		}
		return e != nil
	}) {
		return nil
	}
	return e
}

type span struct{ start, end int }

// splitList cuts text at list separators found outside strings,
// variables and parentheses. It fails when those are unbalanced or the
// text ends with a separator.
func splitList(text string) ([]span, bool) {
	var pieces []span
	i, j := 0, 0
	for i >= 0 && i <= len(text) {
		if i == len(text) {
			pieces = append(pieces, span{j, i})
			return pieces, true
		}
		if loc := listSepRe.FindStringIndex(text[i:]); loc != nil && loc[1] > 0 {
			pieces = append(pieces, span{j, i})
			i += loc[1]
			j = i
			continue
		}
		i = lex.Next(text, i)
	}
	return nil, false
}

// conjunction returns "and", "or" or "nor" for a separator, or "" for a
// plain comma.
func conjunction(sep string) string {
	sep = strings.TrimSpace(sep)
	sep = strings.TrimSpace(strings.TrimPrefix(sep, ","))
	return strings.ToLower(sep)
}

func (p *Parser) parseExpression(text string, flags types.ParseFlags, want []string) lang.Expression {
	text = strings.TrimSpace(text)
	if text == "" || p.budget != nil && p.budget.Exceeded() {
		return nil
	}
	if p.depth >= p.limits.MaxDepth {
		p.log.Error(fmt.Sprintf("'%s' is nested too deeply", text), types.QualitySemanticError)
		return nil
	}
	p.depth++
	defer func() { p.depth-- }()

	isObject := len(want) == 1 && want[0] == lang.ObjectType
	h := p.log.Start()

	// 1. The whole text as one expression.
	if e := p.parseSingle(text, flags, false, want); e != nil {
		h.PrintLog()
		return e
	}
	h.Clear()

	// 2. A list.
	pieces, ok := splitList(text)
	if !ok {
		h.PrintError(fmt.Sprintf("invalid brackets, variables or text in '%s'", text), types.QualityNotAnExpression)
		return nil
	}
	if len(pieces) == 1 {
		if lex.Enclosed(text) {
			h.PrintLog()
			return p.parseExpression(text[1:len(text)-1], flags, want)
		}
		if isObject && flags&types.ParseLiterals != 0 {
			h.PrintLog()
			return &lang.UnparsedLiteral{Text: text}
		}
		h.PrintError("", types.QualityNone)
		return nil
	}

	// Each member is the longest run of pieces that parses.
	var members []lang.Expression
	and := lang.Unknown
outer:
	for b := 0; b < len(pieces); {
		for a := len(pieces) - b; a >= 1; a-- {
			if b == 0 && a == len(pieces) {
				continue
			}
			sub := strings.TrimSpace(text[pieces[b].start:pieces[b+a-1].end])
			var e lang.Expression
			if lex.Enclosed(sub) {
				e = p.parseExpression(sub, flags, want)
			} else {
				e = p.parseSingle(sub, flags, a == 1, want)
			}
			if e == nil {
				continue
			}
			members = append(members, e)
			if b != 0 {
				if conj := conjunction(text[pieces[b-1].end:pieces[b].start]); conj != "" {
					k := lang.KleeneanOf(conj != "or")
					if and.IsUnknown() {
						and = k
					} else if and != k {
						p.log.Warning(msgMultipleAndOr + ": " + text)
						and = lang.True
					}
				}
			}
			b += a
			continue outer
		}
		h.PrintError("", types.QualityNone)
		return nil
	}
	h.PrintLog()

	if len(members) == 1 {
		return members[0]
	}
	if and.IsUnknown() && p.quietAndOr == 0 {
		p.log.Warning(msgMissingAndOr + ": " + text)
	}
	rts := make([]string, len(members))
	for i, m := range members {
		rts[i] = m.ReturnType()
	}
	return lang.NewList(members, !and.IsFalse(), p.classes.Supertype(rts...))
}

// parseSingle parses text as one expression: a variable, a function
// call, a string, a registered expression or a literal, in that order.
// With allowUnparsed, text an object slot cannot otherwise place becomes
// an UnparsedLiteral.
func (p *Parser) parseSingle(text string, flags types.ParseFlags, allowUnparsed bool, want []string) lang.Expression {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if lex.Enclosed(text) {
		return p.parseSingle(text[1:len(text)-1], flags, allowUnparsed, want)
	}
	h := p.log.Start()

	// 1. Variables.
	if v := p.parseVariable(text); v != nil {
		if flags&types.ParseExpressions == 0 {
			p.log.Error("variables cannot be used here", types.QualitySemanticError)
			h.PrintError("", types.QualityNone)
			return nil
		}
		if e := p.classes.ConvertExpression(v, want...); e != nil {
			h.PrintLog()
			return e
		}
	}
	if h.HasError() {
		h.PrintError("", types.QualityNone)
		return nil
	}

	// 2. Function calls.
	if call := p.parseCall(text, flags, want); call != nil {
		h.PrintLog()
		return call
	}
	if h.HasError() {
		h.PrintError("", types.QualityNone)
		return nil
	}
	h.Clear()

	// 3. Strings and registered expressions.
	if flags&types.ParseExpressions != 0 {
		var e lang.Expression
		if lex.Quoted(text) && p.acceptsString(want) {
			e = p.parseString(text)
		} else if m := p.dispatch(text, p.expressionCandidates(want), types.ParseAll, false); m != nil {
			e = m.Element.(lang.Expression)
		}
		if e != nil {
			if c := p.classes.ConvertExpression(e, want...); c != nil {
				h.PrintLog()
				return c
			}
			p.log.Error(fmt.Sprintf("%s is %s", e, p.classes.NotOfType(want...)), types.QualityNotAnExpression)
			h.PrintError("", types.QualityNone)
			return nil
		}
		h.Clear()
	}

	// 4. Literals.
	if flags&types.ParseLiterals == 0 {
		h.PrintError("", types.QualityNone)
		return nil
	}
	// Plain quoted text is a literal too.
	if flags&types.ParseExpressions == 0 && lex.Quoted(text) && p.acceptsString(want) {
		if l, ok := p.parseString(text).(lang.Literal); ok {
			h.PrintLog()
			return l
		}
	}
	if want[0] == lang.ObjectType {
		if !allowUnparsed {
			h.PrintError("", types.QualityNone)
			return nil
		}
		h.PrintLog()
		return &lang.UnparsedLiteral{Text: text}
	}
	for _, t := range want {
		h.Clear()
		if v, code, ok := p.classes.ParseLiteral(text, t); ok {
			h.PrintLog()
			return lang.NewLiteral(code, text, v)
		}
	}
	h.PrintError("", types.QualityNone)
	return nil
}

func (p *Parser) acceptsString(want []string) bool {
	for _, t := range want {
		if p.classes.IsSubtype(StringType, t) {
			return true
		}
	}
	return false
}

// parseVariable parses "{name}", "{_local}" or "{list::*}". It returns
// nil without logging when text is not a variable at all.
func (p *Parser) parseVariable(text string) lang.Expression {
	m := lex.Submatch(variableRe, text)
	if m == nil {
		return nil
	}
	open := strings.IndexByte(text, '{')
	if lex.NextVariableBracket(text, open+1) != len(text)-1 {
		return nil
	}
	name := strings.TrimSpace(m[1])
	switch {
	case name == "" || name == "_":
		p.log.Error("a variable's name must not be empty", types.QualitySemanticError)
		return nil
	case strings.HasPrefix(name, "::") || strings.HasSuffix(name, "::") && !strings.HasSuffix(name, "::*"):
		p.log.Error(fmt.Sprintf("a variable's name must not start or end with '::': '%s'", name), types.QualitySemanticError)
		return nil
	case strings.Contains(strings.TrimSuffix(name, "::*"), "*"):
		p.log.Error(fmt.Sprintf("list variables must end with '::*' and may not contain '*' elsewhere: '%s'", name), types.QualitySemanticError)
		return nil
	}
	parts, ok := p.parseStringParts(name, name, false)
	if !ok {
		return nil
	}
	return lang.NewVariable(lang.NewVariableString(parts, p.classes, name))
}

// parseCall parses "name(args)". It returns nil without logging when the
// text is not shaped like a call.
func (p *Parser) parseCall(text string, flags types.ParseFlags, want []string) lang.Expression {
	m := lex.Submatch(function.CallRe, text)
	if m == nil || lex.Next(text, len(m[1])) != len(text) {
		return nil
	}
	if flags&types.ParseExpressions == 0 {
		p.log.Error("functions cannot be used here", types.QualitySemanticError)
		return nil
	}
	if p.funcs == nil {
		return nil
	}
	name, argText := m[1], strings.TrimSpace(m[2])

	var args []lang.Expression
	if argText != "" {
		p.quietAndOr++
		e := p.parseExpression(argText, flags|types.ParseLiterals, []string{lang.ObjectType})
		p.quietAndOr--
		if e == nil {
			return nil
		}
		if l, ok := e.(lang.List); ok {
			if !l.IsAnd() {
				p.log.Error("function arguments must be separated by commas and optionally an 'and', but not an 'or'; "+
					"put the 'or' into a second set of parentheses to pass it as one argument", types.QualitySemanticError)
				return nil
			}
			args = l.Members()
		} else {
			args = []lang.Expression{e}
		}
	}

	ref := function.NewReference(p.funcs, p.classes, p.script, name, args, want...)
	if !ref.Validate(p.log) {
		return nil
	}
	p.calls = append(p.calls, ref)
	return ref
}

// parseString parses a quoted string. Strings without %expressions% are
// literals.
func (p *Parser) parseString(text string) lang.Expression {
	parts, ok := p.parseStringParts(text[1:len(text)-1], text, true)
	if !ok {
		return nil
	}
	if len(parts) == 1 && parts[0].Expr == nil {
		return lang.NewLiteral(StringType, text, parts[0].Text)
	}
	return lang.NewVariableString(parts, p.classes, text)
}

// parseStringParts splits string content into text and %expression%
// parts. In quoted content a doubled quote stands for one quote, also
// inside expressions, and a lone quote is an error. A doubled percent
// sign is a literal percent.
func (p *Parser) parseStringParts(s, source string, quoted bool) ([]lang.StringPart, bool) {
	var parts []lang.StringPart
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && quoted:
			if i+1 < len(s) && s[i+1] == '"' {
				b.WriteByte('"')
				i++
				continue
			}
			p.log.Error(fmt.Sprintf("invalid use of quotes in %s; write \"\" for a quote inside a string", source), types.QualitySemanticError)
			return nil, false
		case c == '%':
			if i+1 < len(s) && s[i+1] == '%' {
				b.WriteByte('%')
				i++
				continue
			}
			end := closingPercent(s, i+1)
			if end < 0 {
				p.log.Error(fmt.Sprintf("the percent sign in %s is not closed; write %%%% for a percent sign", source), types.QualitySemanticError)
				return nil, false
			}
			inner := s[i+1 : end]
			if quoted {
				inner = strings.ReplaceAll(inner, `""`, `"`)
			}
			e := p.parseExpression(inner, types.ParseExpressions, []string{lang.ObjectType})
			if e == nil {
				p.log.Error(fmt.Sprintf("can't understand this expression: '%s'", inner), types.QualityNotAnExpression)
				return nil, false
			}
			if b.Len() > 0 {
				parts = append(parts, lang.StringPart{Text: b.String()})
				b.Reset()
			}
			parts = append(parts, lang.StringPart{Expr: e})
			i = end
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() > 0 || len(parts) == 0 {
		parts = append(parts, lang.StringPart{Text: b.String()})
	}
	return parts, true
}

// closingPercent finds the % closing an embedded expression, stepping
// over strings, variables and parentheses inside it.
func closingPercent(s string, from int) int {
	for i := from; i >= 0 && i < len(s); i = lex.Next(s, i) {
		if s[i] == '%' {
			return i
		}
	}
	return -1
}
