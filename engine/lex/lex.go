// Package lex holds the lexical scanning helpers shared by the pattern
// matcher and the expression resolver. They step over script text while
// treating quoted strings, {variables} and parenthesized groups as
// single tokens.
package lex

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnbalanced is wrapped by ValidateLine errors.
var ErrUnbalanced = errors.New("unbalanced brackets, variables or text")

// NextQuote returns the index of the quote closing a string that starts
// before from. Doubled quotes ("") are escapes, also inside embedded
// %expressions%, so a percent sign never hides the closing quote.
// Returns -1 if the string is not closed.
func NextQuote(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if i == len(s)-1 || s[i+1] != '"' {
			return i
		}
		i++
	}
	return -1
}

// NextVariableBracket returns the index of the } closing a variable name
// opened before from, honouring nested braces.
func NextVariableBracket(s string, from int) int {
	depth := 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// NextParen returns the index of the ) closing a group opened before
// from. Quoted strings are skipped.
func NextParen(s string, from int) int {
	depth := 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = NextQuote(s, i+1)
			if i < 0 {
				return -1
			}
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// Next returns the index just past the token starting at i: a whole
// quoted string, variable or parenthesized group, or a single rune.
// Returns -1 at the end of s or when a group is not closed.
func Next(s string, i int) int {
	if i < 0 || i >= len(s) {
		return -1
	}
	var j int
	switch s[i] {
	case '"':
		j = NextQuote(s, i+1)
	case '{':
		j = NextVariableBracket(s, i+1)
	case '(':
		j = NextParen(s, i+1)
	default:
		_, size := utf8.DecodeRuneInString(s[i:])
		return i + size
	}
	if j < 0 {
		return -1
	}
	return j + 1
}

// NextOccurrence returns the index of the next occurrence of needle in
// hay at or after from, skipping over quoted strings, variables and
// parenthesized groups. Needles that themselves start with one of those
// openers are also looked for right at the opener.
func NextOccurrence(hay, needle string, from int, caseSensitive bool) int {
	if needle == "" || from < 0 || from >= len(hay) {
		return -1
	}
	special := needle[0] == '"' || needle[0] == '{' || needle[0] == '('
	at := func(i int) bool {
		if i+len(needle) > len(hay) {
			return false
		}
		if caseSensitive {
			return hay[i:i+len(needle)] == needle
		}
		return strings.EqualFold(hay[i:i+len(needle)], needle)
	}
	for i := from; i < len(hay); i++ {
		if special && at(i) {
			return i
		}
		switch hay[i] {
		case '"':
			i = NextQuote(hay, i+1)
		case '{':
			i = NextVariableBracket(hay, i+1)
		case '(':
			i = NextParen(hay, i+1)
		}
		if i < 0 {
			return -1
		}
		if at(i) {
			return i
		}
	}
	return -1
}

// Enclosed reports whether s is a single parenthesized group, e.g.
// "(a and b)" but not "(a) and (b)".
func Enclosed(s string) bool {
	return len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && Next(s, 0) == len(s)
}

// Quoted reports whether s is a single quoted string.
func Quoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && Next(s, 0) == len(s)
}

// Collapse trims s and folds every run of whitespace outside quoted
// strings into a single space.
func Collapse(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for i := 0; i < len(s); {
		if s[i] == '"' {
			end := NextQuote(s, i+1)
			if end < 0 {
				end = len(s) - 1
			}
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteString(s[i : end+1])
			i = end + 1
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			space = true
		} else {
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// ValidateLine checks that quotes, variables and parentheses in a line
// are balanced.
func ValidateLine(s string) error {
	if strings.Count(s, `"`)%2 != 0 {
		return fmt.Errorf("unbalanced quotes in %q: %w", s, ErrUnbalanced)
	}
	for i := 0; i < len(s); i = Next(s, i) {
		if i < 0 {
			return fmt.Errorf("invalid brackets, variables or text in %q: %w", s, ErrUnbalanced)
		}
		switch s[i] {
		case ')', '}':
			return fmt.Errorf("unexpected %q in %q: %w", s[i], s, ErrUnbalanced)
		}
	}
	return nil
}
