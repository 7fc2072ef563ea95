// Package pattern compiles syntax patterns into element trees and
// matches script text against them.
//
// Pattern syntax:
//
//	[optional]          matches its content or nothing
//	(a|b|c)             matches the first alternative that works
//	(1¦a|2¦b)           alternatives with parse marks, XORed into the result
//	%type%              a type slot, see TypeSlot
//	<regex>             a regular expression covering a run of input
//	\x                  the character x, literally
//
// Alternatives may also appear at the top level ("a|b"). Everything else
// is literal text, matched without regard to case.
package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nathoo/questscript/types"
)

const markSep = "¦"

// InvalidPatternError reports a malformed pattern.
type InvalidPatternError struct {
	Pattern string
	Pos     int
	Msg     string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q at %d: %s", e.Pattern, e.Pos, e.Msg)
}

// Compile parses a pattern.
func Compile(src string) (*Pattern, error) {
	c := &compiler{src: src}
	alts, err := c.split(src, 0)
	if err != nil {
		return nil, err
	}
	var first Element
	if len(alts) == 1 && !alts[0].marked {
		first, err = c.sequence(alts[0].body, alts[0].off)
	} else {
		first, err = c.choice(alts)
	}
	if err != nil {
		return nil, err
	}
	return &Pattern{source: src, first: first, slots: c.slots}, nil
}

// MustCompile is like Compile but panics on error. For patterns fixed at
// build time.
func MustCompile(src string) *Pattern {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

type compiler struct {
	src   string
	slots []*TypeSlot
	// absent counts the enclosing groups that can be skipped.
	absent int
}

func (c *compiler) errorf(pos int, format string, args ...any) error {
	return &InvalidPatternError{Pattern: c.src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

type altSpec struct {
	body   string
	off    int
	mark   int
	marked bool
}

// split cuts s at top-level '|' characters and reads each part's mark.
func (c *compiler) split(s string, off int) ([]altSpec, error) {
	var parts []altSpec
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case '%':
			j := strings.IndexByte(s[i+1:], '%')
			if j < 0 {
				return nil, c.errorf(off+i, "unclosed %%")
			}
			i += j + 1
		case '<':
			j := regexEnd(s, i+1)
			if j < 0 {
				return nil, c.errorf(off+i, "unclosed <")
			}
			i = j
		case '|':
			if depth == 0 {
				parts = append(parts, altSpec{body: s[start:i], off: off + start})
				start = i + 1
			}
		}
	}
	parts = append(parts, altSpec{body: s[start:], off: off + start})
	for i := range parts {
		if err := c.readMark(&parts[i]); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// readMark takes the "N¦" prefix off an alternative. A separator inside a
// nested group or after an escape belongs to that group.
func (c *compiler) readMark(a *altSpec) error {
	i := strings.Index(a.body, markSep)
	if i < 0 {
		return nil
	}
	prefix := a.body[:i]
	if strings.ContainsAny(prefix, `([<%\`) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(prefix))
	if err != nil {
		return c.errorf(a.off, "invalid parse mark %q: marks must be whole numbers", prefix)
	}
	a.mark, a.marked = n, true
	skip := i + len(markSep)
	a.body = a.body[skip:]
	a.off += skip
	return nil
}

func (c *compiler) choice(alts []altSpec) (Element, error) {
	if len(alts) > 1 {
		c.absent++
		defer func() { c.absent-- }()
	}
	ch := &Choice{}
	for _, a := range alts {
		first, err := c.sequence(a.body, a.off)
		if err != nil {
			return nil, err
		}
		ch.alts = append(ch.alts, alternative{first: first, mark: a.mark, marked: a.marked})
	}
	return ch, nil
}

// sequence compiles a run of elements without top-level alternatives.
func (c *compiler) sequence(s string, off int) (Element, error) {
	var first, last Element
	var lit strings.Builder
	add := func(e Element) {
		if first == nil {
			first = e
		} else {
			last.setNext(e)
			last.setOrigNext(e)
		}
		last = e
	}
	flush := func() {
		if lit.Len() > 0 {
			add(&Literal{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return nil, c.errorf(off+i, "trailing backslash")
			}
			r, size := utf8.DecodeRuneInString(s[i+1:])
			lit.WriteRune(r)
			i += 1 + size

		case '[':
			end := closing(s, i, '[', ']')
			if end < 0 {
				return nil, c.errorf(off+i, "unclosed [")
			}
			flush()
			c.absent++
			inner, err := c.group(s[i+1:end], off+i+1)
			c.absent--
			if err != nil {
				return nil, err
			}
			add(&Optional{inner: inner})
			i = end + 1

		case '(':
			end := closing(s, i, '(', ')')
			if end < 0 {
				return nil, c.errorf(off+i, "unclosed (")
			}
			flush()
			alts, err := c.split(s[i+1:end], off+i+1)
			if err != nil {
				return nil, err
			}
			ch, err := c.choice(alts)
			if err != nil {
				return nil, err
			}
			add(ch)
			i = end + 1

		case ']', ')':
			return nil, c.errorf(off+i, "unexpected %c", s[i])

		case '%':
			j := strings.IndexByte(s[i+1:], '%')
			if j < 0 {
				return nil, c.errorf(off+i, "unclosed %%")
			}
			slot, err := c.typeSlot(s[i+1:i+1+j], off+i+1)
			if err != nil {
				return nil, err
			}
			flush()
			add(slot)
			i += j + 2

		case '<':
			end := regexEnd(s, i+1)
			if end < 0 {
				return nil, c.errorf(off+i, "unclosed <")
			}
			src := s[i+1 : end]
			re, err := compileRegex(src)
			if err != nil {
				return nil, c.errorf(off+i, "invalid regex %q: %v", src, err)
			}
			flush()
			add(&Regex{source: src, re: re})
			i = end + 1

		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			lit.WriteRune(r)
			i += size
		}
	}
	flush()
	if first == nil {
		// An empty pattern or alternative matches the empty string.
		first = &Literal{}
	}
	return first, nil
}

// group compiles the content of [...]: a sequence, or a choice when it
// has alternatives or a mark.
func (c *compiler) group(s string, off int) (Element, error) {
	alts, err := c.split(s, off)
	if err != nil {
		return nil, err
	}
	if len(alts) == 1 && !alts[0].marked {
		return c.sequence(alts[0].body, alts[0].off)
	}
	return c.choice(alts)
}

func (c *compiler) typeSlot(spec string, off int) (*TypeSlot, error) {
	slot := &TypeSlot{
		Index:       len(c.slots),
		Flags:       types.ParseAll,
		MayBeAbsent: c.absent > 0,
		spec:        spec,
	}
	s := spec
	if strings.HasPrefix(s, "-") {
		slot.Nullable = true
		s = s[1:]
	}
	switch {
	case strings.HasPrefix(s, "*"):
		slot.Flags = types.ParseLiterals
		s = s[1:]
	case strings.HasPrefix(s, "~"):
		slot.Flags = types.ParseExpressions
		s = s[1:]
	}
	if strings.HasPrefix(s, "-") {
		slot.Nullable = true
		s = s[1:]
	}
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		t, err := strconv.Atoi(s[at+1:])
		if err != nil {
			return nil, c.errorf(off+at, "invalid time state %q", s[at+1:])
		}
		slot.Time = t
		s = s[:at]
	}
	for _, name := range strings.Split(s, "/") {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, c.errorf(off, "empty type name in %%%s%%", spec)
		}
		slot.Types = append(slot.Types, name)
	}
	c.slots = append(c.slots, slot)
	return slot, nil
}

// closing finds the bracket closing the one at s[i], skipping escapes,
// type slots and regexes.
func closing(s string, i int, open, close byte) int {
	depth := 0
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '%':
			k := strings.IndexByte(s[j+1:], '%')
			if k < 0 {
				return -1
			}
			j += k + 1
		case '<':
			k := regexEnd(s, j+1)
			if k < 0 {
				return -1
			}
			j = k
		case open:
			depth++
		case close:
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return -1
}

// regexEnd returns the index of the first unescaped '>' at or after i.
func regexEnd(s string, i int) int {
	for ; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '>':
			return i
		}
	}
	return -1
}
