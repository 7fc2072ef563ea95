package pattern

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/nathoo/questscript/engine/lang"
	"github.com/nathoo/questscript/engine/lex"
	"github.com/nathoo/questscript/types"
)

// regexTimeout bounds a single <regex> match attempt.
const regexTimeout = 100 * time.Millisecond

// Element is a node of a compiled pattern. Every node links to the node
// that follows it in the current branch (used for matching) and to the
// node that followed it in the source text (used for printing). Branches
// of choices and optional groups share the continuation of their parent.
type Element interface {
	match(in string, r *MatchResult) *MatchResult
	next() Element
	setNext(e Element)
	origNext() Element
	setOrigNext(e Element)
	write(b *strings.Builder)
}

type link struct {
	nxt  Element
	orig Element
}

func (l *link) next() Element         { return l.nxt }
func (l *link) setNext(e Element)     { l.nxt = e }
func (l *link) origNext() Element     { return l.orig }
func (l *link) setOrigNext(e Element) { l.orig = e }

// setLastNext links the tail of the chain starting at first to e.
func setLastNext(first Element, e Element) {
	for first.next() != nil {
		first = first.next()
	}
	first.setNext(e)
}

// matchNext continues with the element after e, or succeeds if e ends
// the pattern and the whole input was consumed.
func matchNext(e Element, in string, r *MatchResult) *MatchResult {
	n := e.next()
	if n == nil {
		if r.Offset == len(in) {
			return r
		}
		return nil
	}
	return n.match(in, r)
}

func writeChain(b *strings.Builder, first Element) {
	for e := first; e != nil; e = e.origNext() {
		e.write(b)
	}
}

// Literal matches fixed text, ignoring case. A space in the literal is
// optional at the start or end of the input and after a space in the
// input, so "[the] player" accepts "player".
type Literal struct {
	link
	text string
}

// Text returns the literal text.
func (l *Literal) Text() string { return l.text }

func (l *Literal) match(in string, r *MatchResult) *MatchResult {
	if !r.step() {
		return nil
	}
	off := r.Offset
	for i := 0; i < len(l.text); {
		c, size := utf8.DecodeRuneInString(l.text[i:])
		i += size
		if c == ' ' {
			if off == 0 || off == len(in) || in[off-1] == ' ' {
				continue
			}
			if in[off] != ' ' {
				return nil
			}
			off++
			continue
		}
		if off >= len(in) {
			return nil
		}
		d, dsize := utf8.DecodeRuneInString(in[off:])
		if c != d && unicode.ToLower(c) != unicode.ToLower(d) {
			return nil
		}
		off += dsize
	}
	r.Offset = off
	return matchNext(l, in, r)
}

func (l *Literal) write(b *strings.Builder) {
	for _, c := range l.text {
		if strings.ContainsRune(`[]()|%<>\¦`, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
}

// Optional matches its content or nothing, preferring the content.
type Optional struct {
	link
	inner Element
}

func (o *Optional) setNext(e Element) {
	o.nxt = e
	setLastNext(o.inner, e)
}

func (o *Optional) match(in string, r *MatchResult) *MatchResult {
	if !r.step() {
		return nil
	}
	if m := o.inner.match(in, r.copy()); m != nil {
		return m
	}
	return matchNext(o, in, r)
}

func (o *Optional) write(b *strings.Builder) {
	b.WriteByte('[')
	writeChain(b, o.inner)
	b.WriteByte(']')
}

type alternative struct {
	first  Element
	mark   int
	marked bool
}

// Choice matches the first alternative, in declaration order, for which
// the rest of the pattern also matches. The chosen alternative's parse
// mark is XORed into the result.
type Choice struct {
	link
	alts []alternative
}

func (c *Choice) setNext(e Element) {
	c.nxt = e
	for _, a := range c.alts {
		setLastNext(a.first, e)
	}
}

func (c *Choice) match(in string, r *MatchResult) *MatchResult {
	if !r.step() {
		return nil
	}
	for _, a := range c.alts {
		nr := r.copy()
		nr.Mark ^= a.mark
		if m := a.first.match(in, nr); m != nil {
			return m
		}
	}
	return nil
}

func (c *Choice) write(b *strings.Builder) {
	b.WriteByte('(')
	for i, a := range c.alts {
		if i > 0 {
			b.WriteByte('|')
		}
		if a.marked {
			b.WriteString(strconv.Itoa(a.mark))
			b.WriteString("¦")
		}
		writeChain(b, a.first)
	}
	b.WriteByte(')')
}

// Regex matches a run of input that the regular expression matches in
// full. Candidate end offsets are tried from the shortest.
type Regex struct {
	link
	source string
	re     *regexp2.Regexp
}

func compileRegex(src string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(`\A(?:`+src+`)\z`, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = regexTimeout
	return re, nil
}

func (x *Regex) match(in string, r *MatchResult) *MatchResult {
	if !r.step() {
		return nil
	}
	start := r.Offset
	for end := lex.Next(in, start); end != -1; end = lex.Next(in, end) {
		m, err := x.re.FindStringMatch(in[start:end])
		if err != nil || m == nil {
			continue
		}
		groups := m.Groups()
		rm := types.RegexMatch{
			Text:   m.String(),
			Groups: make([]string, len(groups)),
			Start:  start,
			End:    end,
		}
		for i, g := range groups {
			rm.Groups[i] = g.String()
		}
		nr := r.copy()
		nr.Offset = end
		nr.Regexes = append(nr.Regexes, rm)
		if res := matchNext(x, in, nr); res != nil {
			return res
		}
	}
	return nil
}

func (x *Regex) write(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(x.source)
	b.WriteByte('>')
}

// TypeSlot is a %type% placeholder. The text it covers is parsed as an
// expression by the Resolver.
type TypeSlot struct {
	link
	// Index of the slot in the pattern, counted in source order.
	Index int
	// Types as written, singular or plural ("player", "strings").
	Types []string
	// Nullable slots ("%-type%") resolve to nil when left out.
	Nullable bool
	// Flags limit the slot to literals ("%*type%") or to non-literal
	// expressions ("%~type%").
	Flags types.ParseFlags
	// Time is the time state requested with "@-1" or "@1".
	Time int
	// MayBeAbsent is set for slots inside an optional group or a choice
	// of several alternatives.
	MayBeAbsent bool

	spec string
}

func (s *TypeSlot) write(b *strings.Builder) {
	b.WriteByte('%')
	b.WriteString(s.spec)
	b.WriteByte('%')
}

// match tries candidate end offsets for the slot. When a non-blank
// literal follows, candidates are its successive occurrences; otherwise
// they come from stepping over the input token by token. For each
// candidate the rest of the pattern is matched first and only then is
// the covered text parsed. The first candidate for which both succeed
// wins.
func (s *TypeSlot) match(in string, r *MatchResult) *MatchResult {
	if !r.step() {
		return nil
	}
	start := r.Offset
	if start >= len(in) || r.ctx.resolver == nil {
		return nil
	}

	var end int
	var literal string
	blank := false
	switch n := s.next().(type) {
	case nil:
		end = len(in)
	case *Literal:
		literal = n.text
		blank = strings.TrimSpace(literal) == ""
		if !blank {
			literal = strings.TrimRight(literal, " ")
		}
		end = lex.NextOccurrence(in, literal, start, false)
		if end == -1 && blank {
			literal = ""
			end = lex.Next(in, start)
		}
	default:
		end = lex.Next(in, start)
	}

	for end != -1 {
		nr := r.copy()
		nr.Offset = end
		if m := matchNext(s, in, nr); m != nil {
			if text := strings.TrimSpace(in[start:end]); text != "" {
				if e := r.ctx.resolver.ResolveSlot(text, s); e != nil {
					m.Exprs[s.Index] = e
					return m
				}
			}
		}
		if r.ctx.budget.Exceeded() {
			return nil
		}
		if literal != "" {
			prev := end
			end = lex.NextOccurrence(in, literal, end+1, false)
			if end == -1 && blank {
				literal = ""
				end = lex.Next(in, prev)
			}
		} else {
			end = lex.Next(in, end)
		}
	}
	return nil
}

// Resolver parses the text covered by a type slot.
type Resolver interface {
	// ResolveSlot returns the expression text stands for, or nil if the
	// text is not acceptable for the slot.
	ResolveSlot(text string, slot *TypeSlot) lang.Expression
}
