package loader

import (
	"fmt"
	"strings"

	"github.com/coregx/coregex"
)

// node is one non-blank line of a script file with the lines indented
// below it.
type node struct {
	line     int
	text     string // comments removed, trimmed
	indent   int
	children []*node
}

// section reports whether the line opens a block, e.g. "on join:".
func (n *node) section() bool { return strings.HasSuffix(n.text, ":") }

// header returns the text of a section line without its colon.
func (n *node) header() string {
	return strings.TrimSpace(strings.TrimSuffix(n.text, ":"))
}

type treeError struct {
	line int
	text string
	msg  string
}

// stripComment cuts a line at the first single '#'. A doubled "##" is a
// literal '#'.
func stripComment(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			b.WriteByte(line[i])
			continue
		}
		if i+1 < len(line) && line[i+1] == '#' {
			b.WriteByte('#')
			i++
			continue
		}
		break
	}
	return b.String()
}

// readTree splits src into an indentation tree. A line indented deeper
// than the previous one is its child; a dedent must return to the
// indentation of an enclosing line.
func readTree(src string) ([]*node, []treeError) {
	var (
		roots []*node
		errs  []treeError
		stack []*node
		tabs  bool
		space bool
	)
	for i, raw := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		lineNo := i + 1
		code := strings.TrimRight(stripComment(raw), " \t")
		text := strings.TrimLeft(code, " \t")
		if text == "" {
			continue
		}
		lead := code[:len(code)-len(text)]
		tabs = tabs || strings.Contains(lead, "\t")
		space = space || strings.Contains(lead, " ")
		if tabs && space {
			errs = append(errs, treeError{lineNo, text, "indentation mixes tabs and spaces"})
			tabs, space = strings.Contains(lead, "\t"), strings.Contains(lead, " ")
		}
		n := &node{line: lineNo, text: text, indent: len(lead)}

		for len(stack) > 0 && stack[len(stack)-1].indent >= n.indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			if n.indent > 0 && len(roots) > 0 {
				errs = append(errs, treeError{lineNo, text, fmt.Sprintf("unexpected indentation of %d", n.indent)})
			}
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			if len(parent.children) > 0 && parent.children[0].indent != n.indent {
				errs = append(errs, treeError{lineNo, text, fmt.Sprintf("indentation of %d does not match the block above (%d)", n.indent, parent.children[0].indent)})
			}
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}
	return roots, errs
}

var optionRe = coregex.MustCompile(`\{@([^{}]+)\}`)

// readOptions collects the "name: value" lines of a top-level
// "options:" block.
func readOptions(n *node) (map[string]string, []treeError) {
	opts := map[string]string{}
	var errs []treeError
	for _, c := range n.children {
		name, value, ok := strings.Cut(c.text, ":")
		if !ok || strings.TrimSpace(name) == "" || len(c.children) > 0 {
			errs = append(errs, treeError{c.line, c.text, "invalid option, it should look like 'name: value'"})
			continue
		}
		opts[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return opts, errs
}

// applyOptions replaces every {@name} in the tree below roots.
func applyOptions(nodes []*node, opts map[string]string) []treeError {
	var errs []treeError
	for _, n := range nodes {
		missing := ""
		n.text = optionRe.ReplaceAllStringFunc(n.text, func(m string) string {
			name := m[2 : len(m)-1]
			if v, ok := opts[name]; ok {
				return v
			}
			missing = name
			return m
		})
		if missing != "" {
			errs = append(errs, treeError{n.line, n.text, fmt.Sprintf("undefined option {@%s}", missing)})
		}
		errs = append(errs, applyOptions(n.children, opts)...)
	}
	return errs
}
