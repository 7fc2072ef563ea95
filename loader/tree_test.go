package loader

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStripComment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"broadcast \"hi\"", "broadcast \"hi\""},
		{"broadcast \"hi\" # greet", "broadcast \"hi\" "},
		{"# whole line", ""},
		{"send \"##1 fan\"", "send \"#1 fan\""},
		{"a ## b # c", "a # b "},
	}
	for _, tt := range tests {
		if got := stripComment(tt.in); got != tt.want {
			t.Errorf("stripComment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// shape renders a tree as "line:text" entries with children indented.
func shape(nodes []*node, depth int) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, strings.Repeat("  ", depth)+n.text)
		out = append(out, shape(n.children, depth+1)...)
	}
	return out
}

func TestReadTree(t *testing.T) {
	src := "on join:\n" +
		"\tsend \"hi\" # comment\n" +
		"\n" +
		"\tif player is set:\n" +
		"\t\tbroadcast \"x\"\n" +
		"\tstop\n" +
		"# just a comment\n" +
		"every 5 ticks:\n" +
		"\tbroadcast \"tock\"\n"
	roots, errs := readTree(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	want := []string{
		"on join:",
		"  send \"hi\"",
		"  if player is set:",
		"    broadcast \"x\"",
		"  stop",
		"every 5 ticks:",
		"  broadcast \"tock\"",
	}
	if diff := cmp.Diff(want, shape(roots, 0)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if roots[1].line != 8 {
		t.Errorf("second root at line %d, want 8", roots[1].line)
	}
	if !roots[0].section() || roots[0].header() != "on join" {
		t.Errorf("root 0: section=%v header=%q", roots[0].section(), roots[0].header())
	}
}

func TestReadTree_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"mixed", "on join:\n\tstop\n    stop\n", 3, "mixes tabs and spaces"},
		{"mismatch", "on join:\n    stop\n  stop\n", 3, "does not match"},
		{"stray indent", "  on join:\n    stop\n on quit:\n    stop\n", 3, "unexpected indentation of 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := readTree(tt.src)
			if len(errs) == 0 {
				t.Fatal("expected an error")
			}
			if errs[0].line != tt.line || !strings.Contains(errs[0].msg, tt.msg) {
				t.Errorf("got line %d %q, want line %d containing %q", errs[0].line, errs[0].msg, tt.line, tt.msg)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	roots, _ := readTree("options:\n\tgreeting: Hello there\n\tbad line\non join:\n\tbroadcast \"{@greeting}, {@name}\"\n")
	opts, errs := readOptions(roots[0])
	if diff := cmp.Diff(map[string]string{"greeting": "Hello there"}, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if len(errs) != 1 || errs[0].line != 3 {
		t.Errorf("expected one error on line 3, got %+v", errs)
	}

	errs = applyOptions(roots[1:], opts)
	if got := roots[1].children[0].text; got != `broadcast "Hello there, {@name}"` {
		t.Errorf("substituted text = %q", got)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].msg, "{@name}") {
		t.Errorf("expected undefined option error, got %+v", errs)
	}
}
