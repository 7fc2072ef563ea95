package lex

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubmatch(t *testing.T) {
	tests := []struct {
		re   string
		s    string
		want []string
	}{
		{`^\{(.+)\}$`, "{score}", []string{"{score}", "score"}},
		{`^([a-z]+)\((.*)\)$`, "abs(-4)", []string{"abs(-4)", "abs", "-4"}},
		{`^\s*(.+?)\s*:\s*(.+?)(?:\s*=\s*(.+))?\s*$`, "p: player", []string{"p: player", "p", "player", ""}},
		{`^\s*(.+?)\s*:\s*(.+?)(?:\s*=\s*(.+))?\s*$`, " n : number = 0 ", []string{" n : number = 0 ", "n", "number", "0"}},
		{`^(a)|(b)$`, "b", []string{"b", "", "b"}},
		{`^x$`, "y", nil},
	}
	for _, tt := range tests {
		got := Submatch(MustCompile(tt.re), tt.s)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Submatch(%q, %q) mismatch (-want +got):\n%s", tt.re, tt.s, diff)
		}
	}
}
