package function

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/questscript/engine/lex"
)

func TestSignatureRegexGroups(t *testing.T) {
	tests := []struct {
		name string
		re   string
		s    string
		want []string
	}{
		{"definition", "definition", "function greet(p: player) :: text",
			[]string{"function greet(p: player) :: text", "greet", "p: player", "text"}},
		{"definition without return", "definition", "function tick()",
			[]string{"function tick()", "tick", "", ""}},
		{"param", "param", "p: player", []string{"p: player", "p", "player", ""}},
		{"param with default", "param", " n: number = 0", []string{" n: number = 0", "n", "number", "0"}},
		{"call", "call", "abs(-4)", []string{"abs(-4)", "abs", "-4"}},
		{"nested call", "call", "max(abs(-4), 2)", []string{"max(abs(-4), 2)", "max", "abs(-4), 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := CallRe
			switch tt.re {
			case "definition":
				re = definitionRe
			case "param":
				re = paramRe
			}
			if diff := cmp.Diff(tt.want, lex.Submatch(re, tt.s)); diff != "" {
				t.Errorf("groups mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
