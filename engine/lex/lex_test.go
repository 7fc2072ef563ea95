package lex

import (
	"errors"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		s    string
		i    int
		want int
	}{
		{`abc`, 0, 1},
		{`abc`, 3, -1},
		{`"a b" c`, 0, 5},
		{`"a ""b"" c" d`, 0, 11},
		{`{x::%y%} z`, 0, 8},
		{`{a{b}c} z`, 0, 7},
		{`(a (b) "c)") z`, 0, 12},
		{`(a`, 0, -1},
		{`"a`, 0, -1},
		{`é!`, 0, 2},
	}
	for _, tt := range tests {
		if got := Next(tt.s, tt.i); got != tt.want {
			t.Errorf("Next(%q, %d) = %d, want %d", tt.s, tt.i, got, tt.want)
		}
	}
}

func TestNextQuote(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{`"hello" rest`, 6},
		{`"say ""hi""" rest`, 11},
		{`"hello %name of ""x""%" rest`, 22},
		{`"100% sure" rest`, 10},
		{`"50% off and 20% more"`, 21},
		{`"open`, -1},
	}
	for _, tt := range tests {
		if got := NextQuote(tt.s, 1); got != tt.want {
			t.Errorf("NextQuote(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
	if err := ValidateLine(`broadcast "100% sure"`); err != nil {
		t.Errorf("a lone percent sign inside a string is text for ValidateLine: %v", err)
	}
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		hay, needle string
		from        int
		want        int
	}{
		{`a with b`, " with", 0, 1},
		{`"a with b" with c`, " with", 0, 10},
		{`{x with} with c`, " with", 0, 8},
		{`(a with b) with c`, " with", 0, 10},
		{`A WITH b`, " with", 0, 1},
		{`a with b`, " with", 2, -1},
		{`x "y"`, `"y"`, 0, 2},
		{`abc`, "", 0, -1},
	}
	for _, tt := range tests {
		if got := NextOccurrence(tt.hay, tt.needle, tt.from, false); got != tt.want {
			t.Errorf("NextOccurrence(%q, %q, %d) = %d, want %d", tt.hay, tt.needle, tt.from, got, tt.want)
		}
	}
}

func TestEnclosed(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"(a and b)", true},
		{"(a) and (b)", false},
		{"()", true},
		{"a", false},
	}
	for _, tt := range tests {
		if got := Enclosed(tt.s); got != tt.want {
			t.Errorf("Enclosed(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  broadcast   \"hi\"  ", `broadcast "hi"`},
		{"send \"a   b\"\tto  player", `send "a   b" to player`},
		{"", ""},
		{"a\n\nb", "a b"},
	}
	for _, tt := range tests {
		if got := Collapse(tt.in); got != tt.want {
			t.Errorf("Collapse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateLine(t *testing.T) {
	good := []string{`send "hi" to player`, `set {x::%player%} to 1`, `broadcast ("a")`, `say "it's ""quoted"""`}
	for _, s := range good {
		if err := ValidateLine(s); err != nil {
			t.Errorf("ValidateLine(%q) = %v", s, err)
		}
	}
	bad := []string{`send "hi to player`, `set {x to 1`, `broadcast ("a"`, `broadcast "a")`}
	for _, s := range bad {
		err := ValidateLine(s)
		if !errors.Is(err, ErrUnbalanced) {
			t.Errorf("ValidateLine(%q) = %v, want ErrUnbalanced", s, err)
		}
	}
}
