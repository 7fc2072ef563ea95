package lex

import "github.com/dlclark/regexp2"

// MustCompile compiles a regular expression used to take script text
// apart. It panics on a bad expression.
func MustCompile(src string) *regexp2.Regexp {
	return regexp2.MustCompile(src, regexp2.None)
}

// Submatch returns the text of the whole match of re in s followed by
// one entry per group, with "" for groups that took no part. It returns
// nil when re does not match.
func Submatch(re *regexp2.Regexp, s string) []string {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out[i] = g.String()
		}
	}
	return out
}
