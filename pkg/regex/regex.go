package regex

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds backtracking on pathological patterns.
const matchTimeout = 2 * time.Second

type Pattern struct {
	Expression *regexp2.Regexp
}

// Compile compiles a pattern with regexp2, which accepts the Perl-style syntax users tend to
// copy from other tools (lookarounds, backreferences).
func Compile(pattern string) (*Pattern, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile regex %q: %w", pattern, err)
	}

	re.MatchTimeout = matchTimeout
	return &Pattern{Expression: re}, nil
}

// MustCompile is like Compile but panics on error. Only for constant patterns.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	if p == nil || p.Expression == nil {
		return ""
	}
	return p.Expression.String()
}

// Check reports whether value contains a match of pattern.
func Check(value string, pattern *Pattern) (bool, error) {
	if pattern == nil || pattern.Expression == nil {
		return false, nil
	}

	match, err := pattern.Expression.MatchString(value)
	if err != nil {
		return false, fmt.Errorf("match %q against %q: %w", value, pattern.String(), err)
	}

	return match, nil
}

// CheckAny reports whether value matches at least one pattern.
func CheckAny(value string, patterns []*Pattern) (bool, error) {
	for _, p := range patterns {
		match, err := Check(value, p)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}
