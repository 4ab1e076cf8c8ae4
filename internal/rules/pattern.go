package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single pattern evaluation
const DefaultMatchTimeout = time.Second

// Pattern is a regular expression anchored at the start of its input
type Pattern struct {
	expr string
	re   *regexp2.Regexp
	// capture groups in order of their opening parenthesis
	groups []captureGroup
}

// captureGroup names a group by number when unnamed, by name otherwise
type captureGroup struct {
	num  int
	name string
}

// CompilePattern compiles expr with start-anchored match semantics.
// Both (?P<name>...) and (?<name>...) named groups are accepted.
func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp2.Compile(`\A(?:`+expr+`)`, regexp2.RE2)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = DefaultMatchTimeout

	return &Pattern{expr: expr, re: re, groups: scanGroups(expr)}, nil
}

// scanGroups lists the capture groups of expr left to right. regexp2
// numbers unnamed groups before named ones.
func scanGroups(expr string) []captureGroup {
	var groups []captureGroup
	unnamed := 0
	inClass := false

	for i := 0; i < len(expr); i++ {
		switch c := expr[i]; {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			// a leading ] or ^] is a literal
			if i+1 < len(expr) && expr[i+1] == '^' {
				i++
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				i++
			}
		case c == '(':
			rest := expr[i+1:]
			if !strings.HasPrefix(rest, "?") {
				unnamed++
				groups = append(groups, captureGroup{num: unnamed})
				continue
			}
			if name, ok := groupName(rest[1:]); ok {
				groups = append(groups, captureGroup{name: name})
			}
		}
	}
	return groups
}

// groupName extracts the name of a named group from the text after "(?"
func groupName(s string) (string, bool) {
	s = strings.TrimPrefix(s, "P")
	var closer byte
	switch {
	case strings.HasPrefix(s, "<") && !strings.HasPrefix(s, "<=") && !strings.HasPrefix(s, "<!"):
		closer = '>'
	case strings.HasPrefix(s, "'"):
		closer = '\''
	default:
		return "", false
	}

	end := strings.IndexByte(s[1:], closer)
	if end <= 0 {
		return "", false
	}
	return s[1 : end+1], true
}

// MustCompilePattern is like CompilePattern but panics on error
func MustCompilePattern(expr string) *Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(fmt.Sprintf("rules: compile %q: %v", expr, err))
	}
	return p
}

// String returns the pattern as written in the rule file
func (p *Pattern) String() string {
	return p.expr
}

// Match reports whether s matches the pattern
func (p *Pattern) Match(s string) bool {
	ok, err := p.re.MatchString(s)
	return err == nil && ok
}

// Groups returns the captured groups of a match. Groups that did not
// participate in the match are returned as "".
func (p *Pattern) Groups(s string) ([]string, bool) {
	m, err := p.re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil, false
	}

	parts := make([]string, 0, len(p.groups))
	for _, cg := range p.groups {
		var g *regexp2.Group
		if cg.name != "" {
			g = m.GroupByName(cg.name)
		} else {
			g = m.GroupByNumber(cg.num)
		}
		if g == nil {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, g.String())
	}
	return parts, true
}

// NumGroups returns the number of capture groups
func (p *Pattern) NumGroups() int {
	return len(p.groups)
}
