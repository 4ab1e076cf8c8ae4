package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quantmind-br/releasesync/internal/domain"
)

// Template is a destination path with positional fields: {0}, {1} or {}
// for automatic numbering. Literal braces are written {{ and }}.
type Template string

type segment struct {
	literal string
	index   int
	field   string
}

func (t Template) segments() ([]segment, error) {
	s := string(t)
	var segs []segment
	var lit strings.Builder
	auto := 0
	manual := false

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String(), index: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed '{' in template %q", s)
			}
			field := s[i+1 : i+1+end]

			idx := auto
			if field == "" {
				auto++
			} else {
				n, err := strconv.Atoi(field)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("unsupported field {%s} in template %q", field, s)
				}
				idx = n
				manual = true
			}
			if manual && auto > 0 {
				return nil, fmt.Errorf("template %q mixes {} with numbered fields", s)
			}

			flush()
			segs = append(segs, segment{index: idx, field: field})
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("single '}' in template %q", s)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return segs, nil
}

// Validate checks the template syntax
func (t Template) Validate() error {
	_, err := t.segments()
	return err
}

// Arity returns the number of parts the template needs
func (t Template) Arity() int {
	segs, err := t.segments()
	if err != nil {
		return 0
	}

	arity := 0
	for _, seg := range segs {
		if seg.index >= arity {
			arity = seg.index + 1
		}
	}
	return arity
}

// Format substitutes parts into the template
func (t Template) Format(parts []string) (string, error) {
	segs, err := t.segments()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, seg := range segs {
		if seg.index < 0 {
			b.WriteString(seg.literal)
			continue
		}
		if seg.index >= len(parts) {
			return "", fmt.Errorf("%w: {%s} in %q with %d part(s)", domain.ErrTemplateArity, seg.field, string(t), len(parts))
		}
		b.WriteString(parts[seg.index])
	}
	return b.String(), nil
}
