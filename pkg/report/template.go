package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/EvanWAppel/hermes/pkg/failure"
)

// FormatError reports a template referencing a placeholder outside the
// recognized set.
type FormatError struct {
	Placeholder string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("template references unknown placeholder {%s}", e.Placeholder)
}

// fields maps the recognized placeholder names to their context accessors.
// The set is closed: anything else fails at parse time.
var fields = map[string]func(failure.Context) string{
	"function":  func(fc failure.Context) string { return fc.Function },
	"start":     func(fc failure.Context) string { return fc.Start.Format(time.RFC3339) },
	"fail_time": func(fc failure.Context) string { return fc.FailTime.Format(time.RFC3339) },
	"machine":   func(fc failure.Context) string { return fc.Machine },
	"user":      func(fc failure.Context) string { return fc.User },
	"error":     func(fc failure.Context) string { return fc.Err },
	"traceback": func(fc failure.Context) string { return fc.Traceback },
}

type segment struct {
	literal string
	field   string // non-empty for placeholder segments
}

// Template is a parsed body template. "{name}" substitutes a context field;
// "{{" and "}}" escape literal braces.
type Template struct {
	segments []segment
}

// Parse validates a template against the recognized placeholder set. Unknown
// placeholders and unbalanced braces are rejected here, ahead of any
// escalation, so the render path cannot fail.
func Parse(text string) (*Template, error) {
	var segs []segment
	var lit strings.Builder

	for i := 0; i < len(text); {
		switch text[i] {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			name := text[i+1 : i+end]
			if _, ok := fields[name]; !ok {
				return nil, &FormatError{Placeholder: name}
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{literal: lit.String()})
				lit.Reset()
			}
			segs = append(segs, segment{field: name})
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(text[i])
			i++
		}
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}

	return &Template{segments: segs}, nil
}

// ParseFile loads and parses a template file.
func ParseFile(path string) (*Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file %s: %w", path, err)
	}
	return Parse(string(content))
}

func (t *Template) render(fc failure.Context) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.field != "" {
			b.WriteString(fields[seg.field](fc))
			continue
		}
		b.WriteString(seg.literal)
	}
	return b.String()
}
