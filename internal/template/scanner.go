// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package template implements the placeholder grammar shared by every
// rewrite rule. A template is plain SQL text with embedded placeholders of
// the form:
//
//	{name}       required placeholder
//	{name?}      optional placeholder
//	{name,'<d>'} placeholder with a literal delimiter passed to the resolver
//	{_}          spacing directive
//
// where name is a possibly empty run of [0-9a-zA-Z_]. A digit-only name is
// an argument position. The spacing directive substitutes to nothing but
// requests that exactly one space be inserted before the next non-empty
// piece of output, unless the template already has a space in front of the
// directive.
//
// The grammar is used for two unrelated jobs: rendering SQL text (Render)
// and visiting placeholders for their side effects during argument binding
// (Scan). The two operations share only the parser.
package template

import (
	"fmt"
	"strings"
)

// Placeholder is one parsed {...} token.
type Placeholder struct {
	// Name is the text between the brace and any modifier. Digits reference
	// an argument position.
	Name string
	// Optional is set by a trailing "?" on the name.
	Optional bool
	// Delimiter is the quoted delimiter text, when present.
	Delimiter string
	// HasDelimiter distinguishes an empty delimiter from an absent one.
	HasDelimiter bool
}

// Index returns the argument position a digit-only name references.
func (ph Placeholder) Index() (int, bool) {
	if ph.Name == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(ph.Name); i++ {
		c := ph.Name[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// IsSpacing reports whether the placeholder is the spacing directive.
func (ph Placeholder) IsSpacing() bool {
	return ph.Name == "_"
}

// Resolver resolves a placeholder to its substituted text. Returning ok ==
// false or empty text means the placeholder has no value; Render fails
// unless the placeholder is optional.
type Resolver func(name, delimiter string) (text string, ok bool)

// MissingRequiredParameterError is returned by Render when a non-optional
// placeholder has no value.
type MissingRequiredParameterError struct {
	Placeholder string
	Template    string
}

func (e *MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("missing value for required placeholder {%s} in template %q", e.Placeholder, e.Template)
}

// Render substitutes every placeholder in tmpl using resolve. Text outside
// placeholders, including any brace that does not parse as a placeholder,
// passes through unchanged.
func Render(tmpl string, resolve Resolver) (string, error) {
	var out strings.Builder
	// pendingSpace is set by a spacing directive and consumed by the next
	// non-empty piece of output.
	pendingSpace := false

	emit := func(s string) {
		if s == "" {
			return
		}
		if pendingSpace {
			out.WriteString(" ")
			pendingSpace = false
		}
		out.WriteString(s)
	}

	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			j := strings.IndexByte(tmpl[i:], '{')
			if j == -1 {
				emit(tmpl[i:])
				break
			}
			emit(tmpl[i : i+j])
			i += j
			continue
		}
		ph, next, ok := parsePlaceholder(tmpl, i)
		if !ok {
			// Not a placeholder, the brace is literal text.
			emit(tmpl[i : i+1])
			i++
			continue
		}
		if ph.IsSpacing() {
			// A space already written in the raw template satisfies the
			// directive.
			if !(i > 0 && tmpl[i-1] == ' ') {
				pendingSpace = true
			}
			i = next
			continue
		}
		text, resolved := resolve(ph.Name, ph.Delimiter)
		if !resolved || text == "" {
			if !ph.Optional {
				return "", &MissingRequiredParameterError{Placeholder: ph.Name, Template: tmpl}
			}
			i = next
			continue
		}
		emit(text)
		i = next
	}
	return out.String(), nil
}

// Scan walks tmpl and calls visit for every placeholder that is not the
// spacing directive, in order of appearance. It produces no output; callers
// use it for the side effects of visit.
func Scan(tmpl string, visit func(Placeholder) error) error {
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			i++
			continue
		}
		ph, next, ok := parsePlaceholder(tmpl, i)
		if !ok {
			i++
			continue
		}
		if !ph.IsSpacing() {
			if err := visit(ph); err != nil {
				return err
			}
		}
		i = next
	}
	return nil
}

// parsePlaceholder parses the placeholder starting at the opening brace at
// tmpl[start]. It returns the placeholder and the position just after the
// closing brace, or ok == false when the text is not a placeholder.
func parsePlaceholder(tmpl string, start int) (ph Placeholder, next int, ok bool) {
	i := start + 1
	for i < len(tmpl) && isNameByte(tmpl[i]) {
		i++
	}
	ph.Name = tmpl[start+1 : i]
	if i < len(tmpl) && tmpl[i] == '?' {
		ph.Optional = true
		i++
	}
	if i < len(tmpl) && tmpl[i] == ',' {
		i++
		for i < len(tmpl) && (tmpl[i] == ' ' || tmpl[i] == '\t') {
			i++
		}
		if i >= len(tmpl) || tmpl[i] != '\'' {
			return Placeholder{}, 0, false
		}
		i++
		end := strings.Index(tmpl[i:], "'}")
		if end == -1 {
			return Placeholder{}, 0, false
		}
		ph.Delimiter = tmpl[i : i+end]
		ph.HasDelimiter = true
		i += end + 1
	}
	if i >= len(tmpl) || tmpl[i] != '}' {
		return Placeholder{}, 0, false
	}
	return ph, i + 1, true
}

// This set must stay aligned with the placeholder grammar: names are runs
// of [0-9a-zA-Z_].
func isNameByte(c byte) bool {
	return c == '_' ||
		'0' <= c && c <= '9' ||
		'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z'
}
