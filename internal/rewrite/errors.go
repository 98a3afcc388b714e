// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package rewrite

import "fmt"

// UnresolvedArgumentIndexError is returned when a placeholder, an explicit
// reorder entry or a generic-type slot references an argument position that
// cannot be resolved.
type UnresolvedArgumentIndexError struct {
	Index    int
	Template string
}

func (e *UnresolvedArgumentIndexError) Error() string {
	return fmt.Sprintf("cannot resolve argument index %d in template %q", e.Index, e.Template)
}

// EmptyTemplateBodyError is returned when, after all inference, a rule has
// no template text to synthesize from.
type EmptyTemplateBodyError struct {
	Func string
}

func (e *EmptyTemplateBodyError) Error() string {
	return fmt.Sprintf("rewrite rule for %q has an empty template body", e.Func)
}
