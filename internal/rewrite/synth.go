// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package rewrite

import (
	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// Synthesize combines the effective template text and the bound arguments
// into an immutable SQL expression node. The node's nullability is fixed
// here and never changes afterwards.
func Synthesize(tmpl *ExpressionTemplate, bound *Bound) (*sqlexpr.Template, error) {
	if bound.Text == "" {
		return nil, &EmptyTemplateBodyError{Func: bound.Name}
	}

	var null bool
	if tmpl.ForceNullable != nil {
		// An explicit declaration-time override wins unconditionally.
		null = *tmpl.ForceNullable
	} else {
		flags := make([]bool, len(bound.Args))
		for i, a := range bound.Args {
			flags[i] = a.CanBeNull()
		}
		null = sqlexpr.EvalNullability(tmpl.Nullability, flags)
	}

	return sqlexpr.NewTemplate(tmpl.Type, bound.Text, tmpl.Precedence, tmpl.Flags, null, bound.Args), nil
}

// Apply runs the full rewrite of a call-like node against a rule: bind the
// arguments, then synthesize the node.
func Apply(tmpl *ExpressionTemplate, node logic.Expr, schema *typemap.Schema, convert Converter, opts BindOptions) (*sqlexpr.Template, error) {
	bound, err := BindArguments(tmpl, node, schema, convert, opts)
	if err != nil {
		return nil, err
	}
	return Synthesize(tmpl, bound)
}
