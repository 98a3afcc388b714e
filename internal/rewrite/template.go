// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package rewrite turns calls of registered functions into SQL expression
// nodes. A rewrite rule is an expression template bound to a function
// identity; the argument binder extracts and orders the call's arguments,
// and the synthesizer combines template, arguments and rule flags into an
// immutable node.
package rewrite

import (
	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// Param describes one declared parameter of a rewritable function.
type Param struct {
	// Name is informational only.
	Name string
	// TypeParam names the function type parameter this parameter is
	// declared with. Empty when the parameter has a concrete type.
	TypeParam string
	// Type is the declared logical type, Undefined when generic.
	Type typemap.DataType
	// Variadic marks the final variable-length parameter.
	Variadic bool
}

// ExpressionTemplate is one rewrite rule: a parameterized SQL template and
// the declaration-time metadata controlling how calls bind to it. A
// function may carry several templates keyed by dialect; selection among
// them happens in the registry. Templates never change once registered.
type ExpressionTemplate struct {
	// Dialect names the configuration the template applies to. Empty
	// matches any dialect.
	Dialect string
	// Expr is the template text. When empty the binder infers it from the
	// function or member name.
	Expr string
	// SQLName overrides the function name used when the template text is
	// inferred, e.g. to map a lower-case identity to COALESCE.
	SQLName string
	// Type is the logical result type of the expression.
	Type typemap.DataType
	// Precedence of the resulting expression, for parenthesization.
	Precedence int
	Flags      sqlexpr.Flags
	// Nullability determines the result nullability from the bound
	// arguments.
	Nullability sqlexpr.NullabilityRule
	// ForceNullable overrides Nullability unconditionally when set.
	ForceNullable *bool
	// Reorder maps placeholder indices to bound-argument positions. Nil
	// means no reordering.
	Reorder []int
	// TypeParams are the declared type parameter names in declaration
	// order.
	TypeParams []string
	// Params are the declared value parameters.
	Params []Param
	// WithReceiver prepends the receiver of a method call to the bound
	// arguments, making it addressable as placeholder 0.
	WithReceiver bool
	// BindAll appends arguments the template text never references, so
	// their side conditions still reach the final statement.
	BindAll bool
}

// param returns the declared parameter covering argument position i, with
// the final variadic parameter covering every trailing position.
func (t *ExpressionTemplate) param(i int) (Param, bool) {
	if i < len(t.Params) {
		return t.Params[i], true
	}
	if n := len(t.Params); n > 0 && t.Params[n-1].Variadic {
		return t.Params[n-1], true
	}
	return Param{}, false
}

// AnyArity registers a rule for every argument count. Variadic functions
// use it, since a call's identity records the actual argument count.
const AnyArity = -1

// Registry is the registration table of rewrite rules, keyed by stable
// function identity. It is populated once at startup and read-only
// afterwards.
type Registry struct {
	rules map[logic.FuncID][]*ExpressionTemplate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[logic.FuncID][]*ExpressionTemplate)}
}

// Add registers a template for the function identity. Later registrations
// for the same identity and dialect take precedence.
func (r *Registry) Add(id logic.FuncID, t *ExpressionTemplate) {
	r.rules[id] = append([]*ExpressionTemplate{t}, r.rules[id]...)
}

// Lookup selects the template for the function identity and dialect,
// falling back first to the dialect-independent template and then to an
// AnyArity registration of the same function.
func (r *Registry) Lookup(id logic.FuncID, dialect string) (*ExpressionTemplate, bool) {
	if t, ok := r.lookupExact(id, dialect); ok {
		return t, true
	}
	if id.Arity != AnyArity {
		id.Arity = AnyArity
		return r.lookupExact(id, dialect)
	}
	return nil, false
}

func (r *Registry) lookupExact(id logic.FuncID, dialect string) (*ExpressionTemplate, bool) {
	var fallback *ExpressionTemplate
	for _, t := range r.rules[id] {
		if t.Dialect == dialect {
			return t, true
		}
		if t.Dialect == "" && fallback == nil {
			fallback = t
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

// Len returns the number of registered function identities.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Each visits every registration, oldest first, so that re-adding the
// visited templates into a fresh registry preserves precedence.
func (r *Registry) Each(visit func(id logic.FuncID, t *ExpressionTemplate)) {
	for id, ts := range r.rules {
		for i := len(ts) - 1; i >= 0; i-- {
			visit(id, ts[i])
		}
	}
}
