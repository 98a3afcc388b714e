// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqlexpr holds the compiled SQL expression nodes the rewrite
// engine produces. Every node is immutable once built and may be shared
// across goroutines after compilation completes.
package sqlexpr

import (
	"fmt"

	"github.com/sqlrw/sqlrw/internal/typemap"
)

// Operator precedence values. Higher binds tighter. Unknown never causes
// parenthesization on its own.
const (
	PrecUnknown        = 0
	PrecOr             = 10
	PrecAnd            = 20
	PrecNot            = 30
	PrecComparison     = 40
	PrecAdditive       = 50
	PrecMultiplicative = 60
	PrecConcat         = 70
	PrecPrimary        = 100
)

// Flags qualify a synthesized expression. They are declared on the rewrite
// rule and copied onto the node unchanged.
type Flags uint16

const (
	IsAggregate Flags = 1 << iota
	IsPure
	IsPredicate
	IsWindowFunction
	ServerSideOnly
	PreferServerSide
	InlineParameters
	IgnoreGenericParameters
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Expression is a compiled SQL expression node.
//
// This is a sealed interface: only types in this package implement it. The
// marker method keeps type switches in the renderer exhaustive.
type Expression interface {
	// Type is the logical result type, Undefined when not known.
	Type() typemap.DataType
	// CanBeNull reports whether evaluating the expression may yield NULL.
	CanBeNull() bool
	// Precedence is the operator precedence used for parenthesization.
	Precedence() int

	// sqlExpr is a marker method.
	sqlExpr()
}

// Column references a column of a base table.
type Column struct {
	Table string
	Name  string
	typ   typemap.DataType
	null  bool
}

// NewColumn returns a column reference node.
func NewColumn(table, name string, typ typemap.DataType, null bool) Column {
	return Column{Table: table, Name: name, typ: typ, null: null}
}

func (c Column) Type() typemap.DataType { return c.typ }
func (c Column) CanBeNull() bool        { return c.null }
func (Column) Precedence() int          { return PrecPrimary }
func (Column) sqlExpr()                 {}

// QueryColumn references a projected column of a nested query by its stable
// index. It is how a parent scope addresses a child scope's output.
type QueryColumn struct {
	Query *SelectQuery
	Index int
}

func (qc QueryColumn) Type() typemap.DataType {
	return qc.Query.Column(qc.Index).Type()
}

func (qc QueryColumn) CanBeNull() bool {
	return qc.Query.Column(qc.Index).CanBeNull()
}

func (QueryColumn) Precedence() int { return PrecPrimary }
func (QueryColumn) sqlExpr()        {}

// Parameter is a named external query parameter supplied at run time.
type Parameter struct {
	Name string
	typ  typemap.DataType
	null bool
}

// NewParameter returns a parameter node.
func NewParameter(name string, typ typemap.DataType, null bool) Parameter {
	return Parameter{Name: name, typ: typ, null: null}
}

func (p Parameter) Type() typemap.DataType { return p.typ }
func (p Parameter) CanBeNull() bool        { return p.null }
func (Parameter) Precedence() int          { return PrecPrimary }
func (Parameter) sqlExpr()                 {}

// Value is a literal captured when the query was composed. It is rendered
// as a query parameter unless the enclosing template inlines parameters.
type Value struct {
	V   any
	typ typemap.DataType
}

// NewValue returns a literal value node.
func NewValue(v any, typ typemap.DataType) Value {
	return Value{V: v, typ: typ}
}

func (v Value) Type() typemap.DataType { return v.typ }
func (v Value) CanBeNull() bool        { return v.V == nil }
func (Value) Precedence() int          { return PrecPrimary }
func (Value) sqlExpr()                 {}

// DataTypeExpr is a resolved generic-type slot: a logical data type used
// directly as an expression, e.g. the target type of a CAST.
type DataTypeExpr struct {
	DataType typemap.DataType
}

func (d DataTypeExpr) Type() typemap.DataType { return d.DataType }
func (DataTypeExpr) CanBeNull() bool          { return false }
func (DataTypeExpr) Precedence() int          { return PrecPrimary }
func (DataTypeExpr) sqlExpr()                 {}

// List is an ordered group of expressions rendered as a delimited list. The
// delimiter comes from the placeholder that references the list.
type List struct {
	Items []Expression
}

func (List) Type() typemap.DataType { return typemap.Undefined }

func (l List) CanBeNull() bool {
	for _, e := range l.Items {
		if e.CanBeNull() {
			return true
		}
	}
	return false
}

func (List) Precedence() int { return PrecUnknown }
func (List) sqlExpr()        {}

// unknown is the shared sentinel for argument slots that were never bound.
// Consumers see it instead of a nil or missing entry.
type unknown struct{}

func (unknown) Type() typemap.DataType { return typemap.Undefined }
func (unknown) CanBeNull() bool        { return true }
func (unknown) Precedence() int        { return PrecUnknown }
func (unknown) sqlExpr()               {}

// Unknown is the shared unresolved-slot sentinel.
var Unknown Expression = unknown{}

// Template is a synthesized SQL expression: the rendered template text of a
// rewrite rule together with its bound arguments. The placeholder text is
// kept verbatim; the renderer substitutes arguments when SQL is generated.
type Template struct {
	typ   typemap.DataType
	expr  string
	prec  int
	flags Flags
	null  bool
	args  []Expression
}

// NewTemplate builds a template node. The argument slice is copied; the
// node never changes after construction.
func NewTemplate(typ typemap.DataType, expr string, prec int, flags Flags, null bool, args []Expression) *Template {
	return &Template{
		typ:   typ,
		expr:  expr,
		prec:  prec,
		flags: flags,
		null:  null,
		args:  append([]Expression(nil), args...),
	}
}

func (t *Template) Type() typemap.DataType { return t.typ }
func (t *Template) CanBeNull() bool        { return t.null }
func (t *Template) Precedence() int        { return t.prec }
func (*Template) sqlExpr()                 {}

// Expr returns the template text with placeholders intact.
func (t *Template) Expr() string { return t.expr }

// Flags returns the rule flags carried by the node.
func (t *Template) Flags() Flags { return t.flags }

// Args returns the bound arguments. The returned slice must not be
// modified.
func (t *Template) Args() []Expression { return t.args }

// Arg returns the bound argument at position i, or the Unknown sentinel
// when the position is out of range.
func (t *Template) Arg(i int) Expression {
	if i < 0 || i >= len(t.args) {
		return Unknown
	}
	return t.args[i]
}

func (t *Template) String() string {
	return fmt.Sprintf("Template[%s args=%d]", t.expr, len(t.args))
}
