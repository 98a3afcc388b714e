// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package logic

import (
	"fmt"
	"reflect"
	"strings"
)

// Expr is a node of the logical expression tree that queries are composed
// from. It is a sealed interface: only types in this package implement it.
// The marker method keeps type switches in the compiler exhaustive.
type Expr interface {
	// String returns a textual representation of the expression for
	// debugging and testing purposes.
	String() string

	// exprNode is a marker method.
	exprNode()
}

// FuncID is the stable identity of a rewritable function or method. Rewrite
// rules are registered against it. Two calls refer to the same rule exactly
// when their FuncIDs are equal.
type FuncID struct {
	// Module is the namespace the function belongs to, e.g. "strings".
	Module string
	// Name is the function or method name.
	Name string
	// Arity is the number of declared value parameters. Variadic functions
	// count the variadic parameter once.
	Arity int
	// TypeArity is the number of declared type parameters.
	TypeArity int
}

func (id FuncID) String() string {
	if id.Module == "" {
		return id.Name
	}
	return id.Module + "." + id.Name
}

// Column references a column of a query source. Table may be empty when the
// enclosing scope has a single source.
type Column struct {
	Table string
	Name  string
	// notNull marks columns declared NOT NULL in the schema.
	notNull bool
}

// Col returns a column reference.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// NotNull returns a copy of the column marked as never null.
func (c Column) NotNull() Column {
	c.notNull = true
	return c
}

// CanBeNull reports whether the column may hold NULL.
func (c Column) CanBeNull() bool {
	return !c.notNull
}

func (c Column) String() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

func (Column) exprNode() {}

// Value is a literal captured at query construction time.
type Value struct {
	V any
}

// Val returns a literal value expression.
func Val(v any) Value {
	return Value{V: v}
}

func (v Value) String() string {
	return fmt.Sprintf("%#v", v.V)
}

func (Value) exprNode() {}

// Array is an inline array literal. When passed in a variadic parameter
// position of a call its elements are expanded into individual arguments;
// everywhere else it stays a single value.
type Array struct {
	Elems []Expr
}

// Arr returns an inline array literal.
func Arr(elems ...Expr) Array {
	return Array{Elems: elems}
}

func (a Array) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, e := range a.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteString("]")
	return b.String()
}

func (Array) exprNode() {}

// Bind is a named external parameter supplied when the compiled plan is run.
type Bind struct {
	Name string
	// notNull marks parameters the caller promises never to pass NULL for.
	notNull bool
}

// Param returns a named external parameter reference.
func Param(name string) Bind {
	return Bind{Name: name}
}

// NotNull returns a copy of the parameter marked as never null.
func (b Bind) NotNull() Bind {
	b.notNull = true
	return b
}

// CanBeNull reports whether the parameter may be NULL at run time.
func (b Bind) CanBeNull() bool {
	return !b.notNull
}

func (b Bind) String() string {
	return "$" + b.Name
}

func (Bind) exprNode() {}

// Member is an access of a named member of an expression, e.g. a property
// that a rewrite rule maps to SQL.
type Member struct {
	Recv Expr
	Name string
}

// Access returns a member access expression.
func Access(recv Expr, name string) Member {
	return Member{Recv: recv, Name: name}
}

func (m Member) String() string {
	if m.Recv == nil {
		return "." + m.Name
	}
	return m.Recv.String() + "." + m.Name
}

func (Member) exprNode() {}

// Call is an invocation of a function or method that a rewrite rule is
// registered for. TypeArgs carries the runtime instantiations of the
// function's type parameters, in declaration order; entries may be nil when
// an instantiation is not known at the call site.
type Call struct {
	Func     FuncID
	Recv     Expr // nil for free functions
	Args     []Expr
	TypeArgs []reflect.Type
}

func (c Call) String() string {
	var b strings.Builder
	if c.Recv != nil {
		b.WriteString(c.Recv.String())
		b.WriteString(".")
	}
	b.WriteString(c.Func.String())
	b.WriteString("(")
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteString(")")
	return b.String()
}

func (Call) exprNode() {}

// Subquery embeds a nested query as an expression.
type Subquery struct {
	Query *Query
}

func (s Subquery) String() string {
	return "(" + s.Query.String() + ")"
}

func (Subquery) exprNode() {}
