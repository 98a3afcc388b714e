// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package buildctx implements the build-context protocol: the tree of
// scope objects a query compile is composed from. Each context represents
// one logical query scope; contexts resolve sub-expressions to SQL,
// register them in their scope's projection and translate column indices
// into ancestor scopes. The compile session owns every context; parent
// references are non-owning and the tree is cycle-free.
package buildctx

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlrw/sqlrw/internal/rewrite"
	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// ConvertFlags qualify a conversion request.
type ConvertFlags uint8

const (
	ConvertNone ConvertFlags = 0
	// AsPredicate marks the expression as a filter condition.
	AsPredicate ConvertFlags = 1 << iota
	// InProjection marks the expression as a projected output item.
	InProjection
)

// Capability names a structural question asked through IsExpression.
type Capability int

const (
	// CapField asks whether the expression is representable as a plain
	// field of this scope.
	CapField Capability = iota
	// CapExpression asks whether the expression is convertible to SQL in
	// this scope at all.
	CapExpression
	// CapSubQuery asks whether the expression resolves to a nested query.
	CapSubQuery
)

// BuildInfo carries structural options for GetContext.
type BuildInfo struct {
	// CreateSubQuery requests a fresh child scope rather than reuse.
	CreateSubQuery bool
}

// BuildContext is the capability set every query-scope variant implements.
// Calling a structural operation on a context that cannot satisfy it is a
// programming-contract violation, reported as
// UnsupportedContextOperationError: the compiler's own tree construction is
// inconsistent with the query shape.
type BuildContext interface {
	// Parent returns the enclosing scope, nil at the root.
	Parent() BuildContext
	// Query returns this scope's projection list.
	Query() *sqlexpr.SelectQuery

	// ConvertToSQL maps a logical sub-expression to the SQL expressions
	// representing it in this scope, without touching the projection.
	ConvertToSQL(e logic.Expr, level int, flags ConvertFlags) ([]sqlexpr.SqlInfo, error)
	// ConvertToIndex is ConvertToSQL plus registration of each result in
	// the scope's projection; the returned infos carry stable column
	// indices.
	ConvertToIndex(e logic.Expr, level int, flags ConvertFlags) ([]sqlexpr.SqlInfo, error)
	// IsExpression probes a capability of the expression in this scope.
	IsExpression(e logic.Expr, level int, cap Capability) (bool, error)
	// GetContext resolves a nested scope for further composition. Leaf
	// contexts return nil.
	GetContext(e logic.Expr, level int, info BuildInfo) (BuildContext, error)
	// BuildExpression produces the host-side materialization of the
	// expression: which root column(s) to read and how to shape them.
	BuildExpression(e logic.Expr, level int, enforceServerSide bool) (*Extractor, error)
	// BuildQuery builds the materialization of every projected item and
	// registers it as the executable plan for the query handle. Only
	// meaningful on a root context.
	BuildQuery(handle *logic.Query) error
	// ConvertToParentIndex translates a column index in this scope's
	// numbering into the parent's numbering by delegating upward; a root
	// context returns the index unchanged.
	ConvertToParentIndex(index int, origin BuildContext) (int, error)

	// SetAlias sets the scope's source alias. Leaf contexts ignore it.
	SetAlias(alias string)
	// SubQuery returns the scope's query when it is usable as a nested
	// source, nil otherwise.
	SubQuery() *sqlexpr.SelectQuery
	// CompleteColumns finalizes the projection. Most contexts no-op.
	CompleteColumns()
}

// Env is the shared environment of one compile: the session registry, the
// rewrite rules, the dialect selecting among them and the schema used for
// type inference. BuildScope is installed by the enclosing compiler stage
// to construct child scopes for nested queries.
type Env struct {
	Session *Session
	Rules   *rewrite.Registry
	Dialect string
	Schema  *typemap.Schema

	BuildScope func(q *logic.Query, parent BuildContext) (BuildContext, error)
}

// Session is the per-compile context registry. Every context registers
// itself here on creation; the registry is used for cross-context lookups
// and diagnostics during the same compile, not for ownership. A session
// must not be shared across simultaneous compiles.
type Session struct {
	// ID identifies the compile in diagnostics.
	ID       uuid.UUID
	contexts []BuildContext
	plans    map[*logic.Query]*Plan
}

// NewSession returns an empty compile session.
func NewSession() *Session {
	return &Session{
		ID:    uuid.New(),
		plans: make(map[*logic.Query]*Plan),
	}
}

func (s *Session) register(c BuildContext) {
	s.contexts = append(s.contexts, c)
}

// Contexts returns every context created during the compile, in creation
// order.
func (s *Session) Contexts() []BuildContext {
	return s.contexts
}

func (s *Session) setPlan(handle *logic.Query, p *Plan) {
	s.plans[handle] = p
}

// Plan returns the registered plan for a query handle.
func (s *Session) Plan(handle *logic.Query) (*Plan, bool) {
	p, ok := s.plans[handle]
	return p, ok
}

// Plan is the materialization registered for a query handle: one extractor
// per projected item.
type Plan struct {
	Extractors []*Extractor
}

// Extractor is the host-side materialization of one projected item: it
// reads the column at its resolved root index from a raw result row and
// shapes the value. An extractor holding a literal reads no column at all.
type Extractor struct {
	Index      int
	Type       typemap.DataType
	literal    any
	hasLiteral bool
}

// LiteralExtractor materializes a constant without reading the row.
func LiteralExtractor(v any) *Extractor {
	return &Extractor{Index: -1, literal: v, hasLiteral: true}
}

// FromRow extracts and shapes the item's value from a raw result row.
func (x *Extractor) FromRow(row []any) (any, error) {
	if x.hasLiteral {
		return x.literal, nil
	}
	if x.Index < 0 || x.Index >= len(row) {
		return nil, fmt.Errorf("internal error: row has %d columns, extractor needs column %d", len(row), x.Index)
	}
	v := row[x.Index]
	if v == nil {
		return nil, nil
	}
	switch x.Type {
	case typemap.Text, typemap.UUID, typemap.JSON:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
	case typemap.Boolean:
		if n, ok := v.(int64); ok {
			return n != 0, nil
		}
	}
	return v, nil
}

// UnsupportedContextOperationError reports a structural operation asked of
// a context outside its capability set. It aborts the compile.
type UnsupportedContextOperationError struct {
	Context string
	Op      string
}

func (e *UnsupportedContextOperationError) Error() string {
	return fmt.Sprintf("%s context does not support %s", e.Context, e.Op)
}

func unsupported(context, op string) error {
	return &UnsupportedContextOperationError{Context: context, Op: op}
}
