// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package buildctx

import (
	"fmt"

	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/logic"
)

// ExpressionContext is a leaf context wrapping a single already-resolved
// expression. It answers field requests against that one expression and
// rejects every structural operation a full scope would support.
type ExpressionContext struct {
	env    *Env
	parent BuildContext
	info   sqlexpr.SqlInfo
}

// NewExpressionContext wraps one resolved expression of the parent scope
// as a leaf context and registers it in the session.
func NewExpressionContext(env *Env, parent BuildContext, info sqlexpr.SqlInfo) *ExpressionContext {
	c := &ExpressionContext{env: env, parent: parent, info: info}
	env.Session.register(c)
	return c
}

func (c *ExpressionContext) Parent() BuildContext { return c.parent }

// Query returns the scope the wrapped expression belongs to. A leaf has no
// scope of its own.
func (c *ExpressionContext) Query() *sqlexpr.SelectQuery { return c.info.Query }

// ConvertToSQL resolves a field request to the wrapped expression.
func (c *ExpressionContext) ConvertToSQL(e logic.Expr, level int, flags ConvertFlags) ([]sqlexpr.SqlInfo, error) {
	if !isFieldRequest(e) {
		return nil, unsupported("expression", fmt.Sprintf("conversion of %q", e.String()))
	}
	return []sqlexpr.SqlInfo{c.info}, nil
}

// ConvertToIndex resolves a field request and registers the wrapped
// expression in the owning scope's projection.
func (c *ExpressionContext) ConvertToIndex(e logic.Expr, level int, flags ConvertFlags) ([]sqlexpr.SqlInfo, error) {
	infos, err := c.ConvertToSQL(e, level, flags)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Index = c.info.Query.Add(infos[i].Expr)
	}
	return infos, nil
}

// IsExpression reports field capability only; a leaf holds exactly one
// expression and nothing structural.
func (c *ExpressionContext) IsExpression(e logic.Expr, level int, cap Capability) (bool, error) {
	switch cap {
	case CapField, CapExpression:
		return isFieldRequest(e), nil
	case CapSubQuery:
		return false, nil
	}
	return false, unsupported("expression", fmt.Sprintf("capability %d", cap))
}

// GetContext returns nil: a leaf has no nested scopes.
func (c *ExpressionContext) GetContext(e logic.Expr, level int, info BuildInfo) (BuildContext, error) {
	return nil, nil
}

// BuildExpression materializes the wrapped expression: it is projected in
// the owning scope and its index translated to the root numbering.
func (c *ExpressionContext) BuildExpression(e logic.Expr, level int, enforceServerSide bool) (*Extractor, error) {
	infos, err := c.ConvertToIndex(e, level, InProjection)
	if err != nil {
		return nil, err
	}
	rootIndex, err := c.ConvertToParentIndex(infos[0].Index, c)
	if err != nil {
		return nil, err
	}
	return &Extractor{Index: rootIndex, Type: infos[0].Expr.Type()}, nil
}

func (c *ExpressionContext) BuildQuery(handle *logic.Query) error {
	return unsupported("expression", "BuildQuery")
}

// ConvertToParentIndex delegates to the owning scope: leaf indices already
// live in the parent's numbering.
func (c *ExpressionContext) ConvertToParentIndex(index int, origin BuildContext) (int, error) {
	if c.parent == nil {
		return index, nil
	}
	// The wrapped expression belongs to the parent's scope, so pass the
	// parent as origin to avoid a spurious sub-query column hop.
	return c.parent.ConvertToParentIndex(index, c.parent)
}

// SetAlias is ignored: a leaf has no source of its own.
func (c *ExpressionContext) SetAlias(alias string) {}

// SubQuery returns nil: a leaf is not usable as a nested source.
func (c *ExpressionContext) SubQuery() *sqlexpr.SelectQuery { return nil }

func (c *ExpressionContext) CompleteColumns() {}

// isFieldRequest reports whether e asks for the context's own value rather
// than a computation over it.
func isFieldRequest(e logic.Expr) bool {
	switch e.(type) {
	case logic.Column, logic.Member:
		return true
	}
	return false
}
