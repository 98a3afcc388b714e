// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package buildctx

import (
	"fmt"
	"reflect"

	"github.com/sqlrw/sqlrw/internal/rewrite"
	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// ScopeContext is the context of one SELECT scope. It owns the scope's
// SelectQuery and resolves expressions against the rewrite rules of the
// compile environment.
type ScopeContext struct {
	env    *Env
	parent BuildContext
	query  *sqlexpr.SelectQuery
	// subs are the child scopes created for nested queries, keyed by the
	// query handle so repeated references reuse one scope.
	subs map[*logic.Query]BuildContext
}

// NewScopeContext creates a scope context and registers it in the session.
func NewScopeContext(env *Env, parent BuildContext) *ScopeContext {
	c := &ScopeContext{
		env:    env,
		parent: parent,
		query:  sqlexpr.NewSelectQuery(),
		subs:   make(map[*logic.Query]BuildContext),
	}
	env.Session.register(c)
	return c
}

func (c *ScopeContext) Parent() BuildContext        { return c.parent }
func (c *ScopeContext) Query() *sqlexpr.SelectQuery { return c.query }

// ConvertToSQL maps a logical expression into this scope without
// registering it in the projection.
func (c *ScopeContext) ConvertToSQL(e logic.Expr, level int, flags ConvertFlags) ([]sqlexpr.SqlInfo, error) {
	expr, err := c.convert(e, level, flags)
	if err != nil {
		return nil, err
	}
	return []sqlexpr.SqlInfo{{Expr: expr, Query: c.query, Index: -1}}, nil
}

// ConvertToIndex maps a logical expression into this scope and registers
// every result in the projection, returning stable column indices.
func (c *ScopeContext) ConvertToIndex(e logic.Expr, level int, flags ConvertFlags) ([]sqlexpr.SqlInfo, error) {
	infos, err := c.ConvertToSQL(e, level, flags)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Index = c.query.Add(infos[i].Expr)
	}
	return infos, nil
}

func (c *ScopeContext) IsExpression(e logic.Expr, level int, cap Capability) (bool, error) {
	switch cap {
	case CapField:
		_, ok := e.(logic.Column)
		return ok, nil
	case CapExpression:
		switch e.(type) {
		case logic.Column, logic.Value, logic.Bind, logic.Array, logic.Call, logic.Member:
			return true, nil
		}
		return false, nil
	case CapSubQuery:
		_, ok := e.(logic.Subquery)
		return ok, nil
	}
	return false, unsupported("scope", fmt.Sprintf("capability %d", cap))
}

// GetContext resolves the child scope of a nested query expression.
func (c *ScopeContext) GetContext(e logic.Expr, level int, info BuildInfo) (BuildContext, error) {
	sub, ok := e.(logic.Subquery)
	if !ok {
		return nil, nil
	}
	if !info.CreateSubQuery {
		if child, ok := c.subs[sub.Query]; ok {
			return child, nil
		}
	}
	if c.env.BuildScope == nil {
		return nil, unsupported("scope", "nested query construction")
	}
	child, err := c.env.BuildScope(sub.Query, c)
	if err != nil {
		return nil, err
	}
	c.subs[sub.Query] = child
	return child, nil
}

// BuildExpression materializes an expression of this scope: the expression
// is projected, its index translated to the root numbering and wrapped in
// an extractor. Literals stay host-side unless enforceServerSide is set.
func (c *ScopeContext) BuildExpression(e logic.Expr, level int, enforceServerSide bool) (*Extractor, error) {
	if v, ok := e.(logic.Value); ok && !enforceServerSide {
		return LiteralExtractor(v.V), nil
	}
	infos, err := c.ConvertToIndex(e, level, InProjection)
	if err != nil {
		return nil, err
	}
	if len(infos) != 1 {
		return nil, fmt.Errorf("internal error: expression %q resolved to %d columns, need exactly 1", e.String(), len(infos))
	}
	rootIndex, err := c.ConvertToParentIndex(infos[0].Index, c)
	if err != nil {
		return nil, err
	}
	return &Extractor{Index: rootIndex, Type: infos[0].Expr.Type()}, nil
}

// BuildQuery registers the materialization plan for the query handle: one
// extractor per projected column of this scope, in projection order.
func (c *ScopeContext) BuildQuery(handle *logic.Query) error {
	if c.parent != nil {
		return unsupported("nested scope", "BuildQuery")
	}
	plan := &Plan{}
	for i, col := range c.query.Columns() {
		plan.Extractors = append(plan.Extractors, &Extractor{Index: i, Type: col.Expr.Type()})
	}
	c.env.Session.setPlan(handle, plan)
	return nil
}

// ConvertToParentIndex translates a column index into the parent scope's
// numbering. When the index originates in a child scope, the child's
// column is re-registered here as a sub-query column reference first; the
// translation then continues toward the root.
func (c *ScopeContext) ConvertToParentIndex(index int, origin BuildContext) (int, error) {
	if origin != nil && origin != BuildContext(c) {
		index = c.query.Add(sqlexpr.QueryColumn{Query: origin.Query(), Index: index})
	}
	if c.parent == nil {
		return index, nil
	}
	return c.parent.ConvertToParentIndex(index, c)
}

// SetAlias names the scope's source.
func (c *ScopeContext) SetAlias(alias string) {
	from := c.query.From()
	if from.Sub != nil {
		c.query.SetFromQuery(from.Sub, alias)
	} else {
		c.query.SetFrom(from.Table, alias)
	}
}

// SubQuery exposes the scope's query as a nested source.
func (c *ScopeContext) SubQuery() *sqlexpr.SelectQuery { return c.query }

// CompleteColumns guarantees the scope projects at least one column, so an
// otherwise column-less scope still renders to valid SQL.
func (c *ScopeContext) CompleteColumns() {
	if len(c.query.Columns()) == 0 {
		c.query.Add(sqlexpr.NewValue(int64(1), typemap.Int64))
	}
}

// convert resolves a single logical expression to SQL in this scope.
func (c *ScopeContext) convert(e logic.Expr, level int, flags ConvertFlags) (sqlexpr.Expression, error) {
	switch e := e.(type) {
	case logic.Column:
		return sqlexpr.NewColumn(e.Table, e.Name, typemap.Undefined, e.CanBeNull()), nil
	case logic.Value:
		d, _ := c.env.Schema.Lookup(reflect.TypeOf(e.V))
		return sqlexpr.NewValue(e.V, d), nil
	case logic.Bind:
		return sqlexpr.NewParameter(e.Name, typemap.Undefined, e.CanBeNull()), nil
	case logic.Array:
		items := make([]sqlexpr.Expression, 0, len(e.Elems))
		for _, el := range e.Elems {
			item, err := c.convert(el, level+1, flags)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return sqlexpr.List{Items: items}, nil
	case logic.Call:
		tmpl, ok := c.env.Rules.Lookup(e.Func, c.env.Dialect)
		if !ok {
			return nil, fmt.Errorf("no rewrite rule registered for %q", e.Func.String())
		}
		return c.apply(tmpl, e, level)
	case logic.Member:
		id := logic.FuncID{Name: e.Name}
		tmpl, ok := c.env.Rules.Lookup(id, c.env.Dialect)
		if !ok {
			// Members without a rule render as their own name.
			tmpl = &ExpressionTemplateDefault
		}
		return c.apply(tmpl, e, level)
	case logic.Subquery:
		return nil, unsupported("scope", "inline sub-query conversion")
	}
	return nil, fmt.Errorf("internal error: cannot convert %T to SQL", e)
}

// apply runs the rewrite pipeline for a call-like node, converting nested
// arguments through this scope.
func (c *ScopeContext) apply(tmpl *rewrite.ExpressionTemplate, node logic.Expr, level int) (sqlexpr.Expression, error) {
	convert := func(sub logic.Expr, hint *rewrite.ColumnHint) (sqlexpr.Expression, error) {
		return c.convert(sub, level+1, ConvertNone)
	}
	return rewrite.Apply(tmpl, node, c.env.Schema, convert, rewrite.BindOptions{
		WithReceiver: tmpl.WithReceiver,
		BindAll:      tmpl.BindAll,
	})
}

// ExpressionTemplateDefault is the rule applied to member accesses with no
// registered rewrite: the member name itself becomes the template text.
var ExpressionTemplateDefault = rewrite.ExpressionTemplate{
	Precedence: sqlexpr.PrecPrimary,
}
