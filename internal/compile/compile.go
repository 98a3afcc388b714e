// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package compile walks a composed logical query and drives the
// build-context protocol: one scope context per query level, filters and
// projections resolved through the rewrite rules, and a materialization
// plan registered for the root.
package compile

import (
	"fmt"

	"github.com/sqlrw/sqlrw/internal/buildctx"
	"github.com/sqlrw/sqlrw/internal/rewrite"
	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// Compiler turns logical queries into renderable SELECT structures. A
// compiler is immutable and safe for concurrent use; each Compile call
// runs in its own session.
type Compiler struct {
	rules   *rewrite.Registry
	dialect string
	schema  *typemap.Schema
}

// New returns a compiler over the given rule registry. Dialect selects
// among per-dialect rule variants; schema may be nil.
func New(rules *rewrite.Registry, dialect string, schema *typemap.Schema) *Compiler {
	return &Compiler{rules: rules, dialect: dialect, schema: schema}
}

// Result is one compiled query: the renderable SELECT structure, the
// session it was built in and the materialization plan for its rows.
type Result struct {
	Query   *sqlexpr.SelectQuery
	Session *buildctx.Session
	Plan    *buildctx.Plan
}

// Compile builds the root scope for q, resolves every clause and registers
// the materialization plan.
func (c *Compiler) Compile(q *logic.Query) (*Result, error) {
	env := &buildctx.Env{
		Session: buildctx.NewSession(),
		Rules:   c.rules,
		Dialect: c.dialect,
		Schema:  c.schema,
	}
	env.BuildScope = func(sub *logic.Query, parent buildctx.BuildContext) (buildctx.BuildContext, error) {
		return buildScope(env, sub, parent)
	}
	root, err := buildScope(env, q, nil)
	if err != nil {
		return nil, err
	}
	if err := root.BuildQuery(q); err != nil {
		return nil, err
	}
	plan, ok := env.Session.Plan(q)
	if !ok {
		return nil, fmt.Errorf("internal error: no plan registered for query %q", q.String())
	}
	return &Result{Query: root.Query(), Session: env.Session, Plan: plan}, nil
}

// buildScope constructs the scope context for one query level and resolves
// its source, joins, filter and projection.
func buildScope(env *buildctx.Env, q *logic.Query, parent buildctx.BuildContext) (buildctx.BuildContext, error) {
	ctx := buildctx.NewScopeContext(env, parent)
	sq := ctx.Query()

	if sub := q.Sub(); sub != nil {
		child, err := buildScope(env, sub, ctx)
		if err != nil {
			return nil, err
		}
		child.CompleteColumns()
		sq.SetFromQuery(child.SubQuery(), q.Alias())
	} else {
		if q.Table() == "" {
			return nil, fmt.Errorf("query has no source: %q", q.String())
		}
		sq.SetFrom(q.Table(), q.Alias())
	}

	for _, j := range q.Joins() {
		clause := sqlexpr.JoinClause{Table: j.Table, Alias: j.Alias}
		if j.Sub != nil {
			child, err := buildScope(env, j.Sub, ctx)
			if err != nil {
				return nil, err
			}
			child.CompleteColumns()
			clause.Sub = child.SubQuery()
		}
		if j.On != nil {
			infos, err := ctx.ConvertToSQL(j.On, 0, buildctx.AsPredicate)
			if err != nil {
				return nil, err
			}
			clause.On = infos[0].Expr
		}
		sq.AddJoin(clause)
	}

	if pred := q.Where(); pred != nil {
		infos, err := ctx.ConvertToSQL(pred, 0, buildctx.AsPredicate)
		if err != nil {
			return nil, err
		}
		sq.SetWhere(infos[0].Expr)
	}

	for _, p := range q.Projections() {
		infos, err := ctx.ConvertToIndex(p.Expr, 0, buildctx.InProjection)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if p.Alias != "" {
				sq.AliasColumn(info.Index, p.Alias)
			}
		}
	}

	ctx.CompleteColumns()
	return ctx, nil
}
