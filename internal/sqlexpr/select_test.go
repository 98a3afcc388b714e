// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlexpr_test

import (
	. "gopkg.in/check.v1"

	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
)

type selectSuite struct{}

var _ = Suite(&selectSuite{})

func (s *selectSuite) TestAddAssignsStableIndices(c *C) {
	q := sqlexpr.NewSelectQuery()
	i := q.Add(sqlexpr.NewColumn("t", "a", typemap.Text, true))
	j := q.Add(sqlexpr.NewColumn("t", "b", typemap.Text, true))
	c.Check(i, Equals, 0)
	c.Check(j, Equals, 1)
	c.Assert(q.Columns(), HasLen, 2)

	// Indices do not move as more columns are added.
	q.Add(sqlexpr.NewColumn("t", "c", typemap.Text, true))
	c.Check(q.Add(sqlexpr.NewColumn("t", "b", typemap.Text, true)), Equals, 1)
}

func (s *selectSuite) TestAddDeduplicates(c *C) {
	q := sqlexpr.NewSelectQuery()
	i := q.Add(sqlexpr.NewColumn("t", "a", typemap.Text, true))
	j := q.Add(sqlexpr.NewColumn("t", "a", typemap.Text, true))
	c.Check(j, Equals, i)
	c.Check(q.Columns(), HasLen, 1)

	// A structurally different expression gets its own slot.
	k := q.Add(sqlexpr.NewColumn("u", "a", typemap.Text, true))
	c.Check(k, Not(Equals), i)
}

func (s *selectSuite) TestAddDeduplicatesTemplates(c *C) {
	col := sqlexpr.NewColumn("t", "a", typemap.Int64, false)
	one := sqlexpr.NewValue(int64(1), typemap.Int64)
	t1 := sqlexpr.NewTemplate(typemap.Boolean, "{0} = {1}", 40, sqlexpr.IsPredicate, false,
		[]sqlexpr.Expression{col, one})
	t2 := sqlexpr.NewTemplate(typemap.Boolean, "{0} = {1}", 40, sqlexpr.IsPredicate, false,
		[]sqlexpr.Expression{col, one})
	t3 := sqlexpr.NewTemplate(typemap.Boolean, "{0} <> {1}", 40, sqlexpr.IsPredicate, false,
		[]sqlexpr.Expression{col, one})

	q := sqlexpr.NewSelectQuery()
	i := q.Add(t1)
	c.Check(q.Add(t2), Equals, i)
	c.Check(q.Add(t3), Not(Equals), i)
}

// Columns of different query scopes never deduplicate, even at the same
// index.
func (s *selectSuite) TestQueryColumnIdentity(c *C) {
	inner1 := sqlexpr.NewSelectQuery()
	inner1.Add(sqlexpr.NewColumn("t", "a", typemap.Text, true))
	inner2 := sqlexpr.NewSelectQuery()
	inner2.Add(sqlexpr.NewColumn("t", "a", typemap.Text, true))

	q := sqlexpr.NewSelectQuery()
	i := q.Add(sqlexpr.QueryColumn{Query: inner1, Index: 0})
	j := q.Add(sqlexpr.QueryColumn{Query: inner2, Index: 0})
	c.Check(i, Not(Equals), j)
	c.Check(q.Add(sqlexpr.QueryColumn{Query: inner1, Index: 0}), Equals, i)
}

func (s *selectSuite) TestAliasColumnFirstWins(c *C) {
	q := sqlexpr.NewSelectQuery()
	i := q.Add(sqlexpr.NewColumn("t", "a", typemap.Text, true))
	q.AliasColumn(i, "first")
	q.AliasColumn(i, "second")
	c.Check(q.Columns()[i].Alias, Equals, "first")
}

func (s *selectSuite) TestValueNullability(c *C) {
	c.Check(sqlexpr.NewValue(nil, typemap.Undefined).CanBeNull(), Equals, true)
	c.Check(sqlexpr.NewValue("x", typemap.Text).CanBeNull(), Equals, false)
}

func (s *selectSuite) TestUnknownSentinel(c *C) {
	c.Check(sqlexpr.Unknown.CanBeNull(), Equals, true)
	c.Check(sqlexpr.Unknown.Type(), Equals, typemap.Undefined)
}
