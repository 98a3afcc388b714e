// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package logic

import "strings"

// Query is a composed logical query. Builder methods return derived copies,
// so a Query value can be shared and extended from several call sites
// without the chains interfering with each other.
type Query struct {
	from   string
	sub    *Query
	alias  string
	filter Expr
	joins  []Join
	projs  []Projection
}

// Join is an inner join of another source into the enclosing query.
type Join struct {
	Table string
	Sub   *Query
	Alias string
	On    Expr
}

// Projection is one projected output item of a query.
type Projection struct {
	Alias string
	Expr  Expr
}

// P returns a named projection item.
func P(alias string, e Expr) Projection {
	return Projection{Alias: alias, Expr: e}
}

// From starts a query over a base table.
func From(table string) *Query {
	return &Query{from: table}
}

// FromQuery starts a query over the result of a nested query.
func FromQuery(sub *Query) *Query {
	return &Query{sub: sub}
}

// As sets the source alias.
func (q *Query) As(alias string) *Query {
	d := q.derive()
	d.alias = alias
	return d
}

// Filter restricts the query to rows matching pred. Successive filters are
// combined with AND.
func (q *Query) Filter(pred Expr) *Query {
	d := q.derive()
	if d.filter == nil {
		d.filter = pred
	} else {
		d.filter = And(d.filter, pred)
	}
	return d
}

// Project sets the query's output items, replacing any previous projection.
func (q *Query) Project(items ...Projection) *Query {
	d := q.derive()
	d.projs = append([]Projection(nil), items...)
	return d
}

// Join adds an inner join on a base table.
func (q *Query) Join(table, alias string, on Expr) *Query {
	d := q.derive()
	d.joins = append(d.joins, Join{Table: table, Alias: alias, On: on})
	return d
}

// JoinQuery adds an inner join on a nested query.
func (q *Query) JoinQuery(sub *Query, alias string, on Expr) *Query {
	d := q.derive()
	d.joins = append(d.joins, Join{Sub: sub, Alias: alias, On: on})
	return d
}

// Table returns the base table name, or empty when the query reads from a
// nested query.
func (q *Query) Table() string { return q.from }

// Sub returns the nested source query, or nil.
func (q *Query) Sub() *Query { return q.sub }

// Alias returns the source alias.
func (q *Query) Alias() string { return q.alias }

// Where returns the combined filter predicate, or nil.
func (q *Query) Where() Expr { return q.filter }

// Joins returns the join list.
func (q *Query) Joins() []Join { return q.joins }

// Projections returns the projected output items.
func (q *Query) Projections() []Projection { return q.projs }

// derive returns a shallow copy of q. Slice capacities are clipped so that
// appending to the copy reallocates instead of writing into a backing array
// shared with q or with sibling derivations.
func (q *Query) derive() *Query {
	d := *q
	d.joins = q.joins[:len(q.joins):len(q.joins)]
	d.projs = q.projs[:len(q.projs):len(q.projs)]
	return &d
}

// String returns a textual representation of the query for debugging and
// testing purposes.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("from ")
	if q.sub != nil {
		b.WriteString("(" + q.sub.String() + ")")
	} else {
		b.WriteString(q.from)
	}
	if q.alias != "" {
		b.WriteString(" as " + q.alias)
	}
	for _, j := range q.joins {
		b.WriteString(" join ")
		if j.Sub != nil {
			b.WriteString("(" + j.Sub.String() + ")")
		} else {
			b.WriteString(j.Table)
		}
		if j.Alias != "" {
			b.WriteString(" as " + j.Alias)
		}
		if j.On != nil {
			b.WriteString(" on " + j.On.String())
		}
	}
	if q.filter != nil {
		b.WriteString(" where " + q.filter.String())
	}
	if len(q.projs) > 0 {
		b.WriteString(" select ")
		for i, p := range q.projs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Expr.String())
			if p.Alias != "" {
				b.WriteString(" as " + p.Alias)
			}
		}
	}
	return b.String()
}
