// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlexpr

// FromClause is the source of a SelectQuery: a base table or a nested
// query, with an optional alias.
type FromClause struct {
	Table string
	Sub   *SelectQuery
	Alias string
}

// JoinClause is an inner join folded into a SelectQuery.
type JoinClause struct {
	Table string
	Sub   *SelectQuery
	Alias string
	On    Expression
}

// ColumnProjection is one projected output column of a SelectQuery.
type ColumnProjection struct {
	Alias string
	Expr  Expression
}

// SelectQuery is the ordered, deduplicated projection list of one query
// scope plus the structural clauses needed to render it. It is mutated only
// by the single compiling goroutine during the build walk; afterwards it is
// read-only.
type SelectQuery struct {
	from    FromClause
	joins   []JoinClause
	where   Expression
	columns []ColumnProjection
	// byHash indexes columns by structural hash for deduplication. Hash
	// collisions fall back to a structural comparison.
	byHash map[uint64][]int
}

// NewSelectQuery returns an empty query scope.
func NewSelectQuery() *SelectQuery {
	return &SelectQuery{byHash: make(map[uint64][]int)}
}

// SetFrom sets the source table.
func (q *SelectQuery) SetFrom(table, alias string) {
	q.from = FromClause{Table: table, Alias: alias}
}

// SetFromQuery sets a nested query as the source.
func (q *SelectQuery) SetFromQuery(sub *SelectQuery, alias string) {
	q.from = FromClause{Sub: sub, Alias: alias}
}

// From returns the source clause.
func (q *SelectQuery) From() FromClause { return q.from }

// AddJoin appends an inner join.
func (q *SelectQuery) AddJoin(j JoinClause) {
	q.joins = append(q.joins, j)
}

// Joins returns the join list.
func (q *SelectQuery) Joins() []JoinClause { return q.joins }

// SetWhere sets the filter predicate.
func (q *SelectQuery) SetWhere(e Expression) { q.where = e }

// Where returns the filter predicate, or nil.
func (q *SelectQuery) Where() Expression { return q.where }

// Add registers an expression in the projection list and returns its stable
// column index. A structurally equal expression that is already projected
// is reused rather than added again.
func (q *SelectQuery) Add(e Expression) int {
	h := hashExpression(e)
	for _, i := range q.byHash[h] {
		if equalExpressions(q.columns[i].Expr, e) {
			return i
		}
	}
	i := len(q.columns)
	q.columns = append(q.columns, ColumnProjection{Expr: e})
	q.byHash[h] = append(q.byHash[h], i)
	return i
}

// AliasColumn names the projected column at index i. The first non-empty
// alias sticks.
func (q *SelectQuery) AliasColumn(i int, alias string) {
	if q.columns[i].Alias == "" {
		q.columns[i].Alias = alias
	}
}

// Columns returns the projection list. The returned slice must not be
// modified.
func (q *SelectQuery) Columns() []ColumnProjection { return q.columns }

// Column returns the projected expression at index i.
func (q *SelectQuery) Column(i int) Expression { return q.columns[i].Expr }

// SqlInfo is a resolved expression together with the query scope it belongs
// to. Index is the expression's stable column index in that scope, or -1
// when the expression has not been registered in the projection.
type SqlInfo struct {
	Expr  Expression
	Query *SelectQuery
	Index int
}
