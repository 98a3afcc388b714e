// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package render generates SQL text from compiled SELECT structures. The
// generated statements use positional `?` markers; the accompanying
// parameter list distinguishes literals captured at composition time from
// named parameters supplied at run time.
package render

import (
	"fmt"
	"strings"

	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/template"
)

// Param is one positional statement parameter, in marker order. A captured
// literal carries its value; a named parameter is resolved by the caller
// when the statement runs.
type Param struct {
	Name     string
	Value    any
	HasValue bool
}

// Render generates the SQL text for a compiled query.
func Render(q *sqlexpr.SelectQuery) (string, []Param, error) {
	r := &renderer{aliases: make(map[*sqlexpr.SelectQuery]string)}
	sql, err := r.query(q, false)
	if err != nil {
		return "", nil, err
	}
	return sql, r.params, nil
}

type renderer struct {
	params []Param
	// aliases maps nested queries to the alias they are exposed under in
	// their enclosing FROM or JOIN clause.
	aliases map[*sqlexpr.SelectQuery]string
	nextSub int
}

// query renders one SELECT. Nested queries alias every output column so
// enclosing scopes can address them by name. Clauses render in statement
// order, so the collected parameters line up with the `?` markers.
func (r *renderer) query(q *sqlexpr.SelectQuery, nested bool) (string, error) {
	// Column references into nested scopes need the scope aliases assigned
	// before the select list renders.
	r.assignAlias(q.From().Sub, q.From().Alias)
	for _, j := range q.Joins() {
		r.assignAlias(j.Sub, j.Alias)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range q.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		text, err := r.expr(col.Expr, false)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		alias := col.Alias
		if alias == "" && nested {
			alias = subColumnName(i)
		}
		if alias != "" {
			b.WriteString(" AS " + alias)
		}
	}
	from, err := r.source(q.From().Table, q.From().Sub, q.From().Alias)
	if err != nil {
		return "", err
	}
	b.WriteString(" FROM " + from)
	for _, j := range q.Joins() {
		src, err := r.source(j.Table, j.Sub, j.Alias)
		if err != nil {
			return "", err
		}
		b.WriteString(" JOIN " + src)
		if j.On != nil {
			on, err := r.expr(j.On, false)
			if err != nil {
				return "", err
			}
			b.WriteString(" ON " + on)
		}
	}
	if w := q.Where(); w != nil {
		cond, err := r.expr(w, false)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE " + cond)
	}
	return b.String(), nil
}

// assignAlias fixes the alias a nested query is addressable under,
// generating one when the source is anonymous.
func (r *renderer) assignAlias(sub *sqlexpr.SelectQuery, alias string) {
	if sub == nil {
		return
	}
	if alias == "" {
		if _, ok := r.aliases[sub]; ok {
			return
		}
		alias = fmt.Sprintf("_q%d", r.nextSub)
		r.nextSub++
	}
	r.aliases[sub] = alias
}

// source renders a FROM or JOIN source.
func (r *renderer) source(table string, sub *sqlexpr.SelectQuery, alias string) (string, error) {
	if sub == nil {
		if alias != "" {
			return table + " AS " + alias, nil
		}
		return table, nil
	}
	text, err := r.query(sub, true)
	if err != nil {
		return "", err
	}
	return "(" + text + ") AS " + r.aliases[sub], nil
}

// expr renders a single expression. When inline is set, captured literals
// render as SQL literals instead of statement parameters.
func (r *renderer) expr(e sqlexpr.Expression, inline bool) (string, error) {
	switch e := e.(type) {
	case sqlexpr.Column:
		if e.Table != "" {
			return e.Table + "." + e.Name, nil
		}
		return e.Name, nil
	case sqlexpr.QueryColumn:
		alias, ok := r.aliases[e.Query]
		if !ok {
			return "", fmt.Errorf("internal error: nested query column %d references a scope outside the statement", e.Index)
		}
		name := e.Query.Columns()[e.Index].Alias
		if name == "" {
			name = subColumnName(e.Index)
		}
		return alias + "." + name, nil
	case sqlexpr.Parameter:
		r.params = append(r.params, Param{Name: e.Name})
		return "?", nil
	case sqlexpr.Value:
		if inline {
			return literal(e.V)
		}
		r.params = append(r.params, Param{Value: e.V, HasValue: true})
		return "?", nil
	case sqlexpr.DataTypeExpr:
		return e.DataType.SQLName(), nil
	case sqlexpr.List:
		return r.list(e, ", ", inline)
	case *sqlexpr.Template:
		return r.template(e, inline)
	}
	if e == sqlexpr.Unknown {
		return "", fmt.Errorf("cannot render an unresolved expression")
	}
	return "", fmt.Errorf("internal error: cannot render %T", e)
}

// list renders the items joined by the delimiter.
func (r *renderer) list(l sqlexpr.List, delim string, inline bool) (string, error) {
	parts := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		text, err := r.expr(item, inline)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, delim), nil
}

// template substitutes the bound arguments into the node's template text.
// Arguments of lower precedence than the node are parenthesized; list
// arguments are joined by the placeholder's delimiter.
func (r *renderer) template(t *sqlexpr.Template, inline bool) (string, error) {
	childInline := inline || t.Flags().Has(sqlexpr.InlineParameters)
	var resolveErr error
	resolve := func(name, delimiter string) (string, bool) {
		ph := template.Placeholder{Name: name}
		i, ok := ph.Index()
		if !ok {
			return "", false
		}
		arg := t.Arg(i)
		if arg == sqlexpr.Unknown {
			return "", false
		}
		var text string
		var err error
		if l, isList := arg.(sqlexpr.List); isList {
			delim := delimiter
			if delim == "" {
				delim = ", "
			}
			text, err = r.list(l, delim, childInline)
		} else {
			text, err = r.expr(arg, childInline)
			if err == nil && needsParens(arg, t) {
				text = "(" + text + ")"
			}
		}
		if err != nil {
			resolveErr = err
			return "", false
		}
		return text, true
	}
	out, err := template.Render(t.Expr(), resolve)
	if resolveErr != nil {
		return "", resolveErr
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// needsParens reports whether arg must be parenthesized inside parent.
// Unknown precedence never forces parentheses.
func needsParens(arg sqlexpr.Expression, parent *sqlexpr.Template) bool {
	ap, pp := arg.Precedence(), parent.Precedence()
	return ap != sqlexpr.PrecUnknown && pp != sqlexpr.PrecUnknown && ap < pp
}

// literal renders a captured value as an inline SQL literal.
func literal(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%v", v), nil
	}
	return "", fmt.Errorf("cannot inline a %T literal", v)
}

func subColumnName(i int) string {
	return fmt.Sprintf("_c%d", i)
}
