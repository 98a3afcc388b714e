/*
Package sqlrw compiles typed logical query expressions into SQL through a
declarative rewrite rule library.

Queries are composed from logical expression nodes rather than written as
SQL text. Every function or operator appearing in a query is bound to a
rewrite rule: an expression template registered for the function's stable
identity. Compilation binds the call's arguments to the template, derives
the result's nullability from the rule, deduplicates structurally equal
projections and renders the whole tree to parameterized SQL.

# Basics

A query is built with the logic package and compiled into a reusable plan:

	q := logic.From("person").
		Filter(logic.Eq(logic.Col("", "team"), logic.Param("team"))).
		Project(logic.P("name", logic.Col("", "name")))

	plan, err := sqlrw.Compile(q)

The plan carries the generated SQL and can be run on any database:

	db := sqlrw.NewDB(sqldb)
	rows, err := db.Query(ctx, plan, map[string]any{"team": "engineering"})

# Rewrite rules

The built-in rule library lives in rules.yaml and maps the operators and
functions of the logic package to SQL. Additional libraries can be parsed
with ParseRules and layered over the defaults with ParseRulesInto; a rule
may be registered per dialect, with the dialect-independent variant used
as fallback.

A rule's template references bound argument positions as {0}, {1} and so
on. A trailing ? marks an optional reference, a quoted suffix sets the
delimiter used when the argument is a list, and {_} emits a deferred space
before the next non-empty segment. Rules also declare the result type,
operator precedence for parenthesization, and a nullability rule combining
the arguments' nullability into the result's.

# Nested queries

FromQuery and JoinQuery nest one query inside another. Columns of a nested
query are addressed by stable index from the enclosing scope and aliased
automatically in the generated SQL.
*/
package sqlrw
