// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrw

import (
	. "gopkg.in/check.v1"

	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

type rulesSuite struct{}

var _ = Suite(&rulesSuite{})

func (s *rulesSuite) TestDefaultRules(c *C) {
	r := DefaultRules()
	c.Assert(r, NotNil)
	// The library is parsed once and shared.
	c.Check(DefaultRules(), Equals, r)

	tmpl, ok := r.reg.Lookup(logic.FuncID{Module: "ops", Name: "eq", Arity: 2}, "")
	c.Assert(ok, Equals, true)
	c.Check(tmpl.Expr, Equals, "{0} = {1}")
	c.Check(tmpl.Precedence, Equals, sqlexpr.PrecComparison)

	// Variadic built-ins register under the any-arity identity.
	tmpl, ok = r.reg.Lookup(logic.FuncID{Module: "sql", Name: "coalesce", Arity: 4}, "")
	c.Assert(ok, Equals, true)
	c.Check(tmpl.SQLName, Equals, "COALESCE")

	_, ok = r.reg.Lookup(logic.FuncID{Module: "sql", Name: "cast", Arity: 1, TypeArity: 1}, "")
	c.Check(ok, Equals, true)
}

func (s *rulesSuite) TestParseRules(c *C) {
	r, err := ParseRules([]byte(`
rules:
  - module: app
    name: initials
    arity: 1
    expr: "UPPER(SUBSTR({0}, 1, 1))"
    type: text
    precedence: primary
    nullability: sameAsFirstParameter
    flags: [pure]
`))
	c.Assert(err, IsNil)
	c.Check(r.Len(), Equals, 1)

	tmpl, ok := r.reg.Lookup(logic.FuncID{Module: "app", Name: "initials", Arity: 1}, "")
	c.Assert(ok, Equals, true)
	c.Check(tmpl.Expr, Equals, "UPPER(SUBSTR({0}, 1, 1))")
	c.Check(tmpl.Type, Equals, typemap.Text)
	c.Check(tmpl.Precedence, Equals, sqlexpr.PrecPrimary)
	c.Check(tmpl.Nullability, Equals, sqlexpr.NullabilitySameAsFirst)
	c.Check(tmpl.Flags.Has(sqlexpr.IsPure), Equals, true)
}

func (s *rulesSuite) TestParseVariadicParams(c *C) {
	r, err := ParseRules([]byte(`
rules:
  - module: app
    name: greatest
    arity: any
    sql_name: MAX
    params:
      - name: values
        variadic: true
`))
	c.Assert(err, IsNil)

	tmpl, ok := r.reg.Lookup(logic.FuncID{Module: "app", Name: "greatest", Arity: 3}, "")
	c.Assert(ok, Equals, true)
	c.Assert(tmpl.Params, HasLen, 1)
	c.Check(tmpl.Params[0].Variadic, Equals, true)
}

func (s *rulesSuite) TestParseDialectVariants(c *C) {
	r, err := ParseRules([]byte(`
rules:
  - module: sql
    name: concat
    arity: 2
    expr: "CONCAT({0}, {1})"
  - module: sql
    name: concat
    arity: 2
    dialect: sqlite
    expr: "{0} || {1}"
    precedence: concat
`))
	c.Assert(err, IsNil)

	id := logic.FuncID{Module: "sql", Name: "concat", Arity: 2}
	tmpl, _ := r.reg.Lookup(id, "sqlite")
	c.Check(tmpl.Expr, Equals, "{0} || {1}")
	tmpl, _ = r.reg.Lookup(id, "postgres")
	c.Check(tmpl.Expr, Equals, "CONCAT({0}, {1})")
}

func (s *rulesSuite) TestParseRulesInto(c *C) {
	base, err := ParseRules([]byte(`
rules:
  - module: app
    name: f
    arity: 1
    expr: "BASE({0})"
  - module: app
    name: g
    arity: 1
    expr: "G({0})"
`))
	c.Assert(err, IsNil)

	merged, err := ParseRulesInto(base, []byte(`
rules:
  - module: app
    name: f
    arity: 1
    expr: "OVERLAY({0})"
`))
	c.Assert(err, IsNil)

	// The overlay shadows the base rule with the same identity; other base
	// rules stay visible. The base itself is untouched.
	tmpl, _ := merged.reg.Lookup(logic.FuncID{Module: "app", Name: "f", Arity: 1}, "")
	c.Check(tmpl.Expr, Equals, "OVERLAY({0})")
	tmpl, _ = merged.reg.Lookup(logic.FuncID{Module: "app", Name: "g", Arity: 1}, "")
	c.Check(tmpl.Expr, Equals, "G({0})")
	tmpl, _ = base.reg.Lookup(logic.FuncID{Module: "app", Name: "f", Arity: 1}, "")
	c.Check(tmpl.Expr, Equals, "BASE({0})")
}

func (s *rulesSuite) TestParseErrors(c *C) {
	for _, t := range []struct {
		doc string
		err string
	}{{
		doc: "rules: [",
		err: "cannot parse rule document: .*",
	}, {
		doc: "rules:\n  - {module: app, name: f, arity: -2}",
		err: `rule 0 \(app.f\): invalid arity -2`,
	}, {
		doc: "rules:\n  - {module: app, name: f, arity: some}",
		err: `rule 0 \(app.f\): invalid arity "some"`,
	}, {
		doc: "rules:\n  - {module: app, name: f, type: varchar}",
		err: `rule 0 \(app.f\): unknown data type "varchar"`,
	}, {
		doc: "rules:\n  - {module: app, name: f, precedence: tight}",
		err: `rule 0 \(app.f\): unknown precedence "tight"`,
	}, {
		doc: "rules:\n  - {module: app, name: f, nullability: sometimes}",
		err: `rule 0 \(app.f\): unknown nullability rule "sometimes"`,
	}, {
		doc: "rules:\n  - {module: app, name: f, flags: [fast]}",
		err: `rule 0 \(app.f\): unknown flag "fast"`,
	}, {
		doc: "rules:\n  - module: app\n    name: f\n    params: [{name: v, type: varchar}]",
		err: `rule 0 \(app.f\): unknown data type "varchar"`,
	}} {
		_, err := ParseRules([]byte(t.doc))
		c.Check(err, ErrorMatches, t.err, Commentf("doc: %s", t.doc))
	}
}

func (s *rulesSuite) TestForceNullableOverride(c *C) {
	r, err := ParseRules([]byte(`
rules:
  - module: sql
    name: count
    arity: 1
    sql_name: COUNT
    nullable: false
    flags: [aggregate]
`))
	c.Assert(err, IsNil)

	tmpl, _ := r.reg.Lookup(logic.FuncID{Module: "sql", Name: "count", Arity: 1}, "")
	c.Assert(tmpl.ForceNullable, NotNil)
	c.Check(*tmpl.ForceNullable, Equals, false)
	c.Check(tmpl.Flags.Has(sqlexpr.IsAggregate), Equals, true)
}
