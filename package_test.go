// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrw_test

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/sqlrw/sqlrw"
	"github.com/sqlrw/sqlrw/logic"
)

// Hook up gocheck into the "go test" runner.
func TestCompile(t *testing.T) { TestingT(t) }

type PackageSuite struct{}

var _ = Suite(&PackageSuite{})

func setupDB() (*sql.DB, error) {
	return sql.Open("sqlite3", ":memory:")
}

func createExampleDB(c *C) *sqlrw.DB {
	sqldb, err := setupDB()
	c.Assert(err, IsNil)
	_, err = sqldb.Exec(`
CREATE TABLE person (
	id integer PRIMARY KEY,
	name text NOT NULL,
	nickname text,
	team_id integer,
	age integer
);
CREATE TABLE team (
	id integer PRIMARY KEY,
	name text NOT NULL
);`)
	c.Assert(err, IsNil)
	inserts := []string{
		`INSERT INTO team VALUES (1, 'engineering'), (2, 'design')`,
		`INSERT INTO person VALUES (10, 'Fred', 'freddie', 1, 30)`,
		`INSERT INTO person VALUES (11, 'Mark', NULL, 1, 42)`,
		`INSERT INTO person VALUES (12, 'Mary', 'maz', 2, 25)`,
	}
	for _, ins := range inserts {
		_, err := sqldb.Exec(ins)
		c.Assert(err, IsNil)
	}
	return sqlrw.NewDB(sqldb)
}

func (s *PackageSuite) TestCompileSQL(c *C) {
	q := logic.From("person").
		Filter(logic.Eq(logic.Col("", "team_id"), logic.Param("team"))).
		Project(logic.P("name", logic.Col("", "name")))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals, "SELECT name AS name FROM person WHERE team_id = ?")
	c.Check(plan.ParamNames(), DeepEquals, []string{"team"})
}

func (s *PackageSuite) TestQueryResults(c *C) {
	db := createExampleDB(c)

	q := logic.From("person").
		Filter(logic.Eq(logic.Col("", "team_id"), logic.Param("team"))).
		Project(
			logic.P("", logic.Col("", "name")),
			logic.P("", logic.Col("", "age")),
		)
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)

	rows, err := db.Query(context.Background(), plan, map[string]any{"team": 1})
	c.Assert(err, IsNil)
	all, err := rows.All()
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, [][]any{
		{"Fred", int64(30)},
		{"Mark", int64(42)},
	})
}

func (s *PackageSuite) TestMissingParameter(c *C) {
	db := createExampleDB(c)

	q := logic.From("person").
		Filter(logic.Eq(logic.Col("", "name"), logic.Param("name"))).
		Project(logic.P("", logic.Col("", "id")))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)

	_, err = db.Query(context.Background(), plan, nil)
	c.Assert(err, ErrorMatches, `missing value for query parameter "name"`)
}

func (s *PackageSuite) TestCoalesce(c *C) {
	db := createExampleDB(c)

	q := logic.From("person").
		Project(logic.P("moniker", logic.Fn("sql", "coalesce",
			logic.Col("", "nickname"), logic.Val("none"))))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals, "SELECT COALESCE(nickname, ?) AS moniker FROM person")

	rows, err := db.Query(context.Background(), plan, nil)
	c.Assert(err, IsNil)
	all, err := rows.All()
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, [][]any{
		{"freddie"}, {"none"}, {"maz"},
	})
}

func (s *PackageSuite) TestOperatorPrecedence(c *C) {
	// The OR argument of AND needs parentheses; the comparisons do not.
	pred := logic.And(
		logic.Or(
			logic.Eq(logic.Col("", "team_id"), logic.Val(1)),
			logic.Eq(logic.Col("", "team_id"), logic.Val(2)),
		),
		logic.Gt(logic.Col("", "age"), logic.Val(21)),
	)
	q := logic.From("person").Filter(pred).
		Project(logic.P("", logic.Col("", "name")))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals,
		"SELECT name FROM person WHERE (team_id = ? OR team_id = ?) AND age > ?")
}

func (s *PackageSuite) TestJoin(c *C) {
	db := createExampleDB(c)

	q := logic.From("person").As("p").
		Join("team", "t", logic.Eq(logic.Col("p", "team_id"), logic.Col("t", "id"))).
		Filter(logic.Eq(logic.Col("p", "name"), logic.Val("Mary"))).
		Project(
			logic.P("", logic.Col("p", "name")),
			logic.P("", logic.Col("t", "name")),
		)
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals,
		"SELECT p.name, t.name FROM person AS p JOIN team AS t ON p.team_id = t.id WHERE p.name = ?")

	rows, err := db.Query(context.Background(), plan, nil)
	c.Assert(err, IsNil)
	all, err := rows.All()
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, [][]any{{"Mary", "design"}})
}

func (s *PackageSuite) TestNestedQuery(c *C) {
	db := createExampleDB(c)

	inner := logic.From("person").
		Filter(logic.Ge(logic.Col("", "age"), logic.Val(30))).
		Project(logic.P("n", logic.Col("", "name")))
	q := logic.FromQuery(inner).As("adults").
		Project(logic.P("", logic.Col("adults", "n")))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals,
		"SELECT adults.n FROM (SELECT name AS n FROM person WHERE age >= ?) AS adults")

	rows, err := db.Query(context.Background(), plan, nil)
	c.Assert(err, IsNil)
	all, err := rows.All()
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, [][]any{{"Fred"}, {"Mark"}})
}

func (s *PackageSuite) TestCast(c *C) {
	q := logic.From("person").
		Project(logic.P("age_text", logic.FnT("sql", "cast",
			[]reflect.Type{reflect.TypeOf("")}, logic.Col("", "age"))))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals, "SELECT CAST(age AS TEXT) AS age_text FROM person")
}

func (s *PackageSuite) TestCastWithSchemaInference(c *C) {
	// The target type resolves through the schema registration for the
	// runtime type argument.
	type price float64
	schema := sqlrw.NewSchema()
	sqlrw.RegisterType[price](schema, sqlrw.Decimal)

	q := logic.From("person").
		Project(logic.P("", logic.FnT("sql", "cast",
			[]reflect.Type{reflect.TypeOf(price(0))}, logic.Col("", "age"))))
	plan, err := sqlrw.Compile(q, sqlrw.WithSchema(schema))
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals, "SELECT CAST(age AS NUMERIC) FROM person")
}

func (s *PackageSuite) TestInList(c *C) {
	db := createExampleDB(c)

	q := logic.From("person").
		Filter(logic.Fn("sql", "in", logic.Col("", "age"),
			logic.Arr(logic.Val(25), logic.Val(42)))).
		Project(logic.P("", logic.Col("", "name")))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals, "SELECT name FROM person WHERE age IN (?, ?)")

	rows, err := db.Query(context.Background(), plan, nil)
	c.Assert(err, IsNil)
	all, err := rows.All()
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, [][]any{{"Mark"}, {"Mary"}})
}

func (s *PackageSuite) TestUnregisteredFunction(c *C) {
	q := logic.From("person").
		Filter(logic.Fn("sql", "no_such_function", logic.Col("", "age"))).
		Project(logic.P("", logic.Col("", "name")))
	_, err := sqlrw.Compile(q)
	c.Assert(err, ErrorMatches, `no rewrite rule registered for "sql.no_such_function"`)
}

func (s *PackageSuite) TestTransaction(c *C) {
	db := createExampleDB(c)

	q := logic.From("person").
		Project(logic.P("", logic.Fn("sql", "count", logic.Col("", "id"))))
	plan, err := sqlrw.Compile(q)
	c.Assert(err, IsNil)

	tx, err := db.Begin(context.Background(), nil)
	c.Assert(err, IsNil)
	rows, err := tx.Query(context.Background(), plan, nil)
	c.Assert(err, IsNil)
	all, err := rows.All()
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, [][]any{{int64(3)}})
	c.Assert(tx.Commit(), IsNil)
}

func (s *PackageSuite) TestCustomRules(c *C) {
	custom := []byte(`
rules:
  - module: app
    name: initials
    arity: 1
    expr: "UPPER(SUBSTR({0}, 1, 1))"
    type: text
    precedence: primary
    nullability: sameAsFirstParameter
    flags: [pure]
`)
	rules, err := sqlrw.ParseRulesInto(sqlrw.DefaultRules(), custom)
	c.Assert(err, IsNil)

	q := logic.From("person").
		Project(logic.P("", logic.Fn("app", "initials", logic.Col("", "name"))))
	plan, err := sqlrw.Compile(q, sqlrw.WithRules(rules))
	c.Assert(err, IsNil)
	c.Check(plan.SQL(), Equals, "SELECT UPPER(SUBSTR(name, 1, 1)) FROM person")
}
