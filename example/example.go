// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package example walks through composing logical queries and running the
// compiled plans on a database.
package example

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlrw/sqlrw"
	"github.com/sqlrw/sqlrw/logic"

	_ "github.com/mattn/go-sqlite3"
)

func example() {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}
	db := sqlrw.NewDB(sqldb)

	_, err = db.PlainDB().Exec(`
	CREATE TABLE person (
		name text NOT NULL,
		id integer,
		team text
	);
	CREATE TABLE location (
		room_id integer,
		name text,
		team text
	)`)
	if err != nil {
		panic(err)
	}

	people := [][]any{
		{"Alastair", 1, "engineering"},
		{"Ed", 2, "engineering"},
		{"Marco", 3, "engineering"},
		{"Pedro", 4, "management"},
		{"Sam", 8, "hr"},
		{"Mark", 10, "leadership"},
	}
	for _, p := range people {
		if _, err := db.PlainDB().Exec(`INSERT INTO person VALUES (?, ?, ?)`, p...); err != nil {
			panic(err)
		}
	}
	locations := [][]any{
		{1, "Basement", "engineering"},
		{19, "Floor 3", "management"},
		{9, "Floors 4 to 89", "hr"},
		{32, "Penthouse", "leadership"},
	}
	for _, l := range locations {
		if _, err := db.PlainDB().Exec(`INSERT INTO location VALUES (?, ?, ?)`, l...); err != nil {
			panic(err)
		}
	}

	ctx := context.Background()

	// Find everyone on the engineering team.
	engineers := sqlrw.MustCompile(logic.From("person").
		Filter(logic.Eq(logic.Col("", "team"), logic.Val("engineering"))).
		Project(logic.P("", logic.Col("", "name"))))

	rows, err := db.Query(ctx, engineers, nil)
	if err != nil {
		panic(err)
	}
	all, err := rows.All()
	if err != nil {
		panic(err)
	}
	for _, row := range all {
		fmt.Printf("%s is on the engineering team.\n", row[0])
	}

	// Print out who is in which room. The room is a named parameter bound
	// when the plan runs, so the same plan serves every room.
	inRoom := sqlrw.MustCompile(logic.From("location").As("l").
		Join("person", "p", logic.Eq(logic.Col("p", "team"), logic.Col("l", "team"))).
		Filter(logic.Eq(logic.Col("l", "room_id"), logic.Param("room"))).
		Project(
			logic.P("person", logic.Col("p", "name")),
			logic.P("room", logic.Col("l", "name")),
		))

	for _, room := range []int{1, 32} {
		rows, err := db.Query(ctx, inRoom, map[string]any{"room": room})
		if err != nil {
			panic(err)
		}
		all, err := rows.All()
		if err != nil {
			panic(err)
		}
		for _, row := range all {
			fmt.Printf("%s is in %s\n", row[0], row[1])
		}
	}
}
