// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrw

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/sqlrw/sqlrw/internal/buildctx"
	"github.com/sqlrw/sqlrw/internal/compile"
	"github.com/sqlrw/sqlrw/internal/render"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// DataType is a logical SQL data type carried on compiled expressions and
// used for type-parameter inference.
type DataType = typemap.DataType

const (
	Undefined = typemap.Undefined
	Boolean   = typemap.Boolean
	Int64     = typemap.Int64
	Float64   = typemap.Float64
	Decimal   = typemap.Decimal
	Text      = typemap.Text
	Blob      = typemap.Blob
	Date      = typemap.Date
	Timestamp = typemap.Timestamp
	UUID      = typemap.UUID
	JSON      = typemap.JSON
)

// Schema maps runtime Go types to logical data types. Registrations take
// precedence over the built-in defaults. A nil *Schema is valid.
type Schema = typemap.Schema

// NewSchema returns an empty schema.
func NewSchema() *Schema { return typemap.NewSchema() }

// RegisterType maps a runtime type to a logical data type in the schema.
func RegisterType[T any](s *Schema, d DataType) {
	s.RegisterType(reflect.TypeOf((*T)(nil)).Elem(), d)
}

// Option configures a Compile call.
type Option func(*options)

type options struct {
	rules   *Rules
	dialect string
	schema  *Schema
}

// WithRules selects the rule library. The default is DefaultRules.
func WithRules(r *Rules) Option {
	return func(o *options) { o.rules = r }
}

// WithDialect selects among per-dialect rule variants.
func WithDialect(dialect string) Option {
	return func(o *options) { o.dialect = dialect }
}

// WithSchema sets the schema used for type-parameter inference.
func WithSchema(s *Schema) Option {
	return func(o *options) { o.schema = s }
}

// planIDCount generates unique plan identities for the statement cache.
var planIDCount int64

// Plan is a compiled query: generated SQL text, its positional parameters
// and the row materialization. A Plan is immutable and can be run any
// number of times on any [DB].
type Plan struct {
	// cacheID is used to look up the driver prepared statements associated
	// with this plan.
	cacheID int64
	sql     string
	params  []render.Param
	exec    *buildctx.Plan
}

// Compile turns a composed query into an executable plan.
func Compile(q *logic.Query, opts ...Option) (*Plan, error) {
	o := options{rules: DefaultRules()}
	for _, opt := range opts {
		opt(&o)
	}
	c := compile.New(o.rules.reg, o.dialect, o.schema)
	res, err := c.Compile(q)
	if err != nil {
		return nil, err
	}
	sql, params, err := render.Render(res.Query)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		cacheID: atomic.AddInt64(&planIDCount, 1),
		sql:     sql,
		params:  params,
		exec:    res.Plan,
	}
	planCache.register(p)
	return p, nil
}

// MustCompile is the same as [Compile] except that it panics on error.
func MustCompile(q *logic.Query, opts ...Option) *Plan {
	p, err := Compile(q, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// SQL returns the generated statement text with positional `?` markers.
func (p *Plan) SQL() string { return p.sql }

// ParamNames returns the names of the external parameters the plan needs,
// in marker order. Captured literals are not listed.
func (p *Plan) ParamNames() []string {
	var names []string
	for _, prm := range p.params {
		if !prm.HasValue {
			names = append(names, prm.Name)
		}
	}
	return names
}

// bindArgs resolves the positional parameter values for one run. Every
// named parameter must be present in args.
func (p *Plan) bindArgs(args map[string]any) ([]any, error) {
	out := make([]any, 0, len(p.params))
	for _, prm := range p.params {
		if prm.HasValue {
			out = append(out, prm.Value)
			continue
		}
		v, ok := args[prm.Name]
		if !ok {
			return nil, fmt.Errorf(`missing value for query parameter "%s"`, prm.Name)
		}
		out = append(out, v)
	}
	return out, nil
}

// materialize shapes one raw result row into the plan's output items.
func (p *Plan) materialize(raw []any) ([]any, error) {
	out := make([]any, len(p.exec.Extractors))
	for i, x := range p.exec.Extractors {
		v, err := x.FromRow(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
