// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrw

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sqlrw/sqlrw/internal/rewrite"
	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules is a registration table of rewrite rules. A Rules value is built
// once, is immutable afterwards and may be shared between compilers.
type Rules struct {
	reg *rewrite.Registry
}

var defaultRulesOnce sync.Once
var defaultRules *Rules

// DefaultRules returns the built-in rule library. The library is parsed on
// first use and shared by every caller.
func DefaultRules() *Rules {
	defaultRulesOnce.Do(func() {
		r, err := ParseRules(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("sqlrw: invalid built-in rule library: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// ParseRules parses a YAML rule document into a registration table.
func ParseRules(data []byte) (*Rules, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse rule document: %w", err)
	}
	reg := rewrite.NewRegistry()
	for i, rd := range doc.Rules {
		id, tmpl, err := rd.build()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, id.String(), err)
		}
		reg.Add(id, tmpl)
	}
	return &Rules{reg: reg}, nil
}

// ParseRulesInto parses a YAML rule document and layers it over base. Rules
// in data take precedence over base rules with the same identity and
// dialect.
func ParseRulesInto(base *Rules, data []byte) (*Rules, error) {
	merged, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	// Re-add the overlay on top of a fresh copy of the base registrations.
	reg := rewrite.NewRegistry()
	base.reg.Each(func(id logic.FuncID, t *rewrite.ExpressionTemplate) {
		reg.Add(id, t)
	})
	merged.reg.Each(func(id logic.FuncID, t *rewrite.ExpressionTemplate) {
		reg.Add(id, t)
	})
	return &Rules{reg: reg}, nil
}

// Len returns the number of registered function identities.
func (r *Rules) Len() int { return r.reg.Len() }

// ruleFile is the YAML document shape of a rule library.
type ruleFile struct {
	Rules []ruleDecl `yaml:"rules"`
}

// ruleDecl is one declared rewrite rule.
type ruleDecl struct {
	Module    string    `yaml:"module"`
	Name      string    `yaml:"name"`
	Arity     yaml.Node `yaml:"arity"`
	TypeArity int       `yaml:"type_arity"`
	Dialect   string    `yaml:"dialect"`

	Expr        string      `yaml:"expr"`
	SQLName     string      `yaml:"sql_name"`
	Type        string      `yaml:"type"`
	Precedence  string      `yaml:"precedence"`
	Nullability string      `yaml:"nullability"`
	Nullable    *bool       `yaml:"nullable"`
	Flags       []string    `yaml:"flags"`
	Reorder     []int       `yaml:"reorder"`
	TypeParams  []string    `yaml:"type_params"`
	Params      []paramDecl `yaml:"params"`

	WithReceiver bool `yaml:"with_receiver"`
	BindAll      bool `yaml:"bind_all"`
}

type paramDecl struct {
	Name      string `yaml:"name"`
	TypeParam string `yaml:"type_param"`
	Type      string `yaml:"type"`
	Variadic  bool   `yaml:"variadic"`
}

func (rd *ruleDecl) build() (logic.FuncID, *rewrite.ExpressionTemplate, error) {
	id := logic.FuncID{Module: rd.Module, Name: rd.Name, TypeArity: rd.TypeArity}
	arity, err := parseArity(rd.Arity)
	if err != nil {
		return id, nil, err
	}
	id.Arity = arity

	tmpl := &rewrite.ExpressionTemplate{
		Dialect:       rd.Dialect,
		Expr:          rd.Expr,
		SQLName:       rd.SQLName,
		ForceNullable: rd.Nullable,
		Reorder:       rd.Reorder,
		TypeParams:    rd.TypeParams,
		WithReceiver:  rd.WithReceiver,
		BindAll:       rd.BindAll,
	}
	if tmpl.Type, err = parseDataType(rd.Type); err != nil {
		return id, nil, err
	}
	if tmpl.Precedence, err = parsePrecedence(rd.Precedence); err != nil {
		return id, nil, err
	}
	if rd.Nullability != "" {
		rule, ok := sqlexpr.ParseNullabilityRule(rd.Nullability)
		if !ok {
			return id, nil, fmt.Errorf("unknown nullability rule %q", rd.Nullability)
		}
		tmpl.Nullability = rule
	}
	if tmpl.Flags, err = parseFlags(rd.Flags); err != nil {
		return id, nil, err
	}
	for _, pd := range rd.Params {
		p := rewrite.Param{Name: pd.Name, TypeParam: pd.TypeParam, Variadic: pd.Variadic}
		if p.Type, err = parseDataType(pd.Type); err != nil {
			return id, nil, err
		}
		tmpl.Params = append(tmpl.Params, p)
	}
	return id, tmpl, nil
}

// parseArity reads an arity declaration: a non-negative count or the word
// "any" for variadic registration.
func parseArity(n yaml.Node) (int, error) {
	if n.IsZero() {
		return 0, nil
	}
	var s string
	if err := n.Decode(&s); err == nil && s == "any" {
		return rewrite.AnyArity, nil
	}
	var i int
	if err := n.Decode(&i); err != nil {
		return 0, fmt.Errorf("invalid arity %q", n.Value)
	}
	if i < 0 {
		return 0, fmt.Errorf("invalid arity %d", i)
	}
	return i, nil
}

var dataTypeNames = map[string]typemap.DataType{
	"":          typemap.Undefined,
	"boolean":   typemap.Boolean,
	"int64":     typemap.Int64,
	"float64":   typemap.Float64,
	"decimal":   typemap.Decimal,
	"text":      typemap.Text,
	"blob":      typemap.Blob,
	"date":      typemap.Date,
	"timestamp": typemap.Timestamp,
	"uuid":      typemap.UUID,
	"json":      typemap.JSON,
}

func parseDataType(s string) (typemap.DataType, error) {
	if d, ok := dataTypeNames[s]; ok {
		return d, nil
	}
	return typemap.Undefined, fmt.Errorf("unknown data type %q", s)
}

var precedenceNames = map[string]int{
	"":               sqlexpr.PrecUnknown,
	"or":             sqlexpr.PrecOr,
	"and":            sqlexpr.PrecAnd,
	"not":            sqlexpr.PrecNot,
	"comparison":     sqlexpr.PrecComparison,
	"additive":       sqlexpr.PrecAdditive,
	"multiplicative": sqlexpr.PrecMultiplicative,
	"concat":         sqlexpr.PrecConcat,
	"primary":        sqlexpr.PrecPrimary,
}

func parsePrecedence(s string) (int, error) {
	if p, ok := precedenceNames[s]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown precedence %q", s)
}

var flagNames = map[string]sqlexpr.Flags{
	"aggregate":         sqlexpr.IsAggregate,
	"pure":              sqlexpr.IsPure,
	"predicate":         sqlexpr.IsPredicate,
	"window":            sqlexpr.IsWindowFunction,
	"server_side_only":  sqlexpr.ServerSideOnly,
	"prefer_server_side": sqlexpr.PreferServerSide,
	"inline_parameters": sqlexpr.InlineParameters,
	"ignore_generics":   sqlexpr.IgnoreGenericParameters,
}

func parseFlags(names []string) (sqlexpr.Flags, error) {
	var fl sqlexpr.Flags
	for _, n := range names {
		f, ok := flagNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown flag %q", n)
		}
		fl |= f
	}
	return fl, nil
}
