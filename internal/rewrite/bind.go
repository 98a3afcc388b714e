// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package rewrite

import (
	"fmt"

	"github.com/sqlrw/sqlrw/internal/sqlexpr"
	"github.com/sqlrw/sqlrw/internal/template"
	"github.com/sqlrw/sqlrw/internal/typemap"
	"github.com/sqlrw/sqlrw/logic"
)

// ColumnHint describes the target column an expression is being converted
// for, when one is known.
type ColumnHint struct {
	Name string
	Type typemap.DataType
}

// Converter turns a logical sub-expression into SQL. The binder calls it
// for every argument a template references; the enclosing compiler stage
// supplies it.
type Converter func(e logic.Expr, hint *ColumnHint) (sqlexpr.Expression, error)

// BindOptions control argument extraction.
type BindOptions struct {
	// WithReceiver prepends the call receiver as an implicit first
	// argument.
	WithReceiver bool
	// SkipGenerics disables generic-parameter inference.
	SkipGenerics bool
	// BindAll binds every captured expression positionally even when the
	// template does not reference it.
	BindAll bool
}

// Bound is the binder output: the ordered argument array, with every
// unresolved position holding the shared Unknown sentinel, and the
// effective template text after name inference.
type Bound struct {
	Args []sqlexpr.Expression
	Text string
	// Name is the function or member name, for error reporting.
	Name string
}

// BindArguments extracts the bound-argument array for a call-like node
// against a rewrite rule.
func BindArguments(tmpl *ExpressionTemplate, node logic.Expr, schema *typemap.Schema, convert Converter, opts BindOptions) (*Bound, error) {
	b := &binder{tmpl: tmpl, schema: schema, convert: convert}

	var name string
	switch n := node.(type) {
	case logic.Call:
		name = n.Func.String()
		b.captureCall(n, opts.WithReceiver)
		if !opts.SkipGenerics && !tmpl.Flags.Has(sqlexpr.IgnoreGenericParameters) {
			if err := b.inferGenerics(n); err != nil {
				return nil, err
			}
		}
		b.text = tmpl.Expr
		if b.text == "" {
			sqlName := tmpl.SQLName
			if sqlName == "" {
				sqlName = n.Func.Name
			}
			b.text = defaultCallText(sqlName, len(b.captured))
		}
	case logic.Member:
		name = n.Name
		if n.Recv != nil {
			b.capture(n.Recv)
		}
		b.text = tmpl.Expr
		if b.text == "" {
			if tmpl.SQLName != "" {
				b.text = tmpl.SQLName
			} else {
				b.text = n.Name
			}
		}
	default:
		return nil, fmt.Errorf("internal error: cannot bind arguments of %T", node)
	}

	if err := b.scanTemplate(); err != nil {
		return nil, err
	}
	if tmpl.Reorder == nil && opts.BindAll {
		if err := b.bindAll(); err != nil {
			return nil, err
		}
	}

	// Downstream consumers never see an unset slot.
	for i := range b.out {
		if b.out[i] == nil {
			b.out[i] = sqlexpr.Unknown
		}
	}
	return &Bound{Args: b.out, Text: b.text, Name: name}, nil
}

type binder struct {
	tmpl    *ExpressionTemplate
	schema  *typemap.Schema
	convert Converter
	text    string

	// captured are the candidate argument expressions in call order.
	captured []logic.Expr
	// paramToCapture maps a declared parameter to the first captured
	// position it covers, -1 when the call never fills it.
	paramToCapture []int
	// converted memoizes conversions so a capture referenced twice is
	// converted once.
	converted []sqlexpr.Expression

	// generics are the resolved generic-type slots, positional by
	// declaration order. genericOK marks the resolved ones.
	generics  []typemap.DataType
	genericOK []bool

	out []sqlexpr.Expression
}

func (b *binder) capture(e logic.Expr) {
	b.captured = append(b.captured, e)
	b.converted = append(b.converted, nil)
}

// captureCall collects the candidate arguments of a call: the optional
// receiver, then each declared argument, with an inline array literal in a
// variadic position expanded into individual slots. An array passed as an
// ordinary argument stays a single slot.
func (b *binder) captureCall(call logic.Call, withReceiver bool) {
	if withReceiver && call.Recv != nil {
		b.capture(call.Recv)
	}
	b.paramToCapture = make([]int, len(b.tmpl.Params))
	for i := range b.paramToCapture {
		b.paramToCapture[i] = -1
	}
	record := func(declIdx int) {
		if declIdx >= 0 && declIdx < len(b.paramToCapture) && b.paramToCapture[declIdx] == -1 {
			b.paramToCapture[declIdx] = len(b.captured)
		}
	}
	for i, a := range call.Args {
		declIdx := i
		if declIdx >= len(b.tmpl.Params) {
			declIdx = len(b.tmpl.Params) - 1
		}
		p, ok := b.tmpl.param(i)
		if arr, isArr := a.(logic.Array); ok && p.Variadic && isArr {
			for _, el := range arr.Elems {
				record(declIdx)
				b.capture(el)
			}
			continue
		}
		record(declIdx)
		b.capture(a)
	}
}

// inferGenerics resolves each declared type parameter to a logical data
// type: first from the schema mapping of the call's runtime type argument,
// then from the converted argument of a declared parameter sharing the type
// parameter. Resolved types become the generic-type slots addressable at
// indices at and above the captured count.
func (b *binder) inferGenerics(call logic.Call) error {
	b.generics = make([]typemap.DataType, len(b.tmpl.TypeParams))
	b.genericOK = make([]bool, len(b.tmpl.TypeParams))
	for k, name := range b.tmpl.TypeParams {
		if k < len(call.TypeArgs) && call.TypeArgs[k] != nil {
			if d, ok := b.schema.Lookup(call.TypeArgs[k]); ok {
				b.generics[k] = d
				b.genericOK[k] = true
				continue
			}
		}
		for j, p := range b.tmpl.Params {
			if p.TypeParam != name {
				continue
			}
			ci := -1
			if j < len(b.paramToCapture) {
				ci = b.paramToCapture[j]
			}
			if ci == -1 {
				continue
			}
			arg, err := b.convertCapture(ci)
			if err != nil {
				return err
			}
			if d := arg.Type(); d != typemap.Undefined {
				b.generics[k] = d
				b.genericOK[k] = true
				break
			}
		}
	}
	return nil
}

// scanTemplate is the second pass over the template grammar: it binds every
// argument position the template references. Only the side effects on the
// output array matter here; no text is produced.
func (b *binder) scanTemplate() error {
	return template.Scan(b.text, func(ph template.Placeholder) error {
		idx, ok := ph.Index()
		if !ok {
			return nil
		}
		if b.tmpl.Reorder != nil {
			if idx < 0 || idx >= len(b.tmpl.Reorder) {
				return &UnresolvedArgumentIndexError{Index: idx, Template: b.text}
			}
			return b.bindSlot(idx, b.tmpl.Reorder[idx])
		}
		return b.bindSlot(idx, idx)
	})
}

// bindSlot fills output position slot from the true argument position pos:
// a captured expression when pos is below the captured count, a resolved
// generic-type slot above it.
func (b *binder) bindSlot(slot, pos int) error {
	if slot >= len(b.out) {
		b.out = append(b.out, make([]sqlexpr.Expression, slot+1-len(b.out))...)
	}
	if b.out[slot] != nil {
		return nil
	}
	if pos >= 0 && pos < len(b.captured) {
		arg, err := b.convertCapture(pos)
		if err != nil {
			return err
		}
		b.out[slot] = arg
		return nil
	}
	if k := pos - len(b.captured); k >= 0 && k < len(b.generics) && b.genericOK[k] {
		b.out[slot] = sqlexpr.DataTypeExpr{DataType: b.generics[k]}
		return nil
	}
	return &UnresolvedArgumentIndexError{Index: pos, Template: b.text}
}

// bindAll binds the remaining captured expressions positionally and
// appends the resolved generic-type slots after them.
func (b *binder) bindAll() error {
	total := len(b.captured) + len(b.generics)
	if total > len(b.out) {
		b.out = append(b.out, make([]sqlexpr.Expression, total-len(b.out))...)
	}
	for i := range b.captured {
		if b.out[i] != nil {
			continue
		}
		arg, err := b.convertCapture(i)
		if err != nil {
			return err
		}
		b.out[i] = arg
	}
	for k := range b.generics {
		slot := len(b.captured) + k
		if b.out[slot] == nil && b.genericOK[k] {
			b.out[slot] = sqlexpr.DataTypeExpr{DataType: b.generics[k]}
		}
	}
	return nil
}

func (b *binder) convertCapture(i int) (sqlexpr.Expression, error) {
	if b.converted[i] != nil {
		return b.converted[i], nil
	}
	arg, err := b.convert(b.captured[i], nil)
	if err != nil {
		return nil, err
	}
	b.converted[i] = arg
	return arg, nil
}

// defaultCallText builds the fallback template for a function with no
// declared template text: the function name applied to every captured
// argument.
func defaultCallText(name string, args int) string {
	text := name + "("
	for i := 0; i < args; i++ {
		if i > 0 {
			text += ", "
		}
		text += fmt.Sprintf("{%d}", i)
	}
	return text + ")"
}
