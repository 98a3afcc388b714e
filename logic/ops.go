// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package logic

import "reflect"

// Fn returns a call of the function registered under module and name. The
// arity recorded in the identity is the number of arguments given.
func Fn(module, name string, args ...Expr) Call {
	return Call{
		Func: FuncID{Module: module, Name: name, Arity: len(args)},
		Args: args,
	}
}

// FnT is Fn for generic functions. typeArgs are the runtime instantiations
// of the function's type parameters in declaration order.
func FnT(module, name string, typeArgs []reflect.Type, args ...Expr) Call {
	return Call{
		Func: FuncID{
			Module:    module,
			Name:      name,
			Arity:     len(args),
			TypeArity: len(typeArgs),
		},
		Args:     args,
		TypeArgs: typeArgs,
	}
}

// Method returns a call of the method registered under module and name with
// recv as its receiver. The receiver is not counted in the arity.
func Method(recv Expr, module, name string, args ...Expr) Call {
	c := Fn(module, name, args...)
	c.Recv = recv
	return c
}

func binop(name string, a, b Expr) Call {
	return Fn("ops", name, a, b)
}

// Comparison and logical operators. Each is an ordinary call bound to a
// rewrite rule in the "ops" module of the default rule library.

func Eq(a, b Expr) Expr  { return binop("eq", a, b) }
func Ne(a, b Expr) Expr  { return binop("ne", a, b) }
func Lt(a, b Expr) Expr  { return binop("lt", a, b) }
func Le(a, b Expr) Expr  { return binop("le", a, b) }
func Gt(a, b Expr) Expr  { return binop("gt", a, b) }
func Ge(a, b Expr) Expr  { return binop("ge", a, b) }
func And(a, b Expr) Expr { return binop("and", a, b) }
func Or(a, b Expr) Expr  { return binop("or", a, b) }
func Not(a Expr) Expr    { return Fn("ops", "not", a) }

func Add(a, b Expr) Expr { return binop("add", a, b) }
func Sub(a, b Expr) Expr { return binop("sub", a, b) }
func Mul(a, b Expr) Expr { return binop("mul", a, b) }
func Div(a, b Expr) Expr { return binop("div", a, b) }

// Like matches a against the pattern b.
func Like(a, b Expr) Expr { return binop("like", a, b) }
