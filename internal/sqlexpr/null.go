// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlexpr

// NullabilityRule determines the nullability of a synthesized expression
// from the nullability of its bound arguments. The set is closed; every
// rule is evaluated by EvalNullability.
type NullabilityRule int

const (
	// NullabilityUndefined leaves the nullability unresolved; callers treat
	// an unresolved result as nullable.
	NullabilityUndefined NullabilityRule = iota
	NullabilityNullable
	NullabilityNotNullable
	NullabilitySameAsFirst
	NullabilitySameAsSecond
	NullabilitySameAsThird
	NullabilitySameAsLast
	NullabilityIfAny
	NullabilityIfAll
)

var nullabilityNames = map[NullabilityRule]string{
	NullabilityUndefined:    "undefined",
	NullabilityNullable:     "nullable",
	NullabilityNotNullable:  "notNullable",
	NullabilitySameAsFirst:  "sameAsFirstParameter",
	NullabilitySameAsSecond: "sameAsSecondParameter",
	NullabilitySameAsThird:  "sameAsThirdParameter",
	NullabilitySameAsLast:   "sameAsLastParameter",
	NullabilityIfAny:        "ifAnyParameterNullable",
	NullabilityIfAll:        "ifAllParametersNullable",
}

func (r NullabilityRule) String() string {
	if s, ok := nullabilityNames[r]; ok {
		return s
	}
	return "unknown"
}

// ParseNullabilityRule parses the declarative form used in rule files.
func ParseNullabilityRule(s string) (NullabilityRule, bool) {
	for r, name := range nullabilityNames {
		if name == s {
			return r, true
		}
	}
	return NullabilityUndefined, false
}

// EvalNullability evaluates a rule over the nullability flags of the bound
// arguments. It is a pure function of its inputs.
//
// A SameAs rule referencing a position that does not exist yields nullable.
// That silently masks a rule declaration referencing a parameter the
// function does not have, but existing declarations rely on the lenient
// behaviour, so it is preserved.
func EvalNullability(rule NullabilityRule, args []bool) bool {
	nth := func(i int) bool {
		if i < 0 || i >= len(args) {
			return true
		}
		return args[i]
	}
	switch rule {
	case NullabilityNullable, NullabilityUndefined:
		return true
	case NullabilityNotNullable:
		return false
	case NullabilitySameAsFirst:
		return nth(0)
	case NullabilitySameAsSecond:
		return nth(1)
	case NullabilitySameAsThird:
		return nth(2)
	case NullabilitySameAsLast:
		return nth(len(args) - 1)
	case NullabilityIfAny:
		for _, a := range args {
			if a {
				return true
			}
		}
		return false
	case NullabilityIfAll:
		for _, a := range args {
			if !a {
				return false
			}
		}
		return true
	}
	return true
}
