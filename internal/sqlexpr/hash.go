// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlexpr

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Structural hashing and equality over expression nodes, used by SelectQuery
// to deduplicate projection entries. Two expressions are structurally equal
// when they render to identical SQL and reference the same scopes.

const (
	tagColumn byte = iota + 1
	tagQueryColumn
	tagParameter
	tagValue
	tagDataType
	tagList
	tagUnknown
	tagTemplate
)

func hashExpression(e Expression) uint64 {
	d := xxhash.New()
	writeExpression(d, e)
	return d.Sum64()
}

func writeExpression(d *xxhash.Digest, e Expression) {
	var buf [8]byte
	writeByte := func(b byte) {
		buf[0] = b
		d.Write(buf[:1])
	}
	writeInt := func(n uint64) {
		binary.LittleEndian.PutUint64(buf[:], n)
		d.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(uint64(len(s)))
		d.WriteString(s)
	}

	switch e := e.(type) {
	case Column:
		writeByte(tagColumn)
		writeString(e.Table)
		writeString(e.Name)
	case QueryColumn:
		writeByte(tagQueryColumn)
		// Identity of the referenced scope, not its content: two distinct
		// sub-queries are never the same source.
		writeString(fmt.Sprintf("%p", e.Query))
		writeInt(uint64(e.Index))
	case Parameter:
		writeByte(tagParameter)
		writeString(e.Name)
	case Value:
		writeByte(tagValue)
		writeValue(d, writeInt, writeString, e.V)
	case DataTypeExpr:
		writeByte(tagDataType)
		writeInt(uint64(e.DataType))
	case List:
		writeByte(tagList)
		writeInt(uint64(len(e.Items)))
		for _, item := range e.Items {
			writeExpression(d, item)
		}
	case unknown:
		writeByte(tagUnknown)
	case *Template:
		writeByte(tagTemplate)
		writeString(e.expr)
		writeInt(uint64(e.flags))
		writeInt(uint64(len(e.args)))
		for _, a := range e.args {
			writeExpression(d, a)
		}
	}
}

func writeValue(d *xxhash.Digest, writeInt func(uint64), writeString func(string), v any) {
	switch v := v.(type) {
	case nil:
		writeString("<nil>")
	case string:
		writeString(v)
	case bool:
		if v {
			writeInt(1)
		} else {
			writeInt(0)
		}
	case int:
		writeInt(uint64(v))
	case int64:
		writeInt(uint64(v))
	case float64:
		writeInt(math.Float64bits(v))
	default:
		writeString(fmt.Sprintf("%T:%v", v, v))
	}
}

func equalExpressions(a, b Expression) bool {
	switch a := a.(type) {
	case Column:
		b, ok := b.(Column)
		return ok && a.Table == b.Table && a.Name == b.Name
	case QueryColumn:
		b, ok := b.(QueryColumn)
		return ok && a.Query == b.Query && a.Index == b.Index
	case Parameter:
		b, ok := b.(Parameter)
		return ok && a.Name == b.Name
	case Value:
		b, ok := b.(Value)
		return ok && reflect.DeepEqual(a.V, b.V)
	case DataTypeExpr:
		b, ok := b.(DataTypeExpr)
		return ok && a.DataType == b.DataType
	case List:
		b, ok := b.(List)
		if !ok || len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !equalExpressions(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case unknown:
		_, ok := b.(unknown)
		return ok
	case *Template:
		bt, ok := b.(*Template)
		if !ok || a.expr != bt.expr || a.flags != bt.flags || len(a.args) != len(bt.args) {
			return false
		}
		for i := range a.args {
			if !equalExpressions(a.args[i], bt.args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
