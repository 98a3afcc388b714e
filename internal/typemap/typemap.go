// Copyright 2025 The sqlrw authors
// Licensed under Apache 2.0, see LICENCE file for details.

// Package typemap resolves runtime Go types to the logical SQL data types
// used by the rewrite engine, in particular when inferring a data type for
// an unbound type parameter of a generic function.
package typemap

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DataType is a logical SQL data type. It deliberately stays coarse: the
// engine only needs enough to name a type in generated SQL (e.g. in CAST)
// and to carry result types on synthesized expressions.
type DataType int

const (
	Undefined DataType = iota
	Boolean
	Int64
	Float64
	Decimal
	Text
	Blob
	Date
	Timestamp
	UUID
	JSON
)

var dataTypeNames = map[DataType]string{
	Undefined: "undefined",
	Boolean:   "boolean",
	Int64:     "int64",
	Float64:   "float64",
	Decimal:   "decimal",
	Text:      "text",
	Blob:      "blob",
	Date:      "date",
	Timestamp: "timestamp",
	UUID:      "uuid",
	JSON:      "json",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return "unknown"
}

// SQLName returns the type name used in generated SQL, e.g. in CAST
// expressions.
func (d DataType) SQLName() string {
	switch d {
	case Boolean, Int64:
		return "INTEGER"
	case Float64:
		return "REAL"
	case Decimal:
		return "NUMERIC"
	case Text, Date, Timestamp, UUID, JSON:
		return "TEXT"
	case Blob:
		return "BLOB"
	}
	return "TEXT"
}

// defaultTypeCache caches runtime type lookups across compiles.
var defaultTypeCacheMutex sync.RWMutex
var defaultTypeCache = make(map[reflect.Type]DataType)

var timeType = reflect.TypeOf(time.Time{})
var uuidType = reflect.TypeOf(uuid.UUID{})
var bytesType = reflect.TypeOf([]byte(nil))

// DefaultFor maps a runtime type to its default logical data type. The
// mapping is shared by every schema; per-schema registrations take
// precedence over it.
func DefaultFor(t reflect.Type) (DataType, bool) {
	if t == nil {
		return Undefined, false
	}
	defaultTypeCacheMutex.RLock()
	d, found := defaultTypeCache[t]
	defaultTypeCacheMutex.RUnlock()
	if found {
		return d, d != Undefined
	}
	d = computeDefault(t)
	defaultTypeCacheMutex.Lock()
	defaultTypeCache[t] = d
	defaultTypeCacheMutex.Unlock()
	return d, d != Undefined
}

func computeDefault(t reflect.Type) DataType {
	switch t {
	case timeType:
		return Timestamp
	case uuidType:
		return UUID
	case bytesType:
		return Blob
	}
	switch t.Kind() {
	case reflect.Bool:
		return Boolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int64
	case reflect.Float32, reflect.Float64:
		return Float64
	case reflect.String:
		return Text
	case reflect.Pointer:
		return computeDefault(t.Elem())
	}
	return Undefined
}

// Schema carries per-schema type registrations consulted before the default
// mapping. A nil *Schema is valid and falls through to the defaults.
type Schema struct {
	mu    sync.RWMutex
	types map[reflect.Type]DataType
}

func NewSchema() *Schema {
	return &Schema{types: make(map[reflect.Type]DataType)}
}

// RegisterType maps a runtime type to a logical data type for this schema.
func (s *Schema) RegisterType(t reflect.Type, d DataType) {
	s.mu.Lock()
	s.types[t] = d
	s.mu.Unlock()
}

// Lookup resolves a runtime type against the schema registrations, then the
// default mapping.
func (s *Schema) Lookup(t reflect.Type) (DataType, bool) {
	if s != nil {
		s.mu.RLock()
		d, ok := s.types[t]
		s.mu.RUnlock()
		if ok {
			return d, true
		}
	}
	return DefaultFor(t)
}
