package datastore

import (
	"fmt"
	"strings"
)

// DataType tags the element type held by a Store.
type DataType uint8

const (
	Int8 DataType = iota
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
	Boolean
)

var dataTypeNames = [...]string{
	Int8:    "int8",
	UInt8:   "uint8",
	Int16:   "int16",
	UInt16:  "uint16",
	Int32:   "int32",
	UInt32:  "uint32",
	Int64:   "int64",
	UInt64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Boolean: "bool",
}

var dataTypeSizes = [...]int{
	Int8:    1,
	UInt8:   1,
	Int16:   2,
	UInt16:  2,
	Int32:   4,
	UInt32:  4,
	Int64:   8,
	UInt64:  8,
	Float32: 4,
	Float64: 8,
	Boolean: 1,
}

// AllDataTypes lists every supported element type in tag order.
func AllDataTypes() []DataType {
	out := make([]DataType, 0, len(dataTypeNames))
	for i := range dataTypeNames {
		out = append(out, DataType(i))
	}
	return out
}

// Valid reports whether t is a known tag.
func (t DataType) Valid() bool {
	return int(t) < len(dataTypeNames)
}

func (t DataType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("datatype(%d)", uint8(t))
	}
	return dataTypeNames[t]
}

// Size returns the element size in bytes, or 0 for an unknown tag.
func (t DataType) Size() int {
	if !t.Valid() {
		return 0
	}
	return dataTypeSizes[t]
}

// IsFloat reports whether the type is a floating point type.
func (t DataType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsInteger reports whether the type is a signed or unsigned integer type.
func (t DataType) IsInteger() bool {
	return t.Valid() && !t.IsFloat() && t != Boolean
}

// ParseDataType resolves the string form produced by DataType.String.
func ParseDataType(s string) (DataType, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for i, name := range dataTypeNames {
		if name == needle {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("datastore: unknown data type %q", s)
}

// DataTypeOf returns the tag for the element type T.
func DataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return UInt8
	case int16:
		return Int16
	case uint16:
		return UInt16
	case int32:
		return Int32
	case uint32:
		return UInt32
	case int64:
		return Int64
	case uint64:
		return UInt64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		return Boolean
	}
}
