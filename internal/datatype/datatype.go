// Package datatype defines the concrete scalar column types the FWF reader
// can produce, and the widening lattice the inferring column builder walks.
package datatype

import "fmt"

// ID names a concrete scalar type a column can carry.
type ID int

const (
	Null ID = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Boolean
	TimestampSecond
	FixedSizeBinary
	Binary
	String
)

func (id ID) String() string {
	switch id {
	case Null:
		return "null"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Boolean:
		return "bool"
	case TimestampSecond:
		return "timestamp[s]"
	case FixedSizeBinary:
		return "fixed_size_binary"
	case Binary:
		return "binary"
	case String:
		return "utf8"
	default:
		return fmt.Sprintf("datatype(%d)", int(id))
	}
}

// DataType is a column's concrete type: an ID plus, for FixedSizeBinary, the
// declared byte width.
type DataType struct {
	ID        ID
	ByteWidth int // only meaningful for FixedSizeBinary
}

func (t DataType) String() string {
	if t.ID == FixedSizeBinary {
		return fmt.Sprintf("fixed_size_binary[%d]", t.ByteWidth)
	}
	return t.ID.String()
}

// Convenience constructors for the supported column types.
func NullType() DataType            { return DataType{ID: Null} }
func Int8Type() DataType            { return DataType{ID: Int8} }
func Int16Type() DataType           { return DataType{ID: Int16} }
func Int32Type() DataType           { return DataType{ID: Int32} }
func Int64Type() DataType           { return DataType{ID: Int64} }
func Uint8Type() DataType           { return DataType{ID: Uint8} }
func Uint16Type() DataType          { return DataType{ID: Uint16} }
func Uint32Type() DataType          { return DataType{ID: Uint32} }
func Uint64Type() DataType          { return DataType{ID: Uint64} }
func Float32Type() DataType         { return DataType{ID: Float32} }
func Float64Type() DataType         { return DataType{ID: Float64} }
func BooleanType() DataType         { return DataType{ID: Boolean} }
func TimestampSecondType() DataType { return DataType{ID: TimestampSecond} }
func BinaryType() DataType          { return DataType{ID: Binary} }
func StringType() DataType          { return DataType{ID: String} }
func FixedSizeBinaryType(width int) DataType {
	return DataType{ID: FixedSizeBinary, ByteWidth: width}
}

// InferKind is the widening lattice the inferring column builder walks.
// The order is fixed and significant: a column only ever advances along it.
type InferKind int

const (
	KindNull InferKind = iota
	KindInteger
	KindBoolean
	KindTimestamp
	KindReal
	KindText
	KindBinary
)

func (k InferKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DataType returns the concrete column type this lattice position infers to.
func (k InferKind) DataType() DataType {
	switch k {
	case KindNull:
		return NullType()
	case KindInteger:
		return Int64Type()
	case KindBoolean:
		return BooleanType()
	case KindTimestamp:
		return TimestampSecondType()
	case KindReal:
		return Float64Type()
	case KindText:
		return StringType()
	case KindBinary:
		return BinaryType()
	default:
		panic("unreachable infer kind")
	}
}

// CanLoosen reports whether a column currently at kind k can still widen.
// Binary is terminal.
func (k InferKind) CanLoosen() bool {
	return k != KindBinary
}

// Loosen returns the next wider kind in the lattice. Panics if k is already
// terminal; callers must check CanLoosen first.
func (k InferKind) Loosen() InferKind {
	switch k {
	case KindNull:
		return KindInteger
	case KindInteger:
		return KindBoolean
	case KindBoolean:
		return KindTimestamp
	case KindTimestamp:
		return KindReal
	case KindReal:
		return KindText
	case KindText:
		return KindBinary
	default:
		panic("fwfr: cannot loosen a terminal infer kind")
	}
}
