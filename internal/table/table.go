// Package table is the reader's output container: typed column arrays,
// chunked arrays, and table/schema assembly. It is intentionally small —
// the ingestion pipeline only needs to produce these, not implement a
// full columnar engine.
package table

import (
	"time"

	"fwfr/internal/datatype"
)

// Array is one column's worth of typed, possibly-null values.
type Array interface {
	DataType() datatype.DataType
	Len() int
	IsNull(i int) bool
}

// Int64Array holds Int8/Int16/Int32/Int64/Uint8/Uint16/Uint32/Uint64 values
// widened to int64 for simplicity; DataType records the original width.
type Int64Array struct {
	Type   datatype.DataType
	Values []int64
	Nulls  []bool
}

func (a *Int64Array) DataType() datatype.DataType { return a.Type }
func (a *Int64Array) Len() int { return len(a.Values) }
func (a *Int64Array) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// Float64Array holds Float32/Float64 values widened to float64.
type Float64Array struct {
	Type   datatype.DataType
	Values []float64
	Nulls  []bool
}

func (a *Float64Array) DataType() datatype.DataType { return a.Type }
func (a *Float64Array) Len() int { return len(a.Values) }
func (a *Float64Array) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// BooleanArray holds boolean values.
type BooleanArray struct {
	Values []bool
	Nulls  []bool
}

func (a *BooleanArray) DataType() datatype.DataType { return datatype.BooleanType() }
func (a *BooleanArray) Len() int { return len(a.Values) }
func (a *BooleanArray) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// TimestampArray holds second-resolution timestamps.
type TimestampArray struct {
	Values []time.Time
	Nulls  []bool
}

func (a *TimestampArray) DataType() datatype.DataType { return datatype.TimestampSecondType() }
func (a *TimestampArray) Len() int { return len(a.Values) }
func (a *TimestampArray) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// StringArray holds UTF-8 string values.
type StringArray struct {
	Values []string
	Nulls  []bool
}

func (a *StringArray) DataType() datatype.DataType { return datatype.StringType() }
func (a *StringArray) Len() int { return len(a.Values) }
func (a *StringArray) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// BinaryArray holds variable-length binary values.
type BinaryArray struct {
	Values [][]byte
	Nulls  []bool
}

func (a *BinaryArray) DataType() datatype.DataType { return datatype.BinaryType() }
func (a *BinaryArray) Len() int { return len(a.Values) }
func (a *BinaryArray) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// FixedSizeBinaryArray holds fixed-width binary values, all ByteWidth long.
type FixedSizeBinaryArray struct {
	ByteWidth int
	Values    [][]byte
	Nulls     []bool
}

func (a *FixedSizeBinaryArray) DataType() datatype.DataType {
	return datatype.FixedSizeBinaryType(a.ByteWidth)
}
func (a *FixedSizeBinaryArray) Len() int { return len(a.Values) }
func (a *FixedSizeBinaryArray) IsNull(i int) bool { return a.Nulls != nil && a.Nulls[i] }

// NullArray holds n all-null values; used only for a column that every row
// left null (inference never advanced past KindNull).
type NullArray struct {
	N int
}

func (a *NullArray) DataType() datatype.DataType { return datatype.NullType() }
func (a *NullArray) Len() int { return a.N }
func (a *NullArray) IsNull(int) bool { return true }

// ChunkedArray is one column's full output: an ordered sequence of Arrays
// (chunks), each corresponding to one parsed block, concatenated logically.
type ChunkedArray struct {
	Type   datatype.DataType
	Chunks []Array
}

// Len returns the total row count across all chunks.
func (c *ChunkedArray) Len() int {
	n := 0
	for _, chunk := range c.Chunks {
		n += chunk.Len()
	}
	return n
}

// Field names one column and its concrete type.
type Field struct {
	Name string
	Type datatype.DataType
}

// Schema is the ordered list of column fields, in field-width declaration
// order.
type Schema struct {
	Fields []Field
}

// Table is the final assembled output: a schema plus one ChunkedArray per
// field, all of equal total length.
type Table struct {
	Schema  Schema
	Columns []*ChunkedArray
}

// NumRows returns the table's row count (0 if there are no columns).
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// NumCols returns the table's column count.
func (t *Table) NumCols() int { return len(t.Columns) }
