// Package options holds the three immutable configuration structs that
// drive one FWF read: ParseOptions (row/field layout), ConvertOptions
// (scalar conversion policy), and ReadOptions (I/O policy). All three are
// constructed once up front and read-only for the lifetime of a read.
package options

import (
	"fmt"

	"fwfr/internal/datatype"
)

// ParseOptions describes the fixed-width row/field layout.
type ParseOptions struct {
	// FieldWidths gives the byte width of each column, in declaration
	// order. Required; must have at least one entry, each >= 1.
	FieldWidths []uint32
	// NewlinesInValues, when true, allows CR/LF bytes inside a record;
	// only the cumulative field-width budget then delimits rows. When
	// false (the default), a CR or LF always terminates the current row,
	// even mid-field.
	NewlinesInValues bool
	// IgnoreEmptyLines elides a zero-byte row (a bare newline) instead of
	// emitting it as a single row of empty fields.
	IgnoreEmptyLines bool
}

// RowWidth returns the total byte budget of one row: the sum of all field
// widths.
func (o ParseOptions) RowWidth() uint32 {
	var total uint32
	for _, w := range o.FieldWidths {
		total += w
	}
	return total
}

// Validate checks the invariants FieldWidths must satisfy.
func (o ParseOptions) Validate() error {
	if len(o.FieldWidths) == 0 {
		return fmt.Errorf("fwfr: field_widths must have at least one entry")
	}
	for i, w := range o.FieldWidths {
		if w == 0 {
			return fmt.Errorf("fwfr: field_widths[%d] must be >= 1, got 0", i)
		}
	}
	return nil
}

// DefaultParseOptions returns the documented defaults.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{IgnoreEmptyLines: true}
}

// COBOLOptions configures signed-overpunch decoding for numeric columns.
// pos_map/neg_map each map a trailing overpunch byte to the digit it
// encodes; neg_map additionally marks the field negative. Per spec
// resolution (see DESIGN.md), pos_map is checked first and neg_map only
// applies on a pos_map miss — a character present in both maps is treated
// as positive.
type COBOLOptions struct {
	Enabled bool
	PosMap  map[byte]byte
	NegMap  map[byte]byte
}

// ConvertOptions describes scalar conversion policy.
type ConvertOptions struct {
	// ColumnTypes optionally pins a column name to a concrete type,
	// disabling type inference for that column.
	ColumnTypes map[string]datatype.DataType
	// NullValues, TrueValues, FalseValues list recognized spellings,
	// matched after trimming leading/trailing space and tab.
	NullValues, TrueValues, FalseValues []string
	// StringsCanBeNull controls whether NullValues apply to string/binary
	// columns. Numeric/boolean/timestamp columns always honor NullValues.
	StringsCanBeNull bool
	// COBOL enables overpunch decoding for numeric columns.
	COBOL COBOLOptions
}

// DefaultConvertOptions returns the documented defaults.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{
		NullValues:  []string{"", "NA", "N/A", "null", "NULL"},
		TrueValues:  []string{"true", "True", "TRUE", "1"},
		FalseValues: []string{"false", "False", "FALSE", "0"},
	}
}

// ReadOptions describes I/O policy for one read.
type ReadOptions struct {
	// Encoding names the source codeset ("" means the input is already
	// UTF-8). See internal/blocksource for accepted spellings.
	Encoding string
	// UseThreads selects the parallel table reader over the serial one.
	UseThreads bool
	// BlockSize is the number of bytes requested per underlying read.
	BlockSize int
	// SkipRows discards this many raw rows before the header is read.
	SkipRows int
	// ColumnNames, if non-empty, is adopted verbatim as column names; no
	// row is consumed for a header in that case.
	ColumnNames []string
}

// DefaultReadOptions returns the documented defaults.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		UseThreads: true,
		BlockSize:  1 << 20, // 1 MiB
	}
}
