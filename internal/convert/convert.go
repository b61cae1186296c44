// Package convert implements the scalar converters: one per (column,
// target type), turning a ParsedBlock's raw field slices into a typed
// table.Array. All converters share the trim/null pre-processing and the
// precomputed spelling tries; numeric converters additionally decode
// COBOL signed overpunch.
package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fwfr/internal/datatype"
	"fwfr/internal/fwferrors"
	"fwfr/internal/options"
	"fwfr/internal/rowparser"
	"fwfr/internal/table"
)

// CellError is returned for one unconvertible field. It carries the
// offending raw bytes so the column builder (or a caller surfacing the
// error) can report exactly what failed to parse.
type CellError struct {
	Row   int
	Bytes []byte
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("row %d: %q: %v", e.Row, e.Bytes, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Converter converts one column of a ParsedBlock to a typed array.
type Converter interface {
	// Convert visits every row of col in pb and returns the resulting
	// array, or the first CellError encountered.
	Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error)
	// DataType reports the concrete type this converter produces.
	DataType() datatype.DataType
}

// Tables holds the precomputed null/true/false tries shared by every
// converter built from one ConvertOptions, so a read with many columns
// builds each trie once rather than per column.
type Tables struct {
	nullTrie         *options.Trie
	trueTrie         *options.Trie
	falseTrie        *options.Trie
	cobol            options.COBOLOptions
	stringsCanBeNull bool
}

// NewTables precomputes the shared lookup tries for one ConvertOptions.
func NewTables(opts options.ConvertOptions) *Tables {
	return &Tables{
		nullTrie:         options.NewTrie(opts.NullValues),
		trueTrie:         options.NewTrie(opts.TrueValues),
		falseTrie:        options.NewTrie(opts.FalseValues),
		cobol:            opts.COBOL,
		stringsCanBeNull: opts.StringsCanBeNull,
	}
}

// ForKind builds the converter for one position in the widening lattice.
func ForKind(t *Tables, kind datatype.InferKind) Converter {
	switch kind {
	case datatype.KindNull:
		return &nullConverter{Tables: t}
	case datatype.KindInteger:
		return &intConverter{Tables: t, dt: datatype.Int64Type(), bitSize: 64, signed: true}
	case datatype.KindBoolean:
		return &boolConverter{Tables: t}
	case datatype.KindTimestamp:
		return &timestampConverter{Tables: t}
	case datatype.KindReal:
		return &floatConverter{Tables: t, dt: datatype.Float64Type(), bitSize: 64}
	case datatype.KindText:
		return &stringConverter{Tables: t}
	case datatype.KindBinary:
		return &binaryConverter{Tables: t}
	default:
		panic("fwfr: unhandled infer kind")
	}
}

// ForType builds the converter for one explicitly declared column type.
func ForType(t *Tables, dt datatype.DataType) (Converter, error) {
	switch dt.ID {
	case datatype.Null:
		return &nullConverter{Tables: t}, nil
	case datatype.Int8:
		return &intConverter{Tables: t, dt: dt, bitSize: 8, signed: true}, nil
	case datatype.Int16:
		return &intConverter{Tables: t, dt: dt, bitSize: 16, signed: true}, nil
	case datatype.Int32:
		return &intConverter{Tables: t, dt: dt, bitSize: 32, signed: true}, nil
	case datatype.Int64:
		return &intConverter{Tables: t, dt: dt, bitSize: 64, signed: true}, nil
	case datatype.Uint8:
		return &intConverter{Tables: t, dt: dt, bitSize: 8, signed: false}, nil
	case datatype.Uint16:
		return &intConverter{Tables: t, dt: dt, bitSize: 16, signed: false}, nil
	case datatype.Uint32:
		return &intConverter{Tables: t, dt: dt, bitSize: 32, signed: false}, nil
	case datatype.Uint64:
		return &intConverter{Tables: t, dt: dt, bitSize: 64, signed: false}, nil
	case datatype.Float32:
		return &floatConverter{Tables: t, dt: dt, bitSize: 32}, nil
	case datatype.Float64:
		return &floatConverter{Tables: t, dt: dt, bitSize: 64}, nil
	case datatype.Boolean:
		return &boolConverter{Tables: t}, nil
	case datatype.TimestampSecond:
		return &timestampConverter{Tables: t}, nil
	case datatype.FixedSizeBinary:
		return &fixedBinaryConverter{width: dt.ByteWidth}, nil
	case datatype.Binary:
		return &binaryConverter{Tables: t}, nil
	case datatype.String:
		return &stringConverter{Tables: t}, nil
	default:
		return nil, fwferrors.NotImplementedf("no converter for column type %s", dt)
	}
}

// trim removes leading/trailing ASCII space (0x20) and tab (0x09) bytes,
// per the common pre-processing every non-fixed-binary converter applies.
func trim(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpaceOrTab(b[start]) {
		start++
	}
	for end > start && isSpaceOrTab(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpaceOrTab(c byte) bool { return c == ' ' || c == '\t' }

// cobolTransform applies signed-overpunch decoding to an already-trimmed
// field slice: PosMap is tried first; NegMap only applies on a PosMap
// miss (see DESIGN.md). Running after trim means a right-padded field
// like "123C  " still decodes, and a prepended '-' lands directly against
// the digits. The rewritten digits go in scratch when it is large enough
// (one byte of headroom for the sign), else in a fresh allocation.
func cobolTransform(trimmed []byte, cobol options.COBOLOptions, scratch []byte) []byte {
	if !cobol.Enabled || len(trimmed) == 0 {
		return trimmed
	}
	last := trimmed[len(trimmed)-1]
	if digit, ok := cobol.PosMap[last]; ok {
		out := scratch
		if len(trimmed) > len(out) {
			out = make([]byte, len(trimmed))
		}
		n := copy(out, trimmed[:len(trimmed)-1])
		out[n] = digit
		return out[:n+1]
	}
	if digit, ok := cobol.NegMap[last]; ok {
		out := scratch
		if len(trimmed)+1 > len(out) {
			out = make([]byte, len(trimmed)+1)
		}
		out[0] = '-'
		n := copy(out[1:], trimmed[:len(trimmed)-1])
		out[1+n] = digit
		return out[:2+n]
	}
	return trimmed
}

// ---- Null ----

type nullConverter struct {
	*Tables
}

func (c *nullConverter) DataType() datatype.DataType { return datatype.NullType() }

func (c *nullConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		t := trim(data)
		if !c.nullTrie.Find(t) {
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalid("value is not null")}
		}
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return &table.NullArray{N: pb.NumRows}, nil
}

// ---- Integer ----

type intConverter struct {
	*Tables
	dt      datatype.DataType
	bitSize int
	signed  bool
}

func (c *intConverter) DataType() datatype.DataType { return c.dt }

func (c *intConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.Int64Array{Type: c.dt, Values: make([]int64, pb.NumRows), Nulls: make([]bool, pb.NumRows)}
	var scratch [64]byte
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		t := trim(data)
		if c.nullTrie.Find(t) {
			out.Nulls[row] = true
			return
		}
		t = cobolTransform(t, c.cobol, scratch[:])
		var v int64
		var err error
		if c.signed {
			v, err = strconv.ParseInt(string(t), 10, c.bitSize)
		} else {
			var uv uint64
			uv, err = strconv.ParseUint(string(t), 10, c.bitSize)
			v = int64(uv)
		}
		if err != nil {
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalidf("not a valid integer: %v", err)}
			return
		}
		out.Values[row] = v
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return out, nil
}

// ---- Float ----

type floatConverter struct {
	*Tables
	dt      datatype.DataType
	bitSize int
}

func (c *floatConverter) DataType() datatype.DataType { return c.dt }

func (c *floatConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.Float64Array{Type: c.dt, Values: make([]float64, pb.NumRows), Nulls: make([]bool, pb.NumRows)}
	var scratch [64]byte
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		t := trim(data)
		if c.nullTrie.Find(t) {
			out.Nulls[row] = true
			return
		}
		t = cobolTransform(t, c.cobol, scratch[:])
		v, err := strconv.ParseFloat(string(t), c.bitSize)
		if err != nil {
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalidf("not a valid float: %v", err)}
			return
		}
		out.Values[row] = v
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return out, nil
}

// ---- Boolean ----

type boolConverter struct {
	*Tables
}

func (c *boolConverter) DataType() datatype.DataType { return datatype.BooleanType() }

func (c *boolConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.BooleanArray{Values: make([]bool, pb.NumRows), Nulls: make([]bool, pb.NumRows)}
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		t := trim(data)
		if c.nullTrie.Find(t) {
			out.Nulls[row] = true
			return
		}
		switch {
		case c.trueTrie.Find(t):
			out.Values[row] = true
		case c.falseTrie.Find(t):
			out.Values[row] = false
		default:
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalid("not a recognized boolean spelling")}
		}
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return out, nil
}

// ---- Timestamp (seconds resolution, no fractional seconds) ----

var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type timestampConverter struct {
	*Tables
}

func (c *timestampConverter) DataType() datatype.DataType { return datatype.TimestampSecondType() }

func (c *timestampConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.TimestampArray{Values: make([]time.Time, pb.NumRows), Nulls: make([]bool, pb.NumRows)}
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		t := trim(data)
		if c.nullTrie.Find(t) {
			out.Nulls[row] = true
			return
		}
		s := string(t)
		var parsed time.Time
		var err error
		ok := false
		for _, layout := range timestampLayouts {
			parsed, err = time.Parse(layout, s)
			if err == nil {
				ok = true
				break
			}
		}
		if !ok {
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalidf("not a valid ISO-8601 timestamp: %v", err)}
			return
		}
		out.Values[row] = parsed.Truncate(time.Second)
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return out, nil
}

// ---- Fixed-size binary ----

type fixedBinaryConverter struct {
	width int
}

func (c *fixedBinaryConverter) DataType() datatype.DataType {
	return datatype.FixedSizeBinaryType(c.width)
}

func (c *fixedBinaryConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.FixedSizeBinaryArray{ByteWidth: c.width, Values: make([][]byte, pb.NumRows)}
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		if len(data) != c.width {
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalidf("fixed_size_binary[%d]: got %d bytes", c.width, len(data))}
			return
		}
		out.Values[row] = append([]byte(nil), data...)
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return out, nil
}

// ---- Variable binary ----

type binaryConverter struct {
	*Tables
}

func (c *binaryConverter) DataType() datatype.DataType { return datatype.BinaryType() }

func (c *binaryConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.BinaryArray{Values: make([][]byte, pb.NumRows), Nulls: make([]bool, pb.NumRows)}
	pb.VisitColumn(col, func(row int, data []byte) {
		t := trim(data)
		if c.stringsCanBeNull && c.nullTrie.Find(t) {
			out.Nulls[row] = true
			return
		}
		out.Values[row] = append([]byte(nil), t...)
	})
	return out, nil
}

// ---- UTF-8 string ----

type stringConverter struct {
	*Tables
}

func (c *stringConverter) DataType() datatype.DataType { return datatype.StringType() }

func (c *stringConverter) Convert(pb *rowparser.ParsedBlock, col int) (table.Array, error) {
	out := &table.StringArray{Values: make([]string, pb.NumRows), Nulls: make([]bool, pb.NumRows)}
	var cellErr error
	pb.VisitColumn(col, func(row int, data []byte) {
		if cellErr != nil {
			return
		}
		t := trim(data)
		if c.stringsCanBeNull && c.nullTrie.Find(t) {
			out.Nulls[row] = true
			return
		}
		// Invalid UTF-8 must fail here so an inferring column can fall
		// through to binary, the lattice's last resort.
		if !utf8.Valid(t) {
			cellErr = &CellError{Row: row, Bytes: append([]byte(nil), data...), Err: fwferrors.Invalid("not valid UTF-8")}
			return
		}
		out.Values[row] = strings.Clone(string(t))
	})
	if cellErr != nil {
		return nil, cellErr
	}
	return out, nil
}
