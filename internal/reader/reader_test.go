package reader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"fwfr/internal/datatype"
	"fwfr/internal/fixture"
	"fwfr/internal/fwferrors"
	"fwfr/internal/options"
	"fwfr/internal/table"
)

func readString(t *testing.T, input string, opts Options) *table.Table {
	t.Helper()
	tbl, err := Read(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return tbl
}

// columnValue renders row i of a chunked array as a comparable string.
func columnValue(t *testing.T, col *table.ChunkedArray, row int) string {
	t.Helper()
	for _, chunk := range col.Chunks {
		if row < chunk.Len() {
			if chunk.IsNull(row) {
				return "<null>"
			}
			switch a := chunk.(type) {
			case *table.Int64Array:
				return fmt.Sprintf("%d", a.Values[row])
			case *table.Float64Array:
				return fmt.Sprintf("%g", a.Values[row])
			case *table.BooleanArray:
				return fmt.Sprintf("%t", a.Values[row])
			case *table.TimestampArray:
				return a.Values[row].Format("2006-01-02 15:04:05")
			case *table.StringArray:
				return a.Values[row]
			case *table.BinaryArray:
				return string(a.Values[row])
			case *table.FixedSizeBinaryArray:
				return string(a.Values[row])
			default:
				t.Fatalf("unhandled array type %T", chunk)
			}
		}
		row -= chunk.Len()
	}
	t.Fatalf("row %d out of range", row)
	return ""
}

func defaultOptions(widths []uint32, names []string) Options {
	parse := options.DefaultParseOptions()
	parse.FieldWidths = widths
	read := options.DefaultReadOptions()
	read.ColumnNames = names
	return Options{
		Parse:   parse,
		Convert: options.DefaultConvertOptions(),
		Read:    read,
	}
}

func TestReadTrivialASCII(t *testing.T) {
	opts := defaultOptions([]uint32{6, 5}, []string{"s", "n"})
	tbl := readString(t, "abc   12345\ndef   67890\n", opts)

	if tbl.NumRows() != 2 || tbl.NumCols() != 2 {
		t.Fatalf("got %dx%d, want 2x2", tbl.NumRows(), tbl.NumCols())
	}
	if tbl.Schema.Fields[0].Type.ID != datatype.String {
		t.Errorf("col0 type = %v, want utf8", tbl.Schema.Fields[0].Type)
	}
	if tbl.Schema.Fields[1].Type.ID != datatype.Int64 {
		t.Errorf("col1 type = %v, want int64", tbl.Schema.Fields[1].Type)
	}
	if got := columnValue(t, tbl.Columns[0], 0); got != "abc" {
		t.Errorf("col0 row0 = %q", got)
	}
	if got := columnValue(t, tbl.Columns[1], 1); got != "67890" {
		t.Errorf("col1 row1 = %q", got)
	}
}

func TestReadHeaderRowSuppliesNames(t *testing.T) {
	opts := defaultOptions([]uint32{6, 5}, nil)
	tbl := readString(t, "s     n    \nabc   12345\n", opts)
	if tbl.Schema.Fields[0].Name != "s" || tbl.Schema.Fields[1].Name != "n" {
		t.Fatalf("names = %v", tbl.Schema.Fields)
	}
	if tbl.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", tbl.NumRows())
	}
}

func TestReadSkipRows(t *testing.T) {
	opts := defaultOptions([]uint32{6, 5}, nil)
	opts.Read.SkipRows = 2
	input := "garbage gar\nmore noise \ns     n    \nabc   12345\n"
	tbl := readString(t, input, opts)
	if tbl.Schema.Fields[0].Name != "s" {
		t.Fatalf("names = %v", tbl.Schema.Fields)
	}
	if tbl.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", tbl.NumRows())
	}
}

func TestReadTruncatedHeader(t *testing.T) {
	opts := defaultOptions([]uint32{6, 5}, nil)
	opts.Read.SkipRows = 5
	_, err := Read(strings.NewReader("only   1row\n"), opts)
	if !errors.Is(err, fwferrors.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestReadEmptyInput(t *testing.T) {
	opts := defaultOptions([]uint32{4}, []string{"a"})
	_, err := Read(strings.NewReader(""), opts)
	if !errors.Is(err, fwferrors.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestReadNewlinesInValues(t *testing.T) {
	opts := defaultOptions([]uint32{4, 2}, []string{"x", "y"})
	opts.Parse.NewlinesInValues = true
	opts.Parse.IgnoreEmptyLines = false
	tbl := readString(t, "aa\nbbc", opts)
	if tbl.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", tbl.NumRows())
	}
	if got := columnValue(t, tbl.Columns[0], 0); got != "aa\nb" {
		t.Errorf("x = %q, want %q", got, "aa\nb")
	}
	if got := columnValue(t, tbl.Columns[1], 0); got != "bc" {
		t.Errorf("y = %q, want %q", got, "bc")
	}
}

func TestReadEmptyLinePolicy(t *testing.T) {
	opts := defaultOptions([]uint32{2}, []string{"c"})
	tbl := readString(t, "ab\n\ncd\n", opts)
	if tbl.NumRows() != 2 {
		t.Fatalf("ignore_empty_lines=true: rows = %d, want 2", tbl.NumRows())
	}

	opts.Parse.IgnoreEmptyLines = false
	tbl = readString(t, "ab\n\ncd\n", opts)
	if tbl.NumRows() != 3 {
		t.Fatalf("ignore_empty_lines=false: rows = %d, want 3", tbl.NumRows())
	}
	if got := columnValue(t, tbl.Columns[0], 1); got != "" {
		t.Errorf("middle row = %q, want empty", got)
	}
}

func TestReadCOBOLOverpunch(t *testing.T) {
	opts := defaultOptions([]uint32{4}, []string{"amt"})
	opts.Convert.ColumnTypes = map[string]datatype.DataType{"amt": datatype.Int64Type()}
	opts.Convert.COBOL = options.COBOLOptions{
		Enabled: true,
		PosMap:  map[byte]byte{'C': '3'},
		NegMap:  map[byte]byte{'L': '3'},
	}
	tbl := readString(t, "123C\n123L\n1234\n", opts)
	want := []string{"1233", "-1233", "1234"}
	for i, w := range want {
		if got := columnValue(t, tbl.Columns[0], i); got != w {
			t.Errorf("row %d = %s, want %s", i, got, w)
		}
	}
}

func TestReadInferenceWidening(t *testing.T) {
	cells := []string{"1", "2", "true", "2020-01-01 00:00:00", "3.14", "hello"}
	width := 19
	var sb strings.Builder
	for _, c := range cells {
		sb.WriteString(c + strings.Repeat(" ", width-len(c)) + "\n")
	}

	for _, blockSize := range []int{0, 16} { // 0 = default; 16 forces many blocks
		for _, threads := range []bool{false, true} {
			opts := defaultOptions([]uint32{uint32(width)}, []string{"v"})
			opts.Read.UseThreads = threads
			opts.Read.BlockSize = blockSize
			tbl := readString(t, sb.String(), opts)
			if tbl.Schema.Fields[0].Type.ID != datatype.String {
				t.Fatalf("threads=%v block=%d: type = %v, want utf8", threads, blockSize, tbl.Schema.Fields[0].Type)
			}
			for i, c := range cells {
				if got := columnValue(t, tbl.Columns[0], i); got != c {
					t.Errorf("threads=%v block=%d row %d = %q, want %q", threads, blockSize, i, got, c)
				}
			}
		}
	}
}

func TestReadBOM(t *testing.T) {
	opts := defaultOptions([]uint32{2}, []string{"c"})
	tbl := readString(t, "\xEF\xBB\xBFab\ncd\n", opts)
	if tbl.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.NumRows())
	}
	if got := columnValue(t, tbl.Columns[0], 0); got != "ab" {
		t.Fatalf("row 0 = %q, want %q (BOM leaked into data?)", got, "ab")
	}
}

func TestReadEBCDIC(t *testing.T) {
	plain := "NAME  ID \nALICE  12\nBOB    34\n"
	encoded, err := charmap.CodePage037.NewEncoder().Bytes([]byte(plain))
	if err != nil {
		t.Fatal(err)
	}
	opts := defaultOptions([]uint32{6, 3}, nil)
	opts.Read.Encoding = "cp037"
	opts.Read.BlockSize = 5 // force the transcoder to run across many blocks
	tbl, err := Read(bytes.NewReader(encoded), opts)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tbl.Schema.Fields[0].Name != "NAME" || tbl.Schema.Fields[1].Name != "ID" {
		t.Fatalf("names = %v", tbl.Schema.Fields)
	}
	if tbl.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.NumRows())
	}
	if got := columnValue(t, tbl.Columns[0], 1); got != "BOB" {
		t.Errorf("row 1 = %q", got)
	}
	if got := columnValue(t, tbl.Columns[1], 0); got != "12" {
		t.Errorf("id row 0 = %q", got)
	}
}

func TestReadUnknownColumnType(t *testing.T) {
	opts := defaultOptions([]uint32{4}, []string{"x"})
	opts.Convert.ColumnTypes = map[string]datatype.DataType{"x": {ID: datatype.ID(99)}}
	_, err := Read(strings.NewReader("abcd\n"), opts)
	if !errors.Is(err, fwferrors.ErrNotImplemented) {
		t.Fatalf("got %v, want ErrNotImplemented", err)
	}
}

func TestReadConversionErrorNamesColumn(t *testing.T) {
	opts := defaultOptions([]uint32{2, 4}, []string{"a", "n"})
	opts.Convert.ColumnTypes = map[string]datatype.DataType{"n": datatype.Int64Type()}
	_, err := Read(strings.NewReader("xxgood\nyyBAD!\n"), opts)
	if err == nil {
		t.Fatal("Read accepted garbage in a typed int column")
	}
	if !strings.Contains(err.Error(), "in column #1") {
		t.Fatalf("error %q lacks column index", err)
	}
}

// The same input must produce bit-identical tables with threads on and off,
// and regardless of block size.
func TestReadThreadsToggleIdentical(t *testing.T) {
	cols := fixture.DefaultColumns()
	var buf bytes.Buffer
	gen := fixture.NewGenerator(cols, 42)
	if err := fixture.WriteFile(&buf, cols, gen, 200); err != nil {
		t.Fatal(err)
	}
	input := buf.String()

	parse, convert := fixture.ReadOptions(cols)
	var tables []*table.Table
	for _, threads := range []bool{false, true} {
		for _, blockSize := range []int{0, 64} {
			read := options.DefaultReadOptions()
			read.UseThreads = threads
			read.BlockSize = blockSize
			tbl := readString(t, input, Options{Parse: parse, Convert: convert, Read: read})
			tables = append(tables, tbl)
		}
	}

	ref := tables[0]
	if ref.NumRows() != 200 {
		t.Fatalf("rows = %d, want 200", ref.NumRows())
	}
	for _, tbl := range tables[1:] {
		if tbl.NumRows() != ref.NumRows() || tbl.NumCols() != ref.NumCols() {
			t.Fatalf("table shapes differ: %dx%d vs %dx%d", tbl.NumRows(), tbl.NumCols(), ref.NumRows(), ref.NumCols())
		}
		for c := 0; c < ref.NumCols(); c++ {
			if tbl.Schema.Fields[c].Type != ref.Schema.Fields[c].Type {
				t.Fatalf("column %d type differs", c)
			}
			for r := 0; r < ref.NumRows(); r++ {
				a := columnValue(t, ref.Columns[c], r)
				b := columnValue(t, tbl.Columns[c], r)
				if a != b {
					t.Fatalf("column %d row %d: %q vs %q", c, r, a, b)
				}
			}
		}
	}
}

// Writing values at fixed widths and reading them back reproduces the
// original values for every supported type.
func TestReadRoundTrip(t *testing.T) {
	cols := fixture.DefaultColumns()
	gen := fixture.NewGenerator(cols, 7)
	rows := make([][]string, 50)
	var sb strings.Builder
	for _, col := range cols {
		sb.WriteString(col.Name + strings.Repeat(" ", int(col.Width)-len(col.Name)))
	}
	sb.WriteString("\n")
	for r := range rows {
		rows[r] = gen.Row()
		line, err := fixture.EncodeRow(cols, rows[r])
		if err != nil {
			t.Fatal(err)
		}
		sb.WriteString(line + "\n")
	}

	parse, convert := fixture.ReadOptions(cols)
	read := options.DefaultReadOptions()
	read.UseThreads = false
	tbl := readString(t, sb.String(), Options{Parse: parse, Convert: convert, Read: read})

	for r, cells := range rows {
		for c, col := range cols {
			got := columnValue(t, tbl.Columns[c], r)
			expect := cells[c]
			switch col.Type.ID {
			case datatype.Float64:
				// Rendered with %g on read-back; compare numerically via
				// the original spelling's float value.
				if got == expect {
					continue
				}
				var a, b float64
				fmt.Sscanf(got, "%g", &a)
				fmt.Sscanf(expect, "%f", &b)
				if a != b {
					t.Fatalf("row %d col %s: %q vs %q", r, col.Name, got, expect)
				}
			default:
				if got != expect {
					t.Fatalf("row %d col %s: %q vs %q", r, col.Name, got, expect)
				}
			}
		}
	}
}

func TestReadMultiBlockStitching(t *testing.T) {
	// Tiny blocks force rows to span block boundaries.
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString(fmt.Sprintf("%04d\n", i))
	}
	opts := defaultOptions([]uint32{4}, []string{"n"})
	opts.Read.BlockSize = 3
	opts.Read.UseThreads = true
	tbl := readString(t, sb.String(), opts)
	if tbl.NumRows() != 100 {
		t.Fatalf("rows = %d, want 100", tbl.NumRows())
	}
	if tbl.Schema.Fields[0].Type.ID != datatype.Int64 {
		t.Fatalf("type = %v, want int64", tbl.Schema.Fields[0].Type)
	}
	for r := 0; r < 100; r++ {
		if got := columnValue(t, tbl.Columns[0], r); got != fmt.Sprintf("%d", r) {
			t.Fatalf("row %d = %q", r, got)
		}
	}
}

func TestReadFinalRowWithoutNewline(t *testing.T) {
	opts := defaultOptions([]uint32{2}, []string{"c"})
	tbl := readString(t, "ab\ncd", opts)
	if tbl.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.NumRows())
	}
	if got := columnValue(t, tbl.Columns[0], 1); got != "cd" {
		t.Fatalf("last row = %q", got)
	}
}
