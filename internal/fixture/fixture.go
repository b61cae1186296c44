// Package fixture generates realistic fixed-width test files: synthetic
// column values rendered at declared byte widths, plus the options needed
// to read them back. Used by cmd/fwfgen and the reader's round-trip tests.
package fixture

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/go-faker/faker/v4"

	"fwfr/internal/datatype"
	"fwfr/internal/options"
)

// Column describes one generated column: its name, concrete type, and byte
// width in the encoded file.
type Column struct {
	Name  string
	Type  datatype.DataType
	Width uint32
}

// DefaultColumns is a schema shaped like a typical mainframe account
// extract: text, integer, float, boolean, and timestamp columns.
func DefaultColumns() []Column {
	return []Column{
		{Name: "holder", Type: datatype.StringType(), Width: 16},
		{Name: "account", Type: datatype.Int64Type(), Width: 10},
		{Name: "balance", Type: datatype.Float64Type(), Width: 12},
		{Name: "active", Type: datatype.BooleanType(), Width: 6},
		{Name: "opened", Type: datatype.TimestampSecondType(), Width: 19},
	}
}

// Generator produces deterministic rows for a column schema.
type Generator struct {
	cols []Column
	rng  *rand.Rand
}

// NewGenerator seeds a Generator. Numeric, boolean, and timestamp cells are
// deterministic for a given seed; word cells come from go-faker's own
// source.
func NewGenerator(cols []Column, seed int64) *Generator {
	return &Generator{cols: cols, rng: rand.New(rand.NewSource(seed))}
}

// Row returns one row of rendered (unpadded) cell values.
func (g *Generator) Row() []string {
	cells := make([]string, len(g.cols))
	for i, col := range g.cols {
		cells[i] = g.cell(col)
	}
	return cells
}

func (g *Generator) cell(col Column) string {
	switch col.Type.ID {
	case datatype.String:
		w := faker.Word()
		if uint32(len(w)) > col.Width {
			w = w[:col.Width]
		}
		return w
	case datatype.Int64, datatype.Int32, datatype.Int16, datatype.Int8:
		return fmt.Sprintf("%d", g.rng.Int63n(1_000_000))
	case datatype.Uint64, datatype.Uint32, datatype.Uint16, datatype.Uint8:
		return fmt.Sprintf("%d", g.rng.Int63n(1_000_000))
	case datatype.Float64, datatype.Float32:
		return fmt.Sprintf("%.2f", g.rng.Float64()*100_000)
	case datatype.Boolean:
		if g.rng.Intn(2) == 0 {
			return "false"
		}
		return "true"
	case datatype.TimestampSecond:
		base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		t := base.Add(time.Duration(g.rng.Int63n(5*365*24)) * time.Hour)
		return t.Format("2006-01-02 15:04:05")
	default:
		return faker.Word()
	}
}

// EncodeRow pads each cell to its column width: text left-aligned, numeric
// and everything else right-aligned, the alignment mainframe extracts use.
// A cell wider than its column is an error, not a silent truncation.
func EncodeRow(cols []Column, cells []string) (string, error) {
	var sb strings.Builder
	for i, col := range cols {
		cell := cells[i]
		if uint32(len(cell)) > col.Width {
			return "", fmt.Errorf("fixture: cell %q wider than column %s width %d", cell, col.Name, col.Width)
		}
		pad := strings.Repeat(" ", int(col.Width)-len(cell))
		if col.Type.ID == datatype.String || col.Type.ID == datatype.Binary {
			sb.WriteString(cell)
			sb.WriteString(pad)
		} else {
			sb.WriteString(pad)
			sb.WriteString(cell)
		}
	}
	return sb.String(), nil
}

// WriteFile writes a header row of column names followed by rows generated
// rows, each newline-terminated.
func WriteFile(w io.Writer, cols []Column, gen *Generator, rows int) error {
	var header strings.Builder
	for _, col := range cols {
		if uint32(len(col.Name)) > col.Width {
			return fmt.Errorf("fixture: column name %q wider than width %d", col.Name, col.Width)
		}
		header.WriteString(col.Name)
		header.WriteString(strings.Repeat(" ", int(col.Width)-len(col.Name)))
	}
	if _, err := io.WriteString(w, header.String()+"\n"); err != nil {
		return err
	}
	for r := 0; r < rows; r++ {
		line, err := EncodeRow(cols, gen.Row())
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// ReadOptions returns the option structs that read back a file produced by
// WriteFile with the same columns.
func ReadOptions(cols []Column) (options.ParseOptions, options.ConvertOptions) {
	widths := make([]uint32, len(cols))
	types := make(map[string]datatype.DataType, len(cols))
	for i, col := range cols {
		widths[i] = col.Width
		types[col.Name] = col.Type
	}
	parse := options.DefaultParseOptions()
	parse.FieldWidths = widths
	convert := options.DefaultConvertOptions()
	convert.ColumnTypes = types
	return parse, convert
}
