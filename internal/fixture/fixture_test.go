package fixture

import (
	"bytes"
	"strings"
	"testing"

	"fwfr/internal/datatype"
)

func TestEncodeRowAlignment(t *testing.T) {
	cols := []Column{
		{Name: "name", Type: datatype.StringType(), Width: 6},
		{Name: "id", Type: datatype.Int64Type(), Width: 4},
	}
	line, err := EncodeRow(cols, []string{"ab", "12"})
	if err != nil {
		t.Fatal(err)
	}
	if line != "ab      12" {
		t.Fatalf("line = %q, want text left-aligned and numbers right-aligned", line)
	}

	if _, err := EncodeRow(cols, []string{"toolongvalue", "12"}); err == nil {
		t.Fatal("accepted a cell wider than its column")
	}
}

func TestWriteFileShape(t *testing.T) {
	cols := DefaultColumns()
	var buf bytes.Buffer
	if err := WriteFile(&buf, cols, NewGenerator(cols, 3), 5); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %d, want header + 5 rows", len(lines))
	}
	var rowWidth int
	for _, col := range cols {
		rowWidth += int(col.Width)
	}
	for i, line := range lines {
		if len(line) != rowWidth {
			t.Fatalf("line %d has %d bytes, want %d", i, len(line), rowWidth)
		}
	}
}
