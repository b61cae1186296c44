package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"fwfr/internal/table"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	nameColor   = color.New(color.FgGreen)
	typeColor   = color.New(color.FgYellow)
	statColor   = color.New(color.FgWhite, color.Bold)
)

// printSummary writes a colored schema + row-count summary for one file.
func printSummary(path string, tbl *table.Table, elapsed time.Duration) {
	headerColor.Printf("== %s ==\n", path)
	for _, f := range tbl.Schema.Fields {
		fmt.Printf("  %s: %s\n", nameColor.Sprint(f.Name), typeColor.Sprint(f.Type.String()))
	}
	fmt.Printf("  %s rows, %s columns in %s\n",
		statColor.Sprint(tbl.NumRows()),
		statColor.Sprint(tbl.NumCols()),
		statColor.Sprint(elapsed.Round(time.Millisecond)))
}
