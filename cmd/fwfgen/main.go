// fwfgen writes a synthetic fixed-width file plus the YAML option file
// needed to read it back with fwfr.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"fwfr/internal/datatype"
	"fwfr/internal/fixture"
)

var (
	outPath  *string
	numRows  *int
	seed     *int64
	withYAML *bool
)

func main() {
	setupFlags()

	cols := fixture.DefaultColumns()
	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	gen := fixture.NewGenerator(cols, *seed)
	if err := fixture.WriteFile(f, cols, gen, *numRows); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d rows to %s", *numRows, *outPath)

	if *withYAML {
		yamlPath := *outPath + ".yaml"
		if err := os.WriteFile(yamlPath, []byte(optionsYAML(cols, *outPath)), 0644); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote read options to %s", yamlPath)
	}
}

// optionsYAML renders the fwfr read config for the generated file.
func optionsYAML(cols []fixture.Column, input string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "inputs:\n  - %s\n", input)
	sb.WriteString("field_widths:\n")
	for _, col := range cols {
		fmt.Fprintf(&sb, "  - %d\n", col.Width)
	}
	sb.WriteString("ignore_empty_lines: true\nuse_threads: true\ncolumn_types:\n")
	for _, col := range cols {
		fmt.Fprintf(&sb, "  %s: %s\n", col.Name, typeSpelling(col.Type))
	}
	return sb.String()
}

func typeSpelling(dt datatype.DataType) string {
	if dt.ID == datatype.FixedSizeBinary {
		return "fixed_size_binary"
	}
	return dt.String()
}

func setupFlags() {
	outPath = flag.String("out", "fixture.fwf", "Output file path.")
	numRows = flag.Int("rows", 1000, "Amount of records to generate.")
	seed = flag.Int64("seed", 1, "Seed for the numeric value generator.")
	withYAML = flag.Bool("yaml", true, "Also write a <out>.yaml read config next to the data file.")
	flag.Usage = func() {
		fmt.Println("\nfwfgen - fixed-width fixture generator\n\nArguments:")
		flag.PrintDefaults()
	}
	flag.Parse()
}
