package options

import (
	"fmt"
	"os"

	"fwfr/internal/datatype"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML shape cmd/fwfr loads: a flat description
// of the three option structs plus the input path(s). Column types are
// spelled as the datatype.ID string form ("int64", "utf8", "fixed_size_binary[8]"
// is not accepted here — fixed-size binary columns must be declared via
// FixedSizeBinaryWidths instead, since the width isn't recoverable from the
// name alone).
type FileConfig struct {
	Inputs []string `yaml:"inputs"`

	FieldWidths      []uint32 `yaml:"field_widths"`
	NewlinesInValues bool     `yaml:"newlines_in_values"`
	IgnoreEmptyLines bool     `yaml:"ignore_empty_lines"`

	ColumnTypes             map[string]string `yaml:"column_types"`
	FixedSizeBinaryWidths   map[string]int    `yaml:"fixed_size_binary_widths"`
	NullValues              []string          `yaml:"null_values"`
	TrueValues              []string          `yaml:"true_values"`
	FalseValues             []string          `yaml:"false_values"`
	StringsCanBeNull        bool              `yaml:"strings_can_be_null"`
	COBOL                   bool              `yaml:"is_cobol"`
	COBOLPosValues          map[string]string `yaml:"pos_values"`
	COBOLNegValues          map[string]string `yaml:"neg_values"`

	Encoding    string   `yaml:"encoding"`
	UseThreads  bool     `yaml:"use_threads"`
	BlockSize   int      `yaml:"block_size"`
	SkipRows    int      `yaml:"skip_rows"`
	ColumnNames []string `yaml:"column_names"`
}

// LoadYAML reads path and builds the three option structs it describes.
func LoadYAML(path string) (ParseOptions, ConvertOptions, ReadOptions, []string, error) {
	var zero1 ParseOptions
	var zero2 ConvertOptions
	var zero3 ReadOptions

	data, err := os.ReadFile(path)
	if err != nil {
		return zero1, zero2, zero3, nil, fmt.Errorf("fwfr: reading config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return zero1, zero2, zero3, nil, fmt.Errorf("fwfr: parsing config %s: %w", path, err)
	}

	parse := ParseOptions{
		FieldWidths:      fc.FieldWidths,
		NewlinesInValues: fc.NewlinesInValues,
		IgnoreEmptyLines: fc.IgnoreEmptyLines,
	}

	columnTypes := map[string]datatype.DataType{}
	for name, spelling := range fc.ColumnTypes {
		dt, err := parseDataType(spelling, fc.FixedSizeBinaryWidths[name])
		if err != nil {
			return zero1, zero2, zero3, nil, fmt.Errorf("fwfr: column %q: %w", name, err)
		}
		columnTypes[name] = dt
	}

	convert := ConvertOptions{
		ColumnTypes:      columnTypes,
		NullValues:       fc.NullValues,
		TrueValues:       fc.TrueValues,
		FalseValues:      fc.FalseValues,
		StringsCanBeNull: fc.StringsCanBeNull,
	}
	if fc.COBOL {
		pos, err := byteMap(fc.COBOLPosValues)
		if err != nil {
			return zero1, zero2, zero3, nil, fmt.Errorf("fwfr: pos_values: %w", err)
		}
		neg, err := byteMap(fc.COBOLNegValues)
		if err != nil {
			return zero1, zero2, zero3, nil, fmt.Errorf("fwfr: neg_values: %w", err)
		}
		convert.COBOL = COBOLOptions{Enabled: true, PosMap: pos, NegMap: neg}
	}

	read := ReadOptions{
		Encoding:    fc.Encoding,
		UseThreads:  fc.UseThreads,
		BlockSize:   fc.BlockSize,
		SkipRows:    fc.SkipRows,
		ColumnNames: fc.ColumnNames,
	}
	if read.BlockSize == 0 {
		read.BlockSize = DefaultReadOptions().BlockSize
	}

	return parse, convert, read, fc.Inputs, nil
}

func parseDataType(spelling string, fixedWidth int) (datatype.DataType, error) {
	switch spelling {
	case "int8":
		return datatype.Int8Type(), nil
	case "int16":
		return datatype.Int16Type(), nil
	case "int32":
		return datatype.Int32Type(), nil
	case "int64":
		return datatype.Int64Type(), nil
	case "uint8":
		return datatype.Uint8Type(), nil
	case "uint16":
		return datatype.Uint16Type(), nil
	case "uint32":
		return datatype.Uint32Type(), nil
	case "uint64":
		return datatype.Uint64Type(), nil
	case "float32":
		return datatype.Float32Type(), nil
	case "float64":
		return datatype.Float64Type(), nil
	case "bool":
		return datatype.BooleanType(), nil
	case "timestamp[s]":
		return datatype.TimestampSecondType(), nil
	case "binary":
		return datatype.BinaryType(), nil
	case "utf8":
		return datatype.StringType(), nil
	case "fixed_size_binary":
		if fixedWidth <= 0 {
			return datatype.DataType{}, fmt.Errorf("fixed_size_binary requires a positive width in fixed_size_binary_widths")
		}
		return datatype.FixedSizeBinaryType(fixedWidth), nil
	default:
		return datatype.DataType{}, fmt.Errorf("unrecognized type spelling %q", spelling)
	}
}

// byteMap converts a YAML string->string overpunch map into byte->byte,
// validating that every key/value is exactly one character.
func byteMap(in map[string]string) (map[byte]byte, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[byte]byte, len(in))
	for k, v := range in {
		if len(k) != 1 || len(v) != 1 {
			return nil, fmt.Errorf("overpunch map entries must be single characters, got %q -> %q", k, v)
		}
		out[k[0]] = v[0]
	}
	return out, nil
}
