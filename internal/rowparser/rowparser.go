// Package rowparser splits a contiguous byte payload into rows and
// column-major field slices by fixed byte width, with no delimiter
// search. The scan is a two-state loop (inside a field, at a field end)
// with explicit width counters.
package rowparser

import (
	"fwfr/internal/fwferrors"
	"fwfr/internal/options"
)

// ParsedBlock is the parser's output: num_rows x num_cols field slices
// into Buf, stored column-major (all of column 0's rows, then column 1's,
// ...) so VisitColumn can stream one column without touching the others.
type ParsedBlock struct {
	Buf     []byte
	NumRows int
	NumCols int

	// offsets[col*NumRows+row], lengths[col*NumRows+row].
	offsets []uint32
	lengths []uint32
}

// VisitColumn calls fn once per row, in row order, with that row's slice
// of Buf for the given column. fn must not retain the slice beyond the
// call if the ParsedBlock's buffer may be reused — callers that need to
// retain it (COBOL overpunch scratch, converter error payloads) copy.
func (pb *ParsedBlock) VisitColumn(col int, fn func(row int, data []byte)) {
	base := col * pb.NumRows
	for row := 0; row < pb.NumRows; row++ {
		off, length := pb.offsets[base+row], pb.lengths[base+row]
		fn(row, pb.Buf[off:off+length])
	}
}

// Cell returns the raw slice for one (row, col) pair.
func (pb *ParsedBlock) Cell(row, col int) []byte {
	idx := col*pb.NumRows + row
	off, length := pb.offsets[idx], pb.lengths[idx]
	return pb.Buf[off : off+length]
}

// RowStart returns the byte offset, within Buf, at which row begins —
// equivalently, the number of bytes consumed through the end of row-1's
// terminator. The header phase uses this to find exactly where to advance
// the cursor once it has read as many rows as it needs, without consuming
// whatever rows follow in the same parsed prefix.
func (pb *ParsedBlock) RowStart(row int) uint32 {
	return pb.offsets[row] // column 0's base is row 0, i.e. offset 0*NumRows.
}

// ErrTruncatedRow is returned by ParseFinal when trailing bytes cannot
// form a complete row under the declared field widths.
var ErrTruncatedRow = fwferrors.ErrInvalid

// builder accumulates rows into column-major slices without knowing the
// final row count up front; it grows geometrically like a slice append.
type builder struct {
	numCols int
	numRows int
	cap     int
	offsets []uint32
	lengths []uint32
}

func newBuilder(numCols int) *builder {
	return &builder{numCols: numCols}
}

func (b *builder) reserveRow() {
	if b.numRows == b.cap {
		newCap := b.cap * 2
		if newCap == 0 {
			newCap = 64
		}
		newOffsets := make([]uint32, newCap*b.numCols)
		newLengths := make([]uint32, newCap*b.numCols)
		b.migrate(newOffsets, newLengths, newCap)
		b.offsets, b.lengths, b.cap = newOffsets, newLengths, newCap
	}
	b.numRows++
}

// migrate re-lays-out the column-major arrays from the old capacity to
// the new one (column-major storage means a capacity change isn't a
// simple append; each column's run has to slide to its new stride).
func (b *builder) migrate(newOffsets, newLengths []uint32, newCap int) {
	for col := 0; col < b.numCols; col++ {
		srcBase := col * b.cap
		dstBase := col * newCap
		copy(newOffsets[dstBase:dstBase+b.numRows], b.offsets[srcBase:srcBase+b.numRows])
		copy(newLengths[dstBase:dstBase+b.numRows], b.lengths[srcBase:srcBase+b.numRows])
	}
}

func (b *builder) setCell(row, col int, offset, length uint32) {
	idx := col*b.cap + row
	b.offsets[idx] = offset
	b.lengths[idx] = length
}

// finish packs the builder's arrays down to exactly numRows*numCols,
// discarding the geometric slack, and wraps them in a ParsedBlock.
func (b *builder) finish(buf []byte) *ParsedBlock {
	pb := &ParsedBlock{Buf: buf, NumRows: b.numRows, NumCols: b.numCols}
	if b.numRows == 0 {
		return pb
	}
	pb.offsets = make([]uint32, b.numRows*b.numCols)
	pb.lengths = make([]uint32, b.numRows*b.numCols)
	for col := 0; col < b.numCols; col++ {
		srcBase := col * b.cap
		dstBase := col * b.numRows
		copy(pb.offsets[dstBase:dstBase+b.numRows], b.offsets[srcBase:srcBase+b.numRows])
		copy(pb.lengths[dstBase:dstBase+b.numRows], b.lengths[srcBase:srcBase+b.numRows])
	}
	return pb
}

// Parse returns the largest prefix of payload that ends on a row
// boundary, as a ParsedBlock plus the number of bytes consumed. It never
// fails: an incomplete trailing row is simply left unconsumed.
func Parse(payload []byte, opts options.ParseOptions) (*ParsedBlock, uint32, error) {
	return parse(payload, opts, false)
}

// ParseFinal is like Parse but additionally accepts a final row that has
// no trailing separator, since there is no further block to supply one.
// It fails with ErrTruncatedRow if the remaining bytes cannot form a
// complete row under the declared widths.
func ParseFinal(payload []byte, opts options.ParseOptions) (*ParsedBlock, uint32, error) {
	return parse(payload, opts, true)
}

func parse(payload []byte, opts options.ParseOptions, final bool) (*ParsedBlock, uint32, error) {
	numCols := len(opts.FieldWidths)
	b := newBuilder(numCols)
	var consumed uint32

	if opts.NewlinesInValues {
		rowWidth := opts.RowWidth()
		for consumed+rowWidth <= uint32(len(payload)) {
			rowStart := consumed
			b.reserveRow()
			row := b.numRows - 1
			off := rowStart
			for col, width := range opts.FieldWidths {
				b.setCell(row, col, off, width)
				off += width
			}
			consumed = off
		}
		if final && consumed < uint32(len(payload)) {
			return nil, 0, fwferrors.Invalidf("truncated row: %d trailing bytes do not fill a full row", len(payload)-int(consumed))
		}
		return b.finish(payload), consumed, nil
	}

	pos := uint32(0)
	n := uint32(len(payload))
	for {
		rowStart := pos
		// inField: scan each column's fixed-width range for an embedded
		// CR/LF that ends the row early.
		cellOffsets := make([]uint32, numCols)
		cellLengths := make([]uint32, numCols)
		newlineAt := int64(-1)
		newlineCol := -1
		truncatedAtCol := -1
		cursor := pos
		for col, width := range opts.FieldWidths {
			fieldStart := cursor
			fieldEnd := fieldStart + width
			limit := fieldEnd
			if limit > n {
				limit = n
			}
			at := int64(-1)
			for i := fieldStart; i < limit; i++ {
				if payload[i] == '\n' || payload[i] == '\r' {
					at = int64(i)
					break
				}
			}
			if at >= 0 {
				cellOffsets[col] = fieldStart
				cellLengths[col] = uint32(at) - fieldStart
				newlineAt = at
				newlineCol = col
				break
			}
			if fieldEnd > n {
				// Field doesn't fully fit in what we have; row is
				// incomplete unless this is the final call and there is
				// truly no more data coming.
				truncatedAtCol = col
				cellOffsets[col] = fieldStart
				cellLengths[col] = limit - fieldStart
				break
			}
			cellOffsets[col] = fieldStart
			cellLengths[col] = width
			cursor = fieldEnd
		}

		if truncatedAtCol >= 0 {
			if !final {
				// Leave the whole row for the next block.
				return b.finish(payload), rowStart, nil
			}
			return nil, 0, fwferrors.Invalidf("truncated row: row starting at %d is short", rowStart)
		}

		// fieldEnd: a row completed, either by exhausting the width
		// budget (newlineAt == -1) or by an embedded newline, in which
		// case every column after the one holding the newline is blank.
		if newlineAt >= 0 {
			for col := newlineCol + 1; col < numCols; col++ {
				cellOffsets[col] = uint32(newlineAt)
				cellLengths[col] = 0
			}
			pos = uint32(newlineAt)
		} else {
			if !final && cursor >= n {
				// The row fills its budget flush with the block edge.
				// Whether a terminator follows is unknowable until the
				// next block, so leave the whole row for it — this also
				// keeps the chunker's backward newline scan and our
				// consumed count in agreement.
				return b.finish(payload), consumed, nil
			}
			pos = cursor
		}

		empty := pos == rowStart
		if empty && opts.IgnoreEmptyLines {
			pos = consumeTerminator(payload, pos)
			consumed = pos
			if pos >= n {
				break
			}
			continue
		}

		b.reserveRow()
		row := b.numRows - 1
		for col := 0; col < numCols; col++ {
			b.setCell(row, col, cellOffsets[col], cellLengths[col])
		}

		pos = consumeTerminator(payload, pos)
		consumed = pos
		if pos >= n {
			break
		}
	}

	return b.finish(payload), consumed, nil
}

// consumeTerminator advances past a CR, LF, or CRLF sitting at pos, or
// returns pos unchanged if there is none (EOF with no trailing newline).
func consumeTerminator(payload []byte, pos uint32) uint32 {
	n := uint32(len(payload))
	if pos >= n {
		return pos
	}
	switch payload[pos] {
	case '\r':
		if pos+1 < n && payload[pos+1] == '\n' {
			return pos + 2
		}
		return pos + 1
	case '\n':
		return pos + 1
	default:
		return pos
	}
}
