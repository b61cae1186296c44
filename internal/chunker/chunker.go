// Package chunker finds the largest row-aligned prefix of a raw block
// without running a full parse, so the table reader can hand off
// independent chunks to parallel parse tasks. Two policies: when CR/LF
// always terminates a row, a backward scan for the last newline is
// enough; when newlines may appear inside values, rows are walked
// forward by the fixed width budget.
package chunker

import (
	"github.com/klauspost/cpuid/v2"

	"fwfr/internal/fwferrors"
	"fwfr/internal/options"
)

// ErrInconsistency is returned when the slow path's forward width-budget
// scan disagrees with the row parser's own consumed-byte count. The two
// must always agree; a mismatch means either has a bug.
var ErrInconsistency = fwferrors.ErrInvalid

// Process returns out_size: the length of the largest prefix of payload
// that ends on a row boundary. It never fails — a payload with no
// complete row yields 0, leaving the whole thing for the next block.
func Process(payload []byte, opts options.ParseOptions) uint32 {
	if opts.NewlinesInValues {
		return slowPath(payload, opts.RowWidth())
	}
	return fastPath(payload)
}

// fastPath implements the newlines_in_values=false policy: scan backwards
// for the last CR or LF, since every row in this mode is newline-terminated.
func fastPath(payload []byte) uint32 {
	if cpuid.CPU.Supports(cpuid.SSE2) {
		return fastPathWordScan(payload)
	}
	return fastPathByteScan(payload)
}

// fastPathByteScan is the portable backward scan: one byte at a time.
func fastPathByteScan(payload []byte) uint32 {
	for i := len(payload) - 1; i >= 0; i-- {
		if payload[i] == '\n' || payload[i] == '\r' {
			return uint32(i + 1)
		}
	}
	return 0
}

// fastPathWordScan is the same backward scan, eight bytes at a time on the
// SIMD-capable CPUs cpuid reports, falling back to a byte-wise tail check.
// The word-at-a-time trick is still a byte compare, not a true SIMD
// intrinsic, but it keeps the branch-per-byte cost off the common case of
// a long run with no newline near the end.
func fastPathWordScan(payload []byte) uint32 {
	i := len(payload)
	for i >= 8 {
		word := payload[i-8 : i]
		if !containsNewline(word) {
			i -= 8
			continue
		}
		for j := 7; j >= 0; j-- {
			if word[j] == '\n' || word[j] == '\r' {
				return uint32(i - 8 + j + 1)
			}
		}
	}
	for j := i - 1; j >= 0; j-- {
		if payload[j] == '\n' || payload[j] == '\r' {
			return uint32(j + 1)
		}
	}
	return 0
}

func containsNewline(word []byte) bool {
	for _, b := range word {
		if b == '\n' || b == '\r' {
			return true
		}
	}
	return false
}

// slowPath implements the newlines_in_values=true policy: walk rows
// forward by the fixed width budget, discarding field positions, and
// return the offset after the last row that completed entirely within
// payload. Mirrors the parser's own row loop exactly (see
// internal/rowparser) so the two never disagree on a well-formed input.
func slowPath(payload []byte, rowWidth uint32) uint32 {
	if rowWidth == 0 {
		return 0
	}
	var consumed uint32
	for consumed+rowWidth <= uint32(len(payload)) {
		consumed += rowWidth
	}
	return consumed
}
