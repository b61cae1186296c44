// Package column implements the column builders: per-column output owners
// that drive (re)conversion as blocks arrive and, for inferring columns,
// retry conversion under the monotone widening lattice while other blocks
// are still being parsed in parallel. Each builder's mutex guards its
// chunk table and inference state; the conversion work itself always runs
// with the lock released.
package column

import (
	"fmt"
	"sync"

	"fwfr/internal/convert"
	"fwfr/internal/datatype"
	"fwfr/internal/fwferrors"
	"fwfr/internal/rowparser"
	"fwfr/internal/table"
	"fwfr/internal/taskgroup"
)

// Builder is the interface both the Typed and Inferring builders satisfy.
// Append is not goroutine-safe and must be called from a single thread (the
// reader loop); Insert is goroutine-safe.
type Builder interface {
	// Insert schedules conversion of blockIndex's column from pb onto
	// group. Safe to call concurrently across different column builders
	// and across repeated calls on the same one.
	Insert(group taskgroup.Group, blockIndex int, pb *rowparser.ParsedBlock)
	// Finish assembles the final ChunkedArray. Must be called only after
	// every task appended to every group Insert used has completed.
	Finish() (*table.ChunkedArray, error)
}

// slot is one entry in a column's per-block-index chunk table.
type slot struct {
	array  table.Array
	parsed *rowparser.ParsedBlock // retained only while reconversion may still be needed
}

// Typed is the fixed-type column builder: the column's type never changes,
// so a conversion failure is terminal.
type Typed struct {
	col       int
	converter convert.Converter

	mu     sync.Mutex
	chunks map[int]slot
	maxIdx int
}

// NewTyped returns a Builder for a column whose type is pinned by
// ConvertOptions.ColumnTypes.
func NewTyped(col int, converter convert.Converter) *Typed {
	return &Typed{col: col, converter: converter, chunks: make(map[int]slot), maxIdx: -1}
}

func (b *Typed) Insert(group taskgroup.Group, blockIndex int, pb *rowparser.ParsedBlock) {
	b.mu.Lock()
	if blockIndex > b.maxIdx {
		b.maxIdx = blockIndex
	}
	b.mu.Unlock()

	group.Append(func() error {
		arr, err := b.converter.Convert(pb, b.col)
		if err != nil {
			return fmt.Errorf("in column #%d: %w", b.col, err)
		}
		b.mu.Lock()
		b.chunks[blockIndex] = slot{array: arr}
		b.mu.Unlock()
		return nil
	})
}

func (b *Typed) Finish() (*table.ChunkedArray, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := &table.ChunkedArray{Type: b.converter.DataType()}
	for i := 0; i <= b.maxIdx; i++ {
		s, ok := b.chunks[i]
		if !ok || s.array == nil {
			return nil, fwferrors.Invalidf("in column #%d: chunk %d never produced an array", b.col, i)
		}
		out.Chunks = append(out.Chunks, s.array)
	}
	return out, nil
}

// Inferring is the type-inferring column builder. It starts at KindNull and
// widens one step at a time whenever conversion fails on the current
// converter, re-running every already-converted chunk at the new type.
type Inferring struct {
	col    int
	tables *convert.Tables

	mu        sync.Mutex
	kind      datatype.InferKind
	converter convert.Converter
	chunks    map[int]slot
	maxIdx    int
}

// NewInferring returns a Builder that starts at KindNull and widens as
// needed.
func NewInferring(col int, tables *convert.Tables) *Inferring {
	kind := datatype.KindNull
	return &Inferring{
		col:       col,
		tables:    tables,
		kind:      kind,
		converter: convert.ForKind(tables, kind),
		chunks:    make(map[int]slot),
		maxIdx:    -1,
	}
}

func (b *Inferring) Insert(group taskgroup.Group, blockIndex int, pb *rowparser.ParsedBlock) {
	b.mu.Lock()
	if blockIndex > b.maxIdx {
		b.maxIdx = blockIndex
	}
	b.chunks[blockIndex] = slot{parsed: pb}
	b.mu.Unlock()

	b.scheduleConvert(group, blockIndex)
}

// scheduleConvert runs one block's conversion task: snapshot
// kind+converter under lock, convert with the lock released, reacquire,
// then reconcile: stale (kind changed mid-flight) reschedules this block;
// success commits the array (dropping the retained ParsedBlock if the
// kind is now terminal); failure either widens-and-retries-every-chunk or
// surfaces the error, depending on whether the current kind can loosen.
func (b *Inferring) scheduleConvert(group taskgroup.Group, blockIndex int) {
	group.Append(func() error {
		b.mu.Lock()
		kindAtStart := b.kind
		converter := b.converter
		s := b.chunks[blockIndex]
		pb := s.parsed
		b.mu.Unlock()

		if pb == nil {
			// Already converted and dropped (terminal chunk); nothing to do.
			return nil
		}

		arr, convErr := converter.Convert(pb, b.col)

		b.mu.Lock()
		if b.kind != kindAtStart {
			// Stale: another task already widened the kind while we were
			// converting. Discard this result and reschedule under the
			// now-current converter.
			b.mu.Unlock()
			b.scheduleConvert(group, blockIndex)
			return nil
		}

		if convErr == nil {
			cur := b.chunks[blockIndex]
			cur.array = arr
			if !b.kind.CanLoosen() {
				cur.parsed = nil
			}
			b.chunks[blockIndex] = cur
			b.mu.Unlock()
			return nil
		}

		if !b.kind.CanLoosen() {
			b.mu.Unlock()
			return fmt.Errorf("in column #%d: %w", b.col, convErr)
		}

		// Widen: bump kind, replace converter, invalidate every
		// already-converted chunk (drop its array so Finish can tell it's
		// pending again), and reschedule conversion for each chunk
		// including this one.
		b.kind = b.kind.Loosen()
		b.converter = convert.ForKind(b.tables, b.kind)
		toReschedule := make([]int, 0, len(b.chunks))
		for idx, cs := range b.chunks {
			cs.array = nil
			b.chunks[idx] = cs
			toReschedule = append(toReschedule, idx)
		}
		b.mu.Unlock()

		for _, idx := range toReschedule {
			b.scheduleConvert(group, idx)
		}
		return nil
	})
}

func (b *Inferring) Finish() (*table.ChunkedArray, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := &table.ChunkedArray{Type: b.kind.DataType()}
	for i := 0; i <= b.maxIdx; i++ {
		s, ok := b.chunks[i]
		if !ok || s.array == nil {
			return nil, fwferrors.Invalidf("in column #%d: chunk %d never produced an array (logic bug in inference scheduling)", b.col, i)
		}
		if s.array.DataType().ID != out.Type.ID {
			return nil, fwferrors.Invalidf("in column #%d: chunk %d has type %s, expected final inferred type %s", b.col, i, s.array.DataType(), out.Type)
		}
		out.Chunks = append(out.Chunks, s.array)
	}
	return out, nil
}
