// Package reader implements the table reader: it orchestrates the header
// phase, the serial or parallel block loop, and final table assembly as a
// fixed sequence of fallible phases, each logged and timed, with the
// first error winning.
package reader

import (
	"bytes"
	"io"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"fwfr/internal/blocksource"
	"fwfr/internal/chunker"
	"fwfr/internal/column"
	"fwfr/internal/convert"
	"fwfr/internal/fwferrors"
	"fwfr/internal/logging"
	"fwfr/internal/options"
	"fwfr/internal/rowparser"
	"fwfr/internal/table"
	"fwfr/internal/taskgroup"
)

// Options bundles the three immutable option structs one Read call needs.
type Options struct {
	Parse   options.ParseOptions
	Convert options.ConvertOptions
	Read    options.ReadOptions
}

// Read opens r (after optional whole-stream decompression and transcoding)
// and reads one complete table. r is closed by the caller, not by Read.
func Read(r io.Reader, opts Options) (*table.Table, error) {
	return ReadWithLimiter(r, opts, nil)
}

// ReadWithLimiter is Read with an optional throughput cap on the underlying
// block reads. A nil limiter reads at full speed.
func ReadWithLimiter(r io.Reader, opts Options, limiter *rate.Limiter) (*table.Table, error) {
	if err := opts.Parse.Validate(); err != nil {
		return nil, err
	}

	decompressed, err := blocksource.Wrap(r, blocksource.CodecNone)
	if err != nil {
		return nil, err
	}
	transcoder, err := blocksource.NewTranscoder(opts.Read.Encoding)
	if err != nil {
		return nil, err
	}
	blockSize := opts.Read.BlockSize
	if blockSize <= 0 {
		blockSize = options.DefaultReadOptions().BlockSize
	}
	queueDepth := 1
	if opts.Read.UseThreads {
		queueDepth = workerCount() + 1
	}
	srcOpts := []blocksource.Option{blocksource.WithQueueDepth(queueDepth)}
	if limiter != nil {
		srcOpts = append(srcOpts, blocksource.WithRateLimiter(limiter))
	}
	src := blocksource.NewSource(decompressed, blockSize, srcOpts...)
	cursor := blocksource.NewCursor(src, transcoder)
	defer cursor.Close()

	rd := &tableReader{cursor: cursor, opts: opts}
	return rd.read()
}

func workerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

type tableReader struct {
	cursor *blocksource.Cursor
	opts   Options

	columnNames []string
	builders    []column.Builder
	tables      *convert.Tables
}

func (rd *tableReader) read() (*table.Table, error) {
	logging.Event(logging.LevelInfo, "read", "starting (use_threads=%v block_size=%d)", rd.opts.Read.UseThreads, rd.opts.Read.BlockSize)

	start := time.Now()
	if err := rd.headerPhase(); err != nil {
		logging.Event(logging.LevelError, "header", "failed: %v", err)
		return nil, err
	}
	rd.buildColumnBuilders()
	logging.Event(logging.LevelInfo, "header", "done in %s (%d columns)", time.Since(start).Round(time.Microsecond), len(rd.columnNames))

	start = time.Now()
	var err error
	if rd.opts.Read.UseThreads {
		err = rd.parallelBody()
	} else {
		err = rd.serialBody()
	}
	if err != nil {
		logging.Event(logging.LevelError, "body", "failed: %v", err)
		return nil, err
	}
	logging.Event(logging.LevelInfo, "body", "done in %s", time.Since(start).Round(time.Microsecond))

	tbl, err := rd.assemble()
	if err != nil {
		logging.Event(logging.LevelError, "assemble", "failed: %v", err)
		return nil, err
	}
	logging.Event(logging.LevelInfo, "assemble", "%d rows x %d columns", tbl.NumRows(), tbl.NumCols())
	return tbl, nil
}

// next fetches the next stitched block from the cursor. The cursor has
// already transcoded, BOM-stripped, and tail-stitched the payload.
func (rd *tableReader) next() (*blocksource.Block, []byte, error) {
	block, err := rd.cursor.Next()
	if err != nil {
		return nil, nil, err
	}
	if block == nil {
		return nil, nil, nil
	}
	return block, block.Payload(), nil
}

// headerPhase reads blocks until SkipRows raw rows plus (if
// ReadOptions.ColumnNames is empty) one name row have been seen, then
// advances the cursor past exactly those rows, leaving the remainder for
// the body loop.
func (rd *tableReader) headerPhase() error {
	rowsNeeded := rd.opts.Read.SkipRows
	needsNameRow := len(rd.opts.Read.ColumnNames) == 0
	if needsNameRow {
		rowsNeeded++
	}

	first := true
	for {
		block, payload, err := rd.next()
		if err != nil {
			return err
		}
		if block == nil {
			if first {
				return fwferrors.Invalid("empty input")
			}
			return fwferrors.Invalidf("truncated header: needed %d row(s) before data, input ended first", rowsNeeded)
		}
		first = false

		parseFn := rowparser.Parse
		if block.Final {
			parseFn = rowparser.ParseFinal
		}
		pb, consumed, err := parseFn(payload, rd.opts.Parse)
		if err != nil {
			return err
		}

		if pb.NumRows >= rowsNeeded {
			if needsNameRow {
				names := make([]string, len(rd.opts.Parse.FieldWidths))
				nameRow := rowsNeeded - 1
				for col := range names {
					names[col] = string(bytes.TrimSpace(pb.Cell(nameRow, col)))
				}
				rd.columnNames = names
			} else {
				rd.columnNames = append([]string(nil), rd.opts.Read.ColumnNames...)
			}
			consumedThrough := consumed
			if rowsNeeded < pb.NumRows {
				consumedThrough = pb.RowStart(rowsNeeded)
			}
			return rd.cursor.Advance(int(consumedThrough))
		}

		if block.Final {
			return fwferrors.Invalidf("truncated header: needed %d row(s) before data, only %d available", rowsNeeded, pb.NumRows)
		}
		if err := rd.cursor.Advance(0); err != nil {
			return err
		}
	}
}

// buildColumnBuilders instantiates one Builder per column, Typed when the
// column name is in ConvertOptions.ColumnTypes, Inferring otherwise.
func (rd *tableReader) buildColumnBuilders() {
	rd.tables = convert.NewTables(rd.opts.Convert)
	rd.builders = make([]column.Builder, len(rd.columnNames))
	for i, name := range rd.columnNames {
		if dt, ok := rd.opts.Convert.ColumnTypes[name]; ok {
			conv, err := convert.ForType(rd.tables, dt)
			if err != nil {
				rd.builders[i] = failingBuilder{err: err}
				continue
			}
			rd.builders[i] = column.NewTyped(i, conv)
		} else {
			rd.builders[i] = column.NewInferring(i, rd.tables)
		}
	}
}

// failingBuilder surfaces a build-time error (an unrecognized declared
// column type) through the same Builder interface so the reader doesn't
// need a separate error path for it.
type failingBuilder struct {
	err error
}

func (failingBuilder) Insert(taskgroup.Group, int, *rowparser.ParsedBlock) {}
func (b failingBuilder) Finish() (*table.ChunkedArray, error)              { return nil, b.err }

func (rd *tableReader) insertAll(group taskgroup.Group, blockIndex int, pb *rowparser.ParsedBlock) {
	for _, b := range rd.builders {
		b.Insert(group, blockIndex, pb)
	}
}

// serialBody runs the whole remaining input through one serial task group:
// parse everything available with an unbounded row budget, insert each
// column, advance, and read more until EOF; the cursor's own final tail
// block (§-marked Final) is handled with ParseFinal in the same loop.
func (rd *tableReader) serialBody() error {
	group := taskgroup.NewSerial()
	blockIndex := 0

	for {
		block, payload, err := rd.next()
		if err != nil {
			return err
		}
		if block == nil {
			break
		}

		parseFn := rowparser.Parse
		owned := payload
		if block.Final {
			parseFn = rowparser.ParseFinal
			// block.Final's payload is already an independent copy (see
			// stitch.go), so no clone is needed here.
		} else {
			// Cloned because the inferring builder may retain this
			// ParsedBlock past this iteration (for reconversion on
			// widening), while the cursor reuses its backing buffer on
			// the next Advance call.
			owned = append([]byte(nil), payload...)
		}
		pb, consumed, err := parseFn(owned, rd.opts.Parse)
		if err != nil {
			return err
		}
		if pb.NumRows > 0 {
			rd.insertAll(group, blockIndex, pb)
			blockIndex++
		}
		if block.Final {
			break
		}
		if err := rd.cursor.Advance(int(consumed)); err != nil {
			return err
		}
	}

	return group.Finish()
}

// parallelBody runs the chunker-driven fan-out: chunk the payload, spawn a
// task parsing that chunk and inserting it into every builder, repeat. At
// EOF (including the cursor's Final tail block) it drains the parallel
// group, then does a second serial finalize pass — required because
// inference reconversion may still be rescheduling tasks when the parallel
// pass's bytes run out.
func (rd *tableReader) parallelBody() error {
	group := taskgroup.NewThreaded(workerCount())
	blockIndex := 0

	for group.Ok() {
		block, payload, err := rd.next()
		if err != nil {
			return err
		}
		if block == nil {
			break
		}
		if block.Final {
			// Two-phase finish: drain the parallel group first, so any
			// inference reconversion it is still rescheduling completes,
			// then run ParseFinal and its inserts under a fresh serial
			// group.
			if err := group.Finish(); err != nil {
				return err
			}
			pb, _, err := rowparser.ParseFinal(payload, rd.opts.Parse)
			if err != nil {
				return err
			}
			finalGroup := taskgroup.NewSerial()
			if pb.NumRows > 0 {
				rd.insertAll(finalGroup, blockIndex, pb)
			}
			return finalGroup.Finish()
		}

		originalLen := len(payload)
		for {
			size, err := chunkSize(payload, rd.opts.Parse)
			if err != nil {
				if ferr := group.Finish(); ferr != nil {
					return ferr
				}
				return err
			}
			if size == 0 {
				break
			}
			// Copied rather than sliced in place: the cursor reuses its
			// backing buffer on the next Advance/Next call (sliding the
			// unconsumed tail left), which would otherwise race with
			// whichever worker goroutine is still reading this chunk.
			chunk := append([]byte(nil), payload[:size]...)
			idx := blockIndex
			blockIndex++
			group.Append(func() error {
				pb, _, err := rowparser.Parse(chunk, rd.opts.Parse)
				if err != nil {
					return err
				}
				rd.insertAll(group, idx, pb)
				return nil
			})
			payload = payload[size:]
		}
		totalConsumed := originalLen - len(payload)
		if err := rd.cursor.Advance(totalConsumed); err != nil {
			return err
		}
	}

	return group.Finish()
}

// chunkSize wraps chunker.Process and cross-checks it against the row
// parser's own Parse consumed count. The two must always agree on a row
// boundary; a mismatch is a hard Inconsistency error, never silently
// tolerated.
func chunkSize(payload []byte, opts options.ParseOptions) (uint32, error) {
	size := chunker.Process(payload, opts)
	if size == 0 {
		return 0, nil
	}
	_, consumed, err := rowparser.Parse(payload[:size], opts)
	if err != nil {
		return 0, err
	}
	if consumed != size {
		return 0, fwferrors.Invalidf("chunker/parser inconsistency: chunker produced %d bytes but parser consumed %d", size, consumed)
	}
	return size, nil
}

// assemble zips column names with each builder's finished ChunkedArray into
// the final schema + table.
func (rd *tableReader) assemble() (*table.Table, error) {
	fields := make([]table.Field, len(rd.columnNames))
	columns := make([]*table.ChunkedArray, len(rd.columnNames))
	for i, name := range rd.columnNames {
		arr, err := rd.builders[i].Finish()
		if err != nil {
			return nil, err
		}
		columns[i] = arr
		fields[i] = table.Field{Name: name, Type: arr.Type}
	}
	return &table.Table{Schema: table.Schema{Fields: fields}, Columns: columns}, nil
}
