package blocksource

import (
	"context"
	"io"
	"sync"

	"golang.org/x/time/rate"

	"fwfr/internal/fwferrors"
)

// Source delivers padded byte blocks in file order until EOF. It is the
// only interface the rest of the pipeline has to the underlying stream,
// and it is deliberately tiny: read the next block, grow the padding,
// close.
type Source interface {
	// Read returns the next block, or (nil, nil) at EOF. Blocks are
	// delivered in file order and may be smaller than requested near EOF.
	Read() (*Block, error)
	// SetLeftPadding raises the left padding reserved on subsequent reads.
	// Used by the cursor when a stitched tail outgrows the current padding.
	SetLeftPadding(n int)
	// Close releases the underlying reader, if it is a Closer.
	Close() error
}

// readaheadEntry is one slot in the bounded look-ahead queue.
type readaheadEntry struct {
	block *Block
	err   error
}

// spooler reads blocks from r on a background goroutine, maintaining a
// bounded queue depth so the reader loop never stalls behind I/O it could
// otherwise be parsing/converting.
type spooler struct {
	r         io.Reader
	blockSize int
	queue     chan readaheadEntry
	limiter   *rate.Limiter

	mu           sync.Mutex
	leftPadding  int
	rightPadding int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closer io.Closer
}

// Option configures a Source constructed by Open/NewSource.
type Option func(*spooler)

// WithQueueDepth sets the number of blocks buffered ahead of the consumer.
// Parallel reads want one slot per worker; serial reads need only one.
func WithQueueDepth(n int) Option {
	return func(s *spooler) {
		if n < 1 {
			n = 1
		}
		s.queue = make(chan readaheadEntry, n)
	}
}

// WithRateLimiter caps read throughput, so a bulk read from a shared or
// remote filesystem doesn't starve neighboring jobs.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *spooler) { s.limiter = l }
}

// NewSource wraps r (already decompressed/pre-processed) as a padded block
// Source. blockSize is the number of payload bytes requested per read.
func NewSource(r io.Reader, blockSize int, opts ...Option) Source {
	ctx, cancel := context.WithCancel(context.Background())
	s := &spooler{
		r:            r,
		blockSize:    blockSize,
		leftPadding:  DefaultLeftPadding,
		rightPadding: DefaultRightPadding,
		ctx:          ctx,
		cancel:       cancel,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = make(chan readaheadEntry, 2)
	}
	s.wg.Add(1)
	go s.pump()
	return s
}

func (s *spooler) SetLeftPadding(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.leftPadding {
		s.leftPadding = n
	}
}

func (s *spooler) currentLeftPadding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leftPadding
}

func (s *spooler) pump() {
	defer s.wg.Done()
	defer close(s.queue)
	for {
		if s.limiter != nil {
			if err := s.limiter.WaitN(s.ctx, s.blockSize); err != nil {
				select {
				case s.queue <- readaheadEntry{err: err}:
				case <-s.ctx.Done():
				}
				return
			}
		}
		leftPadding := s.currentLeftPadding()
		block := newBlock(leftPadding, s.blockSize, s.rightPadding)
		payload := block.Buf[leftPadding : leftPadding+s.blockSize]
		n, err := io.ReadFull(s.r, payload)
		if n > 0 {
			block.Buf = block.Buf[:leftPadding+n+s.rightPadding]
			entry := readaheadEntry{block: block}
			select {
			case s.queue <- entry:
			case <-s.ctx.Done():
				return
			}
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				select {
				case s.queue <- readaheadEntry{block: nil, err: nil}:
				case <-s.ctx.Done():
				}
			} else {
				select {
				case s.queue <- readaheadEntry{err: fwferrors.IOf("reading block: %v", err)}:
				case <-s.ctx.Done():
				}
			}
			return
		}
	}
}

func (s *spooler) Read() (*Block, error) {
	entry, ok := <-s.queue
	if !ok {
		return nil, nil
	}
	return entry.block, entry.err
}

func (s *spooler) Close() error {
	s.cancel()
	s.wg.Wait()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
