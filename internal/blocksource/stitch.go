package blocksource

import (
	"bytes"

	"fwfr/internal/fwferrors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Cursor turns a raw block Source into a stream of stitched, transcoded
// payloads ready for the chunker: it carries a trailing partial row
// forward across block boundaries, absorbs a CR/LF pair split across two
// reads, strips a leading UTF-8 BOM, and applies the configured
// Transcoder. When the previous block's tail fits inside the new block's
// left padding, the payload pointer slides left and the tail is copied
// into the padding (zero allocation); otherwise a concatenated buffer is
// built.
type Cursor struct {
	src        Source
	transcoder *Transcoder

	tail        []byte // unconsumed suffix of the last payload; aliases its buffer
	lastPayload []byte
	scratch     []byte // reused concat buffer for the fallback path

	crPending bool
	sawFirst  bool
	done      bool
}

// NewCursor wraps src. transcoder may be nil (input already UTF-8).
func NewCursor(src Source, transcoder *Transcoder) *Cursor {
	return &Cursor{src: src, transcoder: transcoder}
}

// Next returns the next block to chunk: the unconsumed tail of the
// previous block, if any, followed by the next raw block's (transcoded)
// payload. It returns (nil, nil) once the source is exhausted and no tail
// remains. The caller must call Advance with the number of bytes it
// actually consumed before calling Next again.
func (c *Cursor) Next() (*Block, error) {
	if c.done {
		return nil, nil
	}
	if len(c.tail) > DefaultLeftPadding {
		// Growth heuristic so subsequent reads have enough padding for
		// the zero-copy stitch.
		c.src.SetLeftPadding(len(c.tail) * 3 / 2)
	}
	raw, err := c.src.Read()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		c.done = true
		if len(c.tail) == 0 {
			return nil, nil
		}
		final := &Block{Buf: append([]byte(nil), c.tail...), Final: true}
		c.tail = nil
		c.lastPayload = final.Payload()
		return final, nil
	}

	payloadStart := raw.LeftPadding
	payloadEnd := len(raw.Buf) - raw.RightPadding
	transcoded := false
	var payload []byte
	if c.transcoder != nil {
		decoded, terr := c.transcoder.Transform(raw.Buf[payloadStart:payloadEnd])
		if terr != nil {
			return nil, terr
		}
		payload = decoded
		transcoded = true
	} else {
		payload = raw.Buf[payloadStart:payloadEnd]
	}

	// Absorb a CR/LF pair split across two reads, and the stream's one
	// leading BOM. The BOM check runs on the transcoded bytes: a BOM in
	// the source encoding only exists after decoding.
	drop := 0
	if c.crPending {
		c.crPending = false
		if len(payload) > 0 && payload[0] == '\n' {
			drop++
		}
	}
	if !c.sawFirst {
		c.sawFirst = true
		if bytes.HasPrefix(payload[drop:], utf8BOM) {
			drop += len(utf8BOM)
		}
	}
	payload = payload[drop:]
	if !transcoded {
		payloadStart += drop
	}
	if len(payload) > 0 && payload[len(payload)-1] == '\r' {
		c.crPending = true
	}

	tailLen := len(c.tail)
	if !transcoded && tailLen <= payloadStart {
		// Zero-copy stitch: slide the payload pointer left and fill the
		// padding gap with the tail.
		start := payloadStart - tailLen
		copy(raw.Buf[start:payloadStart], c.tail)
		block := &Block{Buf: raw.Buf, LeftPadding: start, RightPadding: raw.RightPadding}
		c.lastPayload = block.Payload()
		return block, nil
	}

	needed := tailLen + len(payload) + DefaultRightPadding
	if cap(c.scratch) < needed {
		c.scratch = make([]byte, needed)
	} else {
		c.scratch = c.scratch[:needed]
	}
	copy(c.scratch, c.tail)
	copy(c.scratch[tailLen:], payload)
	for i := tailLen + len(payload); i < needed; i++ {
		c.scratch[i] = 0
	}
	block := &Block{Buf: c.scratch, LeftPadding: 0, RightPadding: DefaultRightPadding}
	c.lastPayload = block.Payload()
	return block, nil
}

// Advance records that consumed bytes of the block last returned by Next
// were folded into complete rows; the remaining bytes become the tail
// prepended to the next call's payload. After the Final block it is a
// no-op: there is no next payload to stitch a tail onto.
func (c *Cursor) Advance(consumed int) error {
	if c.done {
		return nil
	}
	if consumed < 0 || consumed > len(c.lastPayload) {
		return fwferrors.Invalidf("consumed %d exceeds available payload %d", consumed, len(c.lastPayload))
	}
	c.tail = c.lastPayload[consumed:]
	return nil
}

// Close releases the underlying source.
func (c *Cursor) Close() error {
	return c.src.Close()
}
