// Package blocksource streams padded byte blocks from an opaque source
// (a file, in this module's case) and stitches them into row-aligned
// payloads for the chunker/parser. It owns the one part of the pipeline
// that talks to raw I/O: read-ahead, padding, optional decompression and
// transcoding, and cross-block CR/LF and tail stitching.
package blocksource

const (
	// DefaultLeftPadding is headroom for sliding a stitched tail left
	// without reallocating, grown dynamically if a tail doesn't fit.
	DefaultLeftPadding = 2048
	// DefaultRightPadding is headroom so the chunker/parser can always
	// read one byte past the logical end.
	DefaultRightPadding = 16
)

// Block is a contiguous owned byte buffer with reserved padding at each
// end. Payload occupies Buf[LeftPadding : len(Buf)-RightPadding].
type Block struct {
	Buf          []byte
	LeftPadding  int
	RightPadding int
	// Final marks the last block a Cursor will ever return: the unconsumed
	// tail flushed out once the underlying Source hits EOF. No further
	// Next call will yield data, so the consumer must run ParseFinal on it
	// instead of Parse.
	Final bool
}

// Payload returns the logical content of the block, excluding padding.
func (b *Block) Payload() []byte {
	return b.Buf[b.LeftPadding : len(b.Buf)-b.RightPadding]
}

// newBlock allocates a block with the given padding and payload size, all
// bytes zeroed.
func newBlock(leftPadding, payloadSize, rightPadding int) *Block {
	return &Block{
		Buf:          make([]byte, leftPadding+payloadSize+rightPadding),
		LeftPadding:  leftPadding,
		RightPadding: rightPadding,
	}
}
