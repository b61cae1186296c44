package blocksource

import (
	"bufio"
	"compress/gzip"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zhuyie/golzf"

	"fwfr/internal/fwferrors"
)

// Codec names a compression format. "" (CodecNone) means the stream is
// detected from its magic bytes; an explicit value skips detection.
type Codec string

const (
	CodecNone   Codec = ""
	CodecGZip   Codec = "gzip"
	CodecZstd   Codec = "zstd"
	CodecLZ4    Codec = "lz4"
	CodecLZF    Codec = "lzf"
	CodecSnappy Codec = "snappy"
)

var magicTable = []struct {
	magic []byte
	codec Codec
}{
	{[]byte{0x1f, 0x8b}, CodecGZip},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, CodecZstd},
	{[]byte{0x04, 0x22, 0x4d, 0x18}, CodecLZ4},
}

// sniffLen is the longest magic prefix above; sniffing never needs more.
const sniffLen = 4

// lzfMagic is golzf's own two-byte header ('Z', 'V'), checked after the
// longer table above since it would otherwise collide with nothing but is
// cheapest to check last.
var lzfMagic = []byte{'Z', 'V'}

// snappyMagic is the framing-format magic chunk snappy writes at stream
// start (see github.com/golang/snappy's streamMagicBody).
var snappyMagic = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P'}

// detect peeks at r's first bytes to identify a compression codec without
// consuming them irrevocably.
func detect(r *bufio.Reader) (Codec, error) {
	peek, err := r.Peek(8)
	if err != nil && err != io.EOF {
		return CodecNone, fwferrors.IOf("sniffing compression header: %v", err)
	}
	if len(peek) >= len(snappyMagic) && string(peek[:len(snappyMagic)]) == string(snappyMagic) {
		return CodecSnappy, nil
	}
	for _, m := range magicTable {
		if len(peek) >= len(m.magic) && bytesEqual(peek[:len(m.magic)], m.magic) {
			return m.codec, nil
		}
	}
	if len(peek) >= len(lzfMagic) && bytesEqual(peek[:len(lzfMagic)], lzfMagic) {
		return CodecLZF, nil
	}
	return CodecNone, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Wrap opens the appropriate decompressing io.Reader for codec. CodecNone
// triggers magic-byte detection against raw. The returned reader should be
// closed (if it implements io.Closer) when the caller is done, in addition
// to closing raw.
func Wrap(raw io.Reader, codec Codec) (io.Reader, error) {
	br := bufio.NewReaderSize(raw, 64*1024)
	if codec == CodecNone {
		detected, err := detect(br)
		if err != nil {
			return nil, err
		}
		codec = detected
	}
	switch codec {
	case CodecNone:
		return br, nil
	case CodecGZip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fwferrors.IOf("opening gzip stream: %v", err)
		}
		return gr, nil
	case CodecZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fwferrors.IOf("opening zstd stream: %v", err)
		}
		return zr.IOReadCloser(), nil
	case CodecLZ4:
		return lz4.NewReader(br), nil
	case CodecLZF:
		return &lzfReader{r: br}, nil
	case CodecSnappy:
		return snappy.NewReader(br), nil
	default:
		return nil, fwferrors.Invalidf("unknown compression codec %q", codec)
	}
}

// lzfReader adapts golzf's whole-block Decompress call, which wants a
// length-prefixed frame, to io.Reader. LZF streams here are framed as a
// 2-byte magic, a uint32 compressed length, a uint32 decompressed length,
// and the compressed bytes, one frame per original block — the simplest
// framing that survives block-oriented writers, not a standardized format.
type lzfReader struct {
	r   *bufio.Reader
	buf []byte
	pos int
}

func (z *lzfReader) Read(p []byte) (int, error) {
	if z.pos >= len(z.buf) {
		if err := z.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, z.buf[z.pos:])
	z.pos += n
	return n, nil
}

func (z *lzfReader) fill() error {
	var header [10]byte
	if _, err := io.ReadFull(z.r, header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fwferrors.IOf("reading lzf frame header: %v", err)
	}
	if header[0] != 'Z' || header[1] != 'V' {
		return fwferrors.Invalid("bad lzf frame magic")
	}
	compLen := be32(header[2:6])
	rawLen := be32(header[6:10])
	comp := make([]byte, compLen)
	if _, err := io.ReadFull(z.r, comp); err != nil {
		return fwferrors.IOf("reading lzf frame body: %v", err)
	}
	out := make([]byte, rawLen)
	n, err := lzf.Decompress(comp, out)
	if err != nil {
		return fwferrors.Invalidf("lzf decompress: %v", err)
	}
	z.buf = out[:n]
	z.pos = 0
	return nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
