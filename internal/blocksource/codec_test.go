package blocksource

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zhuyie/golzf"
)

const codecPlaintext = "holder     account   \nalice          12345\nbob            67890\n"

func roundTrip(t *testing.T, compressed []byte) string {
	t.Helper()
	r, err := Wrap(bytes.NewReader(compressed), CodecNone)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading wrapped stream: %v", err)
	}
	return string(out)
}

func TestWrapPassthrough(t *testing.T) {
	if got := roundTrip(t, []byte(codecPlaintext)); got != codecPlaintext {
		t.Fatalf("passthrough altered data: %q", got)
	}
}

func TestWrapGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(codecPlaintext)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := roundTrip(t, buf.Bytes()); got != codecPlaintext {
		t.Fatalf("gzip round trip: %q", got)
	}
}

func TestWrapZstd(t *testing.T) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(codecPlaintext)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := roundTrip(t, buf.Bytes()); got != codecPlaintext {
		t.Fatalf("zstd round trip: %q", got)
	}
}

func TestWrapLZ4(t *testing.T) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write([]byte(codecPlaintext)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := roundTrip(t, buf.Bytes()); got != codecPlaintext {
		t.Fatalf("lz4 round trip: %q", got)
	}
}

func TestWrapSnappy(t *testing.T) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write([]byte(codecPlaintext)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := roundTrip(t, buf.Bytes()); got != codecPlaintext {
		t.Fatalf("snappy round trip: %q", got)
	}
}

// lzfFrame encodes one frame in the magic + lengths + body framing
// lzfReader expects.
func lzfFrame(t *testing.T, raw []byte) []byte {
	t.Helper()
	comp := make([]byte, len(raw)*2+16)
	n, err := golzf.Compress(raw, comp)
	if err != nil {
		t.Fatalf("lzf compress: %v", err)
	}
	var buf bytes.Buffer
	buf.WriteByte('Z')
	buf.WriteByte('V')
	var lens [8]byte
	binary.BigEndian.PutUint32(lens[0:4], uint32(n))
	binary.BigEndian.PutUint32(lens[4:8], uint32(len(raw)))
	buf.Write(lens[:])
	buf.Write(comp[:n])
	return buf.Bytes()
}

func TestWrapLZF(t *testing.T) {
	half := len(codecPlaintext) / 2
	var buf bytes.Buffer
	buf.Write(lzfFrame(t, []byte(codecPlaintext[:half])))
	buf.Write(lzfFrame(t, []byte(codecPlaintext[half:])))
	if got := roundTrip(t, buf.Bytes()); got != codecPlaintext {
		t.Fatalf("lzf round trip: %q", got)
	}
}

func TestWrapExplicitCodecSkipsDetection(t *testing.T) {
	// Plain text with an explicit gzip codec must fail to open, not fall
	// back to passthrough.
	if _, err := Wrap(strings.NewReader(codecPlaintext), CodecGZip); err == nil {
		t.Fatal("gzip Wrap accepted plain text")
	}
}
