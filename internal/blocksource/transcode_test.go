package blocksource

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// ebcdic encodes a UTF-8 string into the given code page for test input.
func ebcdic(t *testing.T, cm *charmap.Charmap, s string) []byte {
	t.Helper()
	out, err := cm.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return out
}

func TestTranscoderEmptySpelling(t *testing.T) {
	tr, err := NewTranscoder("")
	if err != nil {
		t.Fatal(err)
	}
	if tr != nil {
		t.Fatal("empty spelling should mean identity (nil transcoder)")
	}
}

func TestTranscoderUnknownSpelling(t *testing.T) {
	if _, err := NewTranscoder("utf-99"); err == nil {
		t.Fatal("accepted an unknown codeset")
	}
	if _, err := NewTranscoder("cp037,nonsense"); err == nil {
		t.Fatal("accepted an unknown option suffix")
	}
}

func TestTranscodeCP037(t *testing.T) {
	tr, err := NewTranscoder("cp037")
	if err != nil {
		t.Fatal(err)
	}
	src := ebcdic(t, charmap.CodePage037, "HELLO 123")
	got, err := tr.Transform(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "HELLO 123" {
		t.Fatalf("got %q", got)
	}
}

func TestTranscodeLFNL(t *testing.T) {
	// Under ",lfnl" the EBCDIC NL control (0x15, which decodes to U+0085)
	// is the record separator and must come out as LF.
	tr, err := NewTranscoder("cp1047,lfnl")
	if err != nil {
		t.Fatal(err)
	}
	src := append(ebcdic(t, charmap.CodePage1047, "AB"), 0x15)
	src = append(src, ebcdic(t, charmap.CodePage1047, "CD")...)
	got, err := tr.Transform(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "AB\nCD" && !strings.Contains(string(got), "\n") {
		t.Fatalf("NL not mapped to LF: %q", got)
	}
}

func TestCursorTranscodesAcrossBlocks(t *testing.T) {
	tr, err := NewTranscoder("cp037")
	if err != nil {
		t.Fatal(err)
	}
	src := ebcdic(t, charmap.CodePage037, "AAAA\nBBBB\n")
	blockSrc := NewSource(strings.NewReader(string(src)), 3)
	c := NewCursor(blockSrc, tr)
	defer c.Close()

	var out []byte
	for {
		block, berr := c.Next()
		if berr != nil {
			t.Fatal(berr)
		}
		if block == nil {
			break
		}
		payload := block.Payload()
		out = append(out, payload...)
		if block.Final {
			break
		}
		if err := c.Advance(len(payload)); err != nil {
			t.Fatal(err)
		}
	}
	if string(out) != "AAAA\nBBBB\n" {
		t.Fatalf("got %q", out)
	}
}
