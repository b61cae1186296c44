package blocksource

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"fwfr/internal/fwferrors"
)

// codepageTable maps the ICU-flavored codepage names the spec accepts
// ("cp037", "cp1047", "cp500", ...) to golang.org/x/text charmap encodings.
// Only the EBCDIC variants a fixed-width mainframe extract is plausibly
// written in are listed; anything else is rejected rather than silently
// passed through.
var codepageTable = map[string]*charmap.Charmap{
	"cp037":  charmap.CodePage037,
	"cp500":  charmap.CodePage500,
	"cp1047": charmap.CodePage1047,
	"cp1140": charmap.CodePage1140,
}

// Transcoder converts bytes from a declared source encoding to UTF-8 in
// place over a block's payload. A nil Transcoder is the identity (input is
// already UTF-8).
type Transcoder struct {
	enc  encoding.Encoding
	lfNL bool // ",lfnl" suffix: source NL (0x15) maps to LF, not source LF
}

// NewTranscoder parses a spelling like "cp1047" or "cp1047,lfnl" and
// returns the Transcoder for it. An empty spelling returns (nil, nil).
func NewTranscoder(spelling string) (*Transcoder, error) {
	if spelling == "" {
		return nil, nil
	}
	name := spelling
	lfNL := false
	if idx := strings.IndexByte(spelling, ','); idx >= 0 {
		name = spelling[:idx]
		opt := spelling[idx+1:]
		if opt != "lfnl" {
			return nil, fwferrors.Invalidf("unrecognized encoding option %q in %q", opt, spelling)
		}
		lfNL = true
	}
	cm, ok := codepageTable[strings.ToLower(name)]
	if !ok {
		return nil, fwferrors.Invalidf("unrecognized encoding %q", spelling)
	}
	return &Transcoder{enc: cm, lfNL: lfNL}, nil
}

// Transform decodes src (in the Transcoder's source encoding) into UTF-8,
// returning a freshly allocated buffer. Called once per block payload
// before chunking, so the rest of the pipeline only ever sees UTF-8.
func (t *Transcoder) Transform(src []byte) ([]byte, error) {
	if t == nil {
		return src, nil
	}
	dec := t.enc.NewDecoder()
	dst, _, err := transform.Bytes(dec, src)
	if err != nil {
		return nil, fwferrors.Encodingf("transcoding block: %v", err)
	}
	if t.lfNL {
		// Under the ",lfnl" variant the mainframe's own newline control
		// character (NL, EBCDIC 0x15, which decodes to U+0085 NEL) marks
		// end-of-record instead of the codepage's native LF mapping.
		// Normalize it to LF so the chunker's CR/LF scan applies unchanged.
		dst = replaceNEL(dst)
	}
	return dst, nil
}

// replaceNEL rewrites every U+0085 (NEL, encoded as 0xC2 0x85 in UTF-8)
// to a single LF byte, compacting the buffer in place.
func replaceNEL(b []byte) []byte {
	const nel0, nel1 = 0xC2, 0x85
	out := b[:0]
	for i := 0; i < len(b); i++ {
		if b[i] == nel0 && i+1 < len(b) && b[i+1] == nel1 {
			out = append(out, '\n')
			i++
			continue
		}
		out = append(out, b[i])
	}
	return out
}
