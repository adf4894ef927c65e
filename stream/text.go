package stream

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arloliu/espcodec/errs"
	"golang.org/x/text/encoding/charmap"
)

// TextCodec converts between Go strings and the single-byte code page a
// plugin stores its text in.
//
// Decoding stops at the first NUL byte. Encoding never emits bytes for a rune
// the code page cannot represent; it fails with errs.ErrEncoding instead.
type TextCodec struct {
	name string
	cm   *charmap.Charmap // nil means UTF-8 passthrough
}

var textCodecs = map[string]*charmap.Charmap{
	"cp1250":       charmap.Windows1250,
	"windows-1250": charmap.Windows1250,
	"cp1251":       charmap.Windows1251,
	"windows-1251": charmap.Windows1251,
	"cp1252":       charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"utf-8":        nil,
	"utf8":         nil,
}

var defaultTextCodec = &TextCodec{name: "cp1252", cm: charmap.Windows1252}

// DefaultTextCodec returns the Windows-1252 codec used by English releases.
func DefaultTextCodec() *TextCodec {
	return defaultTextCodec
}

// NewTextCodec returns the codec for a code page name.
//
// Parameters:
//   - name: One of cp1250, cp1251, cp1252 (or their windows-125x aliases) or utf-8
//
// Returns:
//   - *TextCodec: The codec
//   - error: If the name is not supported
func NewTextCodec(name string) (*TextCodec, error) {
	key := strings.ToLower(name)
	cm, ok := textCodecs[key]
	if !ok {
		return nil, fmt.Errorf("unsupported text encoding %q", name)
	}

	return &TextCodec{name: key, cm: cm}, nil
}

// Name returns the code page name.
func (c *TextCodec) Name() string {
	return c.name
}

// Decode converts stored bytes to a string, stopping at the first NUL.
func (c *TextCodec) Decode(b []byte) string {
	b = CStrip(b)
	if c.cm == nil {
		return strings.ToValidUTF8(string(b), "�")
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for _, x := range b {
		sb.WriteRune(c.cm.DecodeByte(x))
	}

	return sb.String()
}

// Encode converts s to stored bytes without a terminator.
//
// Returns:
//   - []byte: Encoded text
//   - error: errs.ErrEncoding if s holds a rune the code page lacks
func (c *TextCodec) Encode(s string) ([]byte, error) {
	return c.EncodeTruncated(s, 0)
}

// EncodeTruncated converts s to stored bytes no longer than maxSize.
//
// Truncation drops whole runes from the end, so a multi-byte sequence is
// never split. A maxSize of 0 or less disables truncation.
//
// Parameters:
//   - s: Text to encode
//   - maxSize: Maximum encoded length in bytes, terminator excluded
//
// Returns:
//   - []byte: Encoded, possibly truncated text
//   - error: errs.ErrEncoding if a kept rune cannot be represented
func (c *TextCodec) EncodeTruncated(s string, maxSize int) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		var enc [utf8.UTFMax]byte
		n := 0
		if c.cm == nil {
			n = utf8.EncodeRune(enc[:], r)
		} else {
			b, ok := c.cm.EncodeRune(r)
			if !ok {
				return nil, errs.New(errs.ErrEncoding, "", "", -1, "rune %q not representable in %s", r, c.name)
			}
			enc[0] = b
			n = 1
		}
		if maxSize > 0 && len(out)+n > maxSize {
			break
		}
		out = append(out, enc[:n]...)
	}

	return out, nil
}

// CStrip returns b up to, not including, its first NUL byte.
func CStrip(b []byte) []byte {
	for i, x := range b {
		if x == 0 {
			return b[:i]
		}
	}

	return b
}

// winNewLines strips trailing whitespace and turns bare "\n" into "\r\n".
func winNewLines(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if !strings.Contains(s, "\n") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i == 0 || s[i-1] != '\r') {
			sb.WriteByte('\r')
		}
		sb.WriteByte(s[i])
	}

	return sb.String()
}
