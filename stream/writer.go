package stream

import (
	"bytes"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/internal/pool"
)

// Writer accumulates encoded plugin bytes.
//
// The buffer comes from a pool; call Release when the Writer is no longer
// needed, after copying out anything returned by Bytes.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	buf       *pool.ByteBuffer
	text      *TextCodec
	localized bool
}

// NewWriter creates a Writer backed by a pooled record buffer.
func NewWriter() *Writer {
	return &Writer{
		buf:  pool.GetRecordBuffer(),
		text: DefaultTextCodec(),
	}
}

// SetTextCodec sets the codec used by WriteString and WriteStrings.
func (w *Writer) SetTextCodec(c *TextCodec) {
	if c == nil {
		c = DefaultTextCodec()
	}
	w.text = c
}

// TextCodec returns the codec used by the string writers.
func (w *Writer) TextCodec() *TextCodec {
	return w.text
}

// SetLocalized marks the output as a localized plugin, where translatable
// strings are written as string table ids.
func (w *Writer) SetLocalized(on bool) {
	w.localized = on
}

// Localized reports whether translatable strings are written as ids.
func (w *Writer) Localized() bool {
	return w.localized
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Bytes returns the written bytes. The slice is only valid until the next
// write or Release.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Detach returns a copy of the written bytes and releases the Writer.
func (w *Writer) Detach() []byte {
	out := bytes.Clone(w.buf.Bytes())
	if out == nil {
		out = []byte{}
	}
	w.Release()

	return out
}

// Release returns the buffer to the pool. The Writer must not be used afterwards.
func (w *Writer) Release() {
	if w.buf != nil {
		pool.PutRecordBuffer(w.buf)
		w.buf = nil
	}
}

// Write appends raw bytes.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Pack appends values encoded with layout.
func (w *Writer) Pack(layout *format.Layout, values ...any) error {
	out, err := layout.Append(w.buf.B, values...)
	if err != nil {
		return err
	}
	w.buf.B = out

	return nil
}

// PackSub appends a subrecord with payload.
//
// Payloads up to 0xFFFF bytes get a plain header. Larger payloads are
// preceded by an XXXX subrecord carrying the real size, and the real header
// declares size 0.
func (w *Writer) PackSub(sig format.Signature, payload []byte) {
	w.buf.Grow(len(payload) + 16)
	w.subHeader(sig, len(payload))
	w.buf.B = append(w.buf.B, payload...)
}

func (w *Writer) subHeader(sig format.Signature, size int) {
	b := w.buf.B
	if size <= MaxSubrecordSize {
		b = append(b, sig[:]...)
		b = endian.Append(b, uint16(size))
	} else {
		b = append(b, format.SigEscape[:]...)
		b = endian.Append(b, uint16(4))
		b = endian.Append(b, uint32(size))
		b = append(b, sig[:]...)
		b = endian.Append(b, uint16(0))
	}
	w.buf.B = b
}

// PackSubLayout appends a subrecord whose payload is values encoded with layout.
func (w *Writer) PackSubLayout(sig format.Signature, layout *format.Layout, values ...any) error {
	payload, err := layout.Encode(values...)
	if err != nil {
		return err
	}
	w.PackSub(sig, payload)

	return nil
}

// PackRef appends a 4-byte FormID subrecord.
func (w *Writer) PackRef(sig format.Signature, fid uint32) {
	w.subHeader(sig, 4)
	w.buf.B = endian.Append(w.buf.B, fid)
}

// PackSubZ appends a subrecord holding data plus a NUL terminator.
func (w *Writer) PackSubZ(sig format.Signature, data []byte) {
	w.subHeader(sig, len(data)+1)
	w.buf.B = append(w.buf.B, data...)
	w.buf.B = append(w.buf.B, 0)
}

// WriteString appends a NUL-terminated string subrecord.
//
// With a positive maxSize, trailing whitespace is stripped, bare "\n" become
// "\r\n", and the encoded text is truncated on a rune boundary to at most
// maxSize bytes before the terminator.
//
// Parameters:
//   - sig: Subrecord tag
//   - s: Text to write
//   - maxSize: Byte limit for the encoded text, 0 for none
//   - codec: Encoding override, nil for the Writer's codec
//
// Returns:
//   - error: errs.ErrEncoding if s cannot be encoded
func (w *Writer) WriteString(sig format.Signature, s string, maxSize int, codec *TextCodec) error {
	if codec == nil {
		codec = w.text
	}
	if maxSize > 0 {
		s = winNewLines(s)
	}
	b, err := codec.EncodeTruncated(s, maxSize)
	if err != nil {
		return err
	}
	w.PackSubZ(sig, b)

	return nil
}

// WriteStrings appends a subrecord of NUL-separated strings with a final NUL.
func (w *Writer) WriteStrings(sig format.Signature, values []string) error {
	encoded := make([][]byte, 0, len(values))
	for _, s := range values {
		b, err := w.text.Encode(s)
		if err != nil {
			return err
		}
		encoded = append(encoded, b)
	}
	w.PackSubZ(sig, bytes.Join(encoded, []byte{0}))

	return nil
}
