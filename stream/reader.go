// Package stream provides the bounds-checked cursor used to read and write
// plugin data.
//
// A Reader walks an in-memory byte slice strictly sequentially. Every read
// takes a context string naming the record and subrecord being decoded
// (for example "SPEL.EFIT"); the context only feeds error messages, so a
// failure always says which subrecord of which record broke and at what
// offset.
//
// A Writer accumulates encoded bytes in a pooled buffer and knows the
// subrecord framing rules, including the XXXX escape for payloads larger
// than 0xFFFF bytes.
package stream

import (
	"io"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"golang.org/x/exp/constraints"
)

// LookupFailed is the text returned for a localized string id missing from the string table.
const LookupFailed = "LOOKUP FAILED!"

// MaxSubrecordSize is the largest payload a plain subrecord header can describe.
const MaxSubrecordSize = 0xFFFF

// SubHeaderSize is the size of a subrecord header.
const SubHeaderSize = 6

// StringLookup resolves localized string ids.
type StringLookup interface {
	Lookup(id uint32) (string, bool)
}

// SubHeader is a decoded subrecord header. Size is the real payload size,
// already resolved through any XXXX escape.
type SubHeader struct {
	Signature format.Signature
	Size      uint32
}

// Reader is a sequential, bounds-checked reader over a byte slice.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	name    string
	data    []byte
	pos     int
	text    *TextCodec
	strings StringLookup
}

// NewReader creates a reader over data.
//
// Parameters:
//   - name: File name used in error messages
//   - data: Bytes to read; the reader does not copy them
//
// Returns:
//   - *Reader: Reader positioned at offset 0 using the default text codec
func NewReader(name string, data []byte) *Reader {
	return &Reader{
		name: name,
		data: data,
		text: DefaultTextCodec(),
	}
}

// Name returns the file name given at construction.
func (r *Reader) Name() string {
	return r.name
}

// Size returns the logical end of the stream.
func (r *Reader) Size() int64 {
	return int64(len(r.data))
}

// Tell returns the current offset.
func (r *Reader) Tell() int64 {
	return int64(r.pos)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// SetTextCodec sets the codec used by the string readers.
func (r *Reader) SetTextCodec(c *TextCodec) {
	if c == nil {
		c = DefaultTextCodec()
	}
	r.text = c
}

// TextCodec returns the codec used by the string readers.
func (r *Reader) TextCodec() *TextCodec {
	return r.text
}

// SetStringTable installs the table used by ReadLString. A nil table
// switches localized strings back to inline text.
func (r *Reader) SetStringTable(t StringLookup) {
	r.strings = t
}

// StringTable returns the installed string table, or nil.
func (r *Reader) StringTable() StringLookup {
	return r.strings
}

// HasStrings reports whether a string table is installed.
func (r *Reader) HasStrings() bool {
	return r.strings != nil
}

func (r *Reader) fail(kind error, ctx string, format string, args ...any) error {
	return errs.New(kind, r.name, ctx, int64(r.pos), format, args...)
}

// Read returns the next n bytes and advances past them.
//
// The returned slice aliases the reader's data and must not be modified.
//
// Returns:
//   - []byte: n bytes
//   - error: errs.ErrTruncatedRead if fewer than n bytes remain
func (r *Reader) Read(n int, ctx string) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, r.fail(errs.ErrTruncatedRead, ctx, "need %d bytes, end at %d", n, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

// Skip advances n bytes with the same bounds rule as Read.
func (r *Reader) Skip(n int, ctx string) error {
	_, err := r.Read(n, ctx)
	return err
}

// Seek moves the cursor.
//
// Parameters:
//   - offset: Offset relative to whence
//   - whence: io.SeekStart, io.SeekCurrent, or io.SeekEnd
//   - ctx: Diagnostic context
//
// Returns:
//   - error: errs.ErrOutOfBounds if the target is negative or past the end
func (r *Reader) Seek(offset int64, whence int, ctx string) error {
	var target int64
	switch whence {
	case io.SeekCurrent:
		target = int64(r.pos) + offset
	case io.SeekEnd:
		target = int64(len(r.data)) + offset
	default:
		target = offset
	}
	if target < 0 || target > int64(len(r.data)) {
		return errs.New(errs.ErrOutOfBounds, r.name, ctx, target, "stream size %d", len(r.data))
	}
	r.pos = int(target)

	return nil
}

// AtEnd reports whether the cursor sits exactly at endPos.
//
// A negative endPos means the end of the stream.
//
// Returns:
//   - bool: Whether the cursor reached endPos
//   - error: errs.ErrSizeMismatch if the cursor already ran past endPos
func (r *Reader) AtEnd(endPos int64, ctx string) (bool, error) {
	if endPos < 0 {
		return r.pos >= len(r.data), nil
	}
	if int64(r.pos) > endPos {
		return false, r.fail(errs.ErrSizeMismatch, ctx, "exceeded limit %d", endPos)
	}

	return int64(r.pos) == endPos, nil
}

// Unpack reads n bytes and decodes them with layout.
//
// Returns:
//   - []any: Decoded values, see format.Layout.Decode
//   - error: errs.ErrTruncatedRead if fewer than n bytes remain,
//     errs.ErrSizeMismatch if n differs from the layout width
func (r *Reader) Unpack(layout *format.Layout, n int, ctx string) ([]any, error) {
	b, err := r.Read(n, ctx)
	if err != nil {
		return nil, err
	}
	if n != layout.Size() {
		return nil, errs.New(errs.ErrSizeMismatch, r.name, ctx, int64(r.pos-n), "layout %q is %d bytes, subrecord is %d", layout, layout.Size(), n)
	}

	return layout.Decode(b)
}

// ReadInt reads one little-endian integer of type T.
func ReadInt[T constraints.Integer](r *Reader, ctx string) (T, error) {
	b, err := r.Read(endian.SizeOf[T](), ctx)
	if err != nil {
		return 0, err
	}

	return endian.Get[T](b), nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8(ctx string) (uint8, error) {
	return ReadInt[uint8](r, ctx)
}

// Uint16 reads a little-endian u16.
func (r *Reader) Uint16(ctx string) (uint16, error) {
	return ReadInt[uint16](r, ctx)
}

// Uint32 reads a little-endian u32.
func (r *Reader) Uint32(ctx string) (uint32, error) {
	return ReadInt[uint32](r, ctx)
}

// Uint64 reads a little-endian u64.
func (r *Reader) Uint64(ctx string) (uint64, error) {
	return ReadInt[uint64](r, ctx)
}

// Signature reads a 4-byte type code.
func (r *Reader) Signature(ctx string) (format.Signature, error) {
	var sig format.Signature
	b, err := r.Read(len(sig), ctx)
	if err != nil {
		return sig, err
	}
	copy(sig[:], b)

	return sig, nil
}

// SubHeader reads a subrecord header.
//
// An XXXX header is followed by a u32 real size and the real header, whose
// own u16 size is ignored. Chained escapes are followed until a real tag.
func (r *Reader) SubHeader(ctx string) (SubHeader, error) {
	sig, err := r.Signature(ctx + ".SUB_HEAD")
	if err != nil {
		return SubHeader{}, err
	}
	size16, err := r.Uint16(ctx + ".SUB_HEAD")
	if err != nil {
		return SubHeader{}, err
	}
	size := uint32(size16)

	for sig == format.SigEscape {
		if size, err = r.Uint32(ctx + ".XXXX.SIZE"); err != nil {
			return SubHeader{}, err
		}
		if sig, err = r.Signature(ctx + ".XXXX.TYPE"); err != nil {
			return SubHeader{}, err
		}
		if _, err = r.Uint16(ctx + ".XXXX.TYPE"); err != nil {
			return SubHeader{}, err
		}
	}

	return SubHeader{Signature: sig, Size: size}, nil
}

// ReadString reads size bytes and decodes them as NUL-terminated text.
func (r *Reader) ReadString(size int, ctx string) (string, error) {
	b, err := r.Read(size, ctx)
	if err != nil {
		return "", err
	}

	return r.text.Decode(b), nil
}

// ReadLString reads a localizable string.
//
// Without a string table the payload is inline text. With one, the payload
// must be a 4-byte id: id 0 is the empty string and an id missing from the
// table yields LookupFailed.
//
// Returns:
//   - string: Resolved text
//   - uint32: String table id, 0 for inline text
//   - error: errs.ErrSizeMismatch if a localized payload is not 4 bytes
func (r *Reader) ReadLString(size int, ctx string) (string, uint32, error) {
	if r.strings == nil {
		s, err := r.ReadString(size, ctx)
		return s, 0, err
	}
	if size != 4 {
		return "", 0, r.fail(errs.ErrSizeMismatch, ctx, "localized string id must be 4 bytes, got %d", size)
	}
	id, err := r.Uint32(ctx)
	if err != nil {
		return "", 0, err
	}
	if id == 0 {
		return "", 0, nil
	}
	if s, ok := r.strings.Lookup(id); ok {
		return s, id, nil
	}

	return LookupFailed, id, nil
}

// ReadStrings reads size bytes holding NUL-separated strings.
func (r *Reader) ReadStrings(size int, ctx string) ([]string, error) {
	b, err := r.Read(size, ctx)
	if err != nil {
		return nil, err
	}
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}

	var out []string
	for start := 0; start <= len(b); {
		end := start
		for end < len(b) && b[end] != 0 {
			end++
		}
		out = append(out, r.text.Decode(b[start:end]))
		start = end + 1
	}

	return out, nil
}

// FindSubrecord scans from the cursor to endPos for the first subrecord
// tagged sig and returns its payload. The cursor ends after that payload, or
// at endPos when nothing matched.
func (r *Reader) FindSubrecord(sig format.Signature, endPos int64, ctx string) ([]byte, bool, error) {
	for {
		done, err := r.AtEnd(endPos, ctx)
		if err != nil || done {
			return nil, false, err
		}
		sh, err := r.SubHeader(ctx)
		if err != nil {
			return nil, false, err
		}
		payload, err := r.Read(int(sh.Size), ctx+"."+sh.Signature.String())
		if err != nil {
			return nil, false, err
		}
		if sh.Signature == sig {
			return payload, true, nil
		}
	}
}
