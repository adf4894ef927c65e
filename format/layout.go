package format

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
)

// Kind identifies the wire type of one layout item.
type Kind uint8

const (
	KindPad     Kind = iota // x: padding byte, produces no value
	KindBytes               // Ns: N raw bytes as one []byte value
	KindInt8                // b
	KindUint8               // B
	KindBool                // ?
	KindInt16               // h
	KindUint16              // H
	KindInt32               // i, l
	KindUint32              // I, L
	KindInt64               // q
	KindUint64              // Q
	KindFloat32             // f
	KindFloat64             // d
)

var kindSizes = [...]int{
	KindPad:     1,
	KindBytes:   1,
	KindInt8:    1,
	KindUint8:   1,
	KindBool:    1,
	KindInt16:   2,
	KindUint16:  2,
	KindInt32:   4,
	KindUint32:  4,
	KindInt64:   8,
	KindUint64:  8,
	KindFloat32: 4,
	KindFloat64: 8,
}

var kindCodes = map[byte]Kind{
	'x': KindPad,
	's': KindBytes,
	'b': KindInt8,
	'B': KindUint8,
	'?': KindBool,
	'h': KindInt16,
	'H': KindUint16,
	'i': KindInt32,
	'l': KindInt32,
	'I': KindUint32,
	'L': KindUint32,
	'q': KindInt64,
	'Q': KindUint64,
	'f': KindFloat32,
	'd': KindFloat64,
}

type layoutItem struct {
	kind  Kind
	count int // byte count for KindPad and KindBytes, 1 otherwise
}

// Layout is a parsed fixed-width struct format.
//
// The format string uses the classic struct notation: an optional leading
// '=' or '<' (little-endian, no alignment), then items made of an optional
// repeat count and one type code from "xsbB?hHiIlLqQfd". A repeat count on a
// numeric code expands to that many values; on 's' it is the byte length of
// a single []byte value; on 'x' it is the number of padding bytes.
//
// A Layout is immutable and safe for concurrent use.
type Layout struct {
	src   string
	items []layoutItem
	kinds []Kind
	size  int
}

// ParseLayout parses a struct format string.
//
// Parameters:
//   - spec: Format string, e.g. "=2f2I" or "4sH"
//
// Returns:
//   - *Layout: Parsed layout
//   - error: ErrInvalidLayout for unknown codes or big-endian prefixes
func ParseLayout(spec string) (*Layout, error) {
	l := &Layout{src: spec}
	s := spec
	if len(s) > 0 && (s[0] == '=' || s[0] == '<') {
		s = s[1:]
	}

	for i := 0; i < len(s); {
		c := s[i]
		if c == ' ' {
			i++
			continue
		}

		count := 1
		if c >= '0' && c <= '9' {
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(s[i:j])
			if err != nil || j == len(s) {
				return nil, fmt.Errorf("%w: dangling count in %q", errs.ErrInvalidLayout, spec)
			}
			count = n
			i = j
			c = s[i]
		}

		kind, ok := kindCodes[c]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported code %q in %q", errs.ErrInvalidLayout, c, spec)
		}
		i++

		switch kind {
		case KindPad:
			l.items = append(l.items, layoutItem{kind: kind, count: count})
			l.size += count
		case KindBytes:
			l.items = append(l.items, layoutItem{kind: kind, count: count})
			l.kinds = append(l.kinds, kind)
			l.size += count
		default:
			for range count {
				l.items = append(l.items, layoutItem{kind: kind, count: 1})
				l.kinds = append(l.kinds, kind)
			}
			l.size += count * kindSizes[kind]
		}
	}

	return l, nil
}

// MustLayout is like ParseLayout but panics on error.
// It is intended for package-level schema declarations.
func MustLayout(spec string) *Layout {
	l, err := ParseLayout(spec)
	if err != nil {
		panic(err)
	}

	return l
}

func (l *Layout) String() string {
	return l.src
}

// Size returns the encoded byte width of the layout.
func (l *Layout) Size() int {
	return l.size
}

// NumValues returns how many values Decode produces and Append consumes.
func (l *Layout) NumValues() int {
	return len(l.kinds)
}

// Kind returns the wire kind of the i-th value.
func (l *Layout) Kind(i int) Kind {
	return l.kinds[i]
}

// Zero returns the zero value of every item, typed as Decode would return it.
func (l *Layout) Zero() []any {
	values := make([]any, 0, len(l.kinds))
	for _, it := range l.items {
		if it.kind == KindPad {
			continue
		}
		values = append(values, zeroOf(it))
	}

	return values
}

// Decode unpacks data into one value per item.
//
// Values are typed by kind: int8, uint8, bool, int16, uint16, int32, uint32,
// int64, uint64, float32, float64, or []byte for 's' items.
//
// Parameters:
//   - data: Exactly Size() bytes
//
// Returns:
//   - []any: Decoded values
//   - error: ErrSizeMismatch if len(data) != Size()
func (l *Layout) Decode(data []byte) ([]any, error) {
	if len(data) != l.size {
		return nil, fmt.Errorf("%w: layout %q needs %d bytes, got %d", errs.ErrSizeMismatch, l.src, l.size, len(data))
	}

	engine := endian.GetLittleEndianEngine()
	values := make([]any, 0, len(l.kinds))
	pos := 0
	for _, it := range l.items {
		switch it.kind {
		case KindPad:
			pos += it.count
			continue
		case KindBytes:
			b := make([]byte, it.count)
			copy(b, data[pos:pos+it.count])
			values = append(values, b)
			pos += it.count
			continue
		case KindInt8:
			values = append(values, int8(data[pos]))
		case KindUint8:
			values = append(values, data[pos])
		case KindBool:
			values = append(values, data[pos] != 0)
		case KindInt16:
			values = append(values, int16(engine.Uint16(data[pos:])))
		case KindUint16:
			values = append(values, engine.Uint16(data[pos:]))
		case KindInt32:
			values = append(values, int32(engine.Uint32(data[pos:])))
		case KindUint32:
			values = append(values, engine.Uint32(data[pos:]))
		case KindInt64:
			values = append(values, int64(engine.Uint64(data[pos:])))
		case KindUint64:
			values = append(values, engine.Uint64(data[pos:]))
		case KindFloat32:
			values = append(values, math.Float32frombits(engine.Uint32(data[pos:])))
		case KindFloat64:
			values = append(values, math.Float64frombits(engine.Uint64(data[pos:])))
		}
		pos += kindSizes[it.kind]
	}

	return values, nil
}

// Append packs values after dst.
//
// Numeric values are converted to the item's wire type from any Go integer,
// float, or bool value (including named types such as Flags). 's' items take
// []byte or string, zero padded or truncated to the item width.
//
// Parameters:
//   - dst: Buffer to append to
//   - values: Exactly NumValues() values
//
// Returns:
//   - []byte: Extended buffer
//   - error: ErrSizeMismatch on a wrong value count, ErrFieldType on an unpackable value
func (l *Layout) Append(dst []byte, values ...any) ([]byte, error) {
	if len(values) != len(l.kinds) {
		return dst, fmt.Errorf("%w: layout %q needs %d values, got %d", errs.ErrSizeMismatch, l.src, len(l.kinds), len(values))
	}

	engine := endian.GetLittleEndianEngine()
	vi := 0
	for _, it := range l.items {
		if it.kind == KindPad {
			for range it.count {
				dst = append(dst, 0)
			}
			continue
		}

		v := values[vi]
		vi++

		if it.kind == KindBytes {
			var b []byte
			switch x := v.(type) {
			case []byte:
				b = x
			case string:
				b = []byte(x)
			case nil:
			default:
				return dst, fmt.Errorf("%w: %T for bytes item of %q", errs.ErrFieldType, v, l.src)
			}
			start := len(dst)
			dst = append(dst, make([]byte, it.count)...)
			copy(dst[start:], b)

			continue
		}

		u, f, isFloat, ok := numeric(v)
		if !ok {
			return dst, fmt.Errorf("%w: %T for numeric item of %q", errs.ErrFieldType, v, l.src)
		}
		switch it.kind {
		case KindInt8, KindUint8:
			dst = append(dst, byte(intBits(u, f, isFloat)))
		case KindBool:
			if u != 0 || f != 0 {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case KindInt16, KindUint16:
			dst = engine.AppendUint16(dst, uint16(intBits(u, f, isFloat)))
		case KindInt32, KindUint32:
			dst = engine.AppendUint32(dst, uint32(intBits(u, f, isFloat)))
		case KindInt64, KindUint64:
			dst = engine.AppendUint64(dst, intBits(u, f, isFloat))
		case KindFloat32:
			if !isFloat {
				f = float64(int64(u))
			}
			dst = engine.AppendUint32(dst, math.Float32bits(float32(f)))
		case KindFloat64:
			if !isFloat {
				f = float64(int64(u))
			}
			dst = engine.AppendUint64(dst, math.Float64bits(f))
		}
	}

	return dst, nil
}

// Encode packs values into a new slice of exactly Size() bytes.
func (l *Layout) Encode(values ...any) ([]byte, error) {
	return l.Append(make([]byte, 0, l.size), values...)
}

func zeroOf(it layoutItem) any {
	switch it.kind {
	case KindBytes:
		return make([]byte, it.count)
	case KindInt8:
		return int8(0)
	case KindUint8:
		return uint8(0)
	case KindBool:
		return false
	case KindInt16:
		return int16(0)
	case KindUint16:
		return uint16(0)
	case KindInt32:
		return int32(0)
	case KindUint32:
		return uint32(0)
	case KindInt64:
		return int64(0)
	case KindUint64:
		return uint64(0)
	case KindFloat32:
		return float32(0)
	case KindFloat64:
		return float64(0)
	default:
		return nil
	}
}

func intBits(u uint64, f float64, isFloat bool) uint64 {
	if isFloat {
		return uint64(int64(f))
	}

	return u
}

// numeric extracts the integer bits or float value of v.
func numeric(v any) (u uint64, f float64, isFloat bool, ok bool) {
	switch x := v.(type) {
	case Flags:
		return x.Value, 0, false, true
	case interface{ Uint32() uint32 }:
		return uint64(x.Uint32()), 0, false, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int()), 0, false, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), 0, false, true
	case reflect.Float32, reflect.Float64:
		return 0, rv.Float(), true, true
	case reflect.Bool:
		if rv.Bool() {
			return 1, 0, false, true
		}

		return 0, 0, false, true
	default:
		return 0, 0, false, false
	}
}
