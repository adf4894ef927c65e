package section

import (
	"errors"
	"fmt"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/stream"
)

// Label is the polymorphic label of a group header.
// It is one of TypeLabel, IDLabel or GridLabel.
type Label interface {
	fmt.Stringer
	isLabel()
}

// TypeLabel labels a top group with the record type it holds.
type TypeLabel format.Signature

// IDLabel labels a group with a FormID or block number.
type IDLabel uint32

// GridLabel labels an exterior cell block with grid coordinates, in file order.
type GridLabel struct {
	Y int16
	X int16
}

func (TypeLabel) isLabel() {}
func (IDLabel) isLabel()   {}
func (GridLabel) isLabel() {}

func (l TypeLabel) String() string { return format.Signature(l).String() }
func (l IDLabel) String() string   { return fmt.Sprintf("%08X", uint32(l)) }
func (l GridLabel) String() string { return fmt.Sprintf("(%d, %d)", l.Y, l.X) }

// RecordHeader is a decoded record or group header.
//
// Record headers use Flags, FormID and Flags2. Group headers use Label,
// GroupType and Stamp. Extra is the trailing word of extended headers; for
// records its low int16 is the form version.
type RecordHeader struct {
	Signature format.Signature
	Size      uint32

	Flags  uint32
	FormID uint32
	Flags2 uint32

	Label     Label
	GroupType format.GroupType
	Stamp     uint32

	Extra uint32
}

// NewGroupHeader creates a group header with the given label and type.
func NewGroupHeader(label Label, groupType format.GroupType) RecordHeader {
	return RecordHeader{Signature: format.SigGroup, Label: label, GroupType: groupType}
}

// IsGroup reports whether the header starts a group.
func (h *RecordHeader) IsGroup() bool {
	return h.Signature == format.SigGroup
}

// HasFlag reports whether all bits of flag are set.
func (h *RecordHeader) HasFlag(flag uint32) bool {
	return h.Flags&flag == flag
}

// SetFlag sets or clears the bits of flag.
func (h *RecordHeader) SetFlag(flag uint32, on bool) {
	if on {
		h.Flags |= flag
	} else {
		h.Flags &^= flag
	}
}

// FormVersion returns the form version stored in Extra.
func (h *RecordHeader) FormVersion() uint16 {
	return uint16(h.Extra)
}

func (h RecordHeader) String() string {
	if h.IsGroup() {
		return fmt.Sprintf("GRUP[%s %s]", h.GroupType, h.Label)
	}

	return fmt.Sprintf("%s[%08X]", h.Signature, h.FormID)
}

// HeaderCodec reads and writes headers for one game.
//
// It is immutable after construction and safe for concurrent use.
type HeaderCodec struct {
	formVersion uint16
	recordTypes map[format.Signature]struct{}
	topTypes    map[format.Signature]struct{}
	topOrder    []format.Signature
}

// NewHeaderCodec creates a header codec.
//
// Parameters:
//   - formVersion: Plugin form version; 0 selects 20-byte headers
//   - recordTypes: Every record signature the game defines
//   - topTypes: Record types that may label a top group, in master file order
//
// Returns:
//   - *HeaderCodec: The codec; top types are implicitly record types
func NewHeaderCodec(formVersion uint16, recordTypes, topTypes []format.Signature) *HeaderCodec {
	c := &HeaderCodec{
		formVersion: formVersion,
		recordTypes: make(map[format.Signature]struct{}, len(recordTypes)+len(topTypes)+1),
		topTypes:    make(map[format.Signature]struct{}, len(topTypes)),
		topOrder:    append([]format.Signature(nil), topTypes...),
	}
	c.recordTypes[format.SigGroup] = struct{}{}
	c.recordTypes[format.SigHeader] = struct{}{}
	for _, sig := range recordTypes {
		c.recordTypes[sig] = struct{}{}
	}
	for _, sig := range topTypes {
		c.recordTypes[sig] = struct{}{}
		c.topTypes[sig] = struct{}{}
	}

	return c
}

// FormVersion returns the plugin form version.
func (c *HeaderCodec) FormVersion() uint16 {
	return c.formVersion
}

// HeaderSize returns 20 when the form version is 0 and 24 otherwise.
func (c *HeaderCodec) HeaderSize() int {
	if c.formVersion == 0 {
		return HeaderSizeLegacy
	}

	return HeaderSizeExtended
}

// IsRecordType reports whether sig is a known record type.
func (c *HeaderCodec) IsRecordType(sig format.Signature) bool {
	_, ok := c.recordTypes[sig]
	return ok
}

// IsTopType reports whether sig may label a top group.
func (c *HeaderCodec) IsTopType(sig format.Signature) bool {
	_, ok := c.topTypes[sig]
	return ok
}

// TopTypes returns the top group types in master file order.
func (c *HeaderCodec) TopTypes() []format.Signature {
	return append([]format.Signature(nil), c.topOrder...)
}

// Parse decodes one header.
//
// On errs.ErrUnknownRecordType the returned header is still fully populated,
// so the caller can use Size to skip the body.
//
// Parameters:
//   - data: Exactly HeaderSize() bytes
//
// Returns:
//   - RecordHeader: Decoded header
//   - error: errs.ErrSizeMismatch for a wrong length, errs.ErrUnknownRecordType
//     for an unknown tag or an invalid top group label
func (c *HeaderCodec) Parse(data []byte) (RecordHeader, error) {
	if len(data) != c.HeaderSize() {
		return RecordHeader{}, errs.New(errs.ErrSizeMismatch, "", "REC_HEADER", -1, "header is %d bytes, got %d", c.HeaderSize(), len(data))
	}

	engine := endian.GetLittleEndianEngine()
	var h RecordHeader
	copy(h.Signature[:], data[0:4])
	h.Size = engine.Uint32(data[4:8])
	slot1 := engine.Uint32(data[8:12])
	slot2 := engine.Uint32(data[12:16])
	slot3 := engine.Uint32(data[16:20])
	if len(data) == HeaderSizeExtended {
		h.Extra = engine.Uint32(data[20:24])
	}

	if !h.IsGroup() {
		h.Flags, h.FormID, h.Flags2 = slot1, slot2, slot3
		if !c.IsRecordType(h.Signature) {
			return h, errs.New(errs.ErrUnknownRecordType, "", "REC_HEADER", -1, "bad header type %q", h.Signature)
		}

		return h, nil
	}

	h.GroupType = format.GroupType(int32(slot2))
	h.Stamp = slot3
	switch {
	case h.GroupType == format.GroupTop:
		sig := format.SignatureFromUint32(slot1)
		h.Label = TypeLabel(sig)
		if !c.IsTopType(sig) {
			return h, errs.New(errs.ErrUnknownRecordType, "", "REC_HEADER", -1, "bad top group type %q", sig)
		}
	case h.GroupType.IsGrid():
		h.Label = GridLabel{Y: int16(uint16(slot1)), X: int16(uint16(slot1 >> 16))}
	default:
		h.Label = IDLabel(slot1)
	}

	return h, nil
}

// Read reads one header from r.
//
// The reader advances past the header even when the tag is unknown, so a
// caller may skip the body with the returned Size.
func (c *HeaderCodec) Read(r *stream.Reader) (RecordHeader, error) {
	start := r.Tell()
	data, err := r.Read(c.HeaderSize(), "REC_HEADER")
	if err != nil {
		return RecordHeader{}, err
	}
	h, err := c.Parse(data)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			e.File = r.Name()
			e.Offset = start
		}

		return h, err
	}

	return h, nil
}

// Append encodes h after dst.
//
// Group headers pick their physical layout from the dynamic type of Label,
// not from GroupType. Record headers get the codec's form version written
// into the low int16 of Extra. Extra is only written for extended headers.
//
// Returns:
//   - []byte: Extended buffer
//   - error: errs.ErrFieldType if a group header has no label
func (c *HeaderCodec) Append(dst []byte, h *RecordHeader) ([]byte, error) {
	engine := endian.GetLittleEndianEngine()
	dst = append(dst, h.Signature[:]...)
	dst = engine.AppendUint32(dst, h.Size)

	extra := h.Extra
	if h.IsGroup() {
		switch l := h.Label.(type) {
		case TypeLabel:
			dst = append(dst, l[:]...)
		case IDLabel:
			dst = engine.AppendUint32(dst, uint32(l))
		case GridLabel:
			dst = endian.Append(dst, l.Y)
			dst = endian.Append(dst, l.X)
		default:
			return dst, errs.New(errs.ErrFieldType, "", "GRUP", -1, "unsupported group label %T", h.Label)
		}
		dst = engine.AppendUint32(dst, uint32(int32(h.GroupType)))
		dst = engine.AppendUint32(dst, h.Stamp)
	} else {
		dst = engine.AppendUint32(dst, h.Flags)
		dst = engine.AppendUint32(dst, h.FormID)
		dst = engine.AppendUint32(dst, h.Flags2)
		extra = extra&^0xFFFF | uint32(c.formVersion)
	}

	if c.formVersion != 0 {
		dst = engine.AppendUint32(dst, extra)
	}

	return dst, nil
}

// Bytes encodes h into a new slice of HeaderSize() bytes.
func (c *HeaderCodec) Bytes(h *RecordHeader) ([]byte, error) {
	return c.Append(make([]byte, 0, c.HeaderSize()), h)
}
