package schema

import (
	"bytes"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

// Element describes how one logical field of a record is stored.
//
// An element owns one or more subrecord tags. Decode is called once per
// subrecord carrying one of its tags; Encode writes all of the element's
// subrecords. Elements are immutable after construction and may be shared
// by several schemas.
type Element interface {
	// Slots lists the attributes the element stores.
	Slots() []Slot
	// SetDefault initializes the element's attributes.
	SetDefault(f *Fields)
	// Loaders registers the element under every tag it decodes.
	Loaders(m map[format.Signature]Element)
	// HasFormIDs reports whether the element stores FormIDs.
	HasFormIDs() bool
	// Decode consumes exactly size bytes of a subrecord tagged sig.
	Decode(f *Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error
	// Encode appends the element's subrecords.
	Encode(f *Fields, w *stream.Writer) error
	// MapFormIDs passes every stored FormID through fn, storing the result
	// when save is set.
	MapFormIDs(f *Fields, fn formid.Mapper, save bool) error
}

// packRef returns the stored value of a short FormID. Long ids cannot be
// packed.
func packRef(ref formid.Ref) (uint32, error) {
	switch x := ref.(type) {
	case nil:
		return 0, nil
	case formid.FormID:
		return uint32(x), nil
	default:
		return 0, errs.New(errs.ErrPackingError, "", "", -1, "cannot pack %s", ref)
	}
}

func mapRef(fn formid.Mapper, ref formid.Ref) (formid.Ref, error) {
	if ref == nil {
		return nil, nil
	}

	return fn(ref)
}

func sizeError(r *stream.Reader, ctx string, want, got int) error {
	return errs.New(errs.ErrSizeMismatch, r.Name(), ctx, r.Tell(), "expected %d bytes, got %d", want, got)
}

func typeError(ctx string, v any, want string) error {
	return errs.New(errs.ErrFieldType, "", ctx, -1, "%T where %s expected", v, want)
}

// Raw keeps a subrecord's payload verbatim. Absent payloads are not written.
func Raw(sig, attr string) Element {
	return &rawElem{sig: format.MustSignature(sig), attr: attr}
}

type rawElem struct {
	sig  format.Signature
	attr string
}

func (e *rawElem) Slots() []Slot                          { return []Slot{{Name: e.attr}} }
func (e *rawElem) SetDefault(f *Fields)                   { f.put(e.attr, nil) }
func (e *rawElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *rawElem) HasFormIDs() bool                       { return false }

func (e *rawElem) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	b, err := r.Read(size, ctx)
	if err != nil {
		return err
	}
	f.put(e.attr, bytes.Clone(b))

	return nil
}

func (e *rawElem) Encode(f *Fields, w *stream.Writer) error {
	switch v := f.get(e.attr).(type) {
	case nil:
	case []byte:
		w.PackSub(e.sig, v)
	default:
		return typeError(e.sig.String(), v, "[]byte")
	}

	return nil
}

func (e *rawElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }

// Discard consumes a subrecord and drops it, so it never reappears on
// encode.
func Discard(sig string) Element {
	return &discardElem{sig: format.MustSignature(sig)}
}

type discardElem struct {
	sig format.Signature
}

func (e *discardElem) Slots() []Slot                          { return nil }
func (e *discardElem) SetDefault(*Fields)                     {}
func (e *discardElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *discardElem) HasFormIDs() bool                       { return false }

func (e *discardElem) Decode(_ *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	return r.Skip(size, ctx)
}

func (e *discardElem) Encode(*Fields, *stream.Writer) error          { return nil }
func (e *discardElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }
