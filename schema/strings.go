package schema

import (
	"fmt"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

const idSuffix = "#id"

// lstringID remembers the string table id a localized string was read
// from, with the text it resolved to.
type lstringID struct {
	id   uint32
	text string
}

// StringElem is a NUL-terminated text subrecord.
type StringElem struct {
	sig       format.Signature
	attr      string
	maxSize   int
	codec     *stream.TextCodec
	localized bool
	first     bool
}

// String declares a text subrecord in the plugin's encoding. With a positive
// maxSize, encoding truncates to at most maxSize bytes. Absent values are
// not written.
func String(sig, attr string, maxSize int) *StringElem {
	return &StringElem{sig: format.MustSignature(sig), attr: attr, maxSize: maxSize}
}

// Unicode declares a text subrecord with a fixed encoding, independent of
// the plugin's.
func Unicode(sig, attr string, maxSize int, encoding string) *StringElem {
	codec, err := stream.NewTextCodec(encoding)
	if err != nil {
		panic(fmt.Sprintf("schema: %s: %v", sig, err))
	}
	s := String(sig, attr, maxSize)
	s.codec = codec

	return s
}

// LString declares a translatable string. In a localized plugin the payload
// is a string table id; the resolved text is stored in attr.
func LString(sig, attr string, maxSize int) *StringElem {
	s := String(sig, attr, maxSize)
	s.localized = true

	return s
}

// FirstFull declares the record's own FULL name in record types whose
// effects also carry FULL subrecords. Every FULL seen before the first EFID
// is routed here, later ones go through normal dispatch.
func FirstFull() *StringElem {
	s := LString("FULL", "full", 0)
	s.first = true

	return s
}

func (e *StringElem) Slots() []Slot {
	if e.localized {
		return []Slot{{Name: e.attr}, {Name: e.attr + idSuffix, Hidden: true}}
	}

	return []Slot{{Name: e.attr}}
}

func (e *StringElem) SetDefault(f *Fields) {
	f.put(e.attr, nil)
	if e.localized {
		f.put(e.attr+idSuffix, nil)
	}
}

func (e *StringElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *StringElem) HasFormIDs() bool                       { return false }

func (e *StringElem) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	if e.localized {
		text, id, err := r.ReadLString(size, ctx)
		if err != nil {
			return err
		}
		f.put(e.attr, text)
		if r.HasStrings() {
			f.put(e.attr+idSuffix, lstringID{id: id, text: text})
		}

		return nil
	}

	if e.codec != nil {
		b, err := r.Read(size, ctx)
		if err != nil {
			return err
		}
		f.put(e.attr, e.codec.Decode(b))

		return nil
	}

	s, err := r.ReadString(size, ctx)
	if err != nil {
		return err
	}
	f.put(e.attr, s)

	return nil
}

func (e *StringElem) Encode(f *Fields, w *stream.Writer) error {
	v := f.get(e.attr)
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return typeError(e.sig.String(), v, "string")
	}

	if e.localized && w.Localized() {
		return e.encodeID(f, w, s)
	}

	return w.WriteString(e.sig, s, e.maxSize, e.codec)
}

// encodeID writes the table id the string was read from. String tables are
// not written, so a string that changed or never had an id cannot be
// expressed.
func (e *StringElem) encodeID(f *Fields, w *stream.Writer, s string) error {
	ref, _ := f.get(e.attr + idSuffix).(lstringID)
	switch {
	case ref.text == s:
		w.PackRef(e.sig, ref.id)
	case s == "" && ref.id == 0:
		w.PackRef(e.sig, 0)
	default:
		return errs.New(errs.ErrEncoding, "", e.sig.String(), -1, "localized string %q has no string table id", s)
	}

	return nil
}

func (e *StringElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }

// Strings declares a subrecord of NUL-separated strings stored as []string.
// An empty list is not written.
func Strings(sig, attr string) Element {
	return &stringsElem{sig: format.MustSignature(sig), attr: attr}
}

type stringsElem struct {
	sig  format.Signature
	attr string
}

func (e *stringsElem) Slots() []Slot                          { return []Slot{{Name: e.attr}} }
func (e *stringsElem) SetDefault(f *Fields)                   { f.put(e.attr, []string(nil)) }
func (e *stringsElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *stringsElem) HasFormIDs() bool                       { return false }

func (e *stringsElem) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	values, err := r.ReadStrings(size, ctx)
	if err != nil {
		return err
	}
	f.put(e.attr, values)

	return nil
}

func (e *stringsElem) Encode(f *Fields, w *stream.Writer) error {
	v := f.get(e.attr)
	values, ok := v.([]string)
	if v != nil && !ok {
		return typeError(e.sig.String(), v, "[]string")
	}
	if len(values) == 0 {
		return nil
	}

	return w.WriteStrings(e.sig, values)
}

func (e *stringsElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }
