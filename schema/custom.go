package schema

import (
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

var (
	layoutInt   = format.MustLayout("i")
	layoutUint  = format.MustLayout("I")
	layoutFloat = format.MustLayout("f")
	layoutQword = format.MustLayout("Q")
)

// GameSetting declares the value of a game setting record. The value type
// follows the first letter of the editor id stored in eidAttr: 's' is a
// translatable string, 'i' an int32, 'f' a float32, and anything else
// (including 'b' booleans) a uint32.
func GameSetting(sig, attr, eidAttr string) Element {
	return &settingElem{
		sig:  format.MustSignature(sig),
		attr: attr,
		eid:  eidAttr,
		text: LString(sig, attr, 0),
	}
}

type settingElem struct {
	sig  format.Signature
	attr string
	eid  string
	text *StringElem
}

func (e *settingElem) kind(f *Fields) byte {
	eid, _ := f.get(e.eid).(string)
	if eid == "" {
		return 'I'
	}
	switch eid[0] {
	case 's', 'i', 'f':
		return eid[0]
	default:
		return 'I'
	}
}

func (e *settingElem) layout(kind byte) *format.Layout {
	switch kind {
	case 'i':
		return layoutInt
	case 'f':
		return layoutFloat
	default:
		return layoutUint
	}
}

func (e *settingElem) Slots() []Slot                          { return e.text.Slots() }
func (e *settingElem) SetDefault(f *Fields)                   { e.text.SetDefault(f) }
func (e *settingElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *settingElem) HasFormIDs() bool                       { return false }

func (e *settingElem) Decode(f *Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error {
	kind := e.kind(f)
	if kind == 's' {
		return e.text.Decode(f, r, sig, size, ctx)
	}

	values, err := r.Unpack(e.layout(kind), size, ctx)
	if err != nil {
		return err
	}
	f.put(e.attr, values[0])

	return nil
}

func (e *settingElem) Encode(f *Fields, w *stream.Writer) error {
	kind := e.kind(f)
	if kind == 's' {
		return e.text.Encode(f, w)
	}
	v := f.get(e.attr)
	if v == nil {
		return nil
	}

	return w.PackSubLayout(e.sig, e.layout(kind), v)
}

func (e *settingElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }

// Masters declares the plugin header's master list: one MAST name per
// master, each followed by a DATA subrecord holding a u64 that is written
// as zero. The attribute holds []string.
func Masters(attr string) Element {
	return &mastersElem{
		attr:  attr,
		codec: stream.DefaultTextCodec(),
		mast:  format.MustSignature("MAST"),
		data:  format.MustSignature("DATA"),
	}
}

type mastersElem struct {
	attr  string
	codec *stream.TextCodec
	mast  format.Signature
	data  format.Signature
}

func (e *mastersElem) Slots() []Slot        { return []Slot{{Name: e.attr}} }
func (e *mastersElem) SetDefault(f *Fields) { f.put(e.attr, []string(nil)) }
func (e *mastersElem) HasFormIDs() bool     { return false }

func (e *mastersElem) Loaders(m map[format.Signature]Element) {
	m[e.mast] = e
	m[e.data] = e
}

func (e *mastersElem) Decode(f *Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error {
	if sig == e.data {
		return r.Skip(size, ctx)
	}
	b, err := r.Read(size, ctx)
	if err != nil {
		return err
	}
	names, _ := f.get(e.attr).([]string)
	f.put(e.attr, append(names, e.codec.Decode(b)))

	return nil
}

func (e *mastersElem) Encode(f *Fields, w *stream.Writer) error {
	v := f.get(e.attr)
	names, ok := v.([]string)
	if v != nil && !ok {
		return typeError(e.mast.String(), v, "[]string")
	}
	for _, name := range names {
		if err := w.WriteString(e.mast, name, 0, e.codec); err != nil {
			return err
		}
		if err := w.PackSubLayout(e.data, layoutQword, 0); err != nil {
			return err
		}
	}

	return nil
}

func (e *mastersElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }
