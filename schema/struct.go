package schema

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

// FieldSpec names one value of a fixed layout.
type FieldSpec struct {
	name  string
	def   any
	fid   bool
	flags *format.FlagSet
}

// Field declares a plain value with its default.
func Field(name string, def any) FieldSpec {
	return FieldSpec{name: name, def: def}
}

// FIDField declares a FormID value. Its layout item must be 'I'; the
// default is an absent reference, packed as 0.
func FIDField(name string) FieldSpec {
	return FieldSpec{name: name, fid: true}
}

// FlagsField declares a bitfield. Decoded values are format.Flags bound to
// set; encoding dumps them back to the raw integer.
func FlagsField(name string, set *format.FlagSet, def uint64) FieldSpec {
	return FieldSpec{name: name, def: def, flags: set}
}

// StructElem is a subrecord holding a fixed layout of named values.
type StructElem struct {
	sig      format.Signature
	layout   *format.Layout
	fields   []FieldSpec
	defaults []any
	extra    string
	optional bool
}

// Struct declares a subrecord decoded with layout into the named fields.
// The number of fields must match the layout's value count.
func Struct(sig, layout string, fields ...FieldSpec) *StructElem {
	l := format.MustLayout(layout)
	if len(fields) != l.NumValues() {
		panic(fmt.Sprintf("schema: %s layout %q has %d values, %d fields given", sig, layout, l.NumValues(), len(fields)))
	}

	s := &StructElem{
		sig:    format.MustSignature(sig),
		layout: l,
		fields: fields,
	}

	raw := make([]any, len(fields))
	for i, fs := range fields {
		switch {
		case fs.fid:
			if l.Kind(i) != format.KindUint32 {
				panic(fmt.Sprintf("schema: %s formid field %q is not a u32", sig, fs.name))
			}
			raw[i] = uint32(0)
		case fs.def == nil:
			raw[i] = l.Zero()[i]
		default:
			raw[i] = fs.def
		}
	}
	enc, err := l.Encode(raw...)
	if err != nil {
		panic(fmt.Sprintf("schema: %s defaults: %v", sig, err))
	}
	typed, _ := l.Decode(enc)
	s.defaults = make([]any, len(fields))
	for i, fs := range fields {
		s.defaults[i] = s.wrap(i, typed[i])
		if fs.fid {
			s.defaults[i] = nil
		}
	}

	return s
}

// OptStruct is a Struct that is not written when every value is unset or
// equal to its default.
func OptStruct(sig, layout string, fields ...FieldSpec) *StructElem {
	s := Struct(sig, layout, fields...)
	s.optional = true

	return s
}

// WithExtra keeps bytes past the fixed layout in attr as []byte and writes
// them back after the fixed values.
func (s *StructElem) WithExtra(attr string) *StructElem {
	s.extra = attr
	return s
}

func (s *StructElem) wrap(i int, v any) any {
	fs := s.fields[i]
	switch {
	case fs.fid:
		return formid.FormID(v.(uint32))
	case fs.flags != nil:
		return fs.flags.Wrap(toUint64(v))
	default:
		return v
	}
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int8:
		return uint64(uint8(x))
	case int16:
		return uint64(uint16(x))
	case int32:
		return uint64(uint32(x))
	case int64:
		return uint64(x)
	default:
		return 0
	}
}

func cloneValue(v any) any {
	if b, ok := v.([]byte); ok {
		return bytes.Clone(b)
	}

	return v
}

func (s *StructElem) Slots() []Slot {
	slots := make([]Slot, 0, len(s.fields)+1)
	for _, fs := range s.fields {
		slots = append(slots, Slot{Name: fs.name})
	}
	if s.extra != "" {
		slots = append(slots, Slot{Name: s.extra})
	}

	return slots
}

func (s *StructElem) SetDefault(f *Fields) {
	for i, fs := range s.fields {
		f.put(fs.name, cloneValue(s.defaults[i]))
	}
	if s.extra != "" {
		f.put(s.extra, nil)
	}
}

func (s *StructElem) Loaders(m map[format.Signature]Element) { m[s.sig] = s }

func (s *StructElem) HasFormIDs() bool {
	for _, fs := range s.fields {
		if fs.fid {
			return true
		}
	}

	return false
}

func (s *StructElem) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	fixed := s.layout.Size()
	n := size
	if s.extra != "" && size > fixed {
		n = fixed
	}

	values, err := r.Unpack(s.layout, n, ctx)
	if err != nil {
		return err
	}
	for i, fs := range s.fields {
		f.put(fs.name, s.wrap(i, values[i]))
	}

	if n < size {
		extra, err := r.Read(size-n, ctx)
		if err != nil {
			return err
		}
		f.put(s.extra, bytes.Clone(extra))
	}

	return nil
}

func (s *StructElem) payload(f *Fields) ([]byte, error) {
	values := make([]any, len(s.fields))
	for i, fs := range s.fields {
		v := f.get(fs.name)
		if fs.fid {
			ref, ok := v.(formid.Ref)
			if v != nil && !ok {
				return nil, typeError(s.sig.String()+"."+fs.name, v, "formid.Ref")
			}
			u, err := packRef(ref)
			if err != nil {
				return nil, err
			}
			v = u
		}
		values[i] = v
	}

	out, err := s.layout.Encode(values...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.sig, err)
	}

	if s.extra != "" {
		switch x := f.get(s.extra).(type) {
		case nil:
		case []byte:
			out = append(out, x...)
		default:
			return nil, typeError(s.sig.String()+"."+s.extra, x, "[]byte")
		}
	}

	return out, nil
}

func (s *StructElem) isDefault(f *Fields) bool {
	for i, fs := range s.fields {
		v := f.get(fs.name)
		if v != nil && !reflect.DeepEqual(v, s.defaults[i]) {
			return false
		}
	}

	return true
}

func (s *StructElem) Encode(f *Fields, w *stream.Writer) error {
	if s.optional && s.isDefault(f) {
		return nil
	}
	payload, err := s.payload(f)
	if err != nil {
		return err
	}
	w.PackSub(s.sig, payload)

	return nil
}

func (s *StructElem) MapFormIDs(f *Fields, fn formid.Mapper, save bool) error {
	for _, fs := range s.fields {
		if !fs.fid {
			continue
		}
		ref, _ := f.get(fs.name).(formid.Ref)
		mapped, err := mapRef(fn, ref)
		if err != nil {
			return err
		}
		if save && ref != nil {
			f.put(fs.name, mapped)
		}
	}

	return nil
}

func (s *StructElem) item() *itemSpec {
	return &itemSpec{
		slots: newSlotSet([]Element{s}),
		init:  s.SetDefault,
	}
}

// Structs declares a list stored as one subrecord per element, each decoded
// with layout. The attribute holds []*Fields.
func Structs(sig, layout, attr string, fields ...FieldSpec) Element {
	inner := Struct(sig, layout, fields...)
	return &structsElem{inner: inner, attr: attr, spec: inner.item()}
}

type structsElem struct {
	inner *StructElem
	attr  string
	spec  *itemSpec
}

func (e *structsElem) Slots() []Slot                          { return []Slot{{Name: e.attr, item: e.spec}} }
func (e *structsElem) SetDefault(f *Fields)                   { f.put(e.attr, []*Fields(nil)) }
func (e *structsElem) Loaders(m map[format.Signature]Element) { m[e.inner.sig] = e }
func (e *structsElem) HasFormIDs() bool                       { return e.inner.HasFormIDs() }

func (e *structsElem) items(f *Fields) ([]*Fields, error) {
	v := f.get(e.attr)
	items, ok := v.([]*Fields)
	if v != nil && !ok {
		return nil, typeError(e.attr, v, "[]*schema.Fields")
	}

	return items, nil
}

func (e *structsElem) Decode(f *Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error {
	items, err := e.items(f)
	if err != nil {
		return err
	}
	item := f.child(e.spec)
	if err := e.inner.Decode(item, r, sig, size, ctx); err != nil {
		return err
	}
	f.put(e.attr, append(items, item))

	return nil
}

func (e *structsElem) Encode(f *Fields, w *stream.Writer) error {
	items, err := e.items(f)
	if err != nil {
		return err
	}
	for _, item := range items {
		payload, err := e.inner.payload(item)
		if err != nil {
			return err
		}
		w.PackSub(e.inner.sig, payload)
	}

	return nil
}

func (e *structsElem) MapFormIDs(f *Fields, fn formid.Mapper, save bool) error {
	items, err := e.items(f)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := e.inner.MapFormIDs(item, fn, save); err != nil {
			return err
		}
	}

	return nil
}

// StructArray declares a list packed back to back in a single subrecord.
// An empty list is not written.
func StructArray(sig, layout, attr string, fields ...FieldSpec) Element {
	inner := Struct(sig, layout, fields...)
	return &structArrayElem{structsElem{inner: inner, attr: attr, spec: inner.item()}}
}

type structArrayElem struct {
	structsElem
}

func (e *structArrayElem) Loaders(m map[format.Signature]Element) { m[e.inner.sig] = e }

func (e *structArrayElem) Decode(f *Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error {
	width := e.inner.layout.Size()
	if size%width != 0 {
		return sizeError(r, ctx, size-size%width, size)
	}

	items := make([]*Fields, 0, size/width)
	for range size / width {
		item := f.child(e.spec)
		if err := e.inner.Decode(item, r, sig, width, ctx); err != nil {
			return err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		items = nil
	}
	f.put(e.attr, items)

	return nil
}

func (e *structArrayElem) Encode(f *Fields, w *stream.Writer) error {
	items, err := e.items(f)
	if err != nil || len(items) == 0 {
		return err
	}

	var payload []byte
	for _, item := range items {
		b, err := e.inner.payload(item)
		if err != nil {
			return err
		}
		payload = append(payload, b...)
	}
	w.PackSub(e.inner.sig, payload)

	return nil
}

// Tuple declares a subrecord decoded with layout into a single []any
// attribute.
func Tuple(sig, layout, attr string, defaults ...any) Element {
	l := format.MustLayout(layout)
	def := l.Zero()
	if len(defaults) > 0 {
		enc, err := l.Encode(defaults...)
		if err != nil {
			panic(fmt.Sprintf("schema: %s defaults: %v", sig, err))
		}
		def, _ = l.Decode(enc)
	}

	return &tupleElem{sig: format.MustSignature(sig), layout: l, attr: attr, defaults: def}
}

type tupleElem struct {
	sig      format.Signature
	layout   *format.Layout
	attr     string
	defaults []any
}

func (e *tupleElem) Slots() []Slot { return []Slot{{Name: e.attr}} }

func (e *tupleElem) SetDefault(f *Fields) {
	values := make([]any, len(e.defaults))
	for i, v := range e.defaults {
		values[i] = cloneValue(v)
	}
	f.put(e.attr, values)
}

func (e *tupleElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *tupleElem) HasFormIDs() bool                       { return false }

func (e *tupleElem) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	values, err := r.Unpack(e.layout, size, ctx)
	if err != nil {
		return err
	}
	f.put(e.attr, values)

	return nil
}

func (e *tupleElem) Encode(f *Fields, w *stream.Writer) error {
	v := f.get(e.attr)
	values, ok := v.([]any)
	if !ok {
		return typeError(e.sig.String(), v, "[]any")
	}

	return w.PackSubLayout(e.sig, e.layout, values...)
}

func (e *tupleElem) MapFormIDs(*Fields, formid.Mapper, bool) error { return nil }
