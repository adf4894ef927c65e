package schema

import (
	"slices"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

// counter is a derived subrecord holding the length of a list. It is
// ignored on decode and recomputed on encode.
type counter struct {
	sig    format.Signature
	layout *format.Layout
	always bool
}

func newCounter(sig, layout string, always bool) *counter {
	return &counter{sig: format.MustSignature(sig), layout: format.MustLayout(layout), always: always}
}

func (c *counter) register(m map[format.Signature]Element) {
	if c != nil {
		m[c.sig] = &discardElem{sig: c.sig}
	}
}

func (c *counter) encode(w *stream.Writer, n int) error {
	if c == nil || (n == 0 && !c.always) {
		return nil
	}

	return w.PackSubLayout(c.sig, c.layout, n)
}

// FormID declares a subrecord holding one reference. Absent references are
// not written.
func FormID(sig, attr string) Element {
	return &formIDElem{sig: format.MustSignature(sig), attr: attr}
}

type formIDElem struct {
	sig  format.Signature
	attr string
}

func (e *formIDElem) Slots() []Slot                          { return []Slot{{Name: e.attr}} }
func (e *formIDElem) SetDefault(f *Fields)                   { f.put(e.attr, nil) }
func (e *formIDElem) Loaders(m map[format.Signature]Element) { m[e.sig] = e }
func (e *formIDElem) HasFormIDs() bool                       { return true }

func readRef(r *stream.Reader, size int, ctx string) (formid.Ref, error) {
	if size != 4 {
		return nil, sizeError(r, ctx, 4, size)
	}
	v, err := r.Uint32(ctx)
	if err != nil {
		return nil, err
	}

	return formid.FormID(v), nil
}

func (e *formIDElem) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	ref, err := readRef(r, size, ctx)
	if err != nil {
		return err
	}
	f.put(e.attr, ref)

	return nil
}

func (e *formIDElem) Encode(f *Fields, w *stream.Writer) error {
	v := f.get(e.attr)
	if v == nil {
		return nil
	}
	ref, ok := v.(formid.Ref)
	if !ok {
		return typeError(e.sig.String(), v, "formid.Ref")
	}
	u, err := packRef(ref)
	if err != nil {
		return err
	}
	w.PackRef(e.sig, u)

	return nil
}

func (e *formIDElem) MapFormIDs(f *Fields, fn formid.Mapper, save bool) error {
	ref, _ := f.get(e.attr).(formid.Ref)
	mapped, err := mapRef(fn, ref)
	if err != nil {
		return err
	}
	if save && ref != nil {
		f.put(e.attr, mapped)
	}

	return nil
}

// refList is the shared behavior of the list-valued FormID elements.
type refList struct {
	sig     format.Signature
	attr    string
	counter *counter
	packed  bool
	sorted  bool
}

// FormIDs declares a list stored as one subrecord per reference.
func FormIDs(sig, attr string) Element {
	return &refList{sig: format.MustSignature(sig), attr: attr}
}

// FormIDList declares a list packed into a single subrecord. An empty list
// is not written.
func FormIDList(sig, attr string) Element {
	return &refList{sig: format.MustSignature(sig), attr: attr, packed: true}
}

// SortedFormIDList is a FormIDList written in ascending order.
func SortedFormIDList(sig, attr string) Element {
	return &refList{sig: format.MustSignature(sig), attr: attr, packed: true, sorted: true}
}

// CountedFormIDs is FormIDs preceded by a counter subrecord. The counter is
// written only for a non-empty list.
func CountedFormIDs(sig, attr, counterSig, counterLayout string) Element {
	return &refList{
		sig:     format.MustSignature(sig),
		attr:    attr,
		counter: newCounter(counterSig, counterLayout, false),
	}
}

// CountedFormIDList is FormIDList preceded by a counter subrecord. The
// counter is written only for a non-empty list.
func CountedFormIDList(sig, attr, counterSig, counterLayout string) Element {
	return &refList{
		sig:     format.MustSignature(sig),
		attr:    attr,
		counter: newCounter(counterSig, counterLayout, false),
		packed:  true,
	}
}

func (e *refList) Slots() []Slot        { return []Slot{{Name: e.attr}} }
func (e *refList) SetDefault(f *Fields) { f.put(e.attr, []formid.Ref(nil)) }
func (e *refList) HasFormIDs() bool     { return true }

func (e *refList) Loaders(m map[format.Signature]Element) {
	m[e.sig] = e
	e.counter.register(m)
}

func (e *refList) refs(f *Fields) ([]formid.Ref, error) {
	v := f.get(e.attr)
	refs, ok := v.([]formid.Ref)
	if v != nil && !ok {
		return nil, typeError(e.sig.String(), v, "[]formid.Ref")
	}

	return refs, nil
}

func (e *refList) Decode(f *Fields, r *stream.Reader, _ format.Signature, size int, ctx string) error {
	if !e.packed {
		ref, err := readRef(r, size, ctx)
		if err != nil {
			return err
		}
		refs, err := e.refs(f)
		if err != nil {
			return err
		}
		f.put(e.attr, append(refs, ref))

		return nil
	}

	if size%4 != 0 {
		return sizeError(r, ctx, size-size%4, size)
	}
	if size == 0 {
		return nil
	}
	b, err := r.Read(size, ctx)
	if err != nil {
		return err
	}
	refs := make([]formid.Ref, 0, size/4)
	for i := 0; i < size; i += 4 {
		refs = append(refs, formid.FormID(endian.Get[uint32](b[i:])))
	}
	f.put(e.attr, refs)

	return nil
}

func (e *refList) Encode(f *Fields, w *stream.Writer) error {
	refs, err := e.refs(f)
	if err != nil {
		return err
	}
	if err := e.counter.encode(w, len(refs)); err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	if e.sorted {
		refs = slices.SortedFunc(slices.Values(refs), formid.Compare)
	}

	if !e.packed {
		for _, ref := range refs {
			u, err := packRef(ref)
			if err != nil {
				return err
			}
			w.PackRef(e.sig, u)
		}

		return nil
	}

	payload := make([]byte, 0, 4*len(refs))
	for _, ref := range refs {
		u, err := packRef(ref)
		if err != nil {
			return err
		}
		payload = endian.Append(payload, u)
	}
	w.PackSub(e.sig, payload)

	return nil
}

func (e *refList) MapFormIDs(f *Fields, fn formid.Mapper, save bool) error {
	refs, err := e.refs(f)
	if err != nil || len(refs) == 0 {
		return err
	}

	mapped := make([]formid.Ref, len(refs))
	for i, ref := range refs {
		if mapped[i], err = mapRef(fn, ref); err != nil {
			return err
		}
	}
	if save {
		f.put(e.attr, mapped)
	}

	return nil
}
