// Package schema is the declarative record codec.
//
// A Schema is an ordered list of Elements, one per logical field of a record
// type. From that list it derives the default values of a new record, a
// dispatch table from subrecord tag to element used while decoding, and the
// subset of elements that store FormIDs.
//
// Decoding walks the record body subrecord by subrecord and hands each to
// the element registered for its tag. Encoding walks the elements in
// declaration order, so re-encoded records always come out in canonical
// subrecord order regardless of the order they were read in.
//
//	spel := schema.New("SPEL",
//		schema.String("EDID", "eid", 0),
//		schema.FirstFull(),
//		schema.Struct("SPIT", "3IB3s", ...),
//		schema.Groups("effects", ...),
//	)
//	fields, err := spel.Decode(r, end)
package schema

import (
	"cmp"
	"maps"
	"slices"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

var (
	sigFull = format.MustSignature("FULL")
	sigEfid = format.MustSignature("EFID")
)

// Schema describes one record type. It is immutable after New and safe for
// concurrent use.
type Schema struct {
	sig       format.Signature
	elems     []Element
	loaders   map[format.Signature]Element
	formElems []Element
	slots     *slotSet
	full      Element
}

// New builds the schema of a record type.
//
// Elements registering the same tag override earlier ones in the dispatch
// table; encoding still visits every element.
//
// Parameters:
//   - sig: Record type
//   - elems: Elements in canonical subrecord order
//
// Returns:
//   - *Schema: The schema; New panics on duplicate attribute names
func New(sig string, elems ...Element) *Schema {
	s := &Schema{
		sig:     format.MustSignature(sig),
		elems:   elems,
		loaders: make(map[format.Signature]Element),
		slots:   newSlotSet(elems),
	}
	for _, el := range elems {
		el.Loaders(s.loaders)
		if el.HasFormIDs() {
			s.formElems = append(s.formElems, el)
		}
		if str, ok := el.(*StringElem); ok && str.first {
			s.full = el
		}
	}

	return s
}

// Signature returns the record type.
func (s *Schema) Signature() format.Signature {
	return s.sig
}

// Attributes returns the record-level attribute names in declaration order.
func (s *Schema) Attributes() []string {
	return s.NewFields().Names()
}

// Tags returns every subrecord tag the schema decodes, sorted.
func (s *Schema) Tags() []format.Signature {
	return slices.SortedFunc(maps.Keys(s.loaders), func(a, b format.Signature) int {
		return cmp.Compare(a.String(), b.String())
	})
}

// HasFormIDs reports whether any element stores FormIDs.
func (s *Schema) HasFormIDs() bool {
	return len(s.formElems) > 0
}

// NewFields returns a Fields value holding the defaults of every element.
func (s *Schema) NewFields() *Fields {
	f := newFields(s.slots, nil)
	for _, el := range s.elems {
		el.SetDefault(f)
	}

	return f
}

func (s *Schema) owns(f *Fields) error {
	if f == nil || f.slots != s.slots {
		return errs.New(errs.ErrFieldType, "", s.sig.String(), -1, "fields do not belong to this schema")
	}

	return nil
}

// Decode reads subrecords from the cursor up to endPos into a new Fields
// value.
//
// Returns:
//   - *Fields: Decoded attributes with the change flag clear
//   - error: errs.ErrUnknownSubrecord for a tag the schema does not handle,
//     errs.ErrSizeMismatch when a subrecord is not fully consumed or the
//     body overruns endPos, or any cursor error
func (s *Schema) Decode(r *stream.Reader, endPos int64) (*Fields, error) {
	f := s.NewFields()
	if err := s.DecodeInto(f, r, endPos); err != nil {
		return nil, err
	}

	return f, nil
}

// DecodeInto is Decode into an existing Fields value of this schema.
func (s *Schema) DecodeInto(f *Fields, r *stream.Reader, endPos int64) error {
	if err := s.owns(f); err != nil {
		return err
	}
	recType := s.sig.String()

	doFullTest := s.full != nil
	for {
		done, err := r.AtEnd(endPos, recType)
		if err != nil {
			return err
		}
		if done {
			break
		}

		sh, err := r.SubHeader(recType)
		if err != nil {
			return err
		}
		ctx := recType + "." + sh.Signature.String()

		el, ok := s.loaders[sh.Signature]
		if !ok {
			return errs.New(errs.ErrUnknownSubrecord, r.Name(), ctx, r.Tell(), "size %d", sh.Size)
		}
		if doFullTest && sh.Signature == sigFull {
			el = s.full
		}

		start := r.Tell()
		if err := el.Decode(f, r, sh.Signature, int(sh.Size), ctx); err != nil {
			return err
		}
		if consumed := r.Tell() - start; consumed != int64(sh.Size) {
			return errs.New(errs.ErrSizeMismatch, r.Name(), ctx, start, "consumed %d of %d bytes", consumed, sh.Size)
		}

		doFullTest = doFullTest && sh.Signature != sigEfid
	}
	f.SetChanged(false)

	return nil
}

// Encode appends every element's subrecords in declaration order.
//
// Returns:
//   - error: errs.ErrPackingError if a long FormID is stored,
//     errs.ErrFieldType for a value of the wrong type, errs.ErrEncoding for
//     text the codec cannot represent
func (s *Schema) Encode(f *Fields, w *stream.Writer) error {
	if err := s.owns(f); err != nil {
		return err
	}
	for _, el := range s.elems {
		if err := el.Encode(f, w); err != nil {
			return err
		}
	}

	return nil
}

// MapFormIDs passes every stored FormID through fn. With save unset the
// values are left untouched, which makes a dry run or a collection pass.
func (s *Schema) MapFormIDs(f *Fields, fn formid.Mapper, save bool) error {
	if err := s.owns(f); err != nil {
		return err
	}
	for _, el := range s.formElems {
		if err := el.MapFormIDs(f, fn, save); err != nil {
			return err
		}
	}

	return nil
}
