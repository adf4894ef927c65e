package record

import (
	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/internal/hash"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
)

// ConvertFormIDs translates every id of the record, its own id included,
// into the to representation.
//
// The conversion is atomic: every id is mapped once in a dry run first, and
// nothing is stored unless all of them succeed. Converting a record that is
// already in the to representation does nothing.
//
// Parameters:
//   - fn: Mapper producing ids in the to representation
//   - to: Target representation
//
// Returns:
//   - error: The mapper's error (errs.ErrUnresolvedMaster for a master
//     missing from the target list), errs.ErrMixedRepresentation if an id is
//     not in the record's representation or fn returns one in another, or
//     errs.ErrOpaqueRecord for a record without a schema, whose body ids
//     only ToLong and ToShort can account for
func (r *Record) ConvertFormIDs(fn formid.Mapper, to formid.Representation) error {
	if r.repr == to {
		return nil
	}
	if r.schema == nil {
		return r.opaqueError("ids inside the body cannot be mapped")
	}
	fid, err := r.prepare(fn, to)
	if err != nil {
		return err
	}

	return r.commit(fn, to, fid)
}

// ToLong converts the record's ids using the master list of the plugin it
// was read from. A record without a schema converts only its own id and
// remembers masters, which its body ids stay relative to.
func (r *Record) ToLong(masters *formid.MasterList) error {
	return r.convert(masters, formid.Long, true)
}

// ToShort converts the record's ids to the master list of the plugin it
// will be written to.
//
// Returns:
//   - error: As ConvertFormIDs; errs.ErrOpaqueRecord for a record without a
//     schema when a file of the list its body was read against has another
//     index in masters
func (r *Record) ToShort(masters *formid.MasterList) error {
	return r.convert(masters, formid.Short, true)
}

// CheckConversion returns the error ToLong (to is formid.Long) or ToShort
// would return for masters, without converting anything.
func (r *Record) CheckConversion(masters *formid.MasterList, to formid.Representation) error {
	return r.convert(masters, to, false)
}

func (r *Record) convert(masters *formid.MasterList, to formid.Representation, commit bool) error {
	if r.repr == to {
		return nil
	}
	fn := masters.LongMapper()
	if to == formid.Short {
		fn = masters.ShortMapper()
		if r.schema == nil && (r.origin == nil || !r.origin.SameIndices(masters)) {
			return r.opaqueError("body ids would change meaning against the masters of %s", masters.Self())
		}
	}

	fid, err := r.prepare(fn, to)
	if err != nil || !commit {
		return err
	}
	if r.schema == nil {
		r.origin = nil
		if to == formid.Long {
			r.origin = masters
		}
	}

	return r.commit(fn, to, fid)
}

func (r *Record) opaqueError(msg string, args ...any) error {
	return errs.New(errs.ErrOpaqueRecord, r.env.File, r.Header.String(), -1, msg, args...)
}

// checked wraps fn so that every input id must be in the record's current
// representation and every output id in to.
func (r *Record) checked(fn formid.Mapper, to formid.Representation) formid.Mapper {
	return func(ref formid.Ref) (formid.Ref, error) {
		if ref.Representation() != r.repr {
			return nil, errs.New(errs.ErrMixedRepresentation, r.env.File, r.Header.String(), -1, "%s in a %s record", ref, r.repr)
		}
		out, err := fn(ref)
		if err != nil {
			return nil, err
		}
		if out != nil && out.Representation() != to {
			return nil, errs.New(errs.ErrMixedRepresentation, r.env.File, r.Header.String(), -1, "mapper returned %s for %s", out, ref)
		}

		return out, nil
	}
}

// prepare maps every id without storing any and returns the record's own
// mapped id.
func (r *Record) prepare(fn formid.Mapper, to formid.Representation) (formid.Ref, error) {
	if r.schema != nil {
		if err := r.Decode(); err != nil {
			return nil, err
		}
	}
	check := r.checked(fn, to)
	fid, err := check(r.fid)
	if err != nil {
		return nil, err
	}
	if r.fields != nil {
		if err := r.schema.MapFormIDs(r.fields, check, false); err != nil {
			return nil, err
		}
	}

	return fid, nil
}

func (r *Record) commit(fn formid.Mapper, to formid.Representation, fid formid.Ref) error {
	if r.fields != nil {
		if err := r.schema.MapFormIDs(r.fields, r.checked(fn, to), true); err != nil {
			return err
		}
	}
	r.fid = fid
	r.repr = to
	r.changed = true

	return nil
}

// UpdateMasters adds the file of every id the record references, its own
// included, to set. The record must be in the long representation.
func (r *Record) UpdateMasters(set *formid.MasterSet) error {
	if r.repr != formid.Long {
		return errs.New(errs.ErrMixedRepresentation, r.env.File, r.Header.String(), -1, "masters are only known for long formids")
	}
	collect := r.checked(set.Collector(), formid.Long)
	if _, err := collect(r.fid); err != nil {
		return err
	}
	if r.fields == nil {
		return nil
	}

	return r.schema.MapFormIDs(r.fields, collect, false)
}

// EditorID returns the record's editor id, or "" when it has none. Records
// that are not decoded yet are scanned without decoding.
func (r *Record) EditorID() (string, error) {
	if r.fields != nil && r.fields.Has("eid") {
		eid, _ := r.fields.Get("eid").(string)
		return eid, nil
	}

	body, err := r.Body()
	if err != nil {
		return "", err
	}
	rd := r.env.reader(body)
	payload, ok, err := rd.FindSubrecord(sigEDID, int64(len(body)), r.Header.Signature.String())
	if err != nil || !ok {
		return "", err
	}

	return rd.TextCodec().Decode(payload), nil
}

// Subrecord is one undecoded subrecord of a body.
type Subrecord struct {
	Signature format.Signature
	Data      []byte
}

// Subrecords splits the body into its subrecords without decoding them.
// The data slices alias the record's body.
func (r *Record) Subrecords() ([]Subrecord, error) {
	if err := r.Pack(); err != nil {
		return nil, err
	}
	body, err := r.Body()
	if err != nil {
		return nil, err
	}

	rd := stream.NewReader(r.env.File, body)
	ctx := r.Header.Signature.String()
	var subs []Subrecord
	for rd.Remaining() > 0 {
		sh, err := rd.SubHeader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := rd.Read(int(sh.Size), ctx+"."+sh.Signature.String())
		if err != nil {
			return nil, err
		}
		subs = append(subs, Subrecord{Signature: sh.Signature, Data: data})
	}

	return subs, nil
}

// Digest returns a hash of the record's type and content.
//
// Decoded records hash their attributes, with long ids case-folded, so two
// records holding equal values in the same representation have equal
// digests whatever plugin they came from. Opaque records hash their body.
// The flags are included, except the compression bit.
func (r *Record) Digest() (uint64, error) {
	var content []byte
	if r.schema != nil {
		if err := r.Decode(); err != nil {
			return 0, err
		}
		content = r.fields.AppendCanonical(nil)
	} else {
		body, err := r.Body()
		if err != nil {
			return 0, err
		}
		content = body
	}
	flags := endian.Append([]byte(nil), r.Header.Flags&^section.FlagCompressed)

	return hash.Record(r.Header.Signature, flags, content), nil
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.fields != nil {
		c.fields = r.fields.Clone()
	}

	return &c
}

// CloneInto returns a copy of the record bound to env, the context of the
// plugin it will be written to. When the two contexts store text
// differently the copy is decoded in the old context and re-encoded in the
// new one on the next pack.
func (r *Record) CloneInto(env *Env) (*Record, error) {
	c := r.Clone()
	if env == r.env {
		return c, nil
	}
	if r.schema != nil && (env.Localized != r.env.Localized || env.Text != r.env.Text) {
		if err := c.Decode(); err != nil {
			return nil, err
		}
		c.changed = true
	}
	c.env = env

	return c, nil
}
