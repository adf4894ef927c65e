// Package record wraps a schema and the stored bytes of one record into a
// stateful object.
//
// A record read from a plugin starts undecoded and keeps its original bytes.
// The body is decompressed and decoded on first access to its fields. Any
// mutation marks the record dirty; the next Size or WriteTo call re-encodes
// it, recompresses it when the compressed flag is set, and caches the
// result. Unchanged records are written back byte for byte.
//
// FormIDs are translated with ConvertFormIDs. A record whose ids are in the
// long representation cannot be packed.
package record

import (
	"bytes"
	"io"

	"github.com/arloliu/espcodec/compress"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/schema"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
	"github.com/pkg/errors"
)

// State is the lifecycle state of a record.
type State uint8

const (
	StateRaw    State = iota // StateRaw holds undecoded bytes.
	StateClean               // StateClean is decoded and matches its cached bytes.
	StateDirty               // StateDirty was mutated since its bytes were cached.
	StatePacked              // StatePacked was written and not mutated since.
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StatePacked:
		return "packed"
	default:
		return "unknown"
	}
}

var (
	sigEDID = format.MustSignature("EDID")
	zlib    = compress.NewZlibCompressor(compress.DefaultZlibLevel)
)

// Env is the plugin-wide context records are decoded and encoded in.
// An Env is shared by every record of a plugin and must not change while
// they are in use.
type Env struct {
	File      string
	Headers   *section.HeaderCodec
	Text      *stream.TextCodec
	Strings   stream.StringLookup
	Localized bool
}

func (e *Env) reader(data []byte) *stream.Reader {
	r := stream.NewReader(e.File, data)
	r.SetTextCodec(e.Text)
	if e.Localized {
		if e.Strings != nil {
			r.SetStringTable(e.Strings)
		} else {
			r.SetStringTable(noStrings{})
		}
	}

	return r
}

// noStrings stands in for a missing string table: every id fails lookup
// but is still kept for re-encoding.
type noStrings struct{}

func (noStrings) Lookup(uint32) (string, bool) { return "", false }

// Record is one plugin record.
//
// A Record is not safe for concurrent use.
type Record struct {
	Header section.RecordHeader

	env     *Env
	schema  *schema.Schema
	data    []byte // stored body, compressed when the header says so
	plain   []byte // decompressed body, loaded on demand
	fields  *schema.Fields
	fid     formid.Ref
	repr    formid.Representation
	origin  *formid.MasterList // masters the ids of an opaque body refer to
	state   State
	changed bool
}

// FromBytes wraps a record read from a plugin.
//
// Parameters:
//   - env: Plugin context
//   - s: Schema of the record type, nil for records kept opaque
//   - h: Decoded header
//   - body: Stored body; it is retained, not copied
//
// Returns:
//   - *Record: Record in StateRaw
func FromBytes(env *Env, s *schema.Schema, h section.RecordHeader, body []byte) *Record {
	return &Record{
		Header: h,
		env:    env,
		schema: s,
		data:   body,
		fid:    formid.FormID(h.FormID),
		state:  StateRaw,
	}
}

// New creates a record holding the schema's defaults. The record is dirty
// until first packed.
func New(env *Env, s *schema.Schema, fid formid.FormID) *Record {
	return &Record{
		Header:  section.RecordHeader{Signature: s.Signature(), FormID: uint32(fid)},
		env:     env,
		schema:  s,
		fields:  s.NewFields(),
		fid:     fid,
		state:   StateClean,
		changed: true,
	}
}

// Signature returns the record type.
func (r *Record) Signature() format.Signature {
	return r.Header.Signature
}

// Schema returns the record's schema, nil for opaque records.
func (r *Record) Schema() *schema.Schema {
	return r.schema
}

// FormID returns the record's own id in its current representation.
func (r *Record) FormID() formid.Ref {
	return r.fid
}

// SetFormID replaces the record's own id. The id must be in the record's
// current representation.
func (r *Record) SetFormID(ref formid.Ref) error {
	if ref == nil || ref.Representation() != r.repr {
		return errs.New(errs.ErrMixedRepresentation, r.env.File, r.Header.String(), -1, "%v in a %s record", ref, r.repr)
	}
	r.fid = ref
	r.changed = true

	return nil
}

// Representation returns the representation of every id in the record.
func (r *Record) Representation() formid.Representation {
	return r.repr
}

// IsCompressed reports whether the body is stored compressed.
func (r *Record) IsCompressed() bool {
	return r.Header.HasFlag(section.FlagCompressed)
}

// State returns the lifecycle state.
func (r *Record) State() State {
	if r.Changed() {
		return StateDirty
	}

	return r.state
}

// Changed reports whether the record must be re-encoded before writing.
func (r *Record) Changed() bool {
	return r.changed || (r.fields != nil && r.fields.Changed())
}

// SetChanged forces or clears re-encoding on the next pack.
func (r *Record) SetChanged(changed bool) {
	r.changed = changed
	if r.fields != nil && !changed {
		r.fields.SetChanged(false)
	}
}

// Body returns the decompressed body as last packed or read.
func (r *Record) Body() ([]byte, error) {
	if r.plain != nil {
		return r.plain, nil
	}
	if !r.IsCompressed() {
		return r.data, nil
	}

	plain, err := compress.UnpackSized(zlib, r.data)
	if err != nil {
		return nil, errs.WithFile(errors.Wrapf(err, "decompress %s", r.Header), r.env.File)
	}
	r.plain = plain

	return plain, nil
}

// SetCompressed sets or clears the compressed flag. The body is recompressed
// or stored plain on the next pack.
func (r *Record) SetCompressed(on bool) error {
	if on == r.IsCompressed() {
		return nil
	}
	if r.schema != nil {
		if err := r.Decode(); err != nil {
			return err
		}
	} else if _, err := r.Body(); err != nil {
		return err
	} else if r.plain == nil {
		r.plain = r.data
	}
	r.Header.SetFlag(section.FlagCompressed, on)
	r.changed = true

	return nil
}

// Decode decodes the body into fields. It is a no-op once decoded.
//
// Returns:
//   - error: errs.ErrUnknownRecordType for an opaque record, any
//     decompression or schema error otherwise
func (r *Record) Decode() error {
	if r.fields != nil {
		return nil
	}
	if r.schema == nil {
		return errs.New(errs.ErrUnknownRecordType, r.env.File, r.Header.String(), -1, "no schema for %s", r.Header.Signature)
	}

	body, err := r.Body()
	if err != nil {
		return err
	}
	fields, err := r.schema.Decode(r.env.reader(body), int64(len(body)))
	if err != nil {
		return errors.Wrapf(err, "decode %s", r.Header)
	}
	r.fields = fields
	r.state = StateClean

	return nil
}

// Fields decodes the record if needed and returns its attributes.
func (r *Record) Fields() (*schema.Fields, error) {
	if err := r.Decode(); err != nil {
		return nil, err
	}

	return r.fields, nil
}

// Size returns the stored body size, re-encoding a changed record first.
//
// Returns:
//   - uint32: Body size as written after the header
//   - error: errs.ErrPackingError if the record holds long FormIDs, or an
//     encoding error
func (r *Record) Size() (uint32, error) {
	if !r.Changed() {
		return uint32(len(r.data)), nil
	}
	if r.repr == formid.Long {
		return 0, errs.New(errs.ErrPackingError, r.env.File, r.Header.String(), -1, "record holds long formids")
	}

	plain, err := r.encodeBody()
	if err != nil {
		return 0, err
	}
	data := plain
	if r.IsCompressed() {
		if data, err = compress.PackSized(zlib, plain); err != nil {
			return 0, err
		}
	}

	r.data = data
	r.plain = plain
	r.Header.Size = uint32(len(data))
	r.Header.FormID = uint32(r.fid.(formid.FormID))
	r.SetChanged(false)
	r.state = StateClean

	return r.Header.Size, nil
}

func (r *Record) encodeBody() ([]byte, error) {
	if r.fields == nil {
		body, err := r.Body()
		if err != nil {
			return nil, err
		}

		return bytes.Clone(body), nil
	}

	w := stream.NewWriter()
	w.SetTextCodec(r.env.Text)
	w.SetLocalized(r.env.Localized)
	if err := r.schema.Encode(r.fields, w); err != nil {
		w.Release()
		return nil, errs.WithFile(errors.Wrapf(err, "encode %s", r.Header), r.env.File)
	}

	return w.Detach(), nil
}

// Pack re-encodes the record if it changed.
func (r *Record) Pack() error {
	_, err := r.Size()
	return err
}

// Bytes returns the header followed by the stored body.
func (r *Record) Bytes() ([]byte, error) {
	if err := r.Pack(); err != nil {
		return nil, err
	}
	r.Header.Size = uint32(len(r.data))
	out, err := r.env.Headers.Append(make([]byte, 0, r.env.Headers.HeaderSize()+len(r.data)), &r.Header)
	if err != nil {
		return nil, err
	}

	return append(out, r.data...), nil
}

// WriteTo writes the header and body to w.
//
// Returns:
//   - int64: Bytes written
//   - error: Packing or write error; nothing is written on a packing error
func (r *Record) WriteTo(w io.Writer) (int64, error) {
	b, err := r.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	}
	r.state = StatePacked

	return int64(n), nil
}
