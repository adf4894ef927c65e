// Package plugin reads, edits, writes and merges whole plugin files.
//
// A plugin is a TES4 header record followed by top groups, one per record
// type, each holding records and nested groups. Load keeps every record in
// its stored form and decodes it on first access, so a plugin that is read
// and saved without edits is reproduced byte for byte.
//
// Example:
//
//	profile := game.MustLoad("skyrimse")
//	p, err := plugin.LoadFile(ctx, profile, "Patch.esp")
//	if err != nil {
//	    return err
//	}
//	for rec := range p.Records() {
//	    eid, _ := rec.EditorID()
//	    fmt.Println(rec.Signature(), eid)
//	}
package plugin

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/game"
	"github.com/arloliu/espcodec/internal/options"
	"github.com/arloliu/espcodec/internal/pool"
	"github.com/arloliu/espcodec/record"
	"github.com/arloliu/espcodec/records"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
	"github.com/pkg/errors"
)

// Plugin is one plugin file in memory.
//
// A Plugin is not safe for concurrent use.
type Plugin struct {
	name    string
	profile *game.Profile
	schemas SchemaSet
	env     *record.Env
	logger  *slog.Logger
	header  *record.Record
	groups  []*Group
}

func newPlugin(profile *game.Profile, name string, opts []Option) (*Plugin, *Config, error) {
	if profile == nil {
		return nil, nil, errs.New(errs.ErrInvalidProfile, name, "", -1, "no game profile")
	}
	cfg := newConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, nil, err
	}
	if cfg.schemas == nil {
		reg, err := records.For(profile.Key)
		if err != nil {
			return nil, nil, err
		}
		cfg.schemas = reg
	}
	if cfg.schemas.Header() == nil {
		return nil, nil, errs.New(errs.ErrUnknownRecordType, name, format.SigHeader.String(), -1, "no schema for the plugin header")
	}

	p := &Plugin{
		name:    name,
		profile: profile,
		schemas: cfg.schemas,
		logger:  cfg.logger,
		env: &record.Env{
			File:    name,
			Headers: profile.HeaderCodec(),
			Text:    profile.TextCodec(),
			Strings: cfg.strings,
		},
	}

	return p, cfg, nil
}

// New creates an empty plugin with a default header. A name ending in
// .esm sets the master flag.
func New(profile *game.Profile, name string, opts ...Option) (*Plugin, error) {
	p, _, err := newPlugin(profile, name, opts)
	if err != nil {
		return nil, err
	}

	p.header = record.New(p.env, p.schemas.Header(), 0)
	p.header.Header.SetFlag(section.FlagESM, strings.EqualFold(filepath.Ext(name), ".esm"))
	fields, err := p.header.Fields()
	if err != nil {
		return nil, err
	}
	if err := fields.Set("version", profile.HeaderVersion); err != nil {
		return nil, err
	}

	return p, nil
}

// Load parses a plugin held in memory.
//
// Records are retained as slices of data, which must not be modified while
// the plugin is in use.
//
// Parameters:
//   - ctx: Checked between records
//   - profile: Game the plugin belongs to
//   - name: File name, used as the plugin's own master name and in errors
//   - data: Whole plugin file
//   - opts: Load options
//
// Returns:
//   - *Plugin: Loaded plugin
//   - error: errs.ErrTruncatedRead, errs.ErrSizeMismatch or
//     errs.ErrUnknownRecordType for malformed files, ctx.Err() on cancellation
func Load(ctx context.Context, profile *game.Profile, name string, data []byte, opts ...Option) (*Plugin, error) {
	p, cfg, err := newPlugin(profile, name, opts)
	if err != nil {
		return nil, err
	}

	r := stream.NewReader(name, data)
	r.SetTextCodec(profile.TextCodec())
	l := &loader{ctx: ctx, p: p, r: r, headers: profile.HeaderCodec(), cfg: cfg}
	if err := l.readHeader(); err != nil {
		return nil, err
	}
	if err := l.readGroups(); err != nil {
		return nil, err
	}

	return p, nil
}

// LoadFile reads and parses the plugin at path. The plugin is named after
// the base name of path.
func LoadFile(ctx context.Context, profile *game.Profile, path string, opts ...Option) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read plugin %s", path)
	}

	return Load(ctx, profile, filepath.Base(path), data, opts...)
}

// Name returns the plugin's file name.
func (p *Plugin) Name() string {
	return p.name
}

// Profile returns the game profile.
func (p *Plugin) Profile() *game.Profile {
	return p.profile
}

// Header returns the TES4 header record.
func (p *Plugin) Header() *record.Record {
	return p.header
}

// IsLocalized reports whether the plugin stores translatable strings as
// string table ids.
func (p *Plugin) IsLocalized() bool {
	return p.env.Localized
}

// Masters returns the master file names in header order.
func (p *Plugin) Masters() []string {
	fields, err := p.header.Fields()
	if err != nil {
		return nil
	}

	return records.Masters(fields)
}

// SetMasters replaces the master list. Records holding short ids must be
// converted to long ids before and back after.
func (p *Plugin) SetMasters(masters []string) error {
	fields, err := p.header.Fields()
	if err != nil {
		return err
	}

	return fields.Set("masters", slices.Clone(masters))
}

// MasterList returns the plugin's masters for id conversion.
func (p *Plugin) MasterList() *formid.MasterList {
	return formid.NewMasterList(p.name, p.Masters())
}

// Groups returns the top groups in file order.
func (p *Plugin) Groups() []*Group {
	return p.groups
}

// TopGroup returns the top group of a record type, or nil.
func (p *Plugin) TopGroup(sig format.Signature) *Group {
	for _, g := range p.groups {
		if l, ok := g.Header.Label.(section.TypeLabel); ok && format.Signature(l) == sig {
			return g
		}
	}

	return nil
}

// Records yields every record except the header, in file order.
func (p *Plugin) Records() iter.Seq[*record.Record] {
	return func(yield func(*record.Record) bool) {
		for _, g := range p.groups {
			if !g.walk(yield) {
				return
			}
		}
	}
}

// Find returns the record with the given id, or nil.
func (p *Plugin) Find(ref formid.Ref) *record.Record {
	for rec := range p.Records() {
		if formid.Compare(rec.FormID(), ref) == 0 {
			return rec
		}
	}

	return nil
}

// Add places a record in the top group of its type, replacing a record with
// the same id. A missing top group is created at its position in the
// game's top group order.
//
// Returns:
//   - error: errs.ErrUnknownRecordType if the type has no top group
func (p *Plugin) Add(rec *record.Record) error {
	g, err := p.topGroupFor(rec.Signature())
	if err != nil {
		return err
	}
	for i, e := range g.Entries {
		if e.Record != nil && formid.Compare(e.Record.FormID(), rec.FormID()) == 0 {
			g.Entries[i].Record = rec
			return nil
		}
	}
	g.Entries = append(g.Entries, Entry{Record: rec})

	return nil
}

func (p *Plugin) topGroupFor(sig format.Signature) (*Group, error) {
	if !p.profile.IsTopType(sig) {
		return nil, errs.New(errs.ErrUnknownRecordType, p.name, sig.String(), -1, "%s has no top group in %s", sig, p.profile.Name)
	}
	if g := p.TopGroup(sig); g != nil {
		return g, nil
	}

	order := p.env.Headers.TopTypes()
	rank := slices.Index(order, sig)
	at := len(p.groups)
	for i, g := range p.groups {
		l, ok := g.Header.Label.(section.TypeLabel)
		if ok && slices.Index(order, format.Signature(l)) > rank {
			at = i
			break
		}
	}
	g := newTopGroup(sig)
	p.groups = slices.Insert(p.groups, at, g)

	return g, nil
}

// NewFormID allocates an id for a new record owned by the plugin.
func (p *Plugin) NewFormID() (formid.FormID, error) {
	fields, err := p.header.Fields()
	if err != nil {
		return 0, err
	}
	obj, err := records.NextObject(fields)
	if err != nil {
		return 0, err
	}

	return formid.New(uint8(len(p.Masters())), obj), nil
}

// NewRecord creates a record of the given type with a fresh id and adds it.
//
// Returns:
//   - *record.Record: Record holding the schema defaults
//   - error: errs.ErrUnknownRecordType if the type has no schema or no top group
func (p *Plugin) NewRecord(sig format.Signature) (*record.Record, error) {
	s := p.schemas.Schema(sig)
	if s == nil {
		return nil, errs.New(errs.ErrUnknownRecordType, p.name, sig.String(), -1, "no schema for %s", sig)
	}
	fid, err := p.NewFormID()
	if err != nil {
		return nil, err
	}
	rec := record.New(p.env, s, fid)
	if err := p.Add(rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// ConvertToLong converts every record to long ids. Every record is checked
// first, so on error no record is converted.
func (p *Plugin) ConvertToLong() error {
	return p.convert(formid.Long)
}

// ConvertToShort converts every record to short ids against the current
// master list. Every record is checked first, so on error no record is
// converted.
//
// Returns:
//   - error: errs.ErrUnresolvedMaster if a record refers to a file that is
//     neither a master nor the plugin itself, errs.ErrOpaqueRecord if a
//     record without a schema was read against masters at other indices
func (p *Plugin) ConvertToShort() error {
	return p.convert(formid.Short)
}

func (p *Plugin) convert(to formid.Representation) error {
	ml := p.MasterList()
	for rec := range p.Records() {
		if err := rec.CheckConversion(ml, to); err != nil {
			return errs.WithFile(err, p.name)
		}
	}

	convert := (*record.Record).ToShort
	if to == formid.Long {
		convert = (*record.Record).ToLong
	}
	for rec := range p.Records() {
		if err := convert(rec, ml); err != nil {
			return errs.WithFile(err, p.name)
		}
	}

	return nil
}

// WriteTo writes the plugin to w. The header's record count is updated
// first; empty groups are left out.
//
// Returns:
//   - int64: Bytes written
//   - error: errs.ErrPackingError if a record holds long ids, or a write error
func (p *Plugin) WriteTo(w io.Writer) (int64, error) {
	headerSize := p.env.Headers.HeaderSize()
	var count uint32
	for _, g := range p.groups {
		if g.IsEmpty() {
			continue
		}
		if _, err := g.pack(headerSize); err != nil {
			return 0, err
		}
		count += g.count()
	}
	if err := p.setRecordCount(count); err != nil {
		return 0, err
	}

	total, err := p.header.WriteTo(w)
	if err != nil {
		return total, err
	}
	for _, g := range p.groups {
		if g.IsEmpty() {
			continue
		}
		n, err := g.writeTo(w, p.env.Headers)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (p *Plugin) setRecordCount(count uint32) error {
	fields, err := p.header.Fields()
	if err != nil {
		return err
	}
	if cur, ok := fields.Get("numRecords").(uint32); ok && cur == count {
		return nil
	}

	return fields.Set("numRecords", count)
}

// Save writes the plugin to path. The plugin is encoded in memory first, so
// an encoding error leaves any existing file untouched.
func (p *Plugin) Save(path string) error {
	bb := pool.GetPluginBuffer()
	defer pool.PutPluginBuffer(bb)

	if _, err := p.WriteTo(bb); err != nil {
		return errs.WithFile(err, p.name)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if _, err := bb.WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}

	return f.Close()
}
