// Package game describes the games whose plugins espcodec reads.
//
// A Profile carries everything the codec needs to know about one game: the
// plugin form version (which also fixes the header size), the text encoding,
// the record types the game defines and the order of its top groups.
// Profiles are YAML documents; the built-in ones are embedded in the binary
// and loaded by key.
//
// Example:
//
//	p, err := game.Load("skyrimse")
//	if err != nil {
//	    return err
//	}
//	headers := p.HeaderCodec()
package game

import (
	"bytes"
	"embed"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinFS embed.FS

// Archive versions of the BSA formats a profile can name.
const (
	ArchiveOblivion = 103
	ArchiveSkyrim   = 104
	ArchiveSkyrimSE = 105
)

// Profile is the static description of one game.
//
// A Profile returned by Load or Parse is validated and must not be modified.
// It is safe for concurrent use.
type Profile struct {
	Name           string    `yaml:"name"`
	Key            string    `yaml:"key"`
	FormVersion    uint16    `yaml:"form_version"`
	HeaderVersion  float32   `yaml:"header_version"`
	HeaderVersions []float32 `yaml:"header_versions"`
	Encoding       string    `yaml:"encoding"`
	MasterFile     string    `yaml:"master_file"`
	ArchiveVersion uint32    `yaml:"archive_version"`
	TopTypes       []string  `yaml:"top_types"`
	RecordTypes    []string  `yaml:"record_types"`

	headers *section.HeaderCodec
	text    *stream.TextCodec
}

// Parse decodes and validates a YAML profile. Unknown keys are rejected.
//
// Returns:
//   - *Profile: The validated profile with its codecs built
//   - error: errs.ErrInvalidProfile for malformed or inconsistent documents
func Parse(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	p := &Profile{}
	if err := dec.Decode(p); err != nil {
		return nil, errs.New(errs.ErrInvalidProfile, "", "", -1, "%v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	topTypes, _ := signatures(p.TopTypes)
	recordTypes, _ := signatures(p.RecordTypes)
	p.headers = section.NewHeaderCodec(p.FormVersion, recordTypes, topTypes)
	p.text, _ = stream.NewTextCodec(p.Encoding)

	return p, nil
}

// Validate checks that the profile is complete and consistent.
func (p *Profile) Validate() error {
	fail := func(msg string, args ...any) error {
		return errs.New(errs.ErrInvalidProfile, "", p.Key, -1, msg, args...)
	}

	switch {
	case p.Name == "":
		return fail("missing name")
	case p.Key == "":
		return fail("missing key")
	case p.MasterFile == "":
		return fail("missing master file")
	case len(p.TopTypes) == 0:
		return fail("no top types")
	}
	if _, err := stream.NewTextCodec(p.Encoding); err != nil {
		return fail("%v", err)
	}
	if p.HeaderVersion != 0 && len(p.HeaderVersions) > 0 && !slices.Contains(p.HeaderVersions, p.HeaderVersion) {
		return fail("header version %g is not one of %v", p.HeaderVersion, p.HeaderVersions)
	}
	switch p.ArchiveVersion {
	case 0, ArchiveOblivion, ArchiveSkyrim, ArchiveSkyrimSE:
	default:
		return fail("unsupported archive version %d", p.ArchiveVersion)
	}

	seen := make(map[string]struct{}, len(p.TopTypes)+len(p.RecordTypes))
	for _, list := range [][]string{p.TopTypes, p.RecordTypes} {
		if _, err := signatures(list); err != nil {
			return fail("%v", err)
		}
		for _, s := range list {
			if _, dup := seen[s]; dup {
				return fail("duplicate record type %q", s)
			}
			seen[s] = struct{}{}
		}
	}

	return nil
}

func signatures(list []string) ([]format.Signature, error) {
	out := make([]format.Signature, 0, len(list))
	for _, s := range list {
		sig, err := format.ParseSignature(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}

	return out, nil
}

// HeaderCodec returns the header codec for the game's plugins.
func (p *Profile) HeaderCodec() *section.HeaderCodec {
	return p.headers
}

// TextCodec returns the codec for the game's plugin strings.
func (p *Profile) TextCodec() *stream.TextCodec {
	return p.text
}

// IsTopType reports whether sig may label a top group.
func (p *Profile) IsTopType(sig format.Signature) bool {
	return p.headers.IsTopType(sig)
}

// IsMaster reports whether name is the game's main master file.
func (p *Profile) IsMaster(name string) bool {
	return strings.EqualFold(name, p.MasterFile)
}

func (p *Profile) String() string {
	return p.Name
}

var loadBuiltins = sync.OnceValues(func() (map[string]*Profile, error) {
	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Profile, len(entries))
	for _, e := range entries {
		data, err := builtinFS.ReadFile(path.Join("profiles", e.Name()))
		if err != nil {
			return nil, err
		}
		p, err := Parse(data)
		if err != nil {
			return nil, errs.WithFile(err, e.Name())
		}
		out[p.Key] = p
	}

	return out, nil
})

// Load returns the built-in profile for key.
//
// Parameters:
//   - key: Profile key, e.g. "oblivion", "skyrim", "skyrimse", "falloutnv"
//
// Returns:
//   - *Profile: The shared profile
//   - error: errs.ErrInvalidProfile if no built-in profile has that key
func Load(key string) (*Profile, error) {
	profiles, err := loadBuiltins()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[strings.ToLower(key)]
	if !ok {
		return nil, errs.New(errs.ErrInvalidProfile, "", key, -1, "no built-in profile")
	}

	return p, nil
}

// MustLoad is like Load but panics when the profile is missing.
func MustLoad(key string) *Profile {
	p, err := Load(key)
	if err != nil {
		panic(err)
	}

	return p
}

// Keys returns the keys of the built-in profiles, sorted.
func Keys() []string {
	profiles, err := loadBuiltins()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}
