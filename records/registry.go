// Package records holds the schemas of the record types espcodec decodes,
// grouped into one registry per game.
//
// Record types without a schema in the registry are kept opaque by the
// plugin loader: their bytes round-trip unchanged and only the FormID in
// their header is translated.
package records

import (
	"slices"
	"strings"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/schema"
)

// Registry maps record types to schemas for one game.
//
// A Registry is immutable and safe for concurrent use.
type Registry struct {
	key     string
	schemas map[format.Signature]*schema.Schema
}

func newRegistry(key string, schemas ...*schema.Schema) *Registry {
	r := &Registry{key: key, schemas: make(map[format.Signature]*schema.Schema, len(schemas))}
	for _, s := range schemas {
		if _, dup := r.schemas[s.Signature()]; dup {
			panic("records: duplicate schema " + s.Signature().String() + " for " + key)
		}
		r.schemas[s.Signature()] = s
	}

	return r
}

var registries = map[string]*Registry{
	"oblivion":  oblivion,
	"skyrim":    skyrim,
	"skyrimse":  skyrimSE,
	"falloutnv": falloutNV,
}

// For returns the registry of the game with the given profile key.
//
// Returns:
//   - *Registry: The shared registry
//   - error: errs.ErrInvalidProfile for a game without schemas
func For(key string) (*Registry, error) {
	r, ok := registries[strings.ToLower(key)]
	if !ok {
		return nil, errs.New(errs.ErrInvalidProfile, "", key, -1, "no record schemas")
	}

	return r, nil
}

// Key returns the profile key of the registry's game.
func (r *Registry) Key() string {
	return r.key
}

// Schema returns the schema of a record type, or nil to keep it opaque.
func (r *Registry) Schema(sig format.Signature) *schema.Schema {
	return r.schemas[sig]
}

// Header returns the schema of the plugin header record.
func (r *Registry) Header() *schema.Schema {
	return r.schemas[format.SigHeader]
}

// Signatures returns the record types that have a schema, sorted.
func (r *Registry) Signatures() []format.Signature {
	out := make([]format.Signature, 0, len(r.schemas))
	for sig := range r.schemas {
		out = append(out, sig)
	}
	slices.SortFunc(out, func(a, b format.Signature) int {
		return strings.Compare(a.String(), b.String())
	})

	return out
}
