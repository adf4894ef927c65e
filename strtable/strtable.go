// Package strtable decodes the string tables that localized plugins keep
// next to them (Strings/<plugin>_<language>.STRINGS and its DL/IL variants).
//
// All three variants share one layout:
//
//	count    u32
//	dataSize u32
//	entries  [count]{id u32, offset u32}
//	data     [dataSize]byte
//
// Offsets are relative to the start of data. In a .STRINGS file each string
// is NUL terminated; in .DLSTRINGS and .ILSTRINGS it is preceded by a u32
// length that includes the terminator.
package strtable

import (
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/stream"
)

// Kind selects the entry encoding of a table.
type Kind uint8

const (
	KindStrings   Kind = iota // KindStrings holds NUL-terminated entries.
	KindDLStrings             // KindDLStrings holds length-prefixed entries.
	KindILStrings             // KindILStrings holds length-prefixed entries.
)

func (k Kind) String() string {
	switch k {
	case KindDLStrings:
		return "DLSTRINGS"
	case KindILStrings:
		return "ILSTRINGS"
	default:
		return "STRINGS"
	}
}

// KindFor picks the table kind from a file name's extension.
func KindFor(name string) (Kind, bool) {
	switch strings.ToUpper(filepath.Ext(name)) {
	case ".STRINGS":
		return KindStrings, true
	case ".DLSTRINGS":
		return KindDLStrings, true
	case ".ILSTRINGS":
		return KindILStrings, true
	default:
		return 0, false
	}
}

// Table maps string ids to text. It satisfies stream.StringLookup.
type Table map[uint32]string

var _ stream.StringLookup = Table(nil)

// Lookup returns the text for id. Id 0 is always the empty string.
func (t Table) Lookup(id uint32) (string, bool) {
	if id == 0 {
		return "", true
	}
	s, ok := t[id]

	return s, ok
}

// Merge copies every entry of other into t, overwriting equal ids.
func (t Table) Merge(other Table) {
	maps.Copy(t, other)
}

// Parse decodes one string table.
//
// Parameters:
//   - name: File name, used in errors
//   - kind: Entry encoding
//   - data: File contents
//   - codec: Text codec for the entries, nil for the default
//
// Returns:
//   - Table: Decoded entries
//   - error: errs.ErrInvalidStringTable for a malformed directory or entry
func Parse(name string, kind Kind, data []byte, codec *stream.TextCodec) (Table, error) {
	if codec == nil {
		codec = stream.DefaultTextCodec()
	}
	if len(data) < 8 {
		return nil, errs.New(errs.ErrInvalidStringTable, name, kind.String(), 0, "file too short")
	}

	count := int(endian.Get[uint32](data))
	dataSize := int(endian.Get[uint32](data[4:]))
	base := 8 + 8*count
	if count < 0 || base+dataSize > len(data) || base < 8 {
		return nil, errs.New(errs.ErrInvalidStringTable, name, kind.String(), 0,
			"directory of %d entries and %d data bytes exceeds file size %d", count, dataSize, len(data))
	}
	blob := data[base : base+dataSize]

	table := make(Table, count)
	for i := range count {
		entry := data[8+8*i:]
		id := endian.Get[uint32](entry)
		offset := int(endian.Get[uint32](entry[4:]))
		if offset >= len(blob) {
			return nil, errs.New(errs.ErrInvalidStringTable, name, kind.String(), int64(8+8*i),
				"string %d offset %d past data end %d", id, offset, len(blob))
		}

		raw := blob[offset:]
		if kind != KindStrings {
			if len(raw) < 4 {
				return nil, errs.New(errs.ErrInvalidStringTable, name, kind.String(), int64(base+offset), "truncated length of string %d", id)
			}
			n := int(endian.Get[uint32](raw))
			if n > len(raw)-4 {
				return nil, errs.New(errs.ErrInvalidStringTable, name, kind.String(), int64(base+offset), "string %d length %d past data end", id, n)
			}
			raw = raw[4 : 4+n]
		}
		table[id] = codec.Decode(raw)
	}

	return table, nil
}

// Build encodes a table in the given kind. Entries are written in ascending
// id order. Ids equal to 0 are skipped.
func Build(kind Kind, t Table, codec *stream.TextCodec) ([]byte, error) {
	if codec == nil {
		codec = stream.DefaultTextCodec()
	}

	ids := make([]uint32, 0, len(t))
	for id := range t {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var dir, blob []byte
	for _, id := range ids {
		enc, err := codec.Encode(t[id])
		if err != nil {
			return nil, err
		}
		dir = endian.Append(dir, id)
		dir = endian.Append(dir, uint32(len(blob)))
		if kind != KindStrings {
			blob = endian.Append(blob, uint32(len(enc)+1))
		}
		blob = append(blob, enc...)
		blob = append(blob, 0)
	}

	out := make([]byte, 0, 8+len(dir)+len(blob))
	out = endian.Append(out, uint32(len(ids)))
	out = endian.Append(out, uint32(len(blob)))
	out = append(out, dir...)

	return append(out, blob...), nil
}

// Load reads and merges the three tables of a plugin from dir, e.g.
// Strings/Skyrim_english.STRINGS, .DLSTRINGS and .ILSTRINGS. Missing files
// are skipped; a plugin with no table at all yields an empty Table.
//
// Parameters:
//   - dir: Directory holding the tables, usually Data/Strings
//   - plugin: Plugin file name; its extension is dropped
//   - language: Language suffix, e.g. "english"
//   - codec: Text codec for the entries, nil for the default
//
// Returns:
//   - Table: Union of the tables found
//   - error: Read errors other than a missing file, or parse errors
func Load(dir, plugin, language string, codec *stream.TextCodec) (Table, error) {
	base := strings.TrimSuffix(plugin, filepath.Ext(plugin)) + "_" + language
	table := make(Table)
	for _, kind := range []Kind{KindStrings, KindDLStrings, KindILStrings} {
		name := filepath.Join(dir, base+"."+kind.String())
		data, err := os.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t, err := Parse(filepath.Base(name), kind, data, codec)
		if err != nil {
			return nil, err
		}
		table.Merge(t)
	}

	return table, nil
}
