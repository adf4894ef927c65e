// Package espcodec reads, edits, writes and merges Bethesda plugin files
// (ESP/ESM) and reads BSA archives.
//
// # Core Features
//
//   - Lazy record decoding through declarative per-game schemas
//   - Byte-exact round trips for records that are not modified
//   - Short/long FormID conversion against a plugin's master list
//   - Merging of many plugins into one with a recomputed master list
//   - Localized string tables and BSA archive extraction
//
// # Basic Usage
//
// Reading a plugin and listing its records:
//
//	import "github.com/arloliu/espcodec"
//
//	p, err := espcodec.OpenPlugin(ctx, "skyrimse", "Patch.esp")
//	if err != nil {
//	    return err
//	}
//	for rec := range p.Records() {
//	    eid, _ := rec.EditorID()
//	    fmt.Printf("%s %s %s\n", rec.Signature(), rec.FormID(), eid)
//	}
//
// Merging plugins:
//
//	merged, err := espcodec.Merge(ctx, "skyrimse", "Merged.esp", []string{"A.esp", "B.esp"})
//	if err != nil {
//	    return err
//	}
//	err = merged.Save("Merged.esp")
//
// # Package Structure
//
// This package provides convenient top-level wrappers keyed by game name.
// For fine-grained control use the plugin, record, records, game, archive
// and strtable packages directly.
package espcodec

import (
	"context"
	"path/filepath"

	"github.com/arloliu/espcodec/archive"
	"github.com/arloliu/espcodec/game"
	"github.com/arloliu/espcodec/plugin"
	"github.com/arloliu/espcodec/strtable"
	"github.com/pkg/errors"
)

// Games returns the keys of the built-in game profiles.
func Games() []string {
	return game.Keys()
}

// NewPlugin creates an empty plugin for a game.
//
// Parameters:
//   - gameKey: Built-in profile key, e.g. "skyrimse"
//   - name: Plugin file name; a .esm extension sets the master flag
//   - opts: Plugin options (see plugin.Option)
func NewPlugin(gameKey, name string, opts ...plugin.Option) (*plugin.Plugin, error) {
	profile, err := game.Load(gameKey)
	if err != nil {
		return nil, err
	}

	return plugin.New(profile, name, opts...)
}

// DecodePlugin parses a plugin held in memory.
//
// Example:
//
//	p, err := espcodec.DecodePlugin(ctx, "oblivion", "Patch.esp", data,
//	    plugin.WithSkipCorrupt(),
//	)
func DecodePlugin(ctx context.Context, gameKey, name string, data []byte, opts ...plugin.Option) (*plugin.Plugin, error) {
	profile, err := game.Load(gameKey)
	if err != nil {
		return nil, err
	}

	return plugin.Load(ctx, profile, name, data, opts...)
}

// OpenPlugin reads and parses the plugin at path.
func OpenPlugin(ctx context.Context, gameKey, path string, opts ...plugin.Option) (*plugin.Plugin, error) {
	profile, err := game.Load(gameKey)
	if err != nil {
		return nil, err
	}

	return plugin.LoadFile(ctx, profile, path, opts...)
}

// Merge loads the plugins at paths in load order and merges their records
// into a new plugin called output.
//
// Returns:
//   - *plugin.Plugin: Merged plugin, not yet saved
//   - error: Load or merge errors, naming the failing file
func Merge(ctx context.Context, gameKey, output string, paths []string, opts ...plugin.Option) (*plugin.Plugin, error) {
	profile, err := game.Load(gameKey)
	if err != nil {
		return nil, err
	}
	m, err := plugin.NewMerger(profile, output, opts...)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		p, err := plugin.LoadFile(ctx, profile, path, opts...)
		if err != nil {
			return nil, err
		}
		if err := m.Add(p); err != nil {
			return nil, err
		}
	}

	return m.Build()
}

// LoadStrings loads the string tables of a localized plugin. The tables
// are looked up in a Strings folder next to the plugin.
//
// Example:
//
//	table, err := espcodec.LoadStrings("skyrimse", "Data/Skyrim.esm", "english")
//	p, err := espcodec.OpenPlugin(ctx, "skyrimse", "Data/Skyrim.esm", plugin.WithStringTable(table))
func LoadStrings(gameKey, pluginPath, language string) (strtable.Table, error) {
	profile, err := game.Load(gameKey)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(filepath.Dir(pluginPath), "Strings")
	table, err := strtable.Load(dir, filepath.Base(pluginPath), language, profile.TextCodec())
	if err != nil {
		return nil, errors.Wrapf(err, "load strings for %s", pluginPath)
	}

	return table, nil
}

// OpenArchive opens a BSA and checks that its layout matches the game.
func OpenArchive(gameKey, path string) (*archive.Archive, error) {
	profile, err := game.Load(gameKey)
	if err != nil {
		return nil, err
	}
	a, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	if err := a.CheckProfile(profile); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}
