package plugin

import (
	"log/slog"
	"strings"

	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/game"
	"github.com/arloliu/espcodec/internal/collision"
	"github.com/arloliu/espcodec/record"
	"github.com/pkg/errors"
)

// MergeStats counts the records a Merger saw by outcome.
type MergeStats struct {
	New       int
	Overrides int
	Identical int
	Skipped   int
}

// Merger combines the records of several plugins into a new one. Plugins
// are added in load order; a later plugin's version of a record wins, and a
// version identical to the one already held is dropped.
//
// Only records placed directly in top groups are merged. Records inside
// nested groups are skipped, and so are records without a schema, whose
// body ids cannot be remapped to the merged master list.
type Merger struct {
	out       *Plugin
	tracker   *collision.Tracker
	merged    map[string]*record.Record
	loadOrder []string
	seen      map[string]struct{}
	stats     MergeStats
	built     bool
}

// NewMerger creates a merger writing into a new plugin called name.
func NewMerger(profile *game.Profile, name string, opts ...Option) (*Merger, error) {
	out, err := New(profile, name, opts...)
	if err != nil {
		return nil, err
	}

	return &Merger{
		out:     out,
		tracker: collision.NewTracker(),
		merged:  make(map[string]*record.Record),
		seen:    make(map[string]struct{}),
	}, nil
}

// Add merges the records of p. The source plugin is not modified.
//
// Returns:
//   - error: Decode or id conversion errors of p's records
func (m *Merger) Add(p *Plugin) error {
	if m.built {
		return errors.New("plugin: merger already built")
	}
	if p.Profile().Key != m.out.profile.Key {
		return errors.Errorf("plugin: cannot merge %s plugin %s into %s", p.Profile().Key, p.Name(), m.out.profile.Key)
	}

	for _, name := range p.Masters() {
		m.addLoadOrder(name)
	}
	m.addLoadOrder(p.Name())

	ml := p.MasterList()
	log := m.out.logger.With("plugin", p.Name())
	for _, g := range p.groups {
		for _, e := range g.Entries {
			if e.Group != nil {
				n := 0
				for range e.Group.Records() {
					n++
				}
				m.stats.Skipped += n
				log.Debug("skipping nested group", "group", e.Group.Header.String(), "records", n)

				continue
			}
			if e.Record.Schema() == nil {
				m.stats.Skipped++
				log.Warn("skipping record without a schema", "record", e.Record.Header.String())

				continue
			}
			if err := m.addRecord(e.Record, ml, log); err != nil {
				return errors.Wrapf(err, "merge %s", p.Name())
			}
		}
	}

	return nil
}

func (m *Merger) addRecord(src *record.Record, ml *formid.MasterList, log *slog.Logger) error {
	rec, err := src.CloneInto(m.out.env)
	if err != nil {
		return err
	}
	if err := rec.ToLong(ml); err != nil {
		return err
	}
	fid, ok := rec.FormID().(formid.LongFormID)
	if !ok {
		return errors.Errorf("record %s has no long id", rec.Header)
	}
	digest, err := rec.Digest()
	if err != nil {
		return err
	}

	key := fid.Key()
	prev, _ := m.tracker.Digest(key)
	outcome := m.tracker.Track(key, digest)
	switch outcome {
	case collision.Identical:
		m.stats.Identical++
		log.Debug("dropping identical override", "record", key)

		return nil
	case collision.Override:
		m.stats.Overrides++
		log.Debug("record overridden", "record", key, "previousDigest", prev, "digest", digest)
	default:
		m.stats.New++
	}
	m.merged[key] = rec

	return nil
}

func (m *Merger) addLoadOrder(name string) {
	key := strings.ToLower(name)
	if _, ok := m.seen[key]; ok {
		return
	}
	m.seen[key] = struct{}{}
	m.loadOrder = append(m.loadOrder, name)
}

// Stats returns the record counts so far.
func (m *Merger) Stats() MergeStats {
	return m.stats
}

// Build finishes the merge. The master list is the set of files the merged
// records refer to, in load order, and records keep the order in which
// their ids were first seen. Build may be called once.
//
// Returns:
//   - *Plugin: Merged plugin with short ids
//   - error: Conversion errors
func (m *Merger) Build() (*Plugin, error) {
	if m.built {
		return nil, errors.New("plugin: merger already built")
	}
	m.built = true

	set := formid.NewMasterSet()
	for _, key := range m.tracker.Keys() {
		if err := m.merged[key].UpdateMasters(set); err != nil {
			return nil, err
		}
	}
	masters := make([]string, 0, set.Len())
	for _, name := range set.Ordered(m.loadOrder) {
		if !strings.EqualFold(name, m.out.name) {
			masters = append(masters, name)
		}
	}
	if err := m.out.SetMasters(masters); err != nil {
		return nil, err
	}

	ml := m.out.MasterList()
	for _, key := range m.tracker.Keys() {
		rec := m.merged[key]
		if err := rec.ToShort(ml); err != nil {
			return nil, err
		}
		g, err := m.out.topGroupFor(rec.Signature())
		if err != nil {
			return nil, err
		}
		g.Entries = append(g.Entries, Entry{Record: rec})
	}
	m.out.logger.Info("merged plugin built",
		"plugin", m.out.name, "masters", len(masters), "records", m.tracker.Count(),
		"overrides", m.stats.Overrides, "identical", m.stats.Identical, "skipped", m.stats.Skipped,
		"keyHashCollisions", m.tracker.HasCollision())

	return m.out, nil
}
