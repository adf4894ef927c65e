package collision

import (
	"github.com/arloliu/espcodec/internal/hash"
)

// Outcome classifies a record offered to a Tracker.
type Outcome uint8

const (
	// New is the first record seen for a key.
	New Outcome = iota
	// Override replaces an earlier record with different content.
	Override
	// Identical repeats the content of the record currently held for the key.
	Identical
)

func (o Outcome) String() string {
	switch o {
	case New:
		return "new"
	case Override:
		return "override"
	case Identical:
		return "identical"
	default:
		return "unknown"
	}
}

type entry struct {
	key    string
	digest uint64
}

// Tracker follows record keys across plugins and tells new records,
// overrides and identical overrides apart by content digest.
//
// Keys are indexed by their xxHash64. Two keys sharing a hash are kept apart
// by comparing the key itself, and the collision is reported by HasCollision.
type Tracker struct {
	entries      map[uint64][]entry // key hash → entries sharing that hash
	keys         []string           // keys in first-seen order
	hasCollision bool
	sum          func(string) uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[uint64][]entry),
		keys:    make([]string, 0),
		sum:     hash.ID,
	}
}

// Track records digest as the current content of key.
//
// Returns:
//   - Outcome: New for an unseen key, Identical when digest equals the
//     content currently held, Override otherwise
func (t *Tracker) Track(key string, digest uint64) Outcome {
	h := t.sum(key)
	chain := t.entries[h]
	for i := range chain {
		if chain[i].key != key {
			continue
		}
		if chain[i].digest == digest {
			return Identical
		}
		chain[i].digest = digest

		return Override
	}

	if len(chain) > 0 {
		t.hasCollision = true
	}
	t.entries[h] = append(chain, entry{key: key, digest: digest})
	t.keys = append(t.keys, key)

	return New
}

// Digest returns the content digest currently held for key.
func (t *Tracker) Digest(key string) (uint64, bool) {
	for _, e := range t.entries[t.sum(key)] {
		if e.key == key {
			return e.digest, true
		}
	}

	return 0, false
}

// HasCollision returns true if two keys shared a hash.
func (t *Tracker) HasCollision() bool {
	return t.hasCollision
}

// Keys returns the tracked keys in first-seen order.
func (t *Tracker) Keys() []string {
	return t.keys
}

// Count returns the number of tracked keys.
func (t *Tracker) Count() int {
	return len(t.keys)
}
