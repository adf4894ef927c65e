package formid

import (
	"slices"
	"strings"

	"github.com/arloliu/espcodec/errs"
)

// Mapper converts one reference. A nil input maps to nil.
type Mapper func(Ref) (Ref, error)

// MasterList is the ordered list of files a plugin's short ids are relative
// to: the plugin's masters followed by the plugin itself.
//
// A MasterList is immutable and safe for concurrent use.
type MasterList struct {
	names []string
	index map[string]uint8
}

// NewMasterList creates the list for a plugin named self with the given masters.
//
// Parameters:
//   - self: File name of the plugin
//   - masters: Master file names in header order
//
// Returns:
//   - *MasterList: The translator for that plugin
func NewMasterList(self string, masters []string) *MasterList {
	names := make([]string, 0, len(masters)+1)
	names = append(names, masters...)
	names = append(names, self)

	m := &MasterList{
		names: names,
		index: make(map[string]uint8, len(names)),
	}
	for i, name := range names {
		key := strings.ToLower(name)
		if _, dup := m.index[key]; !dup && i < 0x100 {
			m.index[key] = uint8(i)
		}
	}

	return m
}

// Self returns the plugin's own file name.
func (m *MasterList) Self() string {
	return m.names[len(m.names)-1]
}

// Masters returns the master file names, excluding the plugin itself.
func (m *MasterList) Masters() []string {
	return slices.Clone(m.names[:len(m.names)-1])
}

// Len returns the number of entries including the plugin itself.
func (m *MasterList) Len() int {
	return len(m.names)
}

// ToLong resolves a short id. Indices past the master list resolve to the
// plugin itself.
func (m *MasterList) ToLong(f FormID) LongFormID {
	i := min(int(f.ModIndex()), len(m.names)-1)

	return LongFormID{Master: m.names[i], Object: f.ObjectIndex()}
}

// ToShort expresses a long id relative to this list.
//
// Returns:
//   - FormID: Short id
//   - error: errs.ErrUnresolvedMaster if l.Master is not in the list
func (m *MasterList) ToShort(l LongFormID) (FormID, error) {
	i, ok := m.index[strings.ToLower(l.Master)]
	if !ok {
		return 0, errs.New(errs.ErrUnresolvedMaster, m.Self(), "", -1, "%s is not a master of %s", l, m.Self())
	}

	return New(i, l.Object), nil
}

// SameIndices reports whether every file of m sits at the same index in
// target, so that short ids relative to m mean the same in target.
func (m *MasterList) SameIndices(target *MasterList) bool {
	for i, name := range m.names {
		j, ok := target.index[strings.ToLower(name)]
		if !ok || int(j) != i {
			return false
		}
	}

	return true
}

// LongMapper returns a Mapper converting short ids to long ones. Long ids
// pass through unchanged.
func (m *MasterList) LongMapper() Mapper {
	return func(ref Ref) (Ref, error) {
		if f, ok := ref.(FormID); ok {
			return m.ToLong(f), nil
		}

		return ref, nil
	}
}

// ShortMapper returns a Mapper converting long ids to short ones. Short ids
// pass through unchanged.
func (m *MasterList) ShortMapper() Mapper {
	return func(ref Ref) (Ref, error) {
		if l, ok := ref.(LongFormID); ok {
			return m.ToShort(l)
		}

		return ref, nil
	}
}

// MasterSet collects file names referenced by long ids, keeping first-seen
// order and ignoring case.
type MasterSet struct {
	names []string
	seen  map[string]struct{}
}

// NewMasterSet creates an empty set.
func NewMasterSet() *MasterSet {
	return &MasterSet{seen: make(map[string]struct{})}
}

// Add inserts name unless an equal name is already present.
func (s *MasterSet) Add(name string) {
	key := strings.ToLower(name)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.names = append(s.names, name)
}

// Contains reports whether name is in the set.
func (s *MasterSet) Contains(name string) bool {
	_, ok := s.seen[strings.ToLower(name)]
	return ok
}

// Len returns the number of names.
func (s *MasterSet) Len() int {
	return len(s.names)
}

// Names returns the names in insertion order.
func (s *MasterSet) Names() []string {
	return slices.Clone(s.names)
}

// Collector returns a Mapper that adds the file of every long id to s and
// returns ids unchanged. It is meant for a non-committing conversion pass.
func (s *MasterSet) Collector() Mapper {
	return func(ref Ref) (Ref, error) {
		if l, ok := ref.(LongFormID); ok {
			s.Add(l.Master)
		}

		return ref, nil
	}
}

// Ordered returns the names sorted by their position in loadOrder. Names
// missing from loadOrder keep their insertion order after the others.
func (s *MasterSet) Ordered(loadOrder []string) []string {
	rank := make(map[string]int, len(loadOrder))
	for i, name := range loadOrder {
		key := strings.ToLower(name)
		if _, ok := rank[key]; !ok {
			rank[key] = i
		}
	}

	out := s.Names()
	slices.SortStableFunc(out, func(a, b string) int {
		ra, okA := rank[strings.ToLower(a)]
		rb, okB := rank[strings.ToLower(b)]
		switch {
		case okA && okB:
			return ra - rb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})

	return out
}
