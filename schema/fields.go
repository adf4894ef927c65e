package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
)

// Slot describes one attribute an element stores in a Fields value.
type Slot struct {
	Name   string
	Hidden bool // bookkeeping slot, not listed by Fields.Names
	item   *itemSpec
}

// itemSpec builds the nested Fields values held by list and group slots.
type itemSpec struct {
	slots *slotSet
	init  func(*Fields)
}

// slotSet is the validated attribute set of one Fields shape.
type slotSet struct {
	slots []Slot
	index map[string]int
}

func newSlotSet(elems []Element) *slotSet {
	set := &slotSet{index: make(map[string]int)}
	for _, el := range elems {
		for _, s := range el.Slots() {
			if _, dup := set.index[s.Name]; dup {
				panic(fmt.Sprintf("schema: duplicate attribute %q", s.Name))
			}
			set.index[s.Name] = len(set.slots)
			set.slots = append(set.slots, s)
		}
	}

	return set
}

func (s *slotSet) mustIndex(name string) int {
	i, ok := s.index[name]
	if !ok {
		panic(fmt.Sprintf("schema: attribute %q not declared", name))
	}

	return i
}

type fieldState struct {
	changed bool
}

// Fields holds the decoded attributes of a record, or of one element of a
// list or group inside it.
//
// The attribute set is fixed by the schema; reading or writing an
// undeclared name is an error. Nested Fields share their record's change
// flag, so a mutation anywhere in the tree marks the whole record changed.
//
// Fields is not safe for concurrent use.
type Fields struct {
	slots  *slotSet
	values []any
	state  *fieldState
}

func newFields(slots *slotSet, state *fieldState) *Fields {
	if state == nil {
		state = &fieldState{}
	}

	return &Fields{
		slots:  slots,
		values: make([]any, len(slots.slots)),
		state:  state,
	}
}

func (f *Fields) child(spec *itemSpec) *Fields {
	c := newFields(spec.slots, f.state)
	spec.init(c)

	return c
}

func (f *Fields) get(name string) any {
	return f.values[f.slots.mustIndex(name)]
}

func (f *Fields) put(name string, v any) {
	f.values[f.slots.mustIndex(name)] = v
}

// Has reports whether name is a declared attribute.
func (f *Fields) Has(name string) bool {
	_, ok := f.slots.index[name]
	return ok
}

// Get returns the value of name, or nil when it is unset or undeclared.
func (f *Fields) Get(name string) any {
	i, ok := f.slots.index[name]
	if !ok {
		return nil
	}

	return f.values[i]
}

// Lookup returns the value of name.
//
// Returns:
//   - any: Current value, nil if unset
//   - error: errs.ErrUnknownField if name is not declared
func (f *Fields) Lookup(name string) (any, error) {
	i, ok := f.slots.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownField, name)
	}

	return f.values[i], nil
}

// Set assigns name and marks the record changed.
//
// Values are checked against the wire format when the record is encoded,
// not here.
//
// Returns:
//   - error: errs.ErrUnknownField if name is not declared
func (f *Fields) Set(name string, v any) error {
	i, ok := f.slots.index[name]
	if !ok || f.slots.slots[i].Hidden {
		return fmt.Errorf("%w: %q", errs.ErrUnknownField, name)
	}
	f.values[i] = v
	f.state.changed = true

	return nil
}

// Names returns the declared attribute names in schema order.
func (f *Fields) Names() []string {
	names := make([]string, 0, len(f.slots.slots))
	for _, s := range f.slots.slots {
		if !s.Hidden {
			names = append(names, s.Name)
		}
	}

	return names
}

// Changed reports whether any attribute was set since the flag was cleared.
func (f *Fields) Changed() bool {
	return f.state.changed
}

// SetChanged sets or clears the change flag.
func (f *Fields) SetChanged(changed bool) {
	f.state.changed = changed
}

// NewItem creates a default element for a list or group attribute. The
// element is not attached; append it to the attribute's value and Set it.
//
// Returns:
//   - *Fields: New element sharing this record's change flag
//   - error: errs.ErrUnknownField if name is not a list or group attribute
func (f *Fields) NewItem(name string) (*Fields, error) {
	i, ok := f.slots.index[name]
	if !ok || f.slots.slots[i].item == nil {
		return nil, fmt.Errorf("%w: %q has no items", errs.ErrUnknownField, name)
	}

	return f.child(f.slots.slots[i].item), nil
}

func (f *Fields) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range f.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", name, f.Get(name))
	}
	sb.WriteByte('}')

	return sb.String()
}

// Value returns the attribute name of f as a T.
//
// The second result is false when the attribute is undeclared, unset, or of
// another type.
func Value[T any](f *Fields, name string) (T, bool) {
	v, ok := f.Get(name).(T)
	return v, ok
}

// Clone returns a deep copy of f with its own change flag.
func (f *Fields) Clone() *Fields {
	return f.cloneWith(&fieldState{changed: f.state.changed})
}

func (f *Fields) cloneWith(state *fieldState) *Fields {
	c := &Fields{slots: f.slots, values: make([]any, len(f.values)), state: state}
	for i, v := range f.values {
		c.values[i] = cloneDeep(v, state)
	}

	return c
}

func cloneDeep(v any, state *fieldState) any {
	switch x := v.(type) {
	case *Fields:
		if x == nil {
			return nil
		}

		return x.cloneWith(state)
	case []*Fields:
		if x == nil {
			return x
		}
		out := make([]*Fields, len(x))
		for i, item := range x {
			out[i] = item.cloneWith(state)
		}

		return out
	case []byte:
		return slices.Clone(x)
	case []formid.Ref:
		return slices.Clone(x)
	case []string:
		return slices.Clone(x)
	case []any:
		return slices.Clone(x)
	default:
		return v
	}
}

// AppendCanonical appends a deterministic rendering of every attribute to
// dst. Long FormIDs are rendered case-folded, so two records holding the
// same values render identically regardless of which plugin they came
// from.
func (f *Fields) AppendCanonical(dst []byte) []byte {
	for i, s := range f.slots.slots {
		if s.Hidden {
			continue
		}
		dst = append(dst, s.Name...)
		dst = append(dst, '=')
		dst = appendCanonical(dst, f.values[i])
		dst = append(dst, ';')
	}

	return dst
}

func appendCanonical(dst []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(dst, "nil"...)
	case *Fields:
		if x == nil {
			return append(dst, "nil"...)
		}
		dst = append(dst, '{')
		dst = x.AppendCanonical(dst)

		return append(dst, '}')
	case []*Fields:
		dst = append(dst, '[')
		for _, item := range x {
			dst = appendCanonical(dst, item)
		}

		return append(dst, ']')
	case []formid.Ref:
		dst = append(dst, '[')
		for _, ref := range x {
			dst = appendCanonical(dst, ref)
			dst = append(dst, ',')
		}

		return append(dst, ']')
	case formid.LongFormID:
		return append(dst, x.Key()...)
	case format.Flags:
		return fmt.Appendf(dst, "%d", x.Value)
	case []byte:
		return fmt.Appendf(dst, "%x", x)
	case string:
		return strconv.AppendQuote(dst, x)
	default:
		return fmt.Appendf(dst, "%T:%v", v, v)
	}
}
