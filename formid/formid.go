// Package formid models record identifiers in their two representations.
//
// A short FormID is the raw u32 stored in a plugin: the high byte indexes the
// plugin's master list (an index equal to the list length, or larger, refers
// to the plugin itself) and the low 24 bits are the object index. A long
// FormID names the owning file explicitly and is meaningful across plugins.
//
// MasterList translates between the two for one plugin, and Mapper values
// drive the conversion of whole records.
package formid

import (
	"cmp"
	"fmt"
	"strings"
)

// ObjectMask selects the object index of a short FormID.
const ObjectMask = 0x00FFFFFF

// Representation tells which form a record's ids are currently in.
type Representation uint8

const (
	Short Representation = iota // Short ids are raw u32 values relative to a master list.
	Long                        // Long ids carry the owning file name.
)

func (r Representation) String() string {
	if r == Long {
		return "long"
	}

	return "short"
}

// Ref is either a FormID or a LongFormID.
//
// A nil Ref is an absent reference.
type Ref interface {
	fmt.Stringer
	Representation() Representation
}

// FormID is a short, file-relative identifier.
type FormID uint32

// New builds a short FormID from a master index and an object index.
func New(modIndex uint8, object uint32) FormID {
	return FormID(uint32(modIndex)<<24 | object&ObjectMask)
}

// ModIndex returns the master list index.
func (f FormID) ModIndex() uint8 {
	return uint8(f >> 24)
}

// ObjectIndex returns the object index.
func (f FormID) ObjectIndex() uint32 {
	return uint32(f) & ObjectMask
}

// Uint32 returns the raw value.
func (f FormID) Uint32() uint32 {
	return uint32(f)
}

func (f FormID) String() string {
	return fmt.Sprintf("%08X", uint32(f))
}

// Representation returns Short.
func (FormID) Representation() Representation { return Short }

// LongFormID is an identifier resolved to the file that defines it.
type LongFormID struct {
	Master string
	Object uint32
}

func (l LongFormID) String() string {
	return fmt.Sprintf("%s:%06X", l.Master, l.Object)
}

// Representation returns Long.
func (LongFormID) Representation() Representation { return Long }

// Equal compares two long ids, ignoring the case of the file name.
func (l LongFormID) Equal(o LongFormID) bool {
	return l.Object == o.Object && strings.EqualFold(l.Master, o.Master)
}

// Key returns a case-folded string identifying l, usable as a map key.
func (l LongFormID) Key() string {
	return fmt.Sprintf("%s:%06X", strings.ToLower(l.Master), l.Object)
}

// Compare orders references: short ids by value, long ids by file name
// (case-insensitive) then object index, and short ids before long ones.
// Nil sorts first.
func Compare(a, b Ref) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case FormID:
		if y, ok := b.(FormID); ok {
			return cmp.Compare(x, y)
		}

		return -1
	case LongFormID:
		y, ok := b.(LongFormID)
		if !ok {
			return 1
		}
		if c := cmp.Compare(strings.ToLower(x.Master), strings.ToLower(y.Master)); c != 0 {
			return c
		}

		return cmp.Compare(x.Object, y.Object)
	default:
		return strings.Compare(a.String(), b.String())
	}
}
