package format

import (
	"math/bits"
	"strconv"
	"strings"
)

// FlagSet names the bits of a flags field.
//
// Position i of the name list is bit i; an empty name leaves that bit
// anonymous. A FlagSet is immutable after construction.
type FlagSet struct {
	names []string
	index map[string]uint
}

// NewFlagSet creates a FlagSet from bit names in bit order.
func NewFlagSet(names ...string) *FlagSet {
	fs := &FlagSet{
		names: names,
		index: make(map[string]uint, len(names)),
	}
	for i, name := range names {
		if name != "" {
			fs.index[name] = uint(i)
		}
	}

	return fs
}

// Wrap binds a raw value to the set.
func (fs *FlagSet) Wrap(v uint64) Flags {
	return Flags{Value: v, set: fs}
}

// Bit returns the bit position of a named flag.
func (fs *FlagSet) Bit(name string) (uint, bool) {
	bit, ok := fs.index[name]
	return bit, ok
}

// Flags is a bitfield value with optional bit names.
//
// Flags is comparable; two values are equal when both the raw value and the
// naming set match.
type Flags struct {
	Value uint64
	set   *FlagSet
}

// Has reports whether the named bit is set. Unknown names report false.
func (f Flags) Has(name string) bool {
	if f.set == nil {
		return false
	}
	bit, ok := f.set.index[name]

	return ok && f.Value&(1<<bit) != 0
}

// With returns a copy with the named bit set or cleared.
// Unknown names leave the value unchanged.
func (f Flags) With(name string, on bool) Flags {
	if f.set == nil {
		return f
	}
	bit, ok := f.set.index[name]
	if !ok {
		return f
	}
	if on {
		f.Value |= 1 << bit
	} else {
		f.Value &^= 1 << bit
	}

	return f
}

// Dump returns the raw value for packing.
func (f Flags) Dump() uint64 {
	return f.Value
}

// String lists the set bits by name, using "bitN" for anonymous bits.
func (f Flags) String() string {
	if f.Value == 0 {
		return "0"
	}

	var parts []string
	for v := f.Value; v != 0; v &= v - 1 {
		bit := bits.TrailingZeros64(v)
		name := ""
		if f.set != nil && bit < len(f.set.names) {
			name = f.set.names[bit]
		}
		if name == "" {
			name = "bit" + strconv.Itoa(bit)
		}
		parts = append(parts, name)
	}

	return strings.Join(parts, "|")
}
