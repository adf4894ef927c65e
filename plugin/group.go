package plugin

import (
	"io"
	"iter"

	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/record"
	"github.com/arloliu/espcodec/section"
)

// Group is a GRUP block and its children in file order.
type Group struct {
	Header  section.RecordHeader
	Entries []Entry
}

// Entry is one child of a group: exactly one of Record and Group is set.
type Entry struct {
	Record *record.Record
	Group  *Group
}

func newTopGroup(sig format.Signature) *Group {
	return &Group{Header: section.NewGroupHeader(section.TypeLabel(sig), format.GroupTop)}
}

// Label returns the group label.
func (g *Group) Label() section.Label {
	return g.Header.Label
}

// Records yields every record of the group and its subgroups, depth first.
func (g *Group) Records() iter.Seq[*record.Record] {
	return func(yield func(*record.Record) bool) {
		g.walk(yield)
	}
}

func (g *Group) walk(yield func(*record.Record) bool) bool {
	for _, e := range g.Entries {
		if e.Group != nil {
			if !e.Group.walk(yield) {
				return false
			}
			continue
		}
		if !yield(e.Record) {
			return false
		}
	}

	return true
}

// IsEmpty reports whether the group holds no record at any depth. Empty
// groups are not written.
func (g *Group) IsEmpty() bool {
	for range g.Records() {
		return false
	}

	return true
}

// count returns the records and written groups below g, g included.
func (g *Group) count() uint32 {
	if g.IsEmpty() {
		return 0
	}
	n := uint32(1)
	for _, e := range g.Entries {
		if e.Group != nil {
			n += e.Group.count()
		} else {
			n++
		}
	}

	return n
}

// pack packs every record below g and stores the group sizes, which
// include the group header.
func (g *Group) pack(headerSize int) (uint32, error) {
	size := uint32(headerSize)
	for _, e := range g.Entries {
		if e.Group != nil {
			if e.Group.IsEmpty() {
				continue
			}
			n, err := e.Group.pack(headerSize)
			if err != nil {
				return 0, err
			}
			size += n

			continue
		}
		n, err := e.Record.Size()
		if err != nil {
			return 0, err
		}
		size += uint32(headerSize) + n
	}
	g.Header.Size = size

	return size, nil
}

// writeTo writes a packed group.
func (g *Group) writeTo(w io.Writer, headers *section.HeaderCodec) (int64, error) {
	b, err := headers.Bytes(&g.Header)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	total := int64(n)
	if err != nil {
		return total, err
	}

	for _, e := range g.Entries {
		var written int64
		switch {
		case e.Group != nil && e.Group.IsEmpty():
			continue
		case e.Group != nil:
			written, err = e.Group.writeTo(w, headers)
		default:
			written, err = e.Record.WriteTo(w)
		}
		total += written
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
