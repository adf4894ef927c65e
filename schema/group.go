package schema

import (
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/stream"
)

// GroupElem nests a sub-schema under one attribute.
type GroupElem struct {
	attr     string
	elems    []Element
	loaders  map[format.Signature]Element
	first    map[format.Signature]bool
	spec     *itemSpec
	repeated bool
	counter  *counter
	fids     bool
}

func newGroup(attr string, repeated bool, elems []Element) *GroupElem {
	g := &GroupElem{
		attr:     attr,
		elems:    elems,
		loaders:  make(map[format.Signature]Element),
		first:    make(map[format.Signature]bool),
		repeated: repeated,
	}
	for _, el := range elems {
		el.Loaders(g.loaders)
		g.fids = g.fids || el.HasFormIDs()
	}
	if len(elems) > 0 {
		trigger := make(map[format.Signature]Element)
		elems[0].Loaders(trigger)
		for sig := range trigger {
			g.first[sig] = true
		}
	}
	g.spec = &itemSpec{slots: newSlotSet(elems), init: g.setDefaults}

	return g
}

// Group declares a single nested block. The attribute holds *Fields and
// stays nil until one of the block's subrecords is seen.
func Group(attr string, elems ...Element) *GroupElem {
	return newGroup(attr, false, elems)
}

// Groups declares a repeated block. Each subrecord tagged like the first
// element starts a new *Fields; other tags fill the most recent one.
func Groups(attr string, elems ...Element) *GroupElem {
	return newGroup(attr, true, elems)
}

// CountedGroups is Groups preceded by a counter subrecord that is always
// written, even for an empty list.
func CountedGroups(attr, counterSig, counterLayout string, elems ...Element) *GroupElem {
	g := newGroup(attr, true, elems)
	g.counter = newCounter(counterSig, counterLayout, true)

	return g
}

func (g *GroupElem) setDefaults(f *Fields) {
	for _, el := range g.elems {
		el.SetDefault(f)
	}
}

func (g *GroupElem) Slots() []Slot {
	return []Slot{{Name: g.attr, item: g.spec}}
}

func (g *GroupElem) SetDefault(f *Fields) {
	if g.repeated {
		f.put(g.attr, []*Fields(nil))
	} else {
		f.put(g.attr, nil)
	}
}

func (g *GroupElem) Loaders(m map[format.Signature]Element) {
	for sig := range g.loaders {
		m[sig] = g
	}
	g.counter.register(m)
}

func (g *GroupElem) HasFormIDs() bool { return g.fids }

func (g *GroupElem) items(f *Fields) ([]*Fields, error) {
	v := f.get(g.attr)
	if !g.repeated {
		item, ok := v.(*Fields)
		if !ok && v != nil {
			return nil, typeError(g.attr, v, "*schema.Fields")
		}
		if item == nil {
			return nil, nil
		}

		return []*Fields{item}, nil
	}

	items, ok := v.([]*Fields)
	if !ok && v != nil {
		return nil, typeError(g.attr, v, "[]*schema.Fields")
	}

	return items, nil
}

func (g *GroupElem) Decode(f *Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error {
	el := g.loaders[sig]

	var target *Fields
	if g.repeated {
		items, err := g.items(f)
		if err != nil {
			return err
		}
		switch {
		case g.first[sig]:
			target = f.child(g.spec)
			f.put(g.attr, append(items, target))
		case len(items) == 0:
			return errs.New(errs.ErrUnknownSubrecord, r.Name(), ctx, r.Tell(), "%s before the start of %s", sig, g.attr)
		default:
			target = items[len(items)-1]
		}
	} else {
		target, _ = f.get(g.attr).(*Fields)
		if target == nil {
			target = f.child(g.spec)
			f.put(g.attr, target)
		}
	}

	return el.Decode(target, r, sig, size, ctx)
}

func (g *GroupElem) Encode(f *Fields, w *stream.Writer) error {
	items, err := g.items(f)
	if err != nil {
		return err
	}
	if err := g.counter.encode(w, len(items)); err != nil {
		return err
	}
	for _, item := range items {
		for _, el := range g.elems {
			if err := el.Encode(item, w); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *GroupElem) MapFormIDs(f *Fields, fn formid.Mapper, save bool) error {
	if !g.fids {
		return nil
	}
	items, err := g.items(f)
	if err != nil {
		return err
	}
	for _, item := range items {
		for _, el := range g.elems {
			if !el.HasFormIDs() {
				continue
			}
			if err := el.MapFormIDs(item, fn, save); err != nil {
				return err
			}
		}
	}

	return nil
}
