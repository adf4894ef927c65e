package plugin

import (
	"context"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/record"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
	"github.com/pkg/errors"
)

type loader struct {
	ctx     context.Context
	p       *Plugin
	r       *stream.Reader
	headers *section.HeaderCodec
	cfg     *Config
}

func (l *loader) readHeader() error {
	h, err := l.headers.Read(l.r)
	if err != nil {
		return err
	}
	if h.Signature != format.SigHeader {
		return errs.New(errs.ErrUnknownRecordType, l.p.name, h.String(), 0, "plugin starts with %s instead of %s", h.Signature, format.SigHeader)
	}
	body, err := l.r.Read(int(h.Size), h.String())
	if err != nil {
		return err
	}

	l.p.env.Localized = h.HasFlag(section.FlagLocalized)
	rec := record.FromBytes(l.p.env, l.p.schemas.Header(), h, body)
	if err := rec.Decode(); err != nil {
		return errs.WithFile(err, l.p.name)
	}
	l.p.header = rec

	return nil
}

func (l *loader) readGroups() error {
	for l.r.Remaining() > 0 {
		if err := l.ctx.Err(); err != nil {
			return err
		}
		start := l.r.Tell()
		h, err := l.headers.Read(l.r)
		if err != nil {
			if err := l.skipUnknown(h, err); err != nil {
				return err
			}
			continue
		}
		if !h.IsGroup() || h.GroupType != format.GroupTop {
			return errs.New(errs.ErrUnknownRecordType, l.p.name, h.String(), start, "expected a top group")
		}

		g, err := l.readGroup(h, start)
		if err != nil {
			return err
		}
		// a repeated top group is folded into the first one
		sig := format.Signature(g.Header.Label.(section.TypeLabel))
		if prev := l.p.TopGroup(sig); prev != nil {
			prev.Entries = append(prev.Entries, g.Entries...)
			continue
		}
		l.p.groups = append(l.p.groups, g)
	}

	return nil
}

func (l *loader) readGroup(h section.RecordHeader, start int64) (*Group, error) {
	if int(h.Size) < l.headers.HeaderSize() {
		return nil, errs.New(errs.ErrSizeMismatch, l.p.name, h.String(), start, "group size %d is smaller than its header", h.Size)
	}
	end := start + int64(h.Size)
	g := &Group{Header: h}
	for {
		done, err := l.r.AtEnd(end, h.String())
		if err != nil {
			return nil, err
		}
		if done {
			return g, nil
		}
		if err := l.ctx.Err(); err != nil {
			return nil, err
		}

		childStart := l.r.Tell()
		ch, err := l.headers.Read(l.r)
		if err != nil {
			if err := l.skipUnknown(ch, err); err != nil {
				return nil, err
			}
			continue
		}
		if ch.IsGroup() {
			sub, err := l.readGroup(ch, childStart)
			if err != nil {
				return nil, err
			}
			g.Entries = append(g.Entries, Entry{Group: sub})

			continue
		}

		rec, err := l.readRecord(ch)
		if err != nil {
			return nil, err
		}
		g.Entries = append(g.Entries, Entry{Record: rec})
	}
}

func (l *loader) readRecord(h section.RecordHeader) (*record.Record, error) {
	body, err := l.r.Read(int(h.Size), h.String())
	if err != nil {
		return nil, err
	}

	s := l.p.schemas.Schema(h.Signature)
	rec := record.FromBytes(l.p.env, s, h, body)
	if !l.cfg.eager || s == nil {
		return rec, nil
	}

	err = rec.Decode()
	switch {
	case err == nil:
		return rec, nil
	case l.cfg.skipCorrupt && errs.IsRecordLocal(err):
		l.p.logger.Warn("keeping undecodable record opaque", "plugin", l.p.name, "record", h.String(), "error", err)
		return record.FromBytes(l.p.env, nil, h, body), nil
	default:
		return nil, errs.WithFile(errors.Wrapf(err, "load %s", l.p.name), l.p.name)
	}
}

// skipUnknown skips a record or group whose type the game does not define.
// The header was read in full, so its size is trusted.
func (l *loader) skipUnknown(h section.RecordHeader, err error) error {
	if !l.cfg.skipCorrupt || !errors.Is(err, errs.ErrUnknownRecordType) {
		return err
	}

	size := int(h.Size)
	if h.IsGroup() {
		size -= l.headers.HeaderSize()
		if size < 0 {
			return errs.New(errs.ErrSizeMismatch, l.p.name, h.String(), l.r.Tell(), "group size %d is smaller than its header", h.Size)
		}
	}
	l.p.logger.Warn("skipping unknown record type", "plugin", l.p.name, "header", h.String(), "offset", l.r.Tell())

	return l.r.Skip(size, h.String())
}
