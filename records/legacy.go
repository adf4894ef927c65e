package records

import (
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/schema"
	"github.com/arloliu/espcodec/stream"
)

// legacy wraps an element whose subrecord also exists in older, shorter
// layouts. upgrade rewrites a payload into the current layout before the
// wrapped element decodes it; after, when set, runs on the decoded fields
// with the original payload. Encoding always writes the current layout.
type legacy struct {
	schema.Element
	sig     format.Signature
	upgrade func(data []byte) []byte
	after   func(f *schema.Fields, data []byte) error
}

func newLegacy(sig string, el schema.Element, upgrade func([]byte) []byte) *legacy {
	return &legacy{Element: el, sig: format.MustSignature(sig), upgrade: upgrade}
}

func (e *legacy) Loaders(m map[format.Signature]schema.Element) { m[e.sig] = e }

func (e *legacy) Decode(f *schema.Fields, r *stream.Reader, sig format.Signature, size int, ctx string) error {
	data, err := r.Read(size, ctx)
	if err != nil {
		return err
	}
	upgraded := data
	if e.upgrade != nil {
		upgraded = e.upgrade(data)
	}

	sub := stream.NewReader(r.Name(), upgraded)
	sub.SetTextCodec(r.TextCodec())
	if err := e.Element.Decode(f, sub, sig, len(upgraded), ctx); err != nil {
		return err
	}
	if e.after != nil {
		return e.after(f, data)
	}

	return nil
}

// pad returns data extended with zero bytes to size.
func pad(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	out := make([]byte, size)
	copy(out, data)

	return out
}
