package record

import (
	"bytes"
	"math"
	"testing"

	"github.com/arloliu/espcodec/compress"
	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/schema"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
	"github.com/stretchr/testify/require"
)

var miscSchema = schema.New("MISC",
	schema.String("EDID", "eid", 0),
	schema.FormID("YNAM", "pickupSound"),
	schema.Struct("DATA", "f", schema.Field("value", 0.0)),
)

func testEnv() *Env {
	sigs := []format.Signature{format.MustSignature("MISC")}
	return &Env{
		File:    "Patch.esp",
		Headers: section.NewHeaderCodec(43, nil, sigs),
	}
}

type subrec struct {
	sig  string
	data []byte
}

func body(subs ...subrec) []byte {
	w := stream.NewWriter()
	for _, s := range subs {
		w.PackSub(format.MustSignature(s.sig), s.data)
	}

	return w.Detach()
}

func f32(v float32) []byte {
	return endian.Append([]byte(nil), math.Float32bits(v))
}

func u32(v uint32) []byte {
	return endian.Append([]byte(nil), v)
}

func miscRecord(data []byte, flags uint32) *Record {
	h := section.RecordHeader{
		Signature: format.MustSignature("MISC"),
		Size:      uint32(len(data)),
		Flags:     flags,
		FormID:    0x01000800,
	}

	return FromBytes(testEnv(), miscSchema, h, data)
}

func TestRecord_Lifecycle(t *testing.T) {
	data := body(subrec{"EDID", []byte("abc\x00")}, subrec{"DATA", f32(1.0)})
	rec := miscRecord(data, 0)
	require.Equal(t, StateRaw, rec.State())

	fields, err := rec.Fields()
	require.NoError(t, err)
	require.Equal(t, StateClean, rec.State())
	require.Equal(t, float32(1.0), fields.Get("value"))

	require.NoError(t, fields.Set("value", float32(2.5)))
	require.Equal(t, StateDirty, rec.State())
	require.True(t, rec.Changed())

	size, err := rec.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(len(data)), size)
	require.False(t, rec.Changed())
	require.Equal(t, StateClean, rec.State())

	packed, err := rec.Body()
	require.NoError(t, err)
	again, err := miscSchema.Decode(stream.NewReader("x", packed), int64(len(packed)))
	require.NoError(t, err)
	require.Equal(t, float32(2.5), again.Get("value"))
	require.Equal(t, "abc", again.Get("eid"))

	var out bytes.Buffer
	n, err := rec.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(24+len(data)), n)
	require.Equal(t, StatePacked, rec.State())
	require.Equal(t, []byte("MISC"), out.Bytes()[:4])
	require.Equal(t, uint16(43), endian.Get[uint16](out.Bytes()[20:]))

	require.NoError(t, fields.Set("eid", "abcd"))
	require.Equal(t, StateDirty, rec.State())
}

func TestRecord_UnchangedIsVerbatim(t *testing.T) {
	// DATA before EDID is not canonical, but an unchanged record keeps it
	data := body(subrec{"DATA", f32(1.0)}, subrec{"EDID", []byte("abc\x00")})
	rec := miscRecord(data, 0)
	_, err := rec.Fields()
	require.NoError(t, err)

	b, err := rec.Bytes()
	require.NoError(t, err)
	require.Equal(t, data, b[24:])

	rec.SetChanged(true)
	b, err = rec.Bytes()
	require.NoError(t, err)
	require.Equal(t, body(subrec{"EDID", []byte("abc\x00")}, subrec{"DATA", f32(1.0)}), b[24:])
}

func TestRecord_Compressed(t *testing.T) {
	plain := body(subrec{"EDID", []byte("Gem\x00")}, subrec{"DATA", f32(4)})
	codec := compress.NewZlibCompressor(compress.DefaultZlibLevel)
	stored, err := compress.PackSized(codec, plain)
	require.NoError(t, err)

	rec := miscRecord(stored, section.FlagCompressed)
	require.True(t, rec.IsCompressed())
	eid, err := rec.EditorID()
	require.NoError(t, err)
	require.Equal(t, "Gem", eid)

	fields, err := rec.Fields()
	require.NoError(t, err)
	require.NoError(t, fields.Set("value", float32(8)))

	size, err := rec.Size()
	require.NoError(t, err)
	require.Equal(t, rec.Header.Size, size)

	b, err := rec.Bytes()
	require.NoError(t, err)
	inflated, err := compress.UnpackSized(codec, b[24:])
	require.NoError(t, err)
	require.Equal(t, body(subrec{"EDID", []byte("Gem\x00")}, subrec{"DATA", f32(8)}), inflated)

	t.Run("size mismatch", func(t *testing.T) {
		bad := bytes.Clone(stored)
		bad[0]++
		_, err := miscRecord(bad, section.FlagCompressed).Fields()
		require.ErrorIs(t, err, errs.ErrSizeMismatch)
	})

	t.Run("toggle", func(t *testing.T) {
		rec := miscRecord(plain, 0)
		require.NoError(t, rec.SetCompressed(true))
		b, err := rec.Bytes()
		require.NoError(t, err)
		inflated, err := compress.UnpackSized(codec, b[24:])
		require.NoError(t, err)
		require.Equal(t, plain, inflated)

		require.NoError(t, rec.SetCompressed(false))
		b, err = rec.Bytes()
		require.NoError(t, err)
		require.Equal(t, plain, b[24:])
	})
}

func TestRecord_ConvertFormIDs(t *testing.T) {
	data := body(subrec{"EDID", []byte("Gem\x00")}, subrec{"YNAM", u32(0x00000123)}, subrec{"DATA", f32(1)})
	source := formid.NewMasterList("Patch.esp", []string{"Skyrim.esm"})

	t.Run("round trip", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.NoError(t, rec.ToLong(source))
		require.Equal(t, formid.Long, rec.Representation())
		require.Equal(t, formid.LongFormID{Master: "Patch.esp", Object: 0x800}, rec.FormID())

		fields, err := rec.Fields()
		require.NoError(t, err)
		snapshot := fields.AppendCanonical(nil)
		require.NoError(t, rec.ToLong(source))
		require.Equal(t, snapshot, fields.AppendCanonical(nil))

		require.NoError(t, rec.ToShort(source))
		b, err := rec.Bytes()
		require.NoError(t, err)
		require.Equal(t, data, b[24:])
		require.Equal(t, uint32(0x01000800), rec.Header.FormID)
	})

	t.Run("long records cannot be packed", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.NoError(t, rec.ToLong(source))

		var out bytes.Buffer
		_, err := rec.WriteTo(&out)
		require.ErrorIs(t, err, errs.ErrPackingError)
		require.Zero(t, out.Len())
	})

	t.Run("unresolved master is atomic", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.NoError(t, rec.ToLong(source))

		target := formid.NewMasterList("Other.esp", []string{"Patch.esp"})
		err := rec.ToShort(target)
		require.ErrorIs(t, err, errs.ErrUnresolvedMaster)
		require.Equal(t, formid.Long, rec.Representation())
		require.Equal(t, formid.LongFormID{Master: "Patch.esp", Object: 0x800}, rec.FormID())

		fields, err := rec.Fields()
		require.NoError(t, err)
		require.Equal(t, formid.LongFormID{Master: "Skyrim.esm", Object: 0x123}, fields.Get("pickupSound"))

		var out bytes.Buffer
		_, err = rec.WriteTo(&out)
		require.ErrorIs(t, err, errs.ErrPackingError)
		require.Zero(t, out.Len())
	})

	t.Run("retarget", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.NoError(t, rec.ToLong(source))

		target := formid.NewMasterList("Merged.esp", []string{"Skyrim.esm", "Patch.esp"})
		require.NoError(t, rec.ToShort(target))
		require.Equal(t, formid.FormID(0x01000800), rec.FormID())
	})

	t.Run("mixed mapper", func(t *testing.T) {
		rec := miscRecord(data, 0)
		err := rec.ConvertFormIDs(source.ShortMapper(), formid.Long)
		require.ErrorIs(t, err, errs.ErrMixedRepresentation)
		require.Equal(t, formid.Short, rec.Representation())
	})

	t.Run("short id stored in a long record", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.NoError(t, rec.ToLong(source))
		fields, err := rec.Fields()
		require.NoError(t, err)
		require.NoError(t, fields.Set("pickupSound", formid.FormID(0x456)))

		require.ErrorIs(t, rec.ToShort(source), errs.ErrMixedRepresentation)
		require.ErrorIs(t, rec.CheckConversion(source, formid.Short), errs.ErrMixedRepresentation)
		require.ErrorIs(t, rec.UpdateMasters(formid.NewMasterSet()), errs.ErrMixedRepresentation)
		require.Equal(t, formid.Long, rec.Representation())
		require.Equal(t, formid.LongFormID{Master: "Patch.esp", Object: 0x800}, rec.FormID())

		_, err = rec.Bytes()
		require.ErrorIs(t, err, errs.ErrPackingError)
	})

	t.Run("check does not convert", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.NoError(t, rec.CheckConversion(source, formid.Long))
		require.Equal(t, formid.Short, rec.Representation())
		require.False(t, rec.Changed())
	})

	t.Run("set formid", func(t *testing.T) {
		rec := miscRecord(data, 0)
		require.ErrorIs(t, rec.SetFormID(formid.LongFormID{Master: "x", Object: 1}), errs.ErrMixedRepresentation)
		require.NoError(t, rec.SetFormID(formid.FormID(0x01000900)))
		_, err := rec.Size()
		require.NoError(t, err)
		require.Equal(t, uint32(0x01000900), rec.Header.FormID)
	})
}

func TestRecord_UpdateMasters(t *testing.T) {
	data := body(subrec{"YNAM", u32(0x00000123)})
	rec := miscRecord(data, 0)
	set := formid.NewMasterSet()
	require.ErrorIs(t, rec.UpdateMasters(set), errs.ErrMixedRepresentation)

	require.NoError(t, rec.ToLong(formid.NewMasterList("Patch.esp", []string{"Skyrim.esm"})))
	require.NoError(t, rec.UpdateMasters(set))
	require.Equal(t, []string{"Patch.esp", "Skyrim.esm"}, set.Names())
}

func TestRecord_Inspection(t *testing.T) {
	data := body(subrec{"EDID", []byte("Gem\x00")}, subrec{"DATA", f32(1)})
	rec := miscRecord(data, 0)

	eid, err := rec.EditorID()
	require.NoError(t, err)
	require.Equal(t, "Gem", eid)
	require.Equal(t, StateRaw, rec.State())

	subs, err := rec.Subrecords()
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "EDID", subs[0].Signature.String())
	require.Equal(t, f32(1), subs[1].Data)

	clone := rec.Clone()
	d1, err := rec.Digest()
	require.NoError(t, err)
	d2, err := clone.Digest()
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	fields, err := clone.Fields()
	require.NoError(t, err)
	require.NoError(t, fields.Set("value", float32(3)))
	d3, err := clone.Digest()
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)
	require.False(t, rec.Changed())
}

func TestRecord_Opaque(t *testing.T) {
	data := body(subrec{"EDID", []byte("Odd\x00")}, subrec{"ZZZZ", []byte{1}})
	h := section.RecordHeader{Signature: format.MustSignature("MISC"), Size: uint32(len(data)), FormID: 0x800}
	rec := FromBytes(testEnv(), nil, h, data)

	_, err := rec.Fields()
	require.ErrorIs(t, err, errs.ErrUnknownRecordType)

	eid, err := rec.EditorID()
	require.NoError(t, err)
	require.Equal(t, "Odd", eid)

	b, err := rec.Bytes()
	require.NoError(t, err)
	require.Equal(t, data, b[24:])

	t.Run("mapper cannot reach body ids", func(t *testing.T) {
		masters := formid.NewMasterList("Patch.esp", []string{"Skyrim.esm"})
		err := rec.ConvertFormIDs(masters.LongMapper(), formid.Long)
		require.ErrorIs(t, err, errs.ErrOpaqueRecord)
		require.Equal(t, formid.Short, rec.Representation())
	})

	t.Run("already short", func(t *testing.T) {
		masters := formid.NewMasterList("Patch.esp", []string{"Skyrim.esm"})
		c := FromBytes(testEnv(), nil, h, data)
		require.NoError(t, c.SetFormID(formid.FormID(0x01000800)))
		require.NoError(t, c.ToShort(masters))
	})

	t.Run("same master indices", func(t *testing.T) {
		source := formid.NewMasterList("Patch.esp", []string{"Skyrim.esm", "Update.esm"})
		c := FromBytes(testEnv(), nil, h, data)
		require.NoError(t, c.ToLong(source))
		require.Equal(t, formid.LongFormID{Master: "Skyrim.esm", Object: 0x800}, c.FormID())

		require.NoError(t, c.ToShort(formid.NewMasterList("patch.esp", []string{"skyrim.esm", "update.esm"})))
		require.Equal(t, formid.FormID(0x800), c.FormID())
		b, err := c.Bytes()
		require.NoError(t, err)
		require.Equal(t, data, b[24:])
	})

	t.Run("moved master", func(t *testing.T) {
		source := formid.NewMasterList("Patch.esp", []string{"Skyrim.esm", "Update.esm"})
		c := FromBytes(testEnv(), nil, h, data)
		require.NoError(t, c.ToLong(source))

		for _, target := range []*formid.MasterList{
			formid.NewMasterList("Merged.esp", []string{"Skyrim.esm"}),
			formid.NewMasterList("Patch.esp", []string{"Update.esm", "Skyrim.esm"}),
			formid.NewMasterList("Patch.esp", []string{"Skyrim.esm", "Update.esm", "Dawnguard.esm"}),
		} {
			require.ErrorIs(t, c.CheckConversion(target, formid.Short), errs.ErrOpaqueRecord)
			require.ErrorIs(t, c.ToShort(target), errs.ErrOpaqueRecord)
			require.Equal(t, formid.Long, c.Representation())
		}
	})

	t.Run("long without origin", func(t *testing.T) {
		c := FromBytes(testEnv(), nil, h, data)
		c.repr = formid.Long
		c.fid = formid.LongFormID{Master: "Patch.esp", Object: 0x800}
		require.ErrorIs(t, c.ToShort(formid.NewMasterList("Patch.esp", nil)), errs.ErrOpaqueRecord)
	})
}

func TestRecord_New(t *testing.T) {
	rec := New(testEnv(), miscSchema, formid.FormID(0x01000801))
	require.Equal(t, StateDirty, rec.State())

	fields, err := rec.Fields()
	require.NoError(t, err)
	require.NoError(t, fields.Set("eid", "NewGem"))

	b, err := rec.Bytes()
	require.NoError(t, err)
	require.Equal(t, body(subrec{"EDID", []byte("NewGem\x00")}, subrec{"DATA", f32(0)}), b[24:])
	require.Equal(t, uint32(0x01000801), endian.Get[uint32](b[12:]))
	require.Equal(t, StateClean, rec.State())
}

func TestRecord_LocalizedWithoutTable(t *testing.T) {
	s := schema.New("MISC", schema.String("EDID", "eid", 0), schema.LString("FULL", "full", 0))
	data := body(subrec{"EDID", []byte("Gem\x00")}, subrec{"FULL", u32(0x44)})
	env := testEnv()
	env.Localized = true

	rec := FromBytes(env, s, section.RecordHeader{Signature: s.Signature(), Size: uint32(len(data))}, data)
	fields, err := rec.Fields()
	require.NoError(t, err)
	require.Equal(t, stream.LookupFailed, fields.Get("full"))

	rec.SetChanged(true)
	b, err := rec.Bytes()
	require.NoError(t, err)
	require.Equal(t, data, b[24:])
}

type lookup map[uint32]string

func (l lookup) Lookup(id uint32) (string, bool) {
	s, ok := l[id]
	return s, ok
}

func TestRecord_CloneInto(t *testing.T) {
	s := schema.New("MISC", schema.String("EDID", "eid", 0), schema.LString("FULL", "full", 0))
	data := body(subrec{"EDID", []byte("Gem\x00")}, subrec{"FULL", u32(0x44)})
	src := testEnv()
	src.Localized = true
	src.Strings = lookup{0x44: "Flawless Gem"}
	rec := FromBytes(src, s, section.RecordHeader{Signature: s.Signature(), Size: uint32(len(data))}, data)

	t.Run("same env", func(t *testing.T) {
		c, err := rec.CloneInto(src)
		require.NoError(t, err)
		require.False(t, c.Changed())
		require.Equal(t, StateRaw, c.State())
	})

	t.Run("unlocalized target", func(t *testing.T) {
		c, err := rec.CloneInto(testEnv())
		require.NoError(t, err)
		require.True(t, c.Changed())
		require.Equal(t, StateRaw, rec.State())

		b, err := c.Bytes()
		require.NoError(t, err)
		require.Equal(t, body(subrec{"EDID", []byte("Gem\x00")}, subrec{"FULL", []byte("Flawless Gem\x00")}), b[24:])
	})
}
