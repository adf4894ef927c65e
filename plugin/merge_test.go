package plugin

import (
	"context"
	"testing"

	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/game"
	"github.com/arloliu/espcodec/record"
	"github.com/arloliu/espcodec/section"
	"github.com/arloliu/espcodec/stream"
	"github.com/stretchr/testify/require"
)

// overrideMisc adds a MISC record with an explicit id to p.
func overrideMisc(t *testing.T, p *Plugin, fid formid.FormID, eid string, value uint32) *record.Record {
	t.Helper()
	rec := record.New(p.env, p.schemas.Schema(sigMISC), fid)
	fields, err := rec.Fields()
	require.NoError(t, err)
	require.NoError(t, fields.Set("eid", eid))
	require.NoError(t, fields.Set("value", value))
	require.NoError(t, p.Add(rec))

	return rec
}

// reload writes and reads back p so its records are stored the way a
// plugin on disk holds them.
func reload(t *testing.T, p *Plugin) *Plugin {
	t.Helper()
	loaded, err := Load(context.Background(), p.Profile(), p.Name(), encode(t, p))
	require.NoError(t, err)

	return loaded
}

func TestMerger(t *testing.T) {
	// A is a Base.esm record both patches override the same way
	p1 := newTestPlugin(t, "P1.esp", "Base.esm")
	overrideMisc(t, p1, 0x00000CE6, "A", 5)
	x := addMisc(t, p1, "X", 1)
	fields, err := x.Fields()
	require.NoError(t, err)
	require.NoError(t, fields.Set("pickupSound", formid.FormID(0x00000D00)))

	p2 := newTestPlugin(t, "P2.esp", "Base.esm", "P1.esp")
	overrideMisc(t, p2, 0x00000CE6, "A", 5)
	addMisc(t, p2, "Y", 2)

	nested := newTestPlugin(t, "P3.esp", "Base.esm")
	overrideMisc(t, nested, 0x00000CE7, "B", 1)
	top := nested.TopGroup(sigMISC)
	top.Entries = append(top.Entries, Entry{Group: &Group{
		Header:  section.NewGroupHeader(section.IDLabel(0x00000CE7), format.GroupType(1)),
		Entries: []Entry{{Record: top.Entries[0].Record.Clone()}},
	}})

	m, err := NewMerger(sse, "Merged.esp")
	require.NoError(t, err)
	r1 := reload(t, p1)
	require.NoError(t, m.Add(r1))
	require.NoError(t, m.Add(reload(t, p2)))
	require.NoError(t, m.Add(nested))

	require.Equal(t, MergeStats{New: 4, Identical: 1, Skipped: 1}, m.Stats())

	out, err := m.Build()
	require.NoError(t, err)
	require.Equal(t, []string{"Base.esm", "P1.esp", "P2.esp"}, out.Masters())
	require.Equal(t, []string{"A", "X", "Y", "B"}, editorIDs(t, out))

	t.Run("ids are relative to the merged masters", func(t *testing.T) {
		a := out.Find(formid.FormID(0x00000CE6))
		require.NotNil(t, a)

		merged := out.Find(formid.FormID(0x01000CE6))
		require.NotNil(t, merged)
		eid, err := merged.EditorID()
		require.NoError(t, err)
		require.Equal(t, "X", eid)
		fields, err := merged.Fields()
		require.NoError(t, err)
		require.Equal(t, formid.FormID(0x00000D00), fields.Get("pickupSound"))

		require.NotNil(t, out.Find(formid.FormID(0x02000CE6)))
	})

	t.Run("sources are untouched", func(t *testing.T) {
		for rec := range r1.Records() {
			require.Equal(t, formid.Short, rec.Representation())
		}
	})

	t.Run("output loads back", func(t *testing.T) {
		loaded := reload(t, out)
		require.Equal(t, []string{"A", "X", "Y", "B"}, editorIDs(t, loaded))
	})

	t.Run("build once", func(t *testing.T) {
		_, err := m.Build()
		require.Error(t, err)
		require.Error(t, m.Add(p1))
	})
}

func TestMerger_Override(t *testing.T) {
	p1 := newTestPlugin(t, "P1.esp", "Base.esm")
	overrideMisc(t, p1, 0x00000CE6, "A", 5)
	p2 := newTestPlugin(t, "P2.esp", "Base.esm")
	overrideMisc(t, p2, 0x00000CE6, "A", 9)

	m, err := NewMerger(sse, "Merged.esp")
	require.NoError(t, err)
	require.NoError(t, m.Add(p1))
	require.NoError(t, m.Add(p2))
	require.Equal(t, MergeStats{New: 1, Overrides: 1}, m.Stats())

	out, err := m.Build()
	require.NoError(t, err)
	require.Equal(t, []string{"Base.esm"}, out.Masters())

	fields, err := out.Find(formid.FormID(0x00000CE6)).Fields()
	require.NoError(t, err)
	require.Equal(t, uint32(9), fields.Get("value"))
}

func TestMerger_ProfileMismatch(t *testing.T) {
	m, err := NewMerger(sse, "Merged.esp")
	require.NoError(t, err)

	other, err := New(game.MustLoad("skyrim"), "Old.esp")
	require.NoError(t, err)
	require.Error(t, m.Add(other))
}

func TestMerger_SkipsOpaqueRecords(t *testing.T) {
	p1 := newTestPlugin(t, "P1.esp", "Skyrim.esm", "Update.esm")
	addMisc(t, p1, "Gem", 1)
	w := stream.NewWriter()
	w.PackSub(format.MustSignature("EDID"), []byte("Sword\x00"))
	w.PackRef(format.MustSignature("CNAM"), 0x01000456)
	body := w.Detach()
	sigWEAP := format.MustSignature("WEAP")
	h := section.RecordHeader{Signature: sigWEAP, Size: uint32(len(body)), FormID: 0x00000123}
	require.NoError(t, p1.Add(record.FromBytes(p1.env, nil, h, body)))

	src := reload(t, p1)
	require.Nil(t, src.Find(formid.FormID(0x00000123)).Schema())

	m, err := NewMerger(sse, "Merged.esp")
	require.NoError(t, err)
	require.NoError(t, m.Add(src))
	require.Equal(t, MergeStats{New: 1, Skipped: 1}, m.Stats())

	out, err := m.Build()
	require.NoError(t, err)
	require.Equal(t, []string{"Gem"}, editorIDs(t, out))
	require.Nil(t, out.TopGroup(sigWEAP))
	require.Equal(t, []string{"P1.esp"}, out.Masters())
}
