package records

import (
	"math"
	"testing"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/schema"
	"github.com/arloliu/espcodec/stream"
	"github.com/stretchr/testify/require"
)

type sub struct {
	sig  string
	data []byte
}

func body(subs ...sub) []byte {
	w := stream.NewWriter()
	for _, s := range subs {
		w.PackSub(format.MustSignature(s.sig), s.data)
	}

	return w.Detach()
}

func le(values ...any) []byte {
	var b []byte
	for _, v := range values {
		switch x := v.(type) {
		case float32:
			b = endian.Append(b, math.Float32bits(x))
		case uint8:
			b = append(b, x)
		case uint16:
			b = endian.Append(b, x)
		case int16:
			b = endian.Append(b, x)
		case uint32:
			b = endian.Append(b, x)
		case int32:
			b = endian.Append(b, x)
		case string:
			b = append(b, x...)
		default:
			panic("unsupported value")
		}
	}

	return b
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

func mustSchema(t *testing.T, key, sig string) *schema.Schema {
	t.Helper()
	reg, err := For(key)
	require.NoError(t, err)
	s := reg.Schema(format.MustSignature(sig))
	require.NotNil(t, s, "%s has no %s schema", key, sig)

	return s
}

func decode(t *testing.T, s *schema.Schema, data []byte) *schema.Fields {
	t.Helper()
	f, err := s.Decode(stream.NewReader("test.esp", data), int64(len(data)))
	require.NoError(t, err)

	return f
}

func encode(t *testing.T, s *schema.Schema, f *schema.Fields) []byte {
	t.Helper()
	w := stream.NewWriter()
	require.NoError(t, s.Encode(f, w))

	return w.Detach()
}

func items(t *testing.T, f *schema.Fields, name string) []*schema.Fields {
	t.Helper()
	v, ok := schema.Value[[]*schema.Fields](f, name)
	require.True(t, ok, "%s is not a list", name)

	return v
}

func TestFor(t *testing.T) {
	for _, key := range []string{"oblivion", "skyrim", "SkyrimSE", "falloutnv"} {
		t.Run(key, func(t *testing.T) {
			reg, err := For(key)
			require.NoError(t, err)
			require.NotNil(t, reg.Header())
			require.NotNil(t, reg.Schema(format.MustSignature("GMST")))
			require.Nil(t, reg.Schema(format.MustSignature("REFR")))

			sigs := reg.Signatures()
			require.Contains(t, sigs, format.SigHeader)
			for i := 1; i < len(sigs); i++ {
				require.Less(t, sigs[i-1].String(), sigs[i].String())
			}
		})
	}

	_, err := For("morrowind")
	require.ErrorIs(t, err, errs.ErrInvalidProfile)

	sky, _ := For("skyrim")
	require.Equal(t, "skyrim", sky.Key())
}

func TestHeader_RoundTripAndNextObject(t *testing.T) {
	s := mustSchema(t, "skyrim", "TES4")
	data := body(
		sub{"HEDR", le(float32(1.7), uint32(3), uint32(0x801))},
		sub{"CNAM", cstr("someone")},
		sub{"MAST", cstr("Skyrim.esm")},
		sub{"DATA", make([]byte, 8)},
		sub{"MAST", cstr("Update.esm")},
		sub{"DATA", make([]byte, 8)},
		sub{"ONAM", le(uint32(0x00012E46))},
		sub{"INTV", le(uint32(1))},
	)

	f := decode(t, s, data)
	require.Equal(t, data, encode(t, s, f))
	require.Equal(t, []string{"Skyrim.esm", "Update.esm"}, Masters(f))
	require.Equal(t, "someone", f.Get("author"))
	require.Equal(t, []formid.Ref{formid.FormID(0x00012E46)}, f.Get("overrides"))

	next, err := NextObject(f)
	require.NoError(t, err)
	require.Equal(t, uint32(0x801), next)
	require.Equal(t, uint32(0x802), f.Get("nextObject"))
	require.True(t, f.Changed())

	require.NoError(t, f.Set("nextObject", uint32(0xFFFFFF)))
	next, err = NextObject(f)
	require.NoError(t, err)
	require.Equal(t, uint32(0xFFFFFF), next)
	require.Equal(t, uint32(0x800), f.Get("nextObject"))

	fresh := s.NewFields()
	next, err = NextObject(fresh)
	require.NoError(t, err)
	require.Equal(t, FirstObject, next)

	_, err = NextObject(mustSchema(t, "skyrim", "GLOB").NewFields())
	require.ErrorIs(t, err, errs.ErrUnknownField)
}

func TestOblivionSpell_FullAndScriptEffects(t *testing.T) {
	s := mustSchema(t, "oblivion", "SPEL")
	data := body(
		sub{"EDID", cstr("StandardFireDamage")},
		sub{"FULL", cstr("Flare")},
		sub{"SPIT", append(le(uint32(0), uint32(12), uint32(0)), 0x05, 0, 0, 0)},
		sub{"EFID", []byte("FIDG")},
		sub{"EFIT", le("FIDG", uint32(10), uint32(0), uint32(1), uint32(2), int32(-1))},
		sub{"EFID", []byte("SEFF")},
		sub{"EFIT", le("SEFF", uint32(0), uint32(0), uint32(5), uint32(0), int32(-1))},
		sub{"SCIT", le(uint32(0x0001F00D), uint32(3), "ABCD")},
		sub{"FULL", cstr("Scripted")},
	)

	f := decode(t, s, data)
	require.Equal(t, "Flare", f.Get("full"))
	flags, _ := schema.Value[format.Flags](f, "flags")
	require.True(t, flags.Has("noAutoCalc"))
	require.True(t, flags.Has("startSpell"))

	effects := items(t, f, "effects")
	require.Len(t, effects, 2)
	require.Equal(t, []byte("FIDG"), effects[0].Get("name"))
	require.Equal(t, uint32(10), effects[0].Get("magnitude"))
	require.Nil(t, effects[0].Get("scriptEffect"))

	script, ok := schema.Value[*schema.Fields](effects[1], "scriptEffect")
	require.True(t, ok)
	require.Equal(t, "Scripted", script.Get("full"))
	require.Equal(t, formid.FormID(0x0001F00D), script.Get("script"))
	require.Equal(t, []byte{0, 0, 0}, script.Get("unused1"))

	// the short SCIT is written back in the full layout
	again := decode(t, s, encode(t, s, f))
	script, _ = schema.Value[*schema.Fields](items(t, again, "effects")[1], "scriptEffect")
	require.Equal(t, "Scripted", script.Get("full"))
	require.Equal(t, "Flare", again.Get("full"))
}

func TestUpgradeShortSCIT(t *testing.T) {
	require.Equal(t, append(le(uint32(0x1234)), make([]byte, 12)...), upgradeShortSCIT(le(uint32(0x1234))))
	require.Equal(t, make([]byte, 16), upgradeShortSCIT(le(uint32(0x05001234))))
	full := make([]byte, 16)
	full[0] = 9
	require.Equal(t, full, upgradeShortSCIT(full))
}

func TestOblivionLeveled_LegacyLayouts(t *testing.T) {
	s := mustSchema(t, "oblivion", "LVLI")
	data := body(
		sub{"EDID", cstr("LL0Loot")},
		sub{"LVLD", []byte{0x80 | 25}},
		sub{"LVLO", le(int32(5), uint32(0x000229A9))},
		sub{"LVLO", le(int16(10), uint16(0), uint32(0x000229AA), int16(3), uint16(0))},
		sub{"DATA", []byte{1}},
	)

	f := decode(t, s, data)
	require.False(t, f.Changed())
	require.Equal(t, uint8(25), f.Get("chanceNone"))
	flags, _ := schema.Value[format.Flags](f, "flags")
	require.True(t, flags.Has("calcFromAllLevels"))

	entries := items(t, f, "entries")
	require.Len(t, entries, 2)
	require.Equal(t, int16(5), entries[0].Get("level"))
	require.Equal(t, formid.FormID(0x000229A9), entries[0].Get("listID"))
	require.Equal(t, int16(1), entries[0].Get("count"))
	require.Equal(t, int16(3), entries[1].Get("count"))

	out := encode(t, s, f)
	again := decode(t, s, out)
	require.Len(t, items(t, again, "entries"), 2)
	flags, _ = schema.Value[format.Flags](again, "flags")
	require.True(t, flags.Has("calcFromAllLevels"))
	require.Equal(t, uint8(25), again.Get("chanceNone"))
}

func TestSkyrimLeveled_RoundTrip(t *testing.T) {
	s := mustSchema(t, "skyrimse", "LVLI")
	data := body(
		sub{"EDID", cstr("LItemGems")},
		sub{"OBND", make([]byte, 12)},
		sub{"LVLD", []byte{10}},
		sub{"LVLF", []byte{0x03}},
		sub{"LLCT", []byte{2}},
		sub{"LVLO", le(uint16(1), uint16(0), uint32(0x00063B45), uint16(1), uint16(0))},
		sub{"LVLO", le(uint16(6), uint16(0), uint32(0x0106DB7A), uint16(2), uint16(0))},
		sub{"COED", le(uint32(0x00013794), uint32(0), float32(1))},
	)

	f := decode(t, s, data)
	require.Equal(t, data, encode(t, s, f))

	entries := items(t, f, "entries")
	require.Len(t, entries, 2)
	require.Nil(t, entries[0].Get("owner"))
	require.Equal(t, formid.FormID(0x00013794), entries[1].Get("owner"))

	var refs []formid.Ref
	collect := func(ref formid.Ref) (formid.Ref, error) {
		refs = append(refs, ref)
		return ref, nil
	}
	require.NoError(t, s.MapFormIDs(f, collect, false))
	require.Equal(t, []formid.Ref{
		formid.FormID(0x00063B45),
		formid.FormID(0x0106DB7A),
		formid.FormID(0x00013794),
		formid.FormID(0),
	}, refs)

	require.NoError(t, f.Set("entries", entries[:1]))
	out := encode(t, s, f)
	again := decode(t, s, out)
	require.Len(t, items(t, again, "entries"), 1)
}

func TestSkyrimSpell_EffectsWithConditions(t *testing.T) {
	s := mustSchema(t, "skyrim", "SPEL")
	ctda := append(append([]byte{0, 0, 0, 0}, le(float32(1), uint16(72), uint16(0))...),
		le(int32(0x0001DF92), int32(0), uint32(0), uint32(0), int32(-1))...)
	data := body(
		sub{"EDID", cstr("Flames")},
		sub{"OBND", make([]byte, 12)},
		sub{"FULL", cstr("Flames")},
		sub{"MDOB", le(uint32(0x000A2C8B))},
		sub{"ETYP", le(uint32(0x00013F44))},
		sub{"DESC", cstr("A gout of fire.")},
		sub{"SPIT", le(uint32(0), uint32(1), uint32(0), float32(0), uint32(1), uint32(2), float32(0), float32(0), uint32(0))},
		sub{"EFID", le(uint32(0x00013CA9))},
		sub{"EFIT", le(float32(8), uint32(0), uint32(1))},
		sub{"CTDA", ctda},
		sub{"EFID", le(uint32(0x0001EA6B))},
		sub{"EFIT", le(float32(1), uint32(0), uint32(0))},
	)

	f := decode(t, s, data)
	require.Equal(t, data, encode(t, s, f))
	require.Equal(t, "Flames", f.Get("full"))
	flags, _ := schema.Value[format.Flags](f, "dataFlags")
	require.True(t, flags.Has("manualCostCalc"))

	effects := items(t, f, "effects")
	require.Len(t, effects, 2)
	require.Equal(t, formid.FormID(0x00013CA9), effects[0].Get("baseEffect"))
	require.Len(t, items(t, effects[0], "conditions"), 1)
	require.Empty(t, items(t, effects[1], "conditions"))
	cond := items(t, effects[0], "conditions")[0]
	require.Equal(t, uint16(72), cond.Get("ifunc"))
	require.Equal(t, int32(0x0001DF92), cond.Get("param1"))
}

func TestGameSetting(t *testing.T) {
	s := mustSchema(t, "skyrim", "GMST")
	tests := []struct {
		eid   string
		data  []byte
		value any
	}{
		{"fJumpHeightMin", le(float32(76)), float32(76)},
		{"iLevelUp", le(int32(-2)), int32(-2)},
		{"sActivate", cstr("Activate"), "Activate"},
		{"bAutoSave", le(uint32(1)), uint32(1)},
	}

	for _, tt := range tests {
		t.Run(tt.eid, func(t *testing.T) {
			data := body(sub{"EDID", cstr(tt.eid)}, sub{"DATA", tt.data})
			f := decode(t, s, data)
			require.Equal(t, tt.value, f.Get("value"))
			require.Equal(t, data, encode(t, s, f))
		})
	}
}

func TestSimpleRecords_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  string
		sig  string
		data []byte
	}{
		{"global", "oblivion", "GLOB", body(
			sub{"EDID", cstr("GameHour")}, sub{"FNAM", []byte("f")}, sub{"FLTV", le(float32(8))})},
		{"keyword", "skyrim", "KYWD", body(
			sub{"EDID", cstr("VendorItemGem")}, sub{"CNAM", []byte{1, 2, 3, 0}})},
		{"keyword without color", "skyrim", "KYWD", body(sub{"EDID", cstr("ArmorHeavy")})},
		{"formid list", "falloutnv", "FLST", body(
			sub{"EDID", cstr("Ammo")}, sub{"LNAM", le(uint32(0x0004322B))}, sub{"LNAM", le(uint32(0x0004322C))})},
		{"oblivion static", "oblivion", "STAT", body(
			sub{"EDID", cstr("Rock01")}, sub{"MODL", cstr("Rocks\\Rock01.NIF")}, sub{"MODB", le(float32(64))})},
		{"skyrim static", "skyrim", "STAT", body(
			sub{"EDID", cstr("RockPile01")}, sub{"OBND", make([]byte, 12)}, sub{"MODL", cstr("Rocks\\RockPile01.nif")},
			sub{"MODT", []byte{9, 9, 9}}, sub{"DNAM", le(float32(90), uint32(0x00012C8D))})},
		{"oblivion misc", "oblivion", "MISC", body(
			sub{"EDID", cstr("Gold001")}, sub{"FULL", cstr("Gold")}, sub{"MODL", cstr("Clutter\\Gold.NIF")},
			sub{"ICON", cstr("Clutter\\gold.dds")}, sub{"DATA", le(int32(1), float32(0))})},
		{"skyrim misc", "skyrim", "MISC", body(
			sub{"EDID", cstr("Gold001")}, sub{"OBND", make([]byte, 12)}, sub{"FULL", cstr("Gold")},
			sub{"MODL", cstr("Clutter\\Gold.nif")},
			sub{"DEST", le(int32(10), uint8(1), uint8(0), uint16(0))},
			sub{"DSTD", append([]byte{50, 0, 1, 4}, le(int32(0), uint32(0), uint32(0), int32(0))...)},
			sub{"DMDL", cstr("Broken.nif")},
			sub{"DSTF", nil},
			sub{"YNAM", le(uint32(0x0003E9C6))},
			sub{"KSIZ", le(uint32(1))}, sub{"KWDA", le(uint32(0x000914E9))},
			sub{"DATA", le(uint32(1), float32(0))})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSchema(t, tt.key, tt.sig)
			f := decode(t, s, tt.data)
			require.Equal(t, tt.data, encode(t, s, f))
		})
	}
}
