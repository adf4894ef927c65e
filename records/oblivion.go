package records

import (
	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/schema"
)

var oblivion = newRegistry("oblivion",
	oblivionHeader(),
	gameSetting(),
	global("GLOB"),
	oblivionMisc(),
	oblivionStatic(),
	oblivionLeveled("LVLI"),
	oblivionLeveled("LVLC"),
	oblivionLeveled("LVSP"),
	oblivionSpell(),
)

func oblivionModel() schema.Element {
	return schema.Group("model",
		schema.String("MODL", "modPath", 0),
		schema.Raw("MODB", "modb"),
		schema.Raw("MODT", "hashes"),
	)
}

func oblivionMisc() *schema.Schema {
	return schema.New("MISC",
		editorID(),
		schema.String("FULL", "full", 0),
		oblivionModel(),
		schema.String("ICON", "iconPath", 0),
		schema.FormID("SCRI", "script"),
		schema.Struct("DATA", "if", schema.Field("value", 0), schema.Field("weight", 0.0)),
	)
}

func oblivionStatic() *schema.Schema {
	return schema.New("STAT",
		editorID(),
		oblivionModel(),
	)
}

// oblivionLeveled declares the leveled lists. Early plugins store the
// calcFromAllLevels flag as the high bit of LVLD and use 8-byte LVLO
// entries without a count.
func oblivionLeveled(sig string) *schema.Schema {
	lvld := newLegacy("LVLD", schema.Struct("LVLD", "B", schema.Field("chanceNone", 0)), func(data []byte) []byte {
		if len(data) != 1 || data[0] <= 127 {
			return data
		}
		return []byte{data[0] & 0x7F}
	})
	lvld.after = func(f *schema.Fields, data []byte) error {
		if len(data) != 1 || data[0] <= 127 {
			return nil
		}
		cur, _ := schema.Value[format.Flags](f, "flags")
		return f.Set("flags", leveledFlags.Wrap(cur.Value).With("calcFromAllLevels", true))
	}

	lvlo := newLegacy("LVLO", schema.Structs("LVLO", "h2sIh2s", "entries",
		schema.Field("level", 0), schema.Field("unused1", nil), schema.FIDField("listID"),
		schema.Field("count", 1), schema.Field("unused2", nil),
	), upgradeShortLVLO)

	return schema.New(sig,
		editorID(),
		lvld,
		schema.Struct("LVLF", "B", schema.FlagsField("flags", leveledFlags, 0)),
		schema.FormID("SCRI", "script"),
		schema.FormID("TNAM", "template"),
		lvlo,
		schema.Discard("DATA"),
	)
}

// upgradeShortLVLO expands an 8-byte "iI" entry to the 12-byte layout with
// a count of one.
func upgradeShortLVLO(data []byte) []byte {
	if len(data) != 8 {
		return data
	}
	engine := endian.GetLittleEndianEngine()
	out := make([]byte, 0, 12)
	out = engine.AppendUint16(out, uint16(engine.Uint32(data[0:4])))
	out = append(out, 0, 0)
	out = append(out, data[4:8]...)
	out = engine.AppendUint16(out, 1)

	return append(out, 0, 0)
}

var (
	oblivionSpellFlags = format.NewFlagSet("noAutoCalc", "immuneToSilence", "startSpell", "",
		"ignoreLOS", "scriptEffectAlwaysApplies", "disallowAbsorbReflect", "touchExplodesWOTarget")
	scriptEffectFlags = format.NewFlagSet("hostile")
)

func oblivionSpell() *schema.Schema {
	return schema.New("SPEL",
		editorID(),
		schema.FirstFull(),
		schema.Struct("SPIT", "3IB3s",
			schema.Field("spellType", 0), schema.Field("cost", 0), schema.Field("level", 0),
			schema.FlagsField("flags", oblivionSpellFlags, 0), schema.Field("unused1", nil)),
		oblivionEffects(),
	)
}

func oblivionEffects() schema.Element {
	scit := newLegacy("SCIT", schema.Struct("SCIT", "II4sB3s",
		schema.FIDField("script"), schema.Field("school", 0), schema.Field("visual", nil),
		schema.FlagsField("flags", scriptEffectFlags, 0), schema.Field("unused1", nil),
	), upgradeShortSCIT)

	return schema.Groups("effects",
		schema.Struct("EFID", "4s", schema.Field("name", []byte("REHE"))),
		schema.Struct("EFIT", "4s4Ii",
			schema.Field("effectName", []byte("REHE")), schema.Field("magnitude", 0), schema.Field("area", 0),
			schema.Field("duration", 0), schema.Field("recipient", 0), schema.Field("actorValue", 0)),
		schema.Group("scriptEffect",
			scit,
			schema.String("FULL", "full", 0),
		),
	)
}

// upgradeShortSCIT pads 4 and 12-byte script effect data to 16 bytes. A
// 4-byte entry whose script id has a mod index is bogus and reads as no
// script.
func upgradeShortSCIT(data []byte) []byte {
	switch len(data) {
	case 4:
		if data[3] != 0 {
			return make([]byte, 16)
		}
		return pad(data, 16)
	case 12:
		return pad(data, 16)
	default:
		return data
	}
}
