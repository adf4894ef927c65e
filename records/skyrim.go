package records

import (
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/schema"
)

var (
	skyrim   = newRegistry("skyrim", skyrimSchemas()...)
	skyrimSE = newRegistry("skyrimse", skyrimSchemas()...)

	falloutNV = newRegistry("falloutnv",
		falloutNVHeader(),
		gameSetting(),
		global("GLOB"),
		formIDList(),
	)
)

func skyrimSchemas() []*schema.Schema {
	return []*schema.Schema{
		skyrimHeader(),
		gameSetting(),
		global("GLOB"),
		keyword(),
		formIDList(),
		skyrimStatic(),
		skyrimMisc(),
		skyrimLeveled("LVLI"),
		skyrimLeveled("LVSP"),
		skyrimSpell(),
	}
}

// bitNames builds a flag set from sparse bit positions.
func bitNames(bits map[int]string) *format.FlagSet {
	n := 0
	for b := range bits {
		n = max(n, b+1)
	}
	names := make([]string, n)
	for b, name := range bits {
		names[b] = name
	}

	return format.NewFlagSet(names...)
}

func keyword() *schema.Schema {
	return schema.New("KYWD",
		editorID(),
		schema.OptStruct("CNAM", "=4B",
			schema.Field("red", 0), schema.Field("green", 0), schema.Field("blue", 0), schema.Field("unused", 0)),
	)
}

func skyrimStatic() *schema.Schema {
	return schema.New("STAT",
		editorID(),
		bounds(),
		skyrimModel(),
		schema.Struct("DNAM", "fI", schema.Field("maxAngle", 0.0), schema.FIDField("material")),
		schema.Raw("MNAM", "distantLOD"),
	)
}

func skyrimMisc() *schema.Schema {
	return schema.New("MISC",
		editorID(),
		schema.Raw("VMAD", "scripts"),
		bounds(),
		schema.LString("FULL", "full", 0),
		skyrimModel(),
		schema.String("ICON", "iconPath", 0),
		schema.String("MICO", "smallIconPath", 0),
		destructible(),
		schema.FormID("YNAM", "pickupSound"),
		schema.FormID("ZNAM", "dropSound"),
		keywords(),
		schema.Struct("DATA", "=If", schema.Field("value", 0), schema.Field("weight", 0.0)),
	)
}

// skyrimLeveled declares the leveled lists. The LLCT entry count is always
// written before the entries.
func skyrimLeveled(sig string) *schema.Schema {
	return schema.New(sig,
		editorID(),
		bounds(),
		schema.Struct("LVLD", "B", schema.Field("chanceNone", 0)),
		schema.Struct("LVLF", "B", schema.FlagsField("flags", leveledFlags, 0)),
		schema.FormID("LVLG", "glob"),
		schema.CountedGroups("entries", "LLCT", "B",
			schema.Struct("LVLO", "=HHIHH",
				schema.Field("level", 0), schema.Field("unknown1", 0), schema.FIDField("listID"),
				schema.Field("count", 1), schema.Field("unknown2", 0)),
			schema.OptStruct("COED", "=IIf",
				schema.FIDField("owner"), schema.FIDField("glob"), schema.Field("itemCondition", 0.0)),
		),
	)
}

var spellDataFlags = bitNames(map[int]string{
	0:  "manualCostCalc",
	17: "pcStartSpell",
	19: "areaEffectIgnoresLOS",
	20: "ignoreResistance",
	21: "noAbsorbReflect",
	23: "noDualCastModification",
})

func skyrimSpell() *schema.Schema {
	return schema.New("SPEL",
		editorID(),
		bounds(),
		schema.LString("FULL", "full", 0),
		keywords(),
		schema.FormID("MDOB", "menuDisplayObject"),
		schema.FormID("ETYP", "equipmentType"),
		schema.LString("DESC", "description", 0),
		schema.Struct("SPIT", "IIIfIIffI",
			schema.Field("cost", 0), schema.FlagsField("dataFlags", spellDataFlags, 0),
			schema.Field("spellType", 0), schema.Field("chargeTime", 0.0), schema.Field("castType", 0),
			schema.Field("targetType", 0), schema.Field("castDuration", 0.0), schema.Field("range", 0.0),
			schema.FIDField("halfCostPerk")),
		skyrimEffects(),
	)
}
