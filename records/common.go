package records

import (
	"github.com/arloliu/espcodec/format"
	"github.com/arloliu/espcodec/schema"
)

// Leveled list flags, shared by every game.
var leveledFlags = format.NewFlagSet("calcFromAllLevels", "calcForEachItem", "useAllSpells", "specialLoot")

func editorID() *schema.StringElem {
	return schema.String("EDID", "eid", 0)
}

func bounds() schema.Element {
	return schema.Struct("OBND", "=6h",
		schema.Field("boundX1", 0), schema.Field("boundY1", 0), schema.Field("boundZ1", 0),
		schema.Field("boundX2", 0), schema.Field("boundY2", 0), schema.Field("boundZ2", 0),
	)
}

func keywords() schema.Element {
	return schema.CountedFormIDList("KWDA", "keywords", "KSIZ", "I")
}

// model declares the MODL/MODT pair and its texture swaps. Destructible
// stages reuse it under other tags.
func model(attr, pathSig, hashSig string) schema.Element {
	return schema.Group(attr,
		schema.String(pathSig, "modPath", 0),
		schema.Raw(hashSig, "hashes"),
	)
}

func skyrimModel() schema.Element {
	return schema.Group("model",
		schema.String("MODL", "modPath", 0),
		schema.Raw("MODT", "hashes"),
		schema.Raw("MODS", "altTextures"),
	)
}

var destStageFlags = format.NewFlagSet("capDamage", "disable", "destroy", "ignoreExternalDmg")

func destructible() schema.Element {
	return schema.Group("destructible",
		schema.Struct("DEST", "i2B2s",
			schema.Field("health", 0), schema.Field("count", 0),
			schema.Field("vatsTargetable", 0), schema.Field("unused", nil)),
		schema.Groups("stages",
			schema.Struct("DSTD", "=4Bi2Ii",
				schema.Field("health", 0), schema.Field("index", 0), schema.Field("damageStage", 0),
				schema.FlagsField("flags", destStageFlags, 0), schema.Field("selfDamagePerSecond", 0),
				schema.FIDField("explosion"), schema.FIDField("debris"), schema.Field("debrisCount", 0)),
			model("model", "DMDL", "DMDT"),
			schema.Raw("DSTF", "footer"),
		),
	)
}

// conditions declares Skyrim CTDA conditions. Parameters whose meaning
// depends on the condition function are kept as plain integers.
func conditions() schema.Element {
	return schema.Groups("conditions",
		schema.Struct("CTDA", "=B3sfH2siiIIi",
			schema.Field("operFlag", 0), schema.Field("unused1", nil), schema.Field("compValue", 0.0),
			schema.Field("ifunc", 0), schema.Field("unused2", nil), schema.Field("param1", 0),
			schema.Field("param2", 0), schema.Field("runOn", 0), schema.Field("reference", 0),
			schema.Field("param3", -1)),
		schema.String("CIS1", "paramCIS1", 0),
		schema.String("CIS2", "paramCIS2", 0),
	)
}

func skyrimEffects() schema.Element {
	return schema.Groups("effects",
		schema.FormID("EFID", "baseEffect"),
		schema.Struct("EFIT", "f2I",
			schema.Field("magnitude", 0.0), schema.Field("area", 0), schema.Field("duration", 0)),
		conditions(),
	)
}

func global(sig string) *schema.Schema {
	return schema.New(sig,
		editorID(),
		schema.Struct("FNAM", "s", schema.Field("format", []byte("s"))),
		schema.Struct("FLTV", "f", schema.Field("value", 0.0)),
	)
}

func gameSetting() *schema.Schema {
	return schema.New("GMST",
		editorID(),
		schema.GameSetting("DATA", "value", "eid"),
	)
}

func formIDList() *schema.Schema {
	return schema.New("FLST",
		editorID(),
		schema.FormIDs("LNAM", "formIDInList"),
	)
}
