package section

const (
	// HeaderSizeLegacy is the header size for games without a form version (Oblivion).
	HeaderSizeLegacy = 20
	// HeaderSizeExtended is the header size for games with a form version.
	HeaderSizeExtended = 24
)

// Record header flag bits.
const (
	FlagESM               uint32 = 0x00000001 // master file (TES4 only)
	FlagDeleted           uint32 = 0x00000020
	FlagLocalized         uint32 = 0x00000080 // strings live in string tables (TES4 only)
	FlagESL               uint32 = 0x00000200 // light master (TES4 only)
	FlagPersistent        uint32 = 0x00000400
	FlagInitiallyDisabled uint32 = 0x00000800
	FlagIgnored           uint32 = 0x00001000
	FlagVisibleDistant    uint32 = 0x00008000
	FlagCompressed        uint32 = 0x00040000 // body is a u32 size followed by a zlib stream
)
