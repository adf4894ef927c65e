package format

type (
	CompressionType uint8
	GroupType       int32
)

const (
	CompressionZlib CompressionType = 0x2 // CompressionZlib represents zlib (deflate) compression.
	CompressionLZ4  CompressionType = 0x3 // CompressionLZ4 represents LZ4 frame compression.
)

const (
	GroupTop                        GroupType = 0  // GroupTop holds all records of one type.
	GroupWorldChildren              GroupType = 1  // GroupWorldChildren holds a worldspace's cells.
	GroupInteriorCellBlock          GroupType = 2  // GroupInteriorCellBlock is labelled by block number.
	GroupInteriorCellSubBlock       GroupType = 3  // GroupInteriorCellSubBlock is labelled by sub-block number.
	GroupExteriorCellBlock          GroupType = 4  // GroupExteriorCellBlock is labelled by grid (Y, X).
	GroupExteriorCellSubBlock       GroupType = 5  // GroupExteriorCellSubBlock is labelled by grid (Y, X).
	GroupCellChildren               GroupType = 6  // GroupCellChildren holds a cell's references.
	GroupTopicChildren              GroupType = 7  // GroupTopicChildren holds a dialogue topic's infos.
	GroupCellPersistentChildren     GroupType = 8  // GroupCellPersistentChildren holds persistent references.
	GroupCellTemporaryChildren      GroupType = 9  // GroupCellTemporaryChildren holds temporary references.
	GroupCellVisibleDistantChildren GroupType = 10 // GroupCellVisibleDistantChildren holds visible-when-distant references.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionZlib:
		return "Zlib"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (g GroupType) String() string {
	switch g {
	case GroupTop:
		return "Top"
	case GroupWorldChildren:
		return "WorldChildren"
	case GroupInteriorCellBlock:
		return "InteriorCellBlock"
	case GroupInteriorCellSubBlock:
		return "InteriorCellSubBlock"
	case GroupExteriorCellBlock:
		return "ExteriorCellBlock"
	case GroupExteriorCellSubBlock:
		return "ExteriorCellSubBlock"
	case GroupCellChildren:
		return "CellChildren"
	case GroupTopicChildren:
		return "TopicChildren"
	case GroupCellPersistentChildren:
		return "CellPersistentChildren"
	case GroupCellTemporaryChildren:
		return "CellTemporaryChildren"
	case GroupCellVisibleDistantChildren:
		return "CellVisibleDistantChildren"
	default:
		return "Unknown"
	}
}

// IsGrid reports whether groups of this type carry a (Y, X) grid label.
func (g GroupType) IsGrid() bool {
	return g == GroupExteriorCellBlock || g == GroupExteriorCellSubBlock
}
