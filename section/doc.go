// Package section defines the fixed-layout headers of a plugin file.
//
// Every record and every group in a plugin starts with the same physical
// header shape:
//
//	┌──────────┬──────────┬──────────┬──────────┬──────────┬────────────┐
//	│ tag (4s) │ size (I) │ slot1    │ slot2    │ slot3    │ extra (I)  │
//	└──────────┴──────────┴──────────┴──────────┴──────────┴────────────┘
//
// For records the slots are flags, FormID and version-control flags, and the
// body size excludes the header. For groups (tag GRUP) the slots are the
// label, the group type and a stamp, and the size includes the header.
//
// The trailing extra word exists only for games with a non-zero plugin form
// version (every game after Oblivion), making the header 24 bytes instead
// of 20.
//
// A group label is polymorphic. Top groups (type 0) are labelled with the
// record type they contain, exterior cell blocks (types 4 and 5) with a pair
// of int16 grid coordinates, and everything else with a u32 id. HeaderCodec
// recovers the label variant from the group type when reading, and chooses
// the physical layout from the label's Go type when writing.
package section
