package records

import (
	"github.com/arloliu/espcodec/schema"
)

const (
	// FirstObject is the first object index a plugin allocates.
	FirstObject uint32 = 0xCE6
	// wrapObject is where allocation restarts after exhausting the object range.
	wrapObject uint32 = 0x800
	maxObject  uint32 = 0xFFFFFF
)

func hedr(version float64) schema.Element {
	return schema.Struct("HEDR", "f2I",
		schema.Field("version", version),
		schema.Field("numRecords", 0),
		schema.Field("nextObject", FirstObject),
	)
}

func oblivionHeader() *schema.Schema {
	return schema.New("TES4",
		hedr(0.8),
		schema.Raw("OFST", "ofst"),
		schema.Raw("DELE", "dele"),
		schema.String("CNAM", "author", 512),
		schema.String("SNAM", "description", 512),
		schema.Masters("masters"),
	)
}

func skyrimHeader() *schema.Schema {
	return schema.New("TES4",
		hedr(1.7),
		schema.String("CNAM", "author", 512),
		schema.String("SNAM", "description", 512),
		schema.Masters("masters"),
		schema.FormIDList("ONAM", "overrides"),
		schema.Raw("SCRN", "screenshot"),
		schema.Raw("INTV", "intv"),
		schema.Raw("INCC", "incc"),
	)
}

func falloutNVHeader() *schema.Schema {
	return schema.New("TES4",
		hedr(1.34),
		schema.Raw("OFST", "ofst"),
		schema.Raw("DELE", "dele"),
		schema.String("CNAM", "author", 512),
		schema.String("SNAM", "description", 512),
		schema.Masters("masters"),
		schema.FormIDList("ONAM", "overrides"),
		schema.Raw("SCRN", "screenshot"),
	)
}

// NextObject returns the next free object index of a plugin header and
// advances the counter. Past 0xFFFFFF the counter restarts at 0x800.
//
// Parameters:
//   - f: Decoded fields of a TES4 record
//
// Returns:
//   - uint32: The allocated object index
//   - error: errs.ErrUnknownField or errs.ErrFieldType for fields that are
//     not a plugin header
func NextObject(f *schema.Fields) (uint32, error) {
	v, err := f.Lookup("nextObject")
	if err != nil {
		return 0, err
	}
	next, ok := v.(uint32)
	if !ok {
		next = FirstObject
	}

	following := next + 1
	if following > maxObject {
		following = wrapObject
	}
	if err := f.Set("nextObject", following); err != nil {
		return 0, err
	}

	return next, nil
}

// Masters returns the master file names stored in a plugin header.
func Masters(f *schema.Fields) []string {
	masters, _ := schema.Value[[]string](f, "masters")
	return masters
}
