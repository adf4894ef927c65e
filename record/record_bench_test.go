package record

import (
	"testing"

	"github.com/arloliu/espcodec/formid"
	"github.com/arloliu/espcodec/section"
)

func benchBody() []byte {
	return body(
		subrec{"EDID", []byte("BenchGem\x00")},
		subrec{"YNAM", u32(0x01000D00)},
		subrec{"DATA", f32(12.5)},
	)
}

func BenchmarkRecord_Decode(b *testing.B) {
	data := benchBody()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()

	for b.Loop() {
		rec := miscRecord(data, 0)
		if err := rec.Decode(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecord_Repack(b *testing.B) {
	data := benchBody()

	for _, tc := range []struct {
		name  string
		flags uint32
	}{
		{"plain", 0},
		{"compressed", section.FlagCompressed},
	} {
		b.Run(tc.name, func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for b.Loop() {
				rec := miscRecord(data, 0)
				if tc.flags != 0 {
					if err := rec.SetCompressed(true); err != nil {
						b.Fatal(err)
					}
				}
				rec.SetChanged(true)
				if err := rec.Pack(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRecord_ConvertFormIDs(b *testing.B) {
	data := benchBody()
	masters := formid.NewMasterList("Patch.esp", []string{"Skyrim.esm"})

	for b.Loop() {
		rec := miscRecord(data, 0)
		if err := rec.ToLong(masters); err != nil {
			b.Fatal(err)
		}
		if err := rec.ToShort(masters); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecord_EditorID(b *testing.B) {
	rec := miscRecord(benchBody(), 0)

	for b.Loop() {
		if _, err := rec.EditorID(); err != nil {
			b.Fatal(err)
		}
	}
}
