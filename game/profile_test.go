package game

import (
	"testing"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
	"github.com/stretchr/testify/require"
)

func TestLoad_Builtins(t *testing.T) {
	tests := []struct {
		key         string
		formVersion uint16
		headerSize  int
		master      string
		archive     uint32
	}{
		{"oblivion", 0, 20, "Oblivion.esm", ArchiveOblivion},
		{"skyrim", 43, 24, "Skyrim.esm", ArchiveSkyrim},
		{"skyrimse", 44, 24, "Skyrim.esm", ArchiveSkyrimSE},
		{"falloutnv", 15, 24, "FalloutNV.esm", ArchiveSkyrim},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, err := Load(tt.key)
			require.NoError(t, err)
			require.Equal(t, tt.key, p.Key)
			require.Equal(t, tt.formVersion, p.FormVersion)
			require.Equal(t, tt.headerSize, p.HeaderCodec().HeaderSize())
			require.Equal(t, tt.master, p.MasterFile)
			require.Equal(t, tt.archive, p.ArchiveVersion)
			require.Equal(t, "cp1252", p.TextCodec().Name())
			require.True(t, p.IsTopType(format.MustSignature("GMST")))
			require.True(t, p.HeaderCodec().IsRecordType(format.MustSignature("REFR")))
			require.False(t, p.IsTopType(format.MustSignature("REFR")))
		})
	}
}

func TestLoad_TopOrder(t *testing.T) {
	sky := MustLoad("skyrim")
	sse := MustLoad("SkyrimSE")

	require.Equal(t, "GMST", sky.TopTypes[0])
	require.Equal(t, "KYWD", sky.TopTypes[1])
	require.Len(t, sse.TopTypes, len(sky.TopTypes)+2)
	require.Equal(t, []string{"LENS", "VOLI"}, sse.TopTypes[len(sky.TopTypes):])
	require.False(t, sky.IsTopType(format.MustSignature("LENS")))
	require.True(t, sse.IsTopType(format.MustSignature("LENS")))

	obl := MustLoad("oblivion")
	require.True(t, obl.IsTopType(format.MustSignature("BSGN")))
	require.False(t, obl.IsTopType(format.MustSignature("KYWD")))
	require.True(t, obl.IsMaster("oblivion.ESM"))
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("morrowind")
	require.ErrorIs(t, err, errs.ErrInvalidProfile)
	require.Panics(t, func() { MustLoad("morrowind") })
}

func TestKeys(t *testing.T) {
	require.Equal(t, []string{"falloutnv", "oblivion", "skyrim", "skyrimse"}, Keys())
}

func TestParse(t *testing.T) {
	valid := `
name: Test
key: test
form_version: 43
encoding: cp1252
master_file: Test.esm
top_types: [GMST, NPC_]
record_types: [REFR]
`
	p, err := Parse([]byte(valid))
	require.NoError(t, err)
	require.Equal(t, "Test", p.String())
	require.Equal(t, 24, p.HeaderCodec().HeaderSize())
	require.Equal(t, []format.Signature{format.MustSignature("GMST"), format.MustSignature("NPC_")}, p.HeaderCodec().TopTypes())

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", valid + "extra: 1\n"},
		{"missing name", "key: x\nmaster_file: X.esm\nencoding: cp1252\ntop_types: [GMST]\n"},
		{"missing master", "name: X\nkey: x\nencoding: cp1252\ntop_types: [GMST]\n"},
		{"no top types", "name: X\nkey: x\nmaster_file: X.esm\nencoding: cp1252\n"},
		{"bad encoding", "name: X\nkey: x\nmaster_file: X.esm\nencoding: ebcdic\ntop_types: [GMST]\n"},
		{"bad signature", "name: X\nkey: x\nmaster_file: X.esm\nencoding: cp1252\ntop_types: [GMSTX]\n"},
		{"duplicate type", "name: X\nkey: x\nmaster_file: X.esm\nencoding: cp1252\ntop_types: [GMST]\nrecord_types: [GMST]\n"},
		{"bad archive", valid + "archive_version: 200\n"},
		{"bad header version", valid + "header_version: 2.0\nheader_versions: [1.7]\n"},
		{"not yaml", "name: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.ErrorIs(t, err, errs.ErrInvalidProfile)
		})
	}
}
