package strtable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/stream"
	"github.com/stretchr/testify/require"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		name string
		want Kind
		ok   bool
	}{
		{"Strings/Skyrim_english.STRINGS", KindStrings, true},
		{"skyrim_english.dlstrings", KindDLStrings, true},
		{"Skyrim_English.ILSTRINGS", KindILStrings, true},
		{"Skyrim.esm", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindFor(tt.name)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, kind)
		})
	}
}

func TestBuildParse(t *testing.T) {
	src := Table{1: "Iron Sword", 2: "A plain blade.\r\nHeavy.", 0x10: ""}

	for _, kind := range []Kind{KindStrings, KindDLStrings, KindILStrings} {
		t.Run(kind.String(), func(t *testing.T) {
			data, err := Build(kind, src, nil)
			require.NoError(t, err)

			table, err := Parse("test."+kind.String(), kind, data, nil)
			require.NoError(t, err)
			require.Equal(t, src, table)
		})
	}
}

func TestParse_Layout(t *testing.T) {
	// two entries sharing one string
	data := []byte{
		2, 0, 0, 0, 4, 0, 0, 0,
		7, 0, 0, 0, 0, 0, 0, 0,
		9, 0, 0, 0, 0, 0, 0, 0,
		'a', 'b', 'c', 0,
	}
	table, err := Parse("x.STRINGS", KindStrings, data, nil)
	require.NoError(t, err)
	require.Equal(t, Table{7: "abc", 9: "abc"}, table)

	t.Run("offset past data", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[12] = 8
		_, err := Parse("x.STRINGS", KindStrings, bad, nil)
		require.ErrorIs(t, err, errs.ErrInvalidStringTable)
	})

	t.Run("directory past file", func(t *testing.T) {
		_, err := Parse("x.STRINGS", KindStrings, data[:20], nil)
		require.ErrorIs(t, err, errs.ErrInvalidStringTable)
	})

	t.Run("length prefix past data", func(t *testing.T) {
		dl := []byte{
			1, 0, 0, 0, 6, 0, 0, 0,
			3, 0, 0, 0, 0, 0, 0, 0,
			9, 0, 0, 0, 'h', 0,
		}
		_, err := Parse("x.DLSTRINGS", KindDLStrings, dl, nil)
		require.ErrorIs(t, err, errs.ErrInvalidStringTable)
	})
}

func TestTable_Lookup(t *testing.T) {
	table := Table{5: "five"}
	table.Merge(Table{6: "six", 5: "FIVE"})

	s, ok := table.Lookup(5)
	require.True(t, ok)
	require.Equal(t, "FIVE", s)

	s, ok = table.Lookup(0)
	require.True(t, ok)
	require.Empty(t, s)

	_, ok = table.Lookup(99)
	require.False(t, ok)

	r := stream.NewReader("x.esp", []byte{99, 0, 0, 0})
	r.SetStringTable(table)
	text, id, err := r.ReadLString(4, "MISC.FULL")
	require.NoError(t, err)
	require.Equal(t, stream.LookupFailed, text)
	require.Equal(t, uint32(99), id)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(kind Kind, table Table) {
		data, err := Build(kind, table, nil)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "MyMod_english."+kind.String()), data, 0o600))
	}
	write(KindStrings, Table{1: "Iron Sword"})
	write(KindDLStrings, Table{2: "A plain sword."})

	table, err := Load(dir, "MyMod.esp", "english", nil)
	require.NoError(t, err)
	require.Equal(t, Table{1: "Iron Sword", 2: "A plain sword."}, table)

	empty, err := Load(dir, "Other.esp", "english", nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad_english.STRINGS"), []byte{1}, 0o600))
	_, err = Load(dir, "Bad.esm", "english", nil)
	require.ErrorIs(t, err, errs.ErrInvalidStringTable)
}
