package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	tests := []struct {
		name string
		data string
		id   uint64
	}{
		{"empty string", "", 0xef46db3751d8e999},
		{"short string", "test", 0x4fdcca5ddb678139},
		{"long string", "this is a longer test string to hash", 0x69275f7f7ee59dbd},
		{"another string", "another test string", 0x212a22f593810bec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.id, ID(tt.data))
		})
	}
}

func TestRecord(t *testing.T) {
	sig := [4]byte{'M', 'I', 'S', 'C'}
	body := []byte("eid=\"Gem\";")

	require.Equal(t, ID("MISC"+string(body)), Record(sig, body))
	require.Equal(t, Record(sig, body), Record(sig, body[:4], body[4:]))
	require.NotEqual(t, Record(sig, body), Record([4]byte{'W', 'E', 'A', 'P'}, body))
}
