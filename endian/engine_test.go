package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()
	require.Equal(t, binary.LittleEndian, engine)

	buf := engine.AppendUint32(nil, 0x04030201)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestSizeOf(t *testing.T) {
	require.Equal(t, 1, SizeOf[int8]())
	require.Equal(t, 2, SizeOf[uint16]())
	require.Equal(t, 4, SizeOf[int32]())
	require.Equal(t, 8, SizeOf[uint64]())
}

func TestGetAppend(t *testing.T) {
	t.Run("unsigned", func(t *testing.T) {
		buf := Append(nil, uint16(0xBEEF))
		buf = Append(buf, uint32(0xDEADBEEF))
		buf = Append(buf, uint64(1)<<40)
		require.Len(t, buf, 14)

		require.Equal(t, uint16(0xBEEF), Get[uint16](buf))
		require.Equal(t, uint32(0xDEADBEEF), Get[uint32](buf[2:]))
		require.Equal(t, uint64(1)<<40, Get[uint64](buf[6:]))
	})

	t.Run("signed", func(t *testing.T) {
		buf := Append(nil, int16(-2))
		buf = Append(buf, int8(-1))
		buf = Append(buf, int32(-100))

		require.Equal(t, []byte{0xFE, 0xFF}, buf[:2])
		require.Equal(t, int16(-2), Get[int16](buf))
		require.Equal(t, int8(-1), Get[int8](buf[2:]))
		require.Equal(t, int32(-100), Get[int32](buf[3:]))
	})
}
