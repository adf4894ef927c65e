package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer_Write(t *testing.T) {
	bb := NewByteBuffer(4)
	require.Equal(t, 0, bb.Len())
	require.Equal(t, 4, cap(bb.B))

	n, err := bb.Write([]byte("TES4\x00"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("TES4\x00"), bb.Bytes())

	var out bytes.Buffer
	written, err := bb.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(5), written)
	require.Equal(t, "TES4\x00", out.String())

	bb.Reset()
	require.Equal(t, 0, bb.Len())
	require.GreaterOrEqual(t, cap(bb.B), 5)
}

func TestByteBuffer_Grow(t *testing.T) {
	t.Run("sufficient capacity", func(t *testing.T) {
		bb := NewByteBuffer(64)
		bb.Grow(32)
		require.Equal(t, 64, cap(bb.B))
	})

	t.Run("small buffer grows by default size", func(t *testing.T) {
		bb := NewByteBuffer(8)
		_, _ = bb.Write([]byte{1, 2, 3})
		bb.Grow(16)
		require.Equal(t, 3+RecordBufferDefaultSize, cap(bb.B))
		require.Equal(t, []byte{1, 2, 3}, bb.Bytes())
	})

	t.Run("large request", func(t *testing.T) {
		bb := NewByteBuffer(8)
		bb.Grow(RecordBufferDefaultSize * 2)
		require.Equal(t, RecordBufferDefaultSize*2, cap(bb.B))
	})
}

func TestByteBufferPool(t *testing.T) {
	p := NewByteBufferPool(16, 64)

	bb := p.Get()
	require.NotNil(t, bb)
	_, _ = bb.Write([]byte("data"))
	p.Put(bb)

	reused := p.Get()
	require.Equal(t, 0, reused.Len())

	big := NewByteBuffer(128)
	p.Put(big) // dropped, over threshold
	p.Put(nil)
}

func TestDefaultPools(t *testing.T) {
	rb := GetRecordBuffer()
	require.NotNil(t, rb)
	require.Equal(t, 0, rb.Len())
	PutRecordBuffer(rb)

	pb := GetPluginBuffer()
	require.NotNil(t, pb)
	PutPluginBuffer(pb)
}
