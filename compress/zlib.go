package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// DefaultZlibLevel is the level the game tools write record bodies with.
const DefaultZlibLevel = 6

// ZlibCompressor provides zlib (RFC 1950) compression for record bodies and
// version 103/104 archive entries.
type ZlibCompressor struct {
	level int
	pool  *sync.Pool
}

var (
	_ Codec             = (*ZlibCompressor)(nil)
	_ LimitDecompressor = (*ZlibCompressor)(nil)
)

var zlibWriterPools sync.Map // level -> *sync.Pool of *zlib.Writer

// NewZlibCompressor creates a zlib compressor writing at the given level.
//
// Parameters:
//   - level: zlib level, 0-9; out of range values fall back to DefaultZlibLevel
//
// Returns:
//   - ZlibCompressor: New zlib compressor instance
func NewZlibCompressor(level int) ZlibCompressor {
	if level < zlib.NoCompression || level > zlib.BestCompression {
		level = DefaultZlibLevel
	}
	p, _ := zlibWriterPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			w, err := zlib.NewWriterLevel(io.Discard, level)
			if err != nil {
				panic(fmt.Sprintf("failed to create zlib writer for pool: %v", err))
			}

			return w
		},
	})

	return ZlibCompressor{level: level, pool: p.(*sync.Pool)}
}

// Level returns the compression level.
func (c ZlibCompressor) Level() int {
	return c.level
}

// Compress compresses data into a zlib stream using a pooled writer.
func (c ZlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 16)

	zw, _ := c.pool.Get().(*zlib.Writer)
	defer c.pool.Put(zw)
	zw.Reset(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream.
func (c ZlibCompressor) Decompress(data []byte) ([]byte, error) {
	return c.DecompressLimit(data, -1)
}

// DecompressLimit inflates at most limit bytes of a zlib stream. A negative
// limit reads the whole stream.
func (c ZlibCompressor) DecompressLimit(data []byte, limit int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	defer zr.Close()

	out, err := readLimited(zr, limit)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}

	return out, nil
}
