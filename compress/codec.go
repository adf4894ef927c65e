package compress

import (
	"fmt"
	"io"

	"github.com/arloliu/espcodec/endian"
	"github.com/arloliu/espcodec/errs"
	"github.com/arloliu/espcodec/format"
)

// Compressor compresses a complete payload.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Implementations return an error for corrupted input or input produced by a
// different algorithm. They must be safe for concurrent use.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// LimitDecompressor is a Decompressor that can stop after limit output
// bytes, so a stream claiming a small size cannot inflate without bound.
type LimitDecompressor interface {
	Decompressor
	DecompressLimit(data []byte, limit int64) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionZlib: NewZlibCompressor(DefaultZlibLevel),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec returns the shared Codec for a compression type.
//
// Returns:
//   - Codec: Built-in codec, safe for concurrent use
//   - error: Unsupported compression type error
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// PackSized compresses data and prefixes the result with the uncompressed
// length as a little-endian u32. This is the layout of compressed record
// bodies and of compressed archive entries.
func PackSized(c Compressor, data []byte) ([]byte, error) {
	compressed, err := c.Compress(data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 4+len(compressed))
	out = endian.Append(out, uint32(len(data)))

	return append(out, compressed...), nil
}

// UnpackSized reverses PackSized. A LimitDecompressor inflates no more than
// one byte past the prefixed size.
//
// Returns:
//   - []byte: Decompressed payload
//   - error: errs.ErrTruncatedRead if the size prefix is missing,
//     errs.ErrSizeMismatch if the payload length differs from the prefix
func UnpackSized(d Decompressor, body []byte) ([]byte, error) {
	if len(body) < 4 {
		return nil, errs.New(errs.ErrTruncatedRead, "", "", 0, "compressed body shorter than its size prefix")
	}
	want := endian.Get[uint32](body)

	var data []byte
	var err error
	if ld, ok := d.(LimitDecompressor); ok {
		// one byte past the prefix is enough to detect an oversized stream
		data, err = ld.DecompressLimit(body[4:], int64(want)+1)
	} else {
		data, err = d.Decompress(body[4:])
	}
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != want {
		return nil, errs.New(errs.ErrSizeMismatch, "", "", -1, "mis-sized compressed data, expected %d, got %d", want, len(data))
	}

	return data, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit < 0 {
		return io.ReadAll(r)
	}

	return io.ReadAll(io.LimitReader(r, limit))
}
