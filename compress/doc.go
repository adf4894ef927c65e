// Package compress provides the compression codecs used by plugin records and
// archives.
//
// # Supported Algorithms
//
// **Zlib** (format.CompressionZlib): record bodies flagged compressed, and
// entries of version 103/104 archives. Records are written at level 6.
//
// **LZ4** (format.CompressionLZ4): LZ4 frames, used by version 105 archives.
//
// # Sized Payloads
//
// Compressed record bodies and archive entries share one layout: the
// uncompressed length as a little-endian u32 followed by the compressed
// stream. PackSized and UnpackSized produce and check that layout;
// UnpackSized fails with errs.ErrSizeMismatch when the inflated length
// disagrees with the prefix. Both codecs stop inflating one byte past the
// prefixed size.
//
//	body, _ := compress.PackSized(compress.NewZlibCompressor(6), data)
//	data, err := compress.UnpackSized(compress.NewZlibCompressor(6), body)
//
// # Thread Safety
//
// All codecs are safe for concurrent use; writers are pooled internally.
package compress
