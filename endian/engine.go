// Package endian provides byte order utilities for binary encoding and decoding.
//
// Plugin and archive files are little-endian throughout. This package combines
// ByteOrder and AppendByteOrder into a single EndianEngine and adds generic
// integer helpers so fixed-width fields can be read and appended without a
// switch per width at every call site.
//
// # Basic Usage
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, size)
//
//	count := endian.Get[uint16](data[4:])
//	buf = endian.Append(buf, int16(-1))
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use.
package endian

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// SizeOf returns the encoded width in bytes of integer type T.
func SizeOf[T constraints.Integer]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Get decodes a little-endian integer of type T from the start of b.
// b must hold at least SizeOf[T]() bytes.
func Get[T constraints.Integer](b []byte) T {
	switch SizeOf[T]() {
	case 1:
		return T(b[0])
	case 2:
		return T(binary.LittleEndian.Uint16(b))
	case 4:
		return T(binary.LittleEndian.Uint32(b))
	case 8:
		return T(binary.LittleEndian.Uint64(b))
	}

	var zero T
	panic(fmt.Sprintf("unsupported integer type %T", zero))
}

// Append encodes v little-endian after dst.
func Append[T constraints.Integer](dst []byte, v T) []byte {
	switch SizeOf[T]() {
	case 1:
		return append(dst, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(v))
	case 4:
		return binary.LittleEndian.AppendUint32(dst, uint32(v))
	case 8:
		return binary.LittleEndian.AppendUint64(dst, uint64(v))
	}

	panic(fmt.Sprintf("unsupported integer type %T", v))
}
