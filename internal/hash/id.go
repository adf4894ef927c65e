package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Record computes the digest of a record: its type followed by each part
// in order.
func Record(sig [4]byte, parts ...[]byte) uint64 {
	d := xxhash.New()
	_, _ = d.Write(sig[:])
	for _, p := range parts {
		_, _ = d.Write(p)
	}

	return d.Sum64()
}
