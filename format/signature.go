package format

import "fmt"

// Signature is the 4-byte type code naming a record, group, or subrecord.
type Signature [4]byte

var (
	SigGroup  = MustSignature("GRUP") // SigGroup marks a group header.
	SigEscape = MustSignature("XXXX") // SigEscape precedes a subrecord whose payload exceeds 0xFFFF bytes.
	SigHeader = MustSignature("TES4") // SigHeader is the plugin header record.
)

// ParseSignature converts a 4-character string to a Signature.
//
// Parameters:
//   - s: Exactly four bytes
//
// Returns:
//   - Signature: The type code
//   - error: If s is not four bytes long
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	if len(s) != len(sig) {
		return sig, fmt.Errorf("signature %q must be %d bytes", s, len(sig))
	}
	copy(sig[:], s)

	return sig, nil
}

// MustSignature is like ParseSignature but panics on a malformed string.
// It is intended for package-level schema declarations.
func MustSignature(s string) Signature {
	sig, err := ParseSignature(s)
	if err != nil {
		panic(err)
	}

	return sig
}

// SignatureFromUint32 reinterprets a little-endian u32 label as a Signature.
func SignatureFromUint32(v uint32) Signature {
	return Signature{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Uint32 returns the little-endian u32 form of the signature.
func (s Signature) Uint32() uint32 {
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

func (s Signature) String() string {
	return string(s[:])
}
