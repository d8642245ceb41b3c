// Package object defines the identifiers, the closed type enum, and the
// raw-byte parsers for the four plain Git object kinds.
//
// Everything in this package operates on fully materialised object bytes;
// locating and inflating those bytes from a pack is the job of package
// packfile.
package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Hash is a raw Git object identifier: the 20-byte binary form of the
// SHA-1 digest over the object's type-prefixed representation.
//
// The zero value is the all-zero hash, which never names a real object and
// is therefore safe to use as a sentinel.
type Hash [20]byte

// ParseHash converts the canonical 40-character hexadecimal spelling into
// its raw 20-byte form.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 40 {
		return h, fmt.Errorf("invalid hash length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// String returns the lowercase hex expansion of h.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == Hash{} }

// Compare orders hashes byte-wise, first byte most significant. The result
// follows the bytes.Compare convention.
func (h Hash) Compare(other Hash) int { return bytes.Compare(h[:], other[:]) }
