// Package commitment implements the hash commitments that conceal basket
// contents: the basket hash binding (salt, tokenId, value), the canonical
// fingerprint over master-data payloads, and the reorg proposal digest.
package commitment

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

const (
	// HashSize is the size of a commitment hash in bytes.
	HashSize = 32

	// SaltSize is the size of a basket salt in bytes.
	SaltSize = 32
)

// Hash is a 32-byte BLAKE3 commitment identifier.
type Hash [HashSize]byte

// Salt is the high-entropy blinding value bound into a basket hash.
type Salt [SaltSize]byte

// BasketData is the plaintext triple concealed by a basket hash.
// It only ever exists off-chain; the ledger sees the hash alone.
type BasketData struct {
	Salt    Salt   `json:"salt"`    // Salt is the 32-byte blinding value
	TokenID string `json:"tokenId"` // TokenID identifies the fungibility class
	Value   uint64 `json:"value"`   // Value is the concealed amount
}

// BasketHash computes the commitment hash of a plaintext triple.
// Layout: salt[32] || len(tokenId) uint32 BE || tokenId || value uint64 BE.
// The tokenId length prefix removes concatenation ambiguity; the encoding
// must stay bit-exact across every implementation that addresses baskets.
func BasketHash(data BasketData) Hash {
	h := blake3.New()
	h.Write(data.Salt[:])

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data.TokenID)))
	h.Write(lenBuf[:])
	h.Write([]byte(data.TokenID))

	var valBuf [8]byte
	binary.BigEndian.PutUint64(valBuf[:], data.Value)
	h.Write(valBuf[:])

	var out Hash
	h.Sum(out[:0])

	return out
}

// ReorgDigest computes the canonical digest of a reorg proposal's hash lists.
// Layout: count(in) uint32 BE || in hashes || count(out) uint32 BE || out hashes,
// in the exact submitted order. Oracle signatures are made over this digest,
// so byte-exact reproduction on the ledger side is what makes them checkable.
func ReorgDigest(in, out []Hash) Hash {
	h := blake3.New()

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(in)))
	h.Write(countBuf[:])

	for _, basket := range in {
		h.Write(basket[:])
	}

	binary.BigEndian.PutUint32(countBuf[:], uint32(len(out)))
	h.Write(countBuf[:])

	for _, basket := range out {
		h.Write(basket[:])
	}

	var digest Hash
	h.Sum(digest[:0])

	return digest
}

// Fingerprint computes the canonical fingerprint of a structured payload.
// The payload is serialized canonically (compact, recursively sorted keys)
// and hashed; a fingerprint mismatch between producers is a protocol bug,
// never a business error.
func Fingerprint(payload any) (Hash, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return Hash{}, fmt.Errorf("canonicalize payload:\n%w", err)
	}

	return blake3.Sum256(canonical), nil
}

// NewSalt generates a fresh random salt.
func NewSalt() (Salt, error) {
	var s Salt
	if _, err := rand.Read(s[:]); err != nil {
		return Salt{}, fmt.Errorf("generate salt:\n%w", err)
	}

	return s, nil
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText encodes the hash as lowercase hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

// UnmarshalText decodes a hash from hex.
func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixedHex(h[:], text, "hash")
}

// MarshalText encodes the salt as lowercase hex.
func (s Salt) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s[:])), nil
}

// UnmarshalText decodes a salt from hex.
func (s *Salt) UnmarshalText(text []byte) error {
	return decodeFixedHex(s[:], text, "salt")
}

// ParseHash decodes a hash from its hex string form.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := decodeFixedHex(h[:], []byte(s), "hash"); err != nil {
		return Hash{}, err
	}

	return h, nil
}

// decodeFixedHex decodes hex text into dst, requiring an exact length match.
func decodeFixedHex(dst, text []byte, kind string) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode %s hex:\n%w", kind, err)
	}

	if len(raw) != len(dst) {
		return fmt.Errorf("invalid %s size: got %d, want %d", kind, len(raw), len(dst))
	}

	copy(dst, raw)

	return nil
}
