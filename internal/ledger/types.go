// Package ledger implements the commitment ledger's state-transition
// engine: which basket commitments are live, who owns them, in which pool
// they sit, and the token registry's master-data revision chain. The
// ledger never sees the plaintext salt or value behind a hash.
package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"basketledger/internal/commitment"
)

// AddressSize is the size of a holder address in bytes.
const AddressSize = 32

// Address identifies a holder.
type Address [AddressSize]byte

// String returns the hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText encodes the address as lowercase hex.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(a[:])), nil
}

// UnmarshalText decodes an address from hex.
func (a *Address) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode address hex:\n%w", err)
	}

	if len(raw) != AddressSize {
		return fmt.Errorf("invalid address size: got %d, want %d", len(raw), AddressSize)
	}

	copy(a[:], raw)

	return nil
}

// BasketState is the liveness state of one basket hash.
// A hash only ever moves forward: Unknown → LiveSupply|LiveHolder → Spent.
// Spent is terminal; a spent hash never becomes live again, even when
// resubmitted with identical plaintext.
type BasketState uint8

const (
	// StateUnknown means the hash has never been seen.
	StateUnknown BasketState = iota

	// StateLiveSupply means the basket sits in the supply pool,
	// unassigned and available to mint.
	StateLiveSupply

	// StateLiveHolder means the basket is assigned to a holder.
	StateLiveHolder

	// StateSpent means the basket was consumed. Terminal.
	StateSpent
)

// String returns the state name.
func (s BasketState) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateLiveSupply:
		return "LiveSupply"
	case StateLiveHolder:
		return "LiveHolder"
	case StateSpent:
		return "Spent"
	default:
		return fmt.Sprintf("BasketState(%d)", uint8(s))
	}
}

// basketRecord is the per-hash entry in the ownership map.
type basketRecord struct {
	State BasketState // State is the current liveness state
	Owner Address     // Owner is set only for StateLiveHolder
}

// basketRecordSize is the encoded size: 1 state byte + 32 owner bytes.
const basketRecordSize = 1 + AddressSize

// encode serializes the record into its fixed storage layout.
func (r basketRecord) encode() []byte {
	buf := make([]byte, basketRecordSize)
	buf[0] = byte(r.State)
	copy(buf[1:], r.Owner[:])

	return buf
}

// decodeBasketRecord parses a stored basket record.
func decodeBasketRecord(data []byte) (basketRecord, error) {
	if len(data) != basketRecordSize {
		return basketRecord{}, fmt.Errorf("invalid basket record size: %d", len(data))
	}

	var r basketRecord
	r.State = BasketState(data[0])
	copy(r.Owner[:], data[1:])

	return r, nil
}

// TokenRecord is the registry entry for one tokenId.
type TokenRecord struct {
	Revision     uint64          // Revision starts at 1 and increments per master-data update
	MasterDataFp commitment.Hash // MasterDataFp fingerprints the current master-data payload
	SupplyBasket commitment.Hash // SupplyBasket is the total-supply commitment from createToken
}

// tokenRecordSize is the encoded size: 8 revision + 32 fp + 32 supply hash.
const tokenRecordSize = 8 + commitment.HashSize + commitment.HashSize

// encode serializes the record into its fixed storage layout.
func (r TokenRecord) encode() []byte {
	buf := make([]byte, tokenRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], r.Revision)
	copy(buf[8:40], r.MasterDataFp[:])
	copy(buf[40:72], r.SupplyBasket[:])

	return buf
}

// decodeTokenRecord parses a stored token record.
func decodeTokenRecord(data []byte) (TokenRecord, error) {
	if len(data) != tokenRecordSize {
		return TokenRecord{}, fmt.Errorf("invalid token record size: %d", len(data))
	}

	var r TokenRecord
	r.Revision = binary.BigEndian.Uint64(data[0:8])
	copy(r.MasterDataFp[:], data[8:40])
	copy(r.SupplyBasket[:], data[40:72])

	return r, nil
}

// Storage key prefixes. Basket keys are "b:" + 32-byte hash, token keys
// "t:" + tokenId bytes; the audit log owns the "e:" prefix.
var (
	basketKeyPrefix = []byte("b:")
	tokenKeyPrefix  = []byte("t:")
)

// basketKey builds the storage key for a basket hash.
func basketKey(h commitment.Hash) []byte {
	key := make([]byte, len(basketKeyPrefix)+commitment.HashSize)
	copy(key, basketKeyPrefix)
	copy(key[len(basketKeyPrefix):], h[:])

	return key
}

// tokenKey builds the storage key for a tokenId.
func tokenKey(tokenID string) []byte {
	key := make([]byte, len(tokenKeyPrefix)+len(tokenID))
	copy(key, tokenKeyPrefix)
	copy(key[len(tokenKeyPrefix):], tokenID)

	return key
}
