// Package basketstore implements the off-chain collaborator holding
// plaintext basket triples and master-data history. The ledger never talks
// to it; holders resolve plaintext here before asking oracles to attest.
package basketstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"basketledger/internal/commitment"
	"basketledger/internal/storage"
)

// Storage key prefixes. Plaintext keys are "p:" + 32-byte basket hash;
// history keys are "h:" + length-prefixed tokenId + 8-byte revision.
var (
	plaintextKeyPrefix = []byte("p:")
	historyKeyPrefix   = []byte("h:")
)

// HistoryEntry is one master-data revision as stored and served.
type HistoryEntry struct {
	Revision    uint64          `json:"revision"`    // Revision is 1-based and dense
	Fingerprint commitment.Hash `json:"fingerprint"` // Fingerprint is the canonical payload hash
	Data        json.RawMessage `json:"data"`        // Data is the payload itself
}

// Store persists plaintext basket data and per-token master-data history.
// Access control is deliberately absent here; it is a separately specified
// concern layered in front of the store.
type Store struct {
	mu sync.Mutex       // mu serializes revision assignment per append
	db *storage.Storage // db is the backing key-value store
}

// New creates a store over the given storage.
func New(db *storage.Storage) *Store {
	return &Store{db: db}
}

// Put stores the plaintext triple for a basket hash. The data must hash to
// the key it is stored under; a mismatch is rejected so the store never
// serves plaintext that contradicts the commitment.
func (s *Store) Put(basket commitment.Hash, data commitment.BasketData) error {
	if commitment.BasketHash(data) != basket {
		return fmt.Errorf("data does not hash to basket %s", basket)
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal basket data:\n%w", err)
	}

	return s.db.Set(plaintextKey(basket), encoded)
}

// Get retrieves the plaintext triple for a basket hash.
// Returns found=false when absent.
func (s *Store) Get(basket commitment.Hash) (commitment.BasketData, bool, error) {
	value, err := s.db.Get(plaintextKey(basket))
	if err != nil {
		return commitment.BasketData{}, false, fmt.Errorf("read basket %s:\n%w", basket, err)
	}

	if value == nil {
		return commitment.BasketData{}, false, nil
	}

	var data commitment.BasketData
	if err := json.Unmarshal(value, &data); err != nil {
		return commitment.BasketData{}, false, fmt.Errorf("decode basket %s:\n%w", basket, err)
	}

	return data, true, nil
}

// AppendMasterData appends the next master-data revision for a token,
// fingerprinting the payload canonically.
func (s *Store) AppendMasterData(tokenID string, payload json.RawMessage) (HistoryEntry, error) {
	if tokenID == "" {
		return HistoryEntry{}, fmt.Errorf("empty tokenId")
	}

	fp, err := commitment.Fingerprint(payload)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("fingerprint payload:\n%w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.historyLocked(tokenID)
	if err != nil {
		return HistoryEntry{}, err
	}

	entry := HistoryEntry{
		Revision:    uint64(len(history)) + 1,
		Fingerprint: fp,
		Data:        payload,
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("marshal history entry:\n%w", err)
	}

	if err := s.db.Set(historyKey(tokenID, entry.Revision), encoded); err != nil {
		return HistoryEntry{}, fmt.Errorf("store history entry:\n%w", err)
	}

	return entry, nil
}

// History returns a token's master-data revisions in ascending order.
func (s *Store) History(tokenID string) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.historyLocked(tokenID)
}

// historyLocked reads the history under the lock.
func (s *Store) historyLocked(tokenID string) ([]HistoryEntry, error) {
	var entries []HistoryEntry

	err := s.db.IteratePrefix(historyPrefix(tokenID), func(key, value []byte) error {
		var entry HistoryEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("decode history entry:\n%w", err)
		}

		entries = append(entries, entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// plaintextKey builds the storage key for a basket's plaintext.
func plaintextKey(basket commitment.Hash) []byte {
	key := make([]byte, len(plaintextKeyPrefix)+commitment.HashSize)
	copy(key, plaintextKeyPrefix)
	copy(key[len(plaintextKeyPrefix):], basket[:])

	return key
}

// historyPrefix builds the shared key prefix of one token's history.
// The tokenId is length-prefixed so tokens cannot alias each other's range.
func historyPrefix(tokenID string) []byte {
	key := make([]byte, len(historyKeyPrefix)+4+len(tokenID))
	copy(key, historyKeyPrefix)
	binary.BigEndian.PutUint32(key[len(historyKeyPrefix):], uint32(len(tokenID)))
	copy(key[len(historyKeyPrefix)+4:], tokenID)

	return key
}

// historyKey builds the storage key for one revision. Big-endian revision
// bytes keep prefix iteration in ascending revision order.
func historyKey(tokenID string, revision uint64) []byte {
	prefix := historyPrefix(tokenID)

	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], revision)

	return key
}
