// Package audit emits the ledger's append-only state-change events for
// external indexers. The ledger writes events but never reads them back;
// readers are the export and range APIs only.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"basketledger/internal/commitment"
	"basketledger/internal/storage"
)

// eventKeyPrefix is the storage key prefix for audit events.
var eventKeyPrefix = []byte("e:")

// Kind names one ledger mutation type.
type Kind string

// Event kinds, one per successful ledger mutation.
const (
	KindCreateToken        Kind = "CreateToken"
	KindUpdateMasterData   Kind = "UpdateMasterData"
	KindMint               Kind = "Mint"
	KindTransfer           Kind = "Transfer"
	KindReorgHolderBaskets Kind = "ReorgHolderBaskets"
	KindReorgSupplyBaskets Kind = "ReorgSupplyBaskets"
	KindBurn               Kind = "Burn"
)

// Event is one audit trail entry. Hash lists carry commitments only;
// plaintext values never reach the log.
type Event struct {
	Seq        uint64            `json:"seq"`                  // Seq is the append position
	Time       time.Time         `json:"time"`                 // Time is the commit timestamp
	Kind       Kind              `json:"kind"`                 // Kind names the mutation
	Actor      string            `json:"actor"`                // Actor is the initiating identity, hex
	TokenID    string            `json:"tokenId,omitempty"`    // TokenID is set for token-level mutations
	Baskets    []commitment.Hash `json:"baskets,omitempty"`    // Baskets are the consumed/affected hashes
	BasketsOut []commitment.Hash `json:"basketsOut,omitempty"` // BasketsOut are the created hashes (reorgs)
	Receiver   string            `json:"receiver,omitempty"`   // Receiver is the new owner, hex (mint/transfer)
	Revision   uint64            `json:"revision,omitempty"`   // Revision is the new master-data revision
	Ref        string            `json:"ref,omitempty"`        // Ref is the caller's opaque correlation value
}

// Log is the append-only event log, sharing the ledger's storage so event
// writes commit in the same atomic batch as the state transition they record.
type Log struct {
	db   *storage.Storage // db is the backing store
	next atomic.Uint64    // next is the sequence number of the next event
}

// Open creates a Log over the given storage, resuming the sequence after
// the last persisted event.
func Open(db *storage.Storage) (*Log, error) {
	l := &Log{db: db}

	var last uint64
	var found bool

	err := db.IteratePrefix(eventKeyPrefix, func(key, value []byte) error {
		if len(key) == len(eventKeyPrefix)+8 {
			last = binary.BigEndian.Uint64(key[len(eventKeyPrefix):])
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit log:\n%w", err)
	}

	if found {
		l.next.Store(last + 1)
	}

	return l, nil
}

// Stage assigns the event a sequence number and timestamp and stages its
// write into the batch. The event only becomes visible when the caller
// commits the batch; a discarded batch burns the sequence number, which an
// append-only log tolerates.
func (l *Log) Stage(batch *storage.Batch, event *Event) error {
	event.Seq = l.next.Add(1) - 1
	event.Time = time.Now().UTC()

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event:\n%w", err)
	}

	return batch.Set(eventKey(event.Seq), encoded)
}

// Range returns up to limit events starting at sequence from, in order.
func (l *Log) Range(from uint64, limit int) ([]Event, error) {
	var events []Event

	err := l.db.IteratePrefix(eventKeyPrefix, func(key, value []byte) error {
		if len(key) != len(eventKeyPrefix)+8 {
			return nil
		}

		seq := binary.BigEndian.Uint64(key[len(eventKeyPrefix):])
		if seq < from {
			return nil
		}

		if limit > 0 && len(events) >= limit {
			return errRangeDone
		}

		var event Event
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode event %d:\n%w", seq, err)
		}

		events = append(events, event)

		return nil
	})
	if err != nil && err != errRangeDone {
		return nil, err
	}

	return events, nil
}

// Len returns the number of sequence numbers issued so far.
func (l *Log) Len() uint64 {
	return l.next.Load()
}

// errRangeDone stops prefix iteration once the range limit is reached.
var errRangeDone = fmt.Errorf("range done")

// eventKey builds the storage key for a sequence number.
func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventKeyPrefix)+8)
	copy(key, eventKeyPrefix)
	binary.BigEndian.PutUint64(key[len(eventKeyPrefix):], seq)

	return key
}
