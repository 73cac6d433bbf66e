package ledger

import (
	"fmt"

	"basketledger/internal/commitment"
	"basketledger/internal/oracle"
)

// QuorumConfig holds the authorized oracle signing keys and the minimum
// number of distinct attestations a reorg needs. It is fixed for the life
// of a ledger instance; rotation would be a governed operation, not a
// mutation of this value.
type QuorumConfig struct {
	minOracles int             // minOracles is the required distinct-signer count
	oracles    [][]byte        // oracles are the compressed BLS public keys, in configured order
	index      map[string]bool // index answers membership checks
}

// Signature is one oracle attestation as submitted to the ledger.
type Signature struct {
	Signer []byte // Signer is the oracle's compressed BLS public key
	Sig    []byte // Sig is the BLS signature over the reorg digest
}

// NewQuorumConfig validates and builds an oracle quorum configuration.
// Keys must be well-formed, distinct, and at least minOracles many.
func NewQuorumConfig(minOracles int, oracles [][]byte) (*QuorumConfig, error) {
	if minOracles < 1 {
		return nil, fmt.Errorf("min oracles must be at least 1, got %d", minOracles)
	}

	if len(oracles) < minOracles {
		return nil, fmt.Errorf("%d oracles configured but %d required for quorum",
			len(oracles), minOracles)
	}

	index := make(map[string]bool, len(oracles))
	keys := make([][]byte, len(oracles))

	for i, pk := range oracles {
		if len(pk) != oracle.PublicKeySize {
			return nil, fmt.Errorf("oracle %d: invalid public key size %d", i, len(pk))
		}

		if index[string(pk)] {
			return nil, fmt.Errorf("oracle %d: duplicate public key", i)
		}

		index[string(pk)] = true
		keys[i] = append([]byte(nil), pk...)
	}

	return &QuorumConfig{
		minOracles: minOracles,
		oracles:    keys,
		index:      index,
	}, nil
}

// MinOracles returns the required distinct-signer count.
func (c *QuorumConfig) MinOracles() int {
	return c.minOracles
}

// Oracles returns copies of the configured public keys.
func (c *QuorumConfig) Oracles() [][]byte {
	keys := make([][]byte, len(c.oracles))
	for i, pk := range c.oracles {
		keys[i] = append([]byte(nil), pk...)
	}

	return keys
}

// Contains reports whether the public key is an authorized oracle.
func (c *QuorumConfig) Contains(publicKey []byte) bool {
	return c.index[string(publicKey)]
}

// CheckQuorum verifies the attestations over a reorg digest.
// Only valid signatures from distinct configured oracles count; repeats
// from the same signer count once. Returns ErrQuorumNotMet when the
// distinct count falls short.
func (c *QuorumConfig) CheckQuorum(digest commitment.Hash, sigs []Signature) error {
	signers := make(map[string]bool)

	for _, s := range sigs {
		if !c.index[string(s.Signer)] {
			continue
		}

		if !oracle.Verify(s.Sig, digest[:], s.Signer) {
			continue
		}

		signers[string(s.Signer)] = true
	}

	if len(signers) < c.minOracles {
		return fmt.Errorf("%w: %d distinct valid signers, need %d",
			ErrQuorumNotMet, len(signers), c.minOracles)
	}

	return nil
}
