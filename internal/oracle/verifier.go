package oracle

import (
	"errors"
	"fmt"
	"math"

	"basketledger/internal/commitment"
)

// Verification errors returned to the proposing holder. Nothing about a
// rejected proposal is retained after the call returns.
var (
	// ErrHashMismatch means a claimed basket hash does not match its
	// plaintext triple.
	ErrHashMismatch = errors.New("basket hash mismatch")

	// ErrConservationViolation means per-token value totals differ
	// between the input and output side of a proposal.
	ErrConservationViolation = errors.New("value conservation violation")
)

// Entry pairs a claimed basket hash with its plaintext triple.
type Entry struct {
	Basket commitment.Hash       `json:"basket"` // Basket is the claimed commitment hash
	Data   commitment.BasketData `json:"data"`   // Data is the plaintext triple
}

// Proposal is one reorg verification request: the baskets being consumed
// and the baskets replacing them, with plaintext attached to each.
type Proposal struct {
	In  []Entry `json:"in"`  // In lists the baskets being consumed
	Out []Entry `json:"out"` // Out lists the baskets being created
}

// Hashes returns the ordered hash lists of both sides.
func (p *Proposal) Hashes() (in, out []commitment.Hash) {
	in = make([]commitment.Hash, len(p.In))
	for i, e := range p.In {
		in[i] = e.Basket
	}

	out = make([]commitment.Hash, len(p.Out))
	for i, e := range p.Out {
		out[i] = e.Basket
	}

	return in, out
}

// Digest returns the canonical digest an attestation signs.
func (p *Proposal) Digest() commitment.Hash {
	in, out := p.Hashes()
	return commitment.ReorgDigest(in, out)
}

// VerifyProposal checks a proposal without signing it.
// The decision is deterministic given identical input: structural checks,
// then hash recomputation per entry, then per-token conservation.
func VerifyProposal(p *Proposal) error {
	if len(p.In) == 0 || len(p.Out) == 0 {
		return fmt.Errorf("proposal must consume and create at least one basket")
	}

	if err := checkDistinctHashes(p); err != nil {
		return err
	}

	if err := checkHashes(p); err != nil {
		return err
	}

	return checkConservation(p)
}

// checkDistinctHashes rejects proposals reusing a hash anywhere, on either
// side or across sides.
func checkDistinctHashes(p *Proposal) error {
	seen := make(map[commitment.Hash]bool, len(p.In)+len(p.Out))

	for _, e := range p.In {
		if seen[e.Basket] {
			return fmt.Errorf("duplicate basket %s in proposal", e.Basket)
		}
		seen[e.Basket] = true
	}

	for _, e := range p.Out {
		if seen[e.Basket] {
			return fmt.Errorf("duplicate basket %s in proposal", e.Basket)
		}
		seen[e.Basket] = true
	}

	return nil
}

// checkHashes recomputes every claimed hash from its plaintext triple.
// This is what stops a holder lying about a basket's content.
func checkHashes(p *Proposal) error {
	for _, e := range p.In {
		if commitment.BasketHash(e.Data) != e.Basket {
			return fmt.Errorf("%w: input basket %s", ErrHashMismatch, e.Basket)
		}
	}

	for _, e := range p.Out {
		if commitment.BasketHash(e.Data) != e.Basket {
			return fmt.Errorf("%w: output basket %s", ErrHashMismatch, e.Basket)
		}
	}

	return nil
}

// checkConservation verifies that per-token value totals match exactly
// across the two sides, for every token appearing on either side.
func checkConservation(p *Proposal) error {
	inSums, err := sumByToken(p.In)
	if err != nil {
		return err
	}

	outSums, err := sumByToken(p.Out)
	if err != nil {
		return err
	}

	for tokenID, inSum := range inSums {
		if outSums[tokenID] != inSum {
			return fmt.Errorf("%w: token %q in=%d out=%d",
				ErrConservationViolation, tokenID, inSum, outSums[tokenID])
		}
	}

	// Tokens only present on the output side mint value from nothing.
	for tokenID, outSum := range outSums {
		if _, ok := inSums[tokenID]; !ok {
			return fmt.Errorf("%w: token %q in=0 out=%d",
				ErrConservationViolation, tokenID, outSum)
		}
	}

	return nil
}

// sumByToken totals values per tokenId, rejecting uint64 overflow.
func sumByToken(entries []Entry) (map[string]uint64, error) {
	sums := make(map[string]uint64)

	for _, e := range entries {
		if sums[e.Data.TokenID] > math.MaxUint64-e.Data.Value {
			return nil, fmt.Errorf("%w: token %q value sum overflows",
				ErrConservationViolation, e.Data.TokenID)
		}

		sums[e.Data.TokenID] += e.Data.Value
	}

	return sums, nil
}

// Signer is one oracle instance: a verification procedure bound to a key.
type Signer struct {
	key *KeyPair // key signs attestations
}

// NewSigner creates a Signer around the given key pair.
func NewSigner(key *KeyPair) *Signer {
	return &Signer{key: key}
}

// PublicKeyBytes returns the signer's compressed public key.
func (s *Signer) PublicKeyBytes() []byte {
	return s.key.PublicKeyBytes()
}

// Attest verifies a proposal and, if valid, signs its canonical digest.
// A rejected proposal yields no signature and leaves no trace.
func (s *Signer) Attest(p *Proposal) ([]byte, error) {
	if err := VerifyProposal(p); err != nil {
		return nil, err
	}

	digest := p.Digest()

	return s.key.Sign(digest[:]), nil
}
