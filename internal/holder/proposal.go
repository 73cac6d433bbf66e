// Package holder implements the holder-side workflow: resolving plaintext
// basket data, building reorg proposals, and collecting oracle attestations
// in parallel until a quorum of signatures is assembled.
package holder

import (
	"context"
	"fmt"

	"basketledger/internal/commitment"
	"basketledger/internal/oracle"
)

// Resolver resolves a basket hash to its plaintext triple. Implementations
// are injected; access control for the backing store is a separately
// specified concern.
type Resolver interface {
	Resolve(ctx context.Context, basket commitment.Hash) (commitment.BasketData, bool, error)
}

// BuildProposal assembles a reorg proposal from plaintext triples,
// computing each side's basket hashes in order.
func BuildProposal(in, out []commitment.BasketData) *oracle.Proposal {
	proposal := &oracle.Proposal{
		In:  make([]oracle.Entry, len(in)),
		Out: make([]oracle.Entry, len(out)),
	}

	for i, data := range in {
		proposal.In[i] = oracle.Entry{Basket: commitment.BasketHash(data), Data: data}
	}

	for i, data := range out {
		proposal.Out[i] = oracle.Entry{Basket: commitment.BasketHash(data), Data: data}
	}

	return proposal
}

// ResolveProposal builds a proposal for existing baskets by resolving each
// input hash through the resolver; outputs are fresh triples supplied by
// the holder.
func ResolveProposal(ctx context.Context, r Resolver, in []commitment.Hash, out []commitment.BasketData) (*oracle.Proposal, error) {
	inData := make([]commitment.BasketData, len(in))

	for i, basket := range in {
		data, found, err := r.Resolve(ctx, basket)
		if err != nil {
			return nil, fmt.Errorf("resolve basket %s:\n%w", basket, err)
		}

		if !found {
			return nil, fmt.Errorf("basket %s has no stored plaintext", basket)
		}

		if commitment.BasketHash(data) != basket {
			return nil, fmt.Errorf("stored plaintext for %s does not match its hash", basket)
		}

		inData[i] = data
	}

	return BuildProposal(inData, out), nil
}
