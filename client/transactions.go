package client

import (
	"encoding/hex"

	"basketledger/internal/commitment"
	"basketledger/internal/ledger"
)

// signatureWire is one oracle attestation on the wire, hex encoded.
type signatureWire struct {
	Signer string `json:"signer"`
	Sig    string `json:"sig"`
}

// CreateToken registers a new token on the ledger.
func (c *Client) CreateToken(caller ledger.Address, tokenID string, supplyBasket, masterDataFp commitment.Hash, ref string) error {
	return httpPostJSON(c.url("/token/create"), map[string]any{
		"caller":       caller,
		"tokenId":      tokenID,
		"supplyBasket": supplyBasket,
		"masterDataFp": masterDataFp,
		"ref":          ref,
	}, nil)
}

// UpdateMasterData advances a token's master-data revision.
func (c *Client) UpdateMasterData(caller ledger.Address, tokenID string, fromRevision uint64, fromFp, toFp commitment.Hash, ref string) error {
	return httpPostJSON(c.url("/token/master-data"), map[string]any{
		"caller":       caller,
		"tokenId":      tokenID,
		"fromRevision": fromRevision,
		"fromFp":       fromFp,
		"toFp":         toFp,
		"ref":          ref,
	}, nil)
}

// Mint assigns supply-pool baskets to a receiver.
func (c *Client) Mint(caller ledger.Address, baskets []commitment.Hash, receiver ledger.Address, ref string) error {
	return httpPostJSON(c.url("/mint"), map[string]any{
		"caller":   caller,
		"baskets":  baskets,
		"receiver": receiver,
		"ref":      ref,
	}, nil)
}

// Transfer reassigns caller-owned baskets to a receiver.
func (c *Client) Transfer(caller ledger.Address, baskets []commitment.Hash, receiver ledger.Address, ref string) error {
	return httpPostJSON(c.url("/transfer"), map[string]any{
		"caller":   caller,
		"baskets":  baskets,
		"receiver": receiver,
		"ref":      ref,
	}, nil)
}

// Burn destroys caller-owned baskets.
func (c *Client) Burn(caller ledger.Address, baskets []commitment.Hash, ref string) error {
	return httpPostJSON(c.url("/burn"), map[string]any{
		"caller":  caller,
		"baskets": baskets,
		"ref":     ref,
	}, nil)
}

// submitReorg posts a quorum-signed holder reorg.
func (c *Client) submitReorg(caller ledger.Address, sigs []ledger.Signature, in, out []commitment.Hash) error {
	wire := make([]signatureWire, len(sigs))
	for i, sig := range sigs {
		wire[i] = signatureWire{
			Signer: hex.EncodeToString(sig.Signer),
			Sig:    hex.EncodeToString(sig.Sig),
		}
	}

	return httpPostJSON(c.url("/reorg/holder"), map[string]any{
		"caller":     caller,
		"signatures": wire,
		"basketsIn":  in,
		"basketsOut": out,
	}, nil)
}
