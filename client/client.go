// Package client is the holder-side SDK: it keeps plaintext basket data in
// a local wallet, drives the oracle attestation flow and submits ledger
// operations over HTTP. The ledger itself only ever sees the hashes.
package client

import (
	"context"
	"crypto/rand"
	"fmt"

	"basketledger/internal/audit"
	"basketledger/internal/commitment"
	"basketledger/internal/holder"
	"basketledger/internal/ledger"
)

// Client connects to a ledger node via HTTP.
type Client struct {
	ledgerAddr string            // ledgerAddr is the ledger HTTP address (e.g. "127.0.0.1:8080")
	collector  *holder.Collector // collector gathers oracle attestations, nil until configured
}

// Wallet holds a holder address and the plaintext behind its baskets.
type Wallet struct {
	addr    ledger.Address                            // addr identifies the holder
	baskets map[commitment.Hash]commitment.BasketData // baskets tracks known plaintext by hash
}

// NewClient creates a client connected to a ledger node.
func NewClient(ledgerAddr string) *Client {
	return &Client{ledgerAddr: ledgerAddr}
}

// ConfigureOracles wires the client to the oracle endpoints it will query
// for reorg attestations.
func (c *Client) ConfigureOracles(endpoints []string, minOracles int) error {
	collector, err := holder.NewCollector(endpoints, minOracles, 0)
	if err != nil {
		return fmt.Errorf("configure oracles:\n%w", err)
	}

	c.collector = collector

	return nil
}

// NewWallet creates a wallet with a random holder address.
func NewWallet() (*Wallet, error) {
	var addr ledger.Address
	if _, err := rand.Read(addr[:]); err != nil {
		return nil, fmt.Errorf("generate address:\n%w", err)
	}

	return &Wallet{
		addr:    addr,
		baskets: make(map[commitment.Hash]commitment.BasketData),
	}, nil
}

// Address returns the wallet's holder address.
func (w *Wallet) Address() ledger.Address {
	return w.addr
}

// NewBasket creates fresh salted plaintext, remembers it and returns its
// commitment hash.
func (w *Wallet) NewBasket(tokenID string, value uint64) (commitment.Hash, error) {
	salt, err := commitment.NewSalt()
	if err != nil {
		return commitment.Hash{}, fmt.Errorf("generate salt:\n%w", err)
	}

	data := commitment.BasketData{Salt: salt, TokenID: tokenID, Value: value}
	hash := commitment.BasketHash(data)
	w.baskets[hash] = data

	return hash, nil
}

// Remember stores plaintext received out of band, rejecting data that does
// not hash to the claimed basket.
func (w *Wallet) Remember(basket commitment.Hash, data commitment.BasketData) error {
	if commitment.BasketHash(data) != basket {
		return fmt.Errorf("data does not hash to basket %s", basket)
	}

	w.baskets[basket] = data

	return nil
}

// Data returns the plaintext behind a basket, if known.
func (w *Wallet) Data(basket commitment.Hash) (commitment.BasketData, bool) {
	data, found := w.baskets[basket]
	return data, found
}

// Forget drops the plaintext for spent baskets.
func (w *Wallet) Forget(baskets ...commitment.Hash) {
	for _, basket := range baskets {
		delete(w.baskets, basket)
	}
}

// OracleConfig is the quorum configuration as served by the ledger.
type OracleConfig struct {
	MinNumberOfOracles int      `json:"minNumberOfOracles"` // MinNumberOfOracles is the quorum threshold
	Oracles            []string `json:"oracles"`            // Oracles are hex public keys
}

// GetOracleConfig fetches the ledger's oracle configuration.
func (c *Client) GetOracleConfig() (OracleConfig, error) {
	var cfg OracleConfig
	if err := httpGet(c.url("/oracle-config"), &cfg); err != nil {
		return OracleConfig{}, err
	}

	return cfg, nil
}

// OwnerInfo is the basket ownership record as served by the ledger.
type OwnerInfo struct {
	Basket commitment.Hash `json:"basket"` // Basket is the queried hash
	Owner  string          `json:"owner"`  // Owner is the hex holder address
	State  string          `json:"state"`  // State is the liveness state name
}

// GetOwner fetches a live basket's holder.
func (c *Client) GetOwner(basket commitment.Hash) (OwnerInfo, error) {
	var info OwnerInfo
	if err := httpGet(c.url("/owner?basket-hash="+basket.String()), &info); err != nil {
		return OwnerInfo{}, err
	}

	return info, nil
}

// TokenInfo is the token registry record as served by the ledger.
type TokenInfo struct {
	TokenID            string `json:"tokenId"`            // TokenID is the token identifier
	MasterDataRevision uint64 `json:"masterDataRevision"` // MasterDataRevision is the current revision
	MasterDataFp       string `json:"masterDataFp"`       // MasterDataFp is the hex fingerprint
	TotalSupplyBasket  string `json:"totalSupplyBasket"`  // TotalSupplyBasket is the hex supply commitment
}

// GetToken fetches a token's registry record.
func (c *Client) GetToken(tokenID string) (TokenInfo, error) {
	var info TokenInfo
	if err := httpGet(c.url("/token?token-id="+tokenID), &info); err != nil {
		return TokenInfo{}, err
	}

	return info, nil
}

// GetEvents fetches a page of the audit trail.
func (c *Client) GetEvents(from uint64, limit int) ([]audit.Event, error) {
	var events []audit.Event
	url := fmt.Sprintf("%s?from=%d&limit=%d", c.url("/events"), from, limit)

	if err := httpGet(url, &events); err != nil {
		return nil, err
	}

	return events, nil
}

// Reorg runs the full holder reorg flow: build the proposal from wallet
// plaintext, collect an oracle quorum and submit the signed transition.
// Spent inputs are forgotten, fresh outputs remembered.
func (c *Client) Reorg(ctx context.Context, wallet *Wallet, in []commitment.Hash, out []commitment.BasketData) error {
	if c.collector == nil {
		return fmt.Errorf("no oracles configured")
	}

	inData := make([]commitment.BasketData, len(in))
	for i, basket := range in {
		data, found := wallet.Data(basket)
		if !found {
			return fmt.Errorf("no plaintext for input basket %s", basket)
		}

		inData[i] = data
	}

	proposal := holder.BuildProposal(inData, out)

	sigs, err := c.collector.Collect(ctx, proposal)
	if err != nil {
		return fmt.Errorf("collect attestations:\n%w", err)
	}

	outHashes := make([]commitment.Hash, len(out))
	for i, data := range out {
		outHashes[i] = commitment.BasketHash(data)
	}

	if err := c.submitReorg(wallet.addr, sigs, in, outHashes); err != nil {
		return err
	}

	wallet.Forget(in...)

	for i, data := range out {
		wallet.baskets[outHashes[i]] = data
	}

	return nil
}
