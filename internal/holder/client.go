package holder

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"basketledger/internal/commitment"
	"basketledger/internal/ledger"
	"basketledger/internal/oracle"
)

// oracleClient performs attestation requests against oracle endpoints.
type oracleClient struct {
	http *http.Client
}

// newOracleClient creates an oracle HTTP client.
func newOracleClient() *oracleClient {
	return &oracleClient{
		http: &http.Client{},
	}
}

// requestAttestation posts the proposal to one oracle and decodes its
// attestation.
func (c *oracleClient) requestAttestation(ctx context.Context, endpoint string, proposal *oracle.Proposal) (*ledger.Signature, error) {
	var resp oracle.AttestResponse
	if err := postJSON(ctx, c.http, endpoint+"/reorg", proposal, &resp); err != nil {
		return nil, err
	}

	sig, err := hex.DecodeString(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature hex:\n%w", err)
	}

	signer, err := hex.DecodeString(resp.Signer)
	if err != nil {
		return nil, fmt.Errorf("decode signer hex:\n%w", err)
	}

	return &ledger.Signature{Signer: signer, Sig: sig}, nil
}

// StoreResolver resolves plaintext triples from a basket data store over
// HTTP. The store itself decides who may read; this client carries no
// credentials.
type StoreResolver struct {
	baseURL string
	http    *http.Client
}

// NewStoreResolver creates a resolver against the given store base URL.
func NewStoreResolver(baseURL string) *StoreResolver {
	return &StoreResolver{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// storeEntry is the store's wire shape for one basket.
type storeEntry struct {
	Basket commitment.Hash       `json:"basket"`
	Data   commitment.BasketData `json:"data"`
}

// Resolve fetches the plaintext triple for a basket hash.
// Returns found=false when the store has no entry.
func (r *StoreResolver) Resolve(ctx context.Context, basket commitment.Hash) (commitment.BasketData, bool, error) {
	target := r.baseURL + "/basket?basket-hash=" + url.QueryEscape(basket.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return commitment.BasketData{}, false, fmt.Errorf("build request:\n%w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return commitment.BasketData{}, false, fmt.Errorf("GET basket:\n%w", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return commitment.BasketData{}, false, nil
	}

	if resp.StatusCode != http.StatusOK {
		return commitment.BasketData{}, false, fmt.Errorf("GET basket: status %d", resp.StatusCode)
	}

	var entry storeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return commitment.BasketData{}, false, fmt.Errorf("decode basket entry:\n%w", err)
	}

	return entry.Data, true, nil
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into result.
func postJSON(ctx context.Context, client *http.Client, target string, body, result any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body:\n%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", target, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("POST %s: status %d: %s", target, resp.StatusCode, payload)
	}

	if result == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
