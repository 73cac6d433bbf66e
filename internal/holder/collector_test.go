package holder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"basketledger/internal/commitment"
	"basketledger/internal/oracle"
)

// data builds a deterministic plaintext triple.
func data(seed byte, tokenID string, value uint64) commitment.BasketData {
	var salt commitment.Salt
	for i := range salt {
		salt[i] = seed
	}

	return commitment.BasketData{Salt: salt, TokenID: tokenID, Value: value}
}

// balancedProposal returns a conserving 100 → 40+60 proposal.
func balancedProposal() *oracle.Proposal {
	return BuildProposal(
		[]commitment.BasketData{data(1, "gold", 100)},
		[]commitment.BasketData{data(2, "gold", 40), data(3, "gold", 60)},
	)
}

// startOracles spins up n oracle HTTP endpoints with fresh keys.
func startOracles(t *testing.T, n int) []string {
	t.Helper()

	endpoints := make([]string, n)

	for i := 0; i < n; i++ {
		key, err := oracle.GenerateKey()
		if err != nil {
			t.Fatalf("generate key %d: %v", i, err)
		}

		srv := httptest.NewServer(oracle.NewServer(":0", oracle.NewSigner(key)).Handler())
		t.Cleanup(srv.Close)

		endpoints[i] = srv.URL
	}

	return endpoints
}

// TestBuildProposalComputesHashes tests proposal construction.
func TestBuildProposalComputesHashes(t *testing.T) {
	in := []commitment.BasketData{data(1, "gold", 100)}
	out := []commitment.BasketData{data(2, "gold", 100)}

	proposal := BuildProposal(in, out)

	if proposal.In[0].Basket != commitment.BasketHash(in[0]) {
		t.Error("input hash should be computed from the triple")
	}

	if proposal.Out[0].Basket != commitment.BasketHash(out[0]) {
		t.Error("output hash should be computed from the triple")
	}
}

// TestCollectReachesQuorum tests fan-out collection from live endpoints.
func TestCollectReachesQuorum(t *testing.T) {
	endpoints := startOracles(t, 3)

	collector, err := NewCollector(endpoints, 2, 0)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	proposal := balancedProposal()

	sigs, err := collector.Collect(context.Background(), proposal)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(sigs) < 2 {
		t.Fatalf("collected %d signatures, want at least 2", len(sigs))
	}

	digest := proposal.Digest()

	seen := make(map[string]bool)
	for _, sig := range sigs {
		if !oracle.Verify(sig.Sig, digest[:], sig.Signer) {
			t.Error("collected signature should verify over the digest")
		}

		if seen[string(sig.Signer)] {
			t.Error("collected signers should be distinct")
		}

		seen[string(sig.Signer)] = true
	}
}

// TestCollectToleratesSlowOracle tests that a stalled oracle does not
// block quorum as long as enough others respond.
func TestCollectToleratesSlowOracle(t *testing.T) {
	endpoints := startOracles(t, 2)

	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(stalled.Close)

	collector, err := NewCollector(append(endpoints, stalled.URL), 2, 2*time.Second)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	start := time.Now()

	sigs, err := collector.Collect(context.Background(), balancedProposal())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(sigs) != 2 {
		t.Errorf("collected %d signatures, want 2", len(sigs))
	}

	// Quorum should be reached well before the stalled call times out.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("collection blocked on stalled oracle for %v", elapsed)
	}
}

// TestCollectFailsBelowQuorum tests the failure path when oracles reject.
func TestCollectFailsBelowQuorum(t *testing.T) {
	var calls atomic.Int32

	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(rejecting.Close)

	endpoints := startOracles(t, 1)

	collector, err := NewCollector(append(endpoints, rejecting.URL), 2, time.Second)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	if _, err := collector.Collect(context.Background(), balancedProposal()); err == nil {
		t.Error("collection below quorum should fail")
	}

	if calls.Load() == 0 {
		t.Error("rejecting endpoint should have been called")
	}
}

// TestCollectRejectsForgedSignatures tests that a misbehaving endpoint
// returning garbage does not contribute to the quorum.
func TestCollectRejectsForgedSignatures(t *testing.T) {
	forging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"signature":"abcd","signer":"ef01"}`))
	}))
	t.Cleanup(forging.Close)

	collector, err := NewCollector([]string{forging.URL}, 1, time.Second)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	if _, err := collector.Collect(context.Background(), balancedProposal()); err == nil {
		t.Error("forged signatures should not satisfy the quorum")
	}
}

// TestNewCollectorValidation tests constructor constraints.
func TestNewCollectorValidation(t *testing.T) {
	if _, err := NewCollector([]string{"http://a"}, 0, 0); err == nil {
		t.Error("quorum 0 should be rejected")
	}

	if _, err := NewCollector([]string{"http://a"}, 2, 0); err == nil {
		t.Error("quorum above endpoint count should be rejected")
	}
}
