package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"basketledger/internal/audit"
	"basketledger/internal/commitment"
	"basketledger/internal/ledger"
	"basketledger/internal/oracle"
	"basketledger/internal/storage"
)

// testEnv bundles an API handler with its ledger dependencies.
type testEnv struct {
	handler http.Handler
	keys    []*oracle.KeyPair
}

// newTestEnv creates an API server over a fresh ledger with one oracle.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/db")
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	key, err := oracle.GenerateKey()
	if err != nil {
		t.Fatalf("generate oracle key: %v", err)
	}

	quorum, err := ledger.NewQuorumConfig(1, [][]byte{key.PublicKeyBytes()})
	if err != nil {
		t.Fatalf("quorum config: %v", err)
	}

	events, err := audit.Open(db)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}

	server := New(":0", ledger.New(db, quorum, events), events)

	return &testEnv{
		handler: server.Handler(),
		keys:    []*oracle.KeyPair{key},
	}
}

// do runs one request through the handler and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}

		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, httptest.NewRequest(method, path, reader))

	return recorder
}

// basket builds a deterministic basket hash for tests.
func basket(seed byte, tokenID string, value uint64) commitment.Hash {
	var salt commitment.Salt
	for i := range salt {
		salt[i] = seed
	}

	return commitment.BasketHash(commitment.BasketData{Salt: salt, TokenID: tokenID, Value: value})
}

// addr builds a test address.
func addr(b byte) ledger.Address {
	var a ledger.Address
	a[0] = b
	return a
}

var (
	alice    = addr(0xA1)
	bob      = addr(0xB0)
	operator = addr(0x0F)
)

// createGold registers the "gold" token and returns its supply basket.
func createGold(t *testing.T, env *testEnv) commitment.Hash {
	t.Helper()

	supply := basket(1, "gold", 1000)

	recorder := env.do(t, http.MethodPost, "/token/create", createTokenRequest{
		Caller:       operator,
		TokenID:      "gold",
		SupplyBasket: supply,
		MasterDataFp: commitment.Hash{7},
		Ref:          "genesis",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("create token: status %d, body %s", recorder.Code, recorder.Body)
	}

	return supply
}

// TestCreateTokenAndQuery tests the creation route and the token read route.
func TestCreateTokenAndQuery(t *testing.T) {
	env := newTestEnv(t)
	supply := createGold(t, env)

	recorder := env.do(t, http.MethodGet, "/token?token-id=gold", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get token: status %d", recorder.Code)
	}

	var body struct {
		TokenID            string `json:"tokenId"`
		MasterDataRevision uint64 `json:"masterDataRevision"`
		TotalSupplyBasket  string `json:"totalSupplyBasket"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.MasterDataRevision != 1 {
		t.Errorf("revision: got %d, want 1", body.MasterDataRevision)
	}

	if body.TotalSupplyBasket != supply.String() {
		t.Error("total supply basket should be the registered commitment")
	}
}

// TestDuplicateTokenConflicts tests the 409 mapping for duplicate creation.
func TestDuplicateTokenConflicts(t *testing.T) {
	env := newTestEnv(t)
	createGold(t, env)

	recorder := env.do(t, http.MethodPost, "/token/create", createTokenRequest{
		Caller:       operator,
		TokenID:      "gold",
		SupplyBasket: basket(2, "gold", 500),
		Ref:          "again",
	})
	if recorder.Code != http.StatusConflict {
		t.Errorf("duplicate token: got status %d, want 409", recorder.Code)
	}
}

// TestUnknownTokenNotFound tests the 404 mapping for unknown tokens.
func TestUnknownTokenNotFound(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/token?token-id=missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("unknown token: got status %d, want 404", recorder.Code)
	}
}

// TestMintTransferOwner tests the mint and transfer routes end to end.
func TestMintTransferOwner(t *testing.T) {
	env := newTestEnv(t)
	supply := createGold(t, env)

	recorder := env.do(t, http.MethodPost, "/mint", basketBatchRequest{
		Caller:   operator,
		Baskets:  []commitment.Hash{supply},
		Receiver: alice,
		Ref:      "mint",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("mint: status %d, body %s", recorder.Code, recorder.Body)
	}

	recorder = env.do(t, http.MethodPost, "/transfer", basketBatchRequest{
		Caller:   alice,
		Baskets:  []commitment.Hash{supply},
		Receiver: bob,
		Ref:      "pay",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("transfer: status %d, body %s", recorder.Code, recorder.Body)
	}

	recorder = env.do(t, http.MethodGet, "/owner?basket-hash="+supply.String(), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get owner: status %d", recorder.Code)
	}

	var body struct {
		Owner string `json:"owner"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.Owner != bob.String() {
		t.Error("owner should be the transfer receiver")
	}

	if body.State != "LiveHolder" {
		t.Errorf("state: got %s, want LiveHolder", body.State)
	}
}

// TestTransferUnauthorizedForbidden tests the 403 mapping.
func TestTransferUnauthorizedForbidden(t *testing.T) {
	env := newTestEnv(t)
	supply := createGold(t, env)

	env.do(t, http.MethodPost, "/mint", basketBatchRequest{
		Caller: operator, Baskets: []commitment.Hash{supply}, Receiver: alice,
	})

	recorder := env.do(t, http.MethodPost, "/transfer", basketBatchRequest{
		Caller:   bob,
		Baskets:  []commitment.Hash{supply},
		Receiver: bob,
	})
	if recorder.Code != http.StatusForbidden {
		t.Errorf("foreign transfer: got status %d, want 403", recorder.Code)
	}
}

// TestReorgHolderRoute tests a signed holder reorg over HTTP.
func TestReorgHolderRoute(t *testing.T) {
	env := newTestEnv(t)
	supply := createGold(t, env)

	env.do(t, http.MethodPost, "/mint", basketBatchRequest{
		Caller: operator, Baskets: []commitment.Hash{supply}, Receiver: alice,
	})

	in := []commitment.Hash{supply}
	out := []commitment.Hash{basket(2, "gold", 400), basket(3, "gold", 600)}

	digest := commitment.ReorgDigest(in, out)
	key := env.keys[0]

	recorder := env.do(t, http.MethodPost, "/reorg/holder", reorgRequest{
		Caller: alice,
		Signatures: []signatureWire{{
			Signer: hex.EncodeToString(key.PublicKeyBytes()),
			Sig:    hex.EncodeToString(key.Sign(digest[:])),
		}},
		BasketsIn:  in,
		BasketsOut: out,
		Ref:        "split",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("reorg: status %d, body %s", recorder.Code, recorder.Body)
	}

	recorder = env.do(t, http.MethodGet, "/owner?basket-hash="+out[0].String(), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get owner after reorg: status %d", recorder.Code)
	}
}

// TestReorgWithoutQuorumRejected tests the 422 mapping for missing quorum.
func TestReorgWithoutQuorumRejected(t *testing.T) {
	env := newTestEnv(t)
	supply := createGold(t, env)

	env.do(t, http.MethodPost, "/mint", basketBatchRequest{
		Caller: operator, Baskets: []commitment.Hash{supply}, Receiver: alice,
	})

	recorder := env.do(t, http.MethodPost, "/reorg/holder", reorgRequest{
		Caller:     alice,
		BasketsIn:  []commitment.Hash{supply},
		BasketsOut: []commitment.Hash{basket(2, "gold", 1000)},
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Errorf("unsigned reorg: got status %d, want 422", recorder.Code)
	}
}

// TestMasterDataUpdateRoute tests the CAS route and the 409 stale mapping.
func TestMasterDataUpdateRoute(t *testing.T) {
	env := newTestEnv(t)
	createGold(t, env)

	recorder := env.do(t, http.MethodPost, "/token/master-data", updateMasterDataRequest{
		Caller:       operator,
		TokenID:      "gold",
		FromRevision: 1,
		FromFp:       commitment.Hash{7},
		ToFp:         commitment.Hash{8},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", recorder.Code, recorder.Body)
	}

	// Replaying the same CAS must now be stale.
	recorder = env.do(t, http.MethodPost, "/token/master-data", updateMasterDataRequest{
		Caller:       operator,
		TokenID:      "gold",
		FromRevision: 1,
		FromFp:       commitment.Hash{7},
		ToFp:         commitment.Hash{9},
	})
	if recorder.Code != http.StatusConflict {
		t.Errorf("stale update: got status %d, want 409", recorder.Code)
	}
}

// TestOracleConfigRoute tests the quorum configuration read.
func TestOracleConfigRoute(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/oracle-config", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("oracle config: status %d", recorder.Code)
	}

	var body struct {
		MinNumberOfOracles int      `json:"minNumberOfOracles"`
		Oracles            []string `json:"oracles"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.MinNumberOfOracles != 1 || len(body.Oracles) != 1 {
		t.Errorf("quorum config: got min %d with %d oracles", body.MinNumberOfOracles, len(body.Oracles))
	}

	if body.Oracles[0] != hex.EncodeToString(env.keys[0].PublicKeyBytes()) {
		t.Error("configured oracle key should be served")
	}
}

// TestEventsRoutes tests the audit trail reads, plain and exported.
func TestEventsRoutes(t *testing.T) {
	env := newTestEnv(t)
	supply := createGold(t, env)

	env.do(t, http.MethodPost, "/mint", basketBatchRequest{
		Caller: operator, Baskets: []commitment.Hash{supply}, Receiver: alice, Ref: "m",
	})

	recorder := env.do(t, http.MethodGet, "/events", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get events: status %d", recorder.Code)
	}

	var events []audit.Event
	if err := json.Unmarshal(recorder.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}

	if events[0].Kind != audit.KindCreateToken || events[1].Kind != audit.KindMint {
		t.Error("events should appear in mutation order")
	}

	recorder = env.do(t, http.MethodGet, "/events/export", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("export: status %d", recorder.Code)
	}

	exported, err := audit.ReadExport(recorder.Body)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	if len(exported) != 2 {
		t.Errorf("exported events: got %d, want 2", len(exported))
	}
}

// TestInvalidBodyBadRequest tests malformed JSON handling.
func TestInvalidBodyBadRequest(t *testing.T) {
	env := newTestEnv(t)

	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodPost, "/mint", bytes.NewReader([]byte("{not json"))))

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got status %d, want 400", recorder.Code)
	}
}
