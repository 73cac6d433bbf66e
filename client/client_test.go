package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"basketledger/internal/api"
	"basketledger/internal/audit"
	"basketledger/internal/commitment"
	"basketledger/internal/ledger"
	"basketledger/internal/oracle"
	"basketledger/internal/storage"
)

// testNet bundles a running ledger API with its oracle endpoints.
type testNet struct {
	client   *Client
	operator ledger.Address
}

// newTestNet starts an in-process ledger with numOracles oracle endpoints
// and returns a configured client.
func newTestNet(t *testing.T, minOracles, numOracles int) *testNet {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/db")
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	endpoints := make([]string, numOracles)
	pubkeys := make([][]byte, numOracles)

	for i := range endpoints {
		key, err := oracle.GenerateKey()
		if err != nil {
			t.Fatalf("generate oracle key %d: %v", i, err)
		}

		pubkeys[i] = key.PublicKeyBytes()

		server := httptest.NewServer(oracle.NewServer(":0", oracle.NewSigner(key)).Handler())
		t.Cleanup(server.Close)

		endpoints[i] = server.URL
	}

	quorum, err := ledger.NewQuorumConfig(minOracles, pubkeys)
	if err != nil {
		t.Fatalf("quorum config: %v", err)
	}

	events, err := audit.Open(db)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}

	ledgerServer := httptest.NewServer(api.New(":0", ledger.New(db, quorum, events), events).Handler())
	t.Cleanup(ledgerServer.Close)

	cli := NewClient(strings.TrimPrefix(ledgerServer.URL, "http://"))
	if err := cli.ConfigureOracles(endpoints, minOracles); err != nil {
		t.Fatalf("configure oracles: %v", err)
	}

	var operator ledger.Address
	operator[0] = 0x0F

	return &testNet{client: cli, operator: operator}
}

// TestClientLifecycle tests the full holder flow against a live network:
// create, mint, reorg, transfer, burn.
func TestClientLifecycle(t *testing.T) {
	net := newTestNet(t, 2, 3)
	cli := net.client

	alice, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	bob, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	supply, err := alice.NewBasket("gold", 100)
	if err != nil {
		t.Fatalf("new basket: %v", err)
	}

	if err := cli.CreateToken(net.operator, "gold", supply, commitment.Hash{7}, "genesis"); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := cli.Mint(net.operator, []commitment.Hash{supply}, alice.Address(), "mint"); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Split the 100-value basket into 40 and 60 through the oracles.
	salt1, _ := commitment.NewSalt()
	salt2, _ := commitment.NewSalt()
	out := []commitment.BasketData{
		{Salt: salt1, TokenID: "gold", Value: 40},
		{Salt: salt2, TokenID: "gold", Value: 60},
	}

	if err := cli.Reorg(context.Background(), alice, []commitment.Hash{supply}, out); err != nil {
		t.Fatalf("reorg: %v", err)
	}

	if _, found := alice.Data(supply); found {
		t.Error("spent basket should be forgotten")
	}

	small := commitment.BasketHash(out[0])
	if _, found := alice.Data(small); !found {
		t.Fatal("fresh basket should be remembered")
	}

	if err := cli.Transfer(alice.Address(), []commitment.Hash{small}, bob.Address(), "pay"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	info, err := cli.GetOwner(small)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}

	if info.Owner != bob.Address().String() {
		t.Error("transferred basket should belong to bob")
	}

	big := commitment.BasketHash(out[1])
	if err := cli.Burn(alice.Address(), []commitment.Hash{big}, "burn"); err != nil {
		t.Fatalf("burn: %v", err)
	}

	events, err := cli.GetEvents(0, 10)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}

	if len(events) != 5 {
		t.Fatalf("events: got %d, want 5", len(events))
	}

	if events[4].Kind != audit.KindBurn {
		t.Error("last event should be the burn")
	}
}

// TestClientReorgConservationRejected tests that a value-changing reorg
// never makes it past the oracles.
func TestClientReorgConservationRejected(t *testing.T) {
	net := newTestNet(t, 1, 1)
	cli := net.client

	alice, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	supply, err := alice.NewBasket("gold", 100)
	if err != nil {
		t.Fatalf("new basket: %v", err)
	}

	if err := cli.CreateToken(net.operator, "gold", supply, commitment.Hash{7}, ""); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := cli.Mint(net.operator, []commitment.Hash{supply}, alice.Address(), ""); err != nil {
		t.Fatalf("mint: %v", err)
	}

	salt, _ := commitment.NewSalt()
	inflated := []commitment.BasketData{{Salt: salt, TokenID: "gold", Value: 150}}

	if err := cli.Reorg(context.Background(), alice, []commitment.Hash{supply}, inflated); err == nil {
		t.Error("inflating reorg should fail to collect a quorum")
	}

	if _, found := alice.Data(supply); !found {
		t.Error("failed reorg must not forget the input basket")
	}
}

// TestWalletRemember tests out-of-band plaintext intake.
func TestWalletRemember(t *testing.T) {
	wallet, err := NewWallet()
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	salt, _ := commitment.NewSalt()
	data := commitment.BasketData{Salt: salt, TokenID: "gold", Value: 5}
	basket := commitment.BasketHash(data)

	if err := wallet.Remember(basket, data); err != nil {
		t.Fatalf("remember: %v", err)
	}

	wrong := commitment.Hash{1}
	if err := wallet.Remember(wrong, data); err == nil {
		t.Error("mismatched plaintext should be rejected")
	}
}
