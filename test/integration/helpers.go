package integration

import (
	"net/http/httptest"
	"strings"
	"testing"

	"basketledger/client"
	"basketledger/internal/api"
	"basketledger/internal/audit"
	"basketledger/internal/basketstore"
	"basketledger/internal/ledger"
	"basketledger/internal/oracle"
	"basketledger/internal/storage"
)

// network is a full in-process deployment: ledger, oracles and basket store.
type network struct {
	client     *client.Client
	store      *basketstore.Store
	storeURL   string
	endpoints  []string
	minOracles int
	operator   ledger.Address
}

// startNetwork boots a ledger with numOracles oracle endpoints and a basket
// store, all served over loopback HTTP.
func startNetwork(t *testing.T, minOracles, numOracles int) *network {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/ledger")
	if err != nil {
		t.Fatalf("create ledger storage: %v", err)
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

	storeDB, err := storage.New(t.TempDir() + "/store")
	if err != nil {
		t.Fatalf("create store storage: %v", err)
	}

	t.Cleanup(func() { storeDB.Close() })

	store := basketstore.New(storeDB)

	storeServer := httptest.NewServer(basketstore.NewServer(":0", store).Handler())
	t.Cleanup(storeServer.Close)

	cli := client.NewClient(strings.TrimPrefix(ledgerServer.URL, "http://"))
	if err := cli.ConfigureOracles(endpoints, minOracles); err != nil {
		t.Fatalf("configure oracles: %v", err)
	}

	var operator ledger.Address
	operator[0] = 0x0F

	return &network{
		client:     cli,
		store:      store,
		storeURL:   storeServer.URL,
		endpoints:  endpoints,
		minOracles: minOracles,
		operator:   operator,
	}
}
