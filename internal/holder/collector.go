package holder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"basketledger/internal/ledger"
	"basketledger/internal/logger"
	"basketledger/internal/oracle"
)

const (
	// defaultOracleTimeout bounds one oracle call. A slow oracle must not
	// block progress while enough others respond.
	defaultOracleTimeout = 5 * time.Second
)

// Collector fans a reorg proposal out to oracle endpoints and gathers
// attestations until a quorum is met. Oracles are stateless, so calls
// still in flight once the quorum is reached are simply cancelled.
type Collector struct {
	endpoints []string       // endpoints are the oracle base URLs
	quorum    int            // quorum is the number of distinct signatures needed
	timeout   time.Duration  // timeout bounds each individual oracle call
	client    *oracleClient  // client performs the HTTP requests
}

// NewCollector creates a collector over the given oracle endpoints.
// A non-positive timeout selects the default per-call timeout.
func NewCollector(endpoints []string, quorum int, timeout time.Duration) (*Collector, error) {
	if quorum < 1 {
		return nil, fmt.Errorf("quorum must be at least 1, got %d", quorum)
	}

	if len(endpoints) < quorum {
		return nil, fmt.Errorf("%d endpoints cannot yield %d distinct signatures",
			len(endpoints), quorum)
	}

	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}

	return &Collector{
		endpoints: endpoints,
		quorum:    quorum,
		timeout:   timeout,
		client:    newOracleClient(),
	}, nil
}

// Collect submits the proposal to every endpoint in parallel and returns
// as soon as quorum distinct valid signatures have arrived. Each returned
// signature verifies over the proposal digest against its claimed signer;
// membership in the ledger's oracle set is the ledger's check to make.
func (c *Collector) Collect(ctx context.Context, proposal *oracle.Proposal) ([]ledger.Signature, error) {
	digest := proposal.Digest()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *ledger.Signature, len(c.endpoints))

	var wg sync.WaitGroup

	for _, endpoint := range c.endpoints {
		wg.Add(1)

		go func(endpoint string) {
			defer wg.Done()

			callCtx, callCancel := context.WithTimeout(ctx, c.timeout)
			defer callCancel()

			sig, err := c.client.requestAttestation(callCtx, endpoint, proposal)
			if err != nil {
				logger.Debug("oracle call failed", "endpoint", endpoint, "error", err)
				results <- nil

				return
			}

			if !oracle.Verify(sig.Sig, digest[:], sig.Signer) {
				logger.Warn("oracle returned invalid signature", "endpoint", endpoint)
				results <- nil

				return
			}

			results <- sig
		}(endpoint)
	}

	// Close the channel once every call has finished or been cancelled.
	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []ledger.Signature
	signers := make(map[string]bool)

	for sig := range results {
		if sig == nil {
			continue
		}

		if signers[string(sig.Signer)] {
			continue
		}

		signers[string(sig.Signer)] = true
		collected = append(collected, *sig)

		// Quorum reached: cancel outstanding calls, nothing to clean up
		// on the oracle side.
		if len(signers) >= c.quorum {
			cancel()
			break
		}
	}

	if len(signers) < c.quorum {
		return nil, fmt.Errorf("collected %d distinct signatures, need %d",
			len(signers), c.quorum)
	}

	return collected, nil
}
