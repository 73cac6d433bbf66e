package ledger

import (
	"fmt"
	"sync"

	"basketledger/internal/audit"
	"basketledger/internal/commitment"
	"basketledger/internal/logger"
	"basketledger/internal/storage"
)

// Ledger is the stateful commitment engine. All mutating operations run
// under one mutex, so the state observes a single global total order: an
// operation's checks and writes complete before the next begins. Each
// mutation stages every write, audit event included, into one storage
// batch committed atomically.
type Ledger struct {
	mu     sync.Mutex
	db     *storage.Storage // db persists basket and token records
	quorum *QuorumConfig    // quorum is the immutable oracle configuration
	events *audit.Log       // events receives one entry per successful mutation
}

// New creates a Ledger over the given storage, oracle configuration and
// audit log.
func New(db *storage.Storage, quorum *QuorumConfig, events *audit.Log) *Ledger {
	return &Ledger{
		db:     db,
		quorum: quorum,
		events: events,
	}
}

// OracleConfig returns the ledger's oracle quorum configuration.
func (l *Ledger) OracleConfig() *QuorumConfig {
	return l.quorum
}

// BasketState returns the current liveness state of a hash.
// A hash the ledger has never seen is StateUnknown.
func (l *Ledger) BasketState(basket commitment.Hash) (BasketState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, known, err := l.getBasket(basket)
	if err != nil {
		return StateUnknown, err
	}

	if !known {
		return StateUnknown, nil
	}

	return record.State, nil
}

// Owner returns the holder a basket is assigned to.
// Fails ErrInvalidBasket unless the basket is live in the holder pool.
func (l *Ledger) Owner(basket commitment.Hash) (Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, known, err := l.getBasket(basket)
	if err != nil {
		return Address{}, err
	}

	if !known || record.State != StateLiveHolder {
		return Address{}, fmt.Errorf("%w: basket %s is not held", ErrInvalidBasket, basket)
	}

	return record.Owner, nil
}

// TotalSupply returns the token's total-supply commitment: the basket hash
// registered at creation. The ledger cannot return a plaintext number, by
// construction it never learns one.
func (l *Ledger) TotalSupply(tokenID string) (commitment.Hash, error) {
	record, err := l.token(tokenID)
	if err != nil {
		return commitment.Hash{}, err
	}

	return record.SupplyBasket, nil
}

// TokenMasterDataRevision returns the token's current master-data revision.
func (l *Ledger) TokenMasterDataRevision(tokenID string) (uint64, error) {
	record, err := l.token(tokenID)
	if err != nil {
		return 0, err
	}

	return record.Revision, nil
}

// TokenMasterDataFp returns the token's current master-data fingerprint.
func (l *Ledger) TokenMasterDataFp(tokenID string) (commitment.Hash, error) {
	record, err := l.token(tokenID)
	if err != nil {
		return commitment.Hash{}, err
	}

	return record.MasterDataFp, nil
}

// token reads one token record under the lock.
func (l *Ledger) token(tokenID string) (TokenRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.getToken(tokenID)
}

// CreateToken registers a new tokenId with master-data revision 1 and
// places its total-supply basket into the supply pool.
func (l *Ledger) CreateToken(caller Address, tokenID string, supplyBasket, masterDataFp commitment.Hash, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tokenID == "" {
		return fmt.Errorf("%w: empty tokenId", ErrUnknownToken)
	}

	if _, err := l.getToken(tokenID); err == nil {
		return fmt.Errorf("%w: %q", ErrDuplicateToken, tokenID)
	}

	if _, known, err := l.getBasket(supplyBasket); err != nil {
		return err
	} else if known {
		return fmt.Errorf("%w: supply basket %s already exists", ErrDuplicateBasket, supplyBasket)
	}

	batch := l.db.NewBatch()
	defer batch.Discard()

	record := TokenRecord{Revision: 1, MasterDataFp: masterDataFp, SupplyBasket: supplyBasket}
	if err := batch.Set(tokenKey(tokenID), record.encode()); err != nil {
		return err
	}

	if err := batch.Set(basketKey(supplyBasket), basketRecord{State: StateLiveSupply}.encode()); err != nil {
		return err
	}

	event := &audit.Event{
		Kind:     audit.KindCreateToken,
		Actor:    caller.String(),
		TokenID:  tokenID,
		Baskets:  []commitment.Hash{supplyBasket},
		Revision: 1,
		Ref:      ref,
	}

	return l.commit(batch, event)
}

// UpdateMasterData advances a token's master-data revision with an
// optimistic compare-and-swap: both the current revision and the current
// fingerprint must match exactly, which prevents lost updates under
// concurrent submission.
func (l *Ledger) UpdateMasterData(caller Address, tokenID string, fromRevision uint64, fromFp, toFp commitment.Hash, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.getToken(tokenID)
	if err != nil {
		return err
	}

	if record.Revision != fromRevision || record.MasterDataFp != fromFp {
		return fmt.Errorf("%w: token %q is at revision %d", ErrStaleRevision, tokenID, record.Revision)
	}

	record.Revision++
	record.MasterDataFp = toFp

	batch := l.db.NewBatch()
	defer batch.Discard()

	if err := batch.Set(tokenKey(tokenID), record.encode()); err != nil {
		return err
	}

	event := &audit.Event{
		Kind:     audit.KindUpdateMasterData,
		Actor:    caller.String(),
		TokenID:  tokenID,
		Revision: record.Revision,
		Ref:      ref,
	}

	return l.commit(batch, event)
}

// Mint assigns supply-pool baskets to a receiver. Every hash must
// currently be live in the supply pool.
func (l *Ledger) Mint(caller Address, baskets []commitment.Hash, receiver Address, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkDistinct(baskets); err != nil {
		return err
	}

	batch := l.db.NewBatch()
	defer batch.Discard()

	for _, basket := range baskets {
		record, known, err := l.getBasket(basket)
		if err != nil {
			return err
		}

		if !known || record.State != StateLiveSupply {
			return fmt.Errorf("%w: basket %s is not in the supply pool", ErrInvalidBasket, basket)
		}

		holder := basketRecord{State: StateLiveHolder, Owner: receiver}
		if err := batch.Set(basketKey(basket), holder.encode()); err != nil {
			return err
		}
	}

	event := &audit.Event{
		Kind:     audit.KindMint,
		Actor:    caller.String(),
		Baskets:  baskets,
		Receiver: receiver.String(),
		Ref:      ref,
	}

	return l.commit(batch, event)
}

// Transfer reassigns caller-owned baskets to a receiver. Value and tokenId
// ride along unchanged inside the hash; the ledger could not check them
// anyway, which is exactly why reorg, not transfer, needs oracles.
func (l *Ledger) Transfer(caller Address, baskets []commitment.Hash, receiver Address, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkDistinct(baskets); err != nil {
		return err
	}

	batch := l.db.NewBatch()
	defer batch.Discard()

	for _, basket := range baskets {
		if err := l.checkOwned(basket, caller); err != nil {
			return err
		}

		holder := basketRecord{State: StateLiveHolder, Owner: receiver}
		if err := batch.Set(basketKey(basket), holder.encode()); err != nil {
			return err
		}
	}

	event := &audit.Event{
		Kind:     audit.KindTransfer,
		Actor:    caller.String(),
		Baskets:  baskets,
		Receiver: receiver.String(),
		Ref:      ref,
	}

	return l.commit(batch, event)
}

// ReorgHolderBaskets replaces caller-owned baskets with new ones owned by
// the same caller, authorized by an oracle quorum attesting value
// conservation over the proposal digest.
func (l *Ledger) ReorgHolderBaskets(caller Address, sigs []Signature, basketsIn, basketsOut []commitment.Hash, ref string) error {
	return l.reorg(caller, sigs, basketsIn, basketsOut, ref, false)
}

// ReorgSupplyBaskets replaces supply-pool baskets with new supply-pool
// baskets, under the same oracle quorum rule.
func (l *Ledger) ReorgSupplyBaskets(caller Address, sigs []Signature, basketsIn, basketsOut []commitment.Hash, ref string) error {
	return l.reorg(caller, sigs, basketsIn, basketsOut, ref, true)
}

// reorg is the shared transition for both pools. The ledger never
// recomputes value sums; the quorum of signatures over the digest is the
// proof of conservation it relies on.
func (l *Ledger) reorg(caller Address, sigs []Signature, basketsIn, basketsOut []commitment.Hash, ref string, supplyPool bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(basketsIn) == 0 || len(basketsOut) == 0 {
		return fmt.Errorf("%w: reorg requires baskets on both sides", ErrInvalidBasket)
	}

	if err := checkDistinct(append(append([]commitment.Hash{}, basketsIn...), basketsOut...)); err != nil {
		return err
	}

	// Inputs must be live in the required pool for the caller.
	for _, basket := range basketsIn {
		if supplyPool {
			record, known, err := l.getBasket(basket)
			if err != nil {
				return err
			}

			if !known || record.State != StateLiveSupply {
				return fmt.Errorf("%w: basket %s is not in the supply pool", ErrInvalidBasket, basket)
			}
		} else if err := l.checkOwned(basket, caller); err != nil {
			return err
		}
	}

	// Outputs must be fresh. Salt entropy makes a collision astronomically
	// unlikely, but the check is mandatory.
	for _, basket := range basketsOut {
		if _, known, err := l.getBasket(basket); err != nil {
			return err
		} else if known {
			return fmt.Errorf("%w: output basket %s already exists", ErrDuplicateBasket, basket)
		}
	}

	digest := commitment.ReorgDigest(basketsIn, basketsOut)
	if err := l.quorum.CheckQuorum(digest, sigs); err != nil {
		return err
	}

	batch := l.db.NewBatch()
	defer batch.Discard()

	for _, basket := range basketsIn {
		if err := batch.Set(basketKey(basket), basketRecord{State: StateSpent}.encode()); err != nil {
			return err
		}
	}

	target := basketRecord{State: StateLiveSupply}
	kind := audit.KindReorgSupplyBaskets

	if !supplyPool {
		target = basketRecord{State: StateLiveHolder, Owner: caller}
		kind = audit.KindReorgHolderBaskets
	}

	for _, basket := range basketsOut {
		if err := batch.Set(basketKey(basket), target.encode()); err != nil {
			return err
		}
	}

	event := &audit.Event{
		Kind:       kind,
		Actor:      caller.String(),
		Baskets:    basketsIn,
		BasketsOut: basketsOut,
		Ref:        ref,
	}

	return l.commit(batch, event)
}

// Burn destroys caller-owned baskets. No conservation check applies: burn
// removes value on purpose, the asymmetric counterpart of the supply
// ceiling fixed at createToken.
func (l *Ledger) Burn(caller Address, baskets []commitment.Hash, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkDistinct(baskets); err != nil {
		return err
	}

	batch := l.db.NewBatch()
	defer batch.Discard()

	for _, basket := range baskets {
		if err := l.checkOwned(basket, caller); err != nil {
			return err
		}

		if err := batch.Set(basketKey(basket), basketRecord{State: StateSpent}.encode()); err != nil {
			return err
		}
	}

	event := &audit.Event{
		Kind:    audit.KindBurn,
		Actor:   caller.String(),
		Baskets: baskets,
		Ref:     ref,
	}

	return l.commit(batch, event)
}

// commit stages the audit event and applies the batch atomically.
func (l *Ledger) commit(batch *storage.Batch, event *audit.Event) error {
	if err := l.events.Stage(batch, event); err != nil {
		return fmt.Errorf("stage audit event:\n%w", err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit state transition:\n%w", err)
	}

	logger.Debug("ledger mutation committed",
		"kind", string(event.Kind),
		"seq", event.Seq,
		"actor", event.Actor,
	)

	return nil
}

// checkOwned verifies a basket is live in the holder pool and owned by
// the caller.
func (l *Ledger) checkOwned(basket commitment.Hash, caller Address) error {
	record, known, err := l.getBasket(basket)
	if err != nil {
		return err
	}

	if !known || record.State != StateLiveHolder {
		return fmt.Errorf("%w: basket %s is not held", ErrInvalidBasket, basket)
	}

	if record.Owner != caller {
		return fmt.Errorf("%w: basket %s", ErrUnauthorized, basket)
	}

	return nil
}

// checkDistinct rejects batches containing a hash twice.
func checkDistinct(baskets []commitment.Hash) error {
	if len(baskets) == 0 {
		return fmt.Errorf("%w: empty basket list", ErrInvalidBasket)
	}

	seen := make(map[commitment.Hash]bool, len(baskets))

	for _, basket := range baskets {
		if seen[basket] {
			return fmt.Errorf("%w: %s listed twice", ErrDuplicateBasket, basket)
		}

		seen[basket] = true
	}

	return nil
}

// getBasket reads one basket record; known is false for StateUnknown.
func (l *Ledger) getBasket(basket commitment.Hash) (basketRecord, bool, error) {
	value, err := l.db.Get(basketKey(basket))
	if err != nil {
		return basketRecord{}, false, fmt.Errorf("read basket %s:\n%w", basket, err)
	}

	if value == nil {
		return basketRecord{}, false, nil
	}

	record, err := decodeBasketRecord(value)
	if err != nil {
		return basketRecord{}, false, fmt.Errorf("decode basket %s:\n%w", basket, err)
	}

	return record, true, nil
}

// getToken reads one token record, failing ErrUnknownToken when absent.
func (l *Ledger) getToken(tokenID string) (TokenRecord, error) {
	value, err := l.db.Get(tokenKey(tokenID))
	if err != nil {
		return TokenRecord{}, fmt.Errorf("read token %q:\n%w", tokenID, err)
	}

	if value == nil {
		return TokenRecord{}, fmt.Errorf("%w: %q", ErrUnknownToken, tokenID)
	}

	record, err := decodeTokenRecord(value)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("decode token %q:\n%w", tokenID, err)
	}

	return record, nil
}
