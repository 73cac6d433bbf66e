package ledger

import "errors"

// Every mutating operation fails with exactly one of these; any failure
// aborts the whole operation with no state change.
var (
	// ErrUnknownToken means the tokenId is not registered.
	ErrUnknownToken = errors.New("unknown token")

	// ErrDuplicateToken means the tokenId is already registered.
	ErrDuplicateToken = errors.New("duplicate token")

	// ErrDuplicateBasket means a basket hash collides with one the
	// ledger has already seen, in any state.
	ErrDuplicateBasket = errors.New("duplicate basket")

	// ErrInvalidBasket means a basket is not in the liveness state the
	// operation requires. Spent baskets stay invalid forever.
	ErrInvalidBasket = errors.New("invalid basket state")

	// ErrUnauthorized means the caller is not the recorded owner.
	ErrUnauthorized = errors.New("caller is not the basket owner")

	// ErrStaleRevision means the master-data compare-and-swap missed:
	// the supplied (revision, fingerprint) is not the current pair.
	ErrStaleRevision = errors.New("stale master data revision")

	// ErrQuorumNotMet means too few distinct configured oracles produced
	// valid signatures over the reorg digest.
	ErrQuorumNotMet = errors.New("oracle quorum not met")
)
