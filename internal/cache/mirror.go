package cache

import (
	"context"

	"github.com/shopspring/decimal"
)

// Mirror is a fast-read copy of each auction's current highest bid. It is
// never authoritative: writers overwrite it only after a ledger commit, and a
// miss means "query the ledger instead". Staleness is bounded only by the
// next committed bid.
type Mirror interface {
	// Set unconditionally overwrites the mirrored highest bid. Callers must
	// invoke it only after the corresponding ledger transaction committed.
	Set(ctx context.Context, auctionID int64, amount decimal.Decimal) error

	// Get returns the mirrored amount, or ok=false on a miss.
	Get(ctx context.Context, auctionID int64) (decimal.Decimal, bool, error)
}
