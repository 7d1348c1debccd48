// Package balance defines the read-only token balance oracle consulted
// during bid validation. Readings are point-in-time; the ledger remains the
// final arbiter of whether a bidder can actually pay.
package balance

import (
	"context"
	"math/big"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

type Oracle interface {
	BalanceOf(ctx context.Context, addr domain.Address) (*big.Int, error)
}
