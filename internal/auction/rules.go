// Package auction holds the auction lifecycle rules: the derived status and
// the transition-legality checks. It keeps no state of its own; every
// function computes against a projected snapshot and a caller-supplied
// clock, so the rules live in exactly one place.
package auction

import (
	"math/big"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

// Status is the derived lifecycle position of an auction. It is computed
// from projected fields and wall-clock time, never stored.
type Status string

const (
	StatusListedNoBids   Status = "listed_no_bids"
	StatusListedWithBids Status = "listed_with_bids"
	StatusEndedNoBids    Status = "ended_no_bids"
	StatusEndedWithBids  Status = "ended_with_bids"
	StatusCancelled      Status = "cancelled"
	StatusReclaimed      Status = "reclaimed"
	StatusClaimed        Status = "claimed"
)

// StatusOf derives the status of a at time now. Identical inputs always
// yield identical results.
func StatusOf(a *domain.Auction, now time.Time) Status {
	if a.Concluded {
		switch a.Outcome {
		case domain.OutcomeReclaimed:
			return StatusReclaimed
		case domain.OutcomeClaimed:
			return StatusClaimed
		default:
			return StatusCancelled
		}
	}
	switch {
	case !a.Ended(now) && !a.HasBids():
		return StatusListedNoBids
	case !a.Ended(now):
		return StatusListedWithBids
	case !a.HasBids():
		return StatusEndedNoBids
	default:
		return StatusEndedWithBids
	}
}

// Live reports whether the auction is still accepting lifecycle actions,
// i.e. it has not reached a terminal outcome.
func Live(a *domain.Auction) bool {
	return a != nil && !a.Concluded
}

// CanList checks the listing precondition: the caller owns the item and no
// live auction exists for its key. a may be nil (no auction record).
func CanList(item *domain.Item, a *domain.Auction, caller domain.Address) error {
	if item == nil || item.Owner != caller {
		return domain.PolicyViolation(domain.ReasonNotOwner)
	}
	if Live(a) {
		return domain.PolicyViolation(domain.ReasonAlreadyListed)
	}
	return nil
}

// CanBid checks the price-strictly-greater and still-listed clauses. The
// balance clause is the command validator's job; it needs the oracle.
func CanBid(a *domain.Auction, amount *big.Int, now time.Time) error {
	if err := requireLive(a); err != nil {
		return err
	}
	if a.Ended(now) {
		return domain.PolicyViolation(domain.ReasonAuctionEnded)
	}
	if amount == nil || amount.Cmp(a.Price) <= 0 {
		return domain.PolicyViolation(domain.ReasonBidTooLow)
	}
	return nil
}

// CanLowerPrice: listed with no bids, before the end time, seller only,
// and the new price strictly between zero and the current price.
func CanLowerPrice(a *domain.Auction, caller domain.Address, price *big.Int, now time.Time) error {
	if err := requireOpenNoBids(a, caller, now); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 || price.Cmp(a.Price) >= 0 {
		return domain.PolicyViolation(domain.ReasonPriceNotLower)
	}
	return nil
}

// CanCancel: listed with no bids, before the end time, seller only.
func CanCancel(a *domain.Auction, caller domain.Address, now time.Time) error {
	return requireOpenNoBids(a, caller, now)
}

// CanEnd settles early: listed with bids, before the end time, seller only.
func CanEnd(a *domain.Auction, caller domain.Address, now time.Time) error {
	if err := requireLive(a); err != nil {
		return err
	}
	if a.Ended(now) {
		return domain.PolicyViolation(domain.ReasonAuctionEnded)
	}
	if caller != a.Seller {
		return domain.PolicyViolation(domain.ReasonNotSeller)
	}
	if !a.HasBids() {
		return domain.PolicyViolation(domain.ReasonNoBids)
	}
	return nil
}

// CanReclaim: ended with no bids, seller only.
func CanReclaim(a *domain.Auction, caller domain.Address, now time.Time) error {
	if err := requireLive(a); err != nil {
		return err
	}
	if !a.Ended(now) {
		return domain.PolicyViolation(domain.ReasonAuctionNotEnded)
	}
	if a.HasBids() {
		return domain.PolicyViolation(domain.ReasonHasBids)
	}
	if caller != a.Seller {
		return domain.PolicyViolation(domain.ReasonNotSeller)
	}
	return nil
}

// CanClaim: ended with bids, highest bidder only.
func CanClaim(a *domain.Auction, caller domain.Address, now time.Time) error {
	if err := requireLive(a); err != nil {
		return err
	}
	if !a.Ended(now) {
		return domain.PolicyViolation(domain.ReasonAuctionNotEnded)
	}
	if !a.HasBids() {
		return domain.PolicyViolation(domain.ReasonNoBids)
	}
	if caller != a.HighestBidder {
		return domain.PolicyViolation(domain.ReasonNotHighestBidder)
	}
	return nil
}

func requireLive(a *domain.Auction) error {
	if a == nil {
		return domain.PolicyViolation(domain.ReasonNoAuction)
	}
	if a.Concluded {
		return domain.PolicyViolation(domain.ReasonAuctionConcluded)
	}
	return nil
}

func requireOpenNoBids(a *domain.Auction, caller domain.Address, now time.Time) error {
	if err := requireLive(a); err != nil {
		return err
	}
	if a.Ended(now) {
		return domain.PolicyViolation(domain.ReasonAuctionEnded)
	}
	if a.HasBids() {
		return domain.PolicyViolation(domain.ReasonHasBids)
	}
	if caller != a.Seller {
		return domain.PolicyViolation(domain.ReasonNotSeller)
	}
	return nil
}
