package domain

import (
	"fmt"
	"math/big"
	"time"
)

// Address is a ledger account or contract identifier.
type Address string

// ZeroAddress is the burn identifier and the "no bids yet" sentinel.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// TokenKey uniquely identifies an item as (collection, token id).
type TokenKey struct {
	Collection Address
	TokenID    uint64
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%s/%d", k.Collection, k.TokenID)
}

// Collection is a registered item category. Immutable after creation.
type Collection struct {
	Address   Address
	Name      string
	Symbol    string
	Creator   Address
	CreatedAt time.Time
}

// Metadata is the resolved content of an item's token URI.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Item is a unique token within a collection. Metadata is resolved lazily
// from TokenURI by the metadata collaborator and is not stored here.
type Item struct {
	Collection Address
	TokenID    uint64
	Owner      Address
	TokenURI   string
}

func (i *Item) Key() TokenKey {
	return TokenKey{Collection: i.Collection, TokenID: i.TokenID}
}

// Outcome records how a concluded auction ended.
type Outcome string

const (
	OutcomeCancelled Outcome = "cancelled"
	OutcomeReclaimed Outcome = "reclaimed"
	OutcomeClaimed   Outcome = "claimed"
)

// Auction is the projected auction record for an item key. Status is always
// derived from these fields plus wall-clock time, never stored.
type Auction struct {
	Collection    Address
	TokenID       uint64
	Seller        Address
	Price         *big.Int
	EndTime       time.Time
	HighestBidder Address
	Concluded     bool
	Outcome       Outcome
}

func (a *Auction) Key() TokenKey {
	return TokenKey{Collection: a.Collection, TokenID: a.TokenID}
}

func (a *Auction) HasBids() bool {
	return !a.HighestBidder.IsZero()
}

func (a *Auction) Ended(now time.Time) bool {
	return !now.Before(a.EndTime)
}
