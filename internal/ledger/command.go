package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/auctionhouse/internal/domain"
)

// Command is a write request forwarded to the ledger after local
// validation. Its effect is authoritative only once the resulting events
// are observed by the ingestor.
type Command interface {
	CommandName() string
}

type ListItem struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
	Price      *big.Int
	EndTime    time.Time
	TokenURI   string
}

type PlaceBid struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
	Amount     *big.Int
}

type LowerPrice struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
	Price      *big.Int
}

type CancelAuction struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
}

type EndAuction struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
}

type ReclaimItem struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
}

type ClaimItem struct {
	Caller     domain.Address
	Collection domain.Address
	TokenID    uint64
}

type SetFee struct {
	Caller domain.Address
	Rate   *big.Int
}

type ToggleManager struct {
	Caller  domain.Address
	Account domain.Address
}

type TransferAdmin struct {
	Caller   domain.Address
	NewAdmin domain.Address
}

type CreateCollection struct {
	Caller domain.Address
	Name   string
	Symbol string
}

type MintItem struct {
	Caller     domain.Address
	Collection domain.Address
	TokenURI   string
}

type MintCoin struct {
	Caller domain.Address
	Amount *big.Int
}

type WithdrawFees struct {
	Caller domain.Address
}

func (ListItem) CommandName() string         { return "list_item" }
func (PlaceBid) CommandName() string         { return "place_bid" }
func (LowerPrice) CommandName() string       { return "lower_price" }
func (CancelAuction) CommandName() string    { return "cancel_auction" }
func (EndAuction) CommandName() string       { return "end_auction" }
func (ReclaimItem) CommandName() string      { return "reclaim_item" }
func (ClaimItem) CommandName() string        { return "claim_item" }
func (SetFee) CommandName() string           { return "set_fee" }
func (ToggleManager) CommandName() string    { return "toggle_manager" }
func (TransferAdmin) CommandName() string    { return "transfer_admin" }
func (CreateCollection) CommandName() string { return "create_collection" }
func (MintItem) CommandName() string         { return "mint_item" }
func (MintCoin) CommandName() string         { return "mint_coin" }
func (WithdrawFees) CommandName() string     { return "withdraw_fees" }

// Settlement is the asynchronous outcome of a submitted command. Err is
// non-nil when the ledger rejected or reverted a command that had passed
// local validation; such failures are reported, never retried.
type Settlement struct {
	Err error
}

// TxHandle tracks a command accepted for submission. Any number of
// observers may wait on Done and then read Result.
type TxHandle struct {
	ID          string
	Command     string
	SubmittedAt time.Time

	done   chan struct{}
	result Settlement
}

// NewTxHandle builds a handle for cmd. Backends settle it exactly once.
func NewTxHandle(cmd Command) *TxHandle {
	return &TxHandle{
		ID:          uuid.New().String(),
		Command:     cmd.CommandName(),
		SubmittedAt: time.Now().UTC(),
		done:        make(chan struct{}),
	}
}

// Settle records the settlement outcome and wakes all observers.
func (h *TxHandle) Settle(err error) {
	h.result = Settlement{Err: err}
	close(h.done)
}

// Done is closed once the ledger reports the settlement outcome.
func (h *TxHandle) Done() <-chan struct{} {
	return h.done
}

// Result is valid only after Done is closed.
func (h *TxHandle) Result() Settlement {
	return h.result
}

// Ledger is the external append-only source of truth.
type Ledger interface {
	// Events returns up to limit events after the cursor, in ledger order,
	// together with the cursor to resume from. Delivery is at-least-once;
	// consumers deduplicate by sequence number.
	Events(ctx context.Context, from Cursor, limit int) ([]RawEvent, Cursor, error)
	// Submit forwards a locally validated command. The returned handle
	// settles asynchronously. Effects that touch projected state surface
	// only as new events; balance-only commands (coin mints, fee
	// withdrawals) emit none and are observable through the balance
	// oracle. How much a settlement guarantees depends on the backend:
	// the in-process ledger settles with the execution outcome, while the
	// stream-backed ledger settles once the command is durably accepted
	// for delivery, before the downstream gateway has executed it.
	Submit(ctx context.Context, cmd Command) (*TxHandle, error)
}
