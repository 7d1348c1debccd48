package domain

import "errors"

// RejectKind classifies a local rejection.
type RejectKind string

const (
	// RejectPolicy means the action was attempted outside its legal
	// lifecycle precondition.
	RejectPolicy RejectKind = "policy"
	// RejectValidation means the action's arguments failed a pre-flight
	// check (balance, range, role no-op).
	RejectValidation RejectKind = "validation"
)

// Rejection is a synchronous local refusal of a command. Rejected commands
// are never forwarded to the ledger.
type Rejection struct {
	Kind   RejectKind
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// PolicyViolation builds a policy rejection.
func PolicyViolation(reason string) *Rejection {
	return &Rejection{Kind: RejectPolicy, Reason: reason}
}

// ValidationFailure builds a validation rejection.
func ValidationFailure(reason string) *Rejection {
	return &Rejection{Kind: RejectValidation, Reason: reason}
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// Rejection reasons shared between the state machine and the validator.
const (
	ReasonNotOwner          = "caller does not own item"
	ReasonAlreadyListed     = "item is already listed"
	ReasonNoAuction         = "no auction for item"
	ReasonAuctionConcluded  = "auction already concluded"
	ReasonAuctionEnded      = "auction has ended"
	ReasonAuctionNotEnded   = "auction has not ended"
	ReasonBidTooLow         = "bid must exceed current price"
	ReasonInsufficientFunds = "insufficient balance"
	ReasonNotSeller         = "caller is not the seller"
	ReasonNotHighestBidder  = "not highest bidder"
	ReasonHasBids           = "auction already has bids"
	ReasonNoBids            = "auction has no bids"
	ReasonPriceNotLower     = "new price must be positive and below current price"
	ReasonNotAuthorized     = "not authorized"
	ReasonFeeOutOfRange     = "fee out of range"
	ReasonAlreadyManager    = "address is already a manager"
	ReasonNotManager        = "address is not a manager"
	ReasonSameAdmin         = "new admin is the current admin"
	ReasonInvalidAddress    = "invalid address"
	ReasonAmountNotPositive = "amount must be positive"
	ReasonEmptyBalance      = "house balance is zero"
	ReasonUnknownCollection = "unknown collection"
	ReasonNotCreator        = "caller is not the collection creator"
	ReasonEmptyName         = "name and symbol are required"
	ReasonInvalidEndTime    = "end time must be in the future"
)
