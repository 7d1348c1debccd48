// Package ledger defines the contract with the external append-only ledger:
// the raw event shapes observed by the ingestor, the commands the service
// forwards after validation, and the pending-transaction handle through
// which settlement results are reported.
package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

// Cursor is a resumable position in the ledger's event stream. Cursor N
// means "everything up to and including sequence N has been seen".
type Cursor uint64

// Kind identifies the type of a raw ledger event.
type Kind string

const (
	KindItemTransfer      Kind = "item.transfer"
	KindCollectionCreated Kind = "collection.created"
	KindAuctionListed     Kind = "auction.listed"
	KindBidPlaced         Kind = "auction.bid_placed"
	KindPriceLowered      Kind = "auction.price_lowered"
	KindAdminTransferred  Kind = "house.admin_transferred"
	KindManagerToggled    Kind = "house.manager_toggled"
	KindFeeChanged        Kind = "house.fee_changed"
)

// RawEvent is one immutable entry of the ledger's event log. Seq is the
// ledger sequence number, the total order and deduplication key.
type RawEvent struct {
	Seq  uint64          `json:"seq"`
	Time time.Time       `json:"time"`
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Decoded payloads. Amounts travel as decimal strings and times as unix
// milliseconds; Decode parses them so a malformed event surfaces as a
// single error at the ingestion boundary.

type ItemTransfer struct {
	Collection domain.Address
	TokenID    uint64
	From       domain.Address
	To         domain.Address
	TokenURI   string
}

type CollectionCreated struct {
	Collection domain.Address
	Creator    domain.Address
	Name       string
	Symbol     string
}

type AuctionListed struct {
	Collection domain.Address
	TokenID    uint64
	Seller     domain.Address
	Price      *big.Int
	EndTime    time.Time
}

type BidPlaced struct {
	Collection domain.Address
	TokenID    uint64
	Bidder     domain.Address
	Amount     *big.Int
}

type PriceLowered struct {
	Collection domain.Address
	TokenID    uint64
	Price      *big.Int
}

type AdminTransferred struct {
	Previous domain.Address
	New      domain.Address
}

type ManagerToggled struct {
	Account domain.Address
	Enabled bool
}

type FeeChanged struct {
	Rate *big.Int
}

// Wire representations.

type itemTransferWire struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	TokenURI   string `json:"token_uri"`
}

type collectionCreatedWire struct {
	Collection string `json:"collection"`
	Creator    string `json:"creator"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
}

type auctionListedWire struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Seller     string `json:"seller"`
	Price      string `json:"price"`
	EndTimeMS  int64  `json:"end_time_ms"`
}

type bidPlacedWire struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Bidder     string `json:"bidder"`
	Amount     string `json:"amount"`
}

type priceLoweredWire struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Price      string `json:"price"`
}

type adminTransferredWire struct {
	Previous string `json:"previous"`
	New      string `json:"new"`
}

type managerToggledWire struct {
	Account string `json:"account"`
	Enabled bool   `json:"enabled"`
}

type feeChangedWire struct {
	Rate string `json:"rate"`
}

// Decode parses the event payload into its typed form. It returns an error
// for unknown kinds and unparseable fields; callers treat that as a
// malformed event (warn and skip), never as fatal.
func (e RawEvent) Decode() (any, error) {
	switch e.Kind {
	case KindItemTransfer:
		var w itemTransferWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		if w.Collection == "" || w.To == "" {
			return nil, fmt.Errorf("decode %s: missing collection or recipient", e.Kind)
		}
		return &ItemTransfer{
			Collection: domain.Address(w.Collection),
			TokenID:    w.TokenID,
			From:       domain.Address(w.From),
			To:         domain.Address(w.To),
			TokenURI:   w.TokenURI,
		}, nil
	case KindCollectionCreated:
		var w collectionCreatedWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		if w.Collection == "" {
			return nil, fmt.Errorf("decode %s: missing collection address", e.Kind)
		}
		return &CollectionCreated{
			Collection: domain.Address(w.Collection),
			Creator:    domain.Address(w.Creator),
			Name:       w.Name,
			Symbol:     w.Symbol,
		}, nil
	case KindAuctionListed:
		var w auctionListedWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		price, err := domain.ParseAmount(w.Price)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return &AuctionListed{
			Collection: domain.Address(w.Collection),
			TokenID:    w.TokenID,
			Seller:     domain.Address(w.Seller),
			Price:      price,
			EndTime:    time.UnixMilli(w.EndTimeMS).UTC(),
		}, nil
	case KindBidPlaced:
		var w bidPlacedWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		amount, err := domain.ParseAmount(w.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return &BidPlaced{
			Collection: domain.Address(w.Collection),
			TokenID:    w.TokenID,
			Bidder:     domain.Address(w.Bidder),
			Amount:     amount,
		}, nil
	case KindPriceLowered:
		var w priceLoweredWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		price, err := domain.ParseAmount(w.Price)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return &PriceLowered{
			Collection: domain.Address(w.Collection),
			TokenID:    w.TokenID,
			Price:      price,
		}, nil
	case KindAdminTransferred:
		var w adminTransferredWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return &AdminTransferred{
			Previous: domain.Address(w.Previous),
			New:      domain.Address(w.New),
		}, nil
	case KindManagerToggled:
		var w managerToggledWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return &ManagerToggled{
			Account: domain.Address(w.Account),
			Enabled: w.Enabled,
		}, nil
	case KindFeeChanged:
		var w feeChangedWire
		if err := json.Unmarshal(e.Data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		rate, err := domain.ParseAmount(w.Rate)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
		}
		return &FeeChanged{Rate: rate}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// Encode builds the wire payload for a typed event payload. Backends use
// it when appending events; Decode is its inverse.
func Encode(payload any) (Kind, json.RawMessage, error) {
	var (
		kind Kind
		wire any
	)
	switch p := payload.(type) {
	case *ItemTransfer:
		kind = KindItemTransfer
		wire = itemTransferWire{
			Collection: string(p.Collection),
			TokenID:    p.TokenID,
			From:       string(p.From),
			To:         string(p.To),
			TokenURI:   p.TokenURI,
		}
	case *CollectionCreated:
		kind = KindCollectionCreated
		wire = collectionCreatedWire{
			Collection: string(p.Collection),
			Creator:    string(p.Creator),
			Name:       p.Name,
			Symbol:     p.Symbol,
		}
	case *AuctionListed:
		kind = KindAuctionListed
		wire = auctionListedWire{
			Collection: string(p.Collection),
			TokenID:    p.TokenID,
			Seller:     string(p.Seller),
			Price:      domain.FormatAmount(p.Price),
			EndTimeMS:  p.EndTime.UnixMilli(),
		}
	case *BidPlaced:
		kind = KindBidPlaced
		wire = bidPlacedWire{
			Collection: string(p.Collection),
			TokenID:    p.TokenID,
			Bidder:     string(p.Bidder),
			Amount:     domain.FormatAmount(p.Amount),
		}
	case *PriceLowered:
		kind = KindPriceLowered
		wire = priceLoweredWire{
			Collection: string(p.Collection),
			TokenID:    p.TokenID,
			Price:      domain.FormatAmount(p.Price),
		}
	case *AdminTransferred:
		kind = KindAdminTransferred
		wire = adminTransferredWire{Previous: string(p.Previous), New: string(p.New)}
	case *ManagerToggled:
		kind = KindManagerToggled
		wire = managerToggledWire{Account: string(p.Account), Enabled: p.Enabled}
	case *FeeChanged:
		kind = KindFeeChanged
		wire = feeChangedWire{Rate: domain.FormatAmount(p.Rate)}
	default:
		return "", nil, fmt.Errorf("unsupported payload type %T", payload)
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return kind, data, nil
}
