// Package service is the command validator and query orchestrator. Commands
// are checked against the projected snapshot first; only commands that pass
// every local rule are forwarded to the ledger. A forwarded command changes
// nothing locally until its events come back through the projection, and a
// settlement failure is reported, never retried.
package service

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/vbonduro/auctionhouse/internal/auction"
	"github.com/vbonduro/auctionhouse/internal/balance"
	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
	"github.com/vbonduro/auctionhouse/internal/metadata"
)

// snapshot is the subset of projection.Store that AuctionService reads.
type snapshot interface {
	ItemsOwnedBy(ctx context.Context, owner domain.Address) ([]*domain.Item, error)
	ItemFor(ctx context.Context, key domain.TokenKey) (*domain.Item, error)
	AuctionFor(ctx context.Context, key domain.TokenKey) (*domain.Auction, error)
	LiveAuctions(ctx context.Context) ([]*domain.Auction, error)
	CollectionInfo(ctx context.Context, addr domain.Address) (*domain.Collection, error)
	CollectionsByCreator(ctx context.Context, creator domain.Address) ([]*domain.Collection, error)
	Admin(ctx context.Context) (domain.Address, error)
	FeeRate(ctx context.Context) (*big.Int, error)
	Managers(ctx context.Context) ([]domain.Address, error)
	IsManager(ctx context.Context, addr domain.Address) (bool, error)
}

type AuctionService struct {
	snap     snapshot
	ledger   ledger.Ledger
	oracle   balance.Oracle
	resolver metadata.Resolver
	house    domain.Address
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuctionService(
	snap snapshot,
	led ledger.Ledger,
	oracle balance.Oracle,
	resolver metadata.Resolver,
	house domain.Address,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		snap:     snap,
		ledger:   led,
		oracle:   oracle,
		resolver: resolver,
		house:    house,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for lifecycle checks.
func (s *AuctionService) SetNowFunc(now func() time.Time) {
	s.now = now
}

// submit forwards a validated command and watches its settlement in the
// background so a ledger-side refusal always lands in the log.
func (s *AuctionService) submit(ctx context.Context, cmd ledger.Command) (*ledger.TxHandle, error) {
	handle, err := s.ledger.Submit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	go func() {
		<-handle.Done()
		if res := handle.Result(); res.Err != nil {
			s.logger.Warn("command failed to settle",
				"submission", handle.ID, "command", handle.Command, "error", res.Err)
		}
	}()
	return handle, nil
}

// ListItem puts an item up for auction. The caller must own it and it must
// not already be listed.
func (s *AuctionService) ListItem(ctx context.Context, caller domain.Address, key domain.TokenKey, price *big.Int, endTime time.Time) (*ledger.TxHandle, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, domain.ValidationFailure(domain.ReasonAmountNotPositive)
	}
	if !endTime.After(s.now()) {
		return nil, domain.ValidationFailure(domain.ReasonInvalidEndTime)
	}
	item, err := s.snap.ItemFor(ctx, key)
	if err != nil {
		return nil, err
	}
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanList(item, a, caller); err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.ListItem{
		Caller:     caller,
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Price:      price,
		EndTime:    endTime,
		TokenURI:   item.TokenURI,
	})
}

// PlaceBid bids on a live auction. The amount must strictly exceed the
// current price and, when the oracle is reachable, fit the caller's balance.
func (s *AuctionService) PlaceBid(ctx context.Context, caller domain.Address, key domain.TokenKey, amount *big.Int) (*ledger.TxHandle, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanBid(a, amount, s.now()); err != nil {
		return nil, err
	}
	bal, err := s.oracle.BalanceOf(ctx, caller)
	if err != nil {
		// The ledger re-checks funds at settlement, so an unreachable
		// oracle forfeits only the early rejection.
		s.logger.Warn("balance check skipped", "bidder", caller, "error", err)
	} else if bal.Cmp(amount) < 0 {
		return nil, domain.ValidationFailure(domain.ReasonInsufficientFunds)
	}
	return s.submit(ctx, ledger.PlaceBid{
		Caller:     caller,
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Amount:     amount,
	})
}

// LowerPrice reduces the asking price of a bidless listing.
func (s *AuctionService) LowerPrice(ctx context.Context, caller domain.Address, key domain.TokenKey, price *big.Int) (*ledger.TxHandle, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanLowerPrice(a, caller, price, s.now()); err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.LowerPrice{
		Caller:     caller,
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Price:      price,
	})
}

// CancelAuction withdraws a bidless listing before its end time.
func (s *AuctionService) CancelAuction(ctx context.Context, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanCancel(a, caller, s.now()); err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.CancelAuction{Caller: caller, Collection: key.Collection, TokenID: key.TokenID})
}

// EndAuction settles a bid-carrying auction early, seller only.
func (s *AuctionService) EndAuction(ctx context.Context, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanEnd(a, caller, s.now()); err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.EndAuction{Caller: caller, Collection: key.Collection, TokenID: key.TokenID})
}

// ReclaimItem takes back an item whose auction ended without bids.
func (s *AuctionService) ReclaimItem(ctx context.Context, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanReclaim(a, caller, s.now()); err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.ReclaimItem{Caller: caller, Collection: key.Collection, TokenID: key.TokenID})
}

// ClaimItem hands a won item to the highest bidder after the end time.
func (s *AuctionService) ClaimItem(ctx context.Context, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := auction.CanClaim(a, caller, s.now()); err != nil {
		return nil, err
	}
	return s.submit(ctx, ledger.ClaimItem{Caller: caller, Collection: key.Collection, TokenID: key.TokenID})
}

// CreateCollection registers a new item category under the caller.
func (s *AuctionService) CreateCollection(ctx context.Context, caller domain.Address, name, symbol string) (*ledger.TxHandle, error) {
	if name == "" || symbol == "" {
		return nil, domain.ValidationFailure(domain.ReasonEmptyName)
	}
	return s.submit(ctx, ledger.CreateCollection{Caller: caller, Name: name, Symbol: symbol})
}

// MintItem mints the next token of a collection to its creator.
func (s *AuctionService) MintItem(ctx context.Context, caller domain.Address, collection domain.Address, tokenURI string) (*ledger.TxHandle, error) {
	col, err := s.snap.CollectionInfo(ctx, collection)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, domain.ValidationFailure(domain.ReasonUnknownCollection)
	}
	if col.Creator != caller {
		return nil, domain.PolicyViolation(domain.ReasonNotCreator)
	}
	return s.submit(ctx, ledger.MintItem{Caller: caller, Collection: collection, TokenURI: tokenURI})
}

// MintCoin credits the caller with freshly minted coin.
func (s *AuctionService) MintCoin(ctx context.Context, caller domain.Address, amount *big.Int) (*ledger.TxHandle, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ValidationFailure(domain.ReasonAmountNotPositive)
	}
	return s.submit(ctx, ledger.MintCoin{Caller: caller, Amount: amount})
}
