package service

import (
	"context"
	"math/big"
	"time"

	"github.com/vbonduro/auctionhouse/internal/auction"
	"github.com/vbonduro/auctionhouse/internal/domain"
)

// ItemView bundles an item with its resolved metadata and collection info
// for rendering. Metadata is nil when resolution failed or is pending.
type ItemView struct {
	*domain.Item
	Metadata   *domain.Metadata
	Collection *domain.Collection
}

// AuctionView bundles an auction with its item view and derived status.
type AuctionView struct {
	*domain.Auction
	Item   *ItemView
	Status auction.Status
}

// HouseInfo is the administrative snapshot of the house. Balance is nil
// when the oracle was unreachable.
type HouseInfo struct {
	Admin    domain.Address
	FeeRate  *big.Int
	Managers []domain.Address
	Balance  *big.Int
}

// OwnedItems lists owner's items with metadata attached.
func (s *AuctionService) OwnedItems(ctx context.Context, owner domain.Address) ([]*ItemView, error) {
	items, err := s.snap.ItemsOwnedBy(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]*ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, s.itemView(ctx, item))
	}
	return views, nil
}

// Auctions lists every auction that has not reached a terminal outcome.
// When seller is non-empty only that seller's auctions are returned.
func (s *AuctionService) Auctions(ctx context.Context, seller domain.Address) ([]*AuctionView, error) {
	auctions, err := s.snap.LiveAuctions(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]*AuctionView, 0, len(auctions))
	for _, a := range auctions {
		if seller != "" && a.Seller != seller {
			continue
		}
		views = append(views, s.auctionView(ctx, a, now))
	}
	return views, nil
}

// AuctionDetail returns the full view for one auction key, nil when no
// auction record exists.
func (s *AuctionService) AuctionDetail(ctx context.Context, key domain.TokenKey) (*AuctionView, error) {
	a, err := s.snap.AuctionFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	return s.auctionView(ctx, a, s.now()), nil
}

// Collections lists collections, filtered to one creator when non-empty.
func (s *AuctionService) Collections(ctx context.Context, creator domain.Address) ([]*domain.Collection, error) {
	return s.snap.CollectionsByCreator(ctx, creator)
}

func (s *AuctionService) Collection(ctx context.Context, addr domain.Address) (*domain.Collection, error) {
	return s.snap.CollectionInfo(ctx, addr)
}

// House reports the current admin, fee rate, manager roster and coin
// balance of the house.
func (s *AuctionService) House(ctx context.Context) (*HouseInfo, error) {
	admin, err := s.snap.Admin(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := s.snap.FeeRate(ctx)
	if err != nil {
		return nil, err
	}
	managers, err := s.snap.Managers(ctx)
	if err != nil {
		return nil, err
	}
	info := &HouseInfo{Admin: admin, FeeRate: rate, Managers: managers}
	if bal, err := s.oracle.BalanceOf(ctx, s.house); err != nil {
		s.logger.Warn("house balance unavailable", "error", err)
	} else {
		info.Balance = bal
	}
	return info, nil
}

func (s *AuctionService) itemView(ctx context.Context, item *domain.Item) *ItemView {
	view := &ItemView{Item: item}
	if item.TokenURI != "" {
		md, err := s.resolver.Resolve(ctx, item.TokenURI)
		if err != nil {
			// Reads never fail on a slow gateway; the field stays
			// unresolved until the next request retries.
			s.logger.Debug("metadata unresolved", "uri", item.TokenURI, "error", err)
		} else {
			view.Metadata = md
		}
	}
	col, err := s.snap.CollectionInfo(ctx, item.Collection)
	if err != nil {
		s.logger.Warn("collection lookup failed", "collection", item.Collection, "error", err)
	} else {
		view.Collection = col
	}
	return view
}

func (s *AuctionService) auctionView(ctx context.Context, a *domain.Auction, now time.Time) *AuctionView {
	view := &AuctionView{Auction: a, Status: auction.StatusOf(a, now)}
	item, err := s.snap.ItemFor(ctx, a.Key())
	if err != nil {
		s.logger.Warn("item lookup failed", "key", a.Key(), "error", err)
	} else if item != nil {
		view.Item = s.itemView(ctx, item)
	}
	return view
}
