package web

import (
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/service"
)

// Wire representations. Amounts travel as 18-decimal base-unit strings.

type itemJSON struct {
	Collection       string           `json:"collection"`
	TokenID          uint64           `json:"token_id"`
	Owner            string           `json:"owner"`
	TokenURI         string           `json:"token_uri"`
	Metadata         *domain.Metadata `json:"metadata,omitempty"`
	CollectionName   string           `json:"collection_name,omitempty"`
	CollectionSymbol string           `json:"collection_symbol,omitempty"`
}

type auctionJSON struct {
	Collection    string    `json:"collection"`
	TokenID       uint64    `json:"token_id"`
	Seller        string    `json:"seller"`
	Price         string    `json:"price"`
	EndTime       time.Time `json:"end_time"`
	HighestBidder string    `json:"highest_bidder,omitempty"`
	Status        string    `json:"status"`
	Outcome       string    `json:"outcome,omitempty"`
	Item          *itemJSON `json:"item,omitempty"`
}

type collectionJSON struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}

type houseJSON struct {
	Admin    string   `json:"admin"`
	FeeRate  string   `json:"fee_rate"`
	Managers []string `json:"managers"`
	Balance  string   `json:"balance,omitempty"`
}

func toItemJSON(v *service.ItemView) *itemJSON {
	out := &itemJSON{
		Collection: string(v.Item.Collection),
		TokenID:    v.Item.TokenID,
		Owner:      string(v.Item.Owner),
		TokenURI:   v.Item.TokenURI,
		Metadata:   v.Metadata,
	}
	if v.Collection != nil {
		out.CollectionName = v.Collection.Name
		out.CollectionSymbol = v.Collection.Symbol
	}
	return out
}

func toItemsJSON(views []*service.ItemView) []*itemJSON {
	out := make([]*itemJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toItemJSON(v))
	}
	return out
}

func toAuctionJSON(v *service.AuctionView) *auctionJSON {
	out := &auctionJSON{
		Collection: string(v.Auction.Collection),
		TokenID:    v.Auction.TokenID,
		Seller:     string(v.Auction.Seller),
		Price:      domain.FormatAmount(v.Auction.Price),
		EndTime:    v.Auction.EndTime,
		Status:     string(v.Status),
		Outcome:    string(v.Auction.Outcome),
	}
	if v.Auction.HasBids() {
		out.HighestBidder = string(v.Auction.HighestBidder)
	}
	if v.Item != nil {
		out.Item = toItemJSON(v.Item)
	}
	return out
}

func toAuctionsJSON(views []*service.AuctionView) []*auctionJSON {
	out := make([]*auctionJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toAuctionJSON(v))
	}
	return out
}

func toCollectionJSON(c *domain.Collection) *collectionJSON {
	return &collectionJSON{
		Address:   string(c.Address),
		Name:      c.Name,
		Symbol:    c.Symbol,
		Creator:   string(c.Creator),
		CreatedAt: c.CreatedAt,
	}
}

func toHouseJSON(info *service.HouseInfo) *houseJSON {
	out := &houseJSON{
		Admin:    string(info.Admin),
		FeeRate:  domain.FormatAmount(info.FeeRate),
		Managers: make([]string, 0, len(info.Managers)),
	}
	for _, m := range info.Managers {
		out.Managers = append(out.Managers, string(m))
	}
	if info.Balance != nil {
		out.Balance = domain.FormatAmount(info.Balance)
	}
	return out
}
