package projection

import (
	"context"
	"database/sql"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
)

func (s *Store) applyItemTransfer(ctx context.Context, tx *sql.Tx, ev ledger.RawEvent, p *ledger.ItemTransfer) error {
	// Upsert: the first transfer for a key creates the item, every later
	// one overwrites the owner. A changed token URI replaces the stored one;
	// metadata is cached per URI downstream, so the new URI resolves fresh.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO items (collection, token_id, owner, token_uri) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, token_id)
		DO UPDATE SET owner = excluded.owner, token_uri = excluded.token_uri
	`, string(p.Collection), p.TokenID, string(p.To), p.TokenURI)
	if err != nil {
		return err
	}

	if p.From != s.house || p.To == s.house {
		return nil
	}

	// The item left the house: if a live auction exists for the key, this
	// transfer is its settlement. The outcome is inferred from who received
	// the item, per the lifecycle table.
	a, err := scanAuction(tx.QueryRowContext(ctx, auctionSelect+`
		WHERE collection = ? AND token_id = ? AND concluded = 0
	`, string(p.Collection), p.TokenID))
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}

	outcome := domain.OutcomeCancelled
	switch {
	case a.HasBids() && p.To == a.HighestBidder:
		outcome = domain.OutcomeClaimed
	case !a.HasBids() && p.To == a.Seller && ev.Time.Before(a.EndTime):
		outcome = domain.OutcomeCancelled
	case !a.HasBids() && p.To == a.Seller:
		outcome = domain.OutcomeReclaimed
	default:
		s.logger.Warn("unexpected settlement transfer recipient",
			"collection", p.Collection, "token_id", p.TokenID, "to", p.To, "seq", ev.Seq)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE auctions SET concluded = 1, outcome = ?
		WHERE collection = ? AND token_id = ? AND concluded = 0
	`, string(outcome), string(p.Collection), p.TokenID)
	return err
}

func (s *Store) applyCollectionCreated(ctx context.Context, tx *sql.Tx, ev ledger.RawEvent, p *ledger.CollectionCreated) error {
	// Duplicate CollectionCreated for an existing address is a no-op.
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO collections (address, name, symbol, creator, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(p.Collection), p.Name, p.Symbol, string(p.Creator), ev.Time.UTC())
	return err
}

func (s *Store) applyAuctionListed(ctx context.Context, tx *sql.Tx, p *ledger.AuctionListed) error {
	var live int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auctions WHERE collection = ? AND token_id = ? AND concluded = 0
	`, string(p.Collection), p.TokenID).Scan(&live)
	if err != nil {
		return err
	}
	if live > 0 {
		// At most one live auction per key; the ledger should never emit
		// this, so keep the existing record and flag the discrepancy.
		s.logger.Warn("listing for key with live auction ignored",
			"collection", p.Collection, "token_id", p.TokenID)
		return nil
	}

	var owner sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT owner FROM items WHERE collection = ? AND token_id = ?
	`, string(p.Collection), p.TokenID).Scan(&owner)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if !owner.Valid || domain.Address(owner.String) != s.house {
		// Transfer events are authoritative for ownership; a listing for an
		// item the projection does not consider house-held is the
		// discrepancy signal worth surfacing.
		s.logger.Warn("listing for item not held by house",
			"collection", p.Collection, "token_id", p.TokenID)
	}

	// A concluded prior record for the key is replaced by the new listing.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO auctions (collection, token_id, seller, price, end_time_ms, highest_bidder, concluded, outcome)
		VALUES (?, ?, ?, ?, ?, '', 0, '')
		ON CONFLICT (collection, token_id)
		DO UPDATE SET seller = excluded.seller, price = excluded.price,
			end_time_ms = excluded.end_time_ms, highest_bidder = '',
			concluded = 0, outcome = ''
	`, string(p.Collection), p.TokenID, string(p.Seller), domain.FormatAmount(p.Price), p.EndTime.UnixMilli())
	return err
}

func (s *Store) applyBidPlaced(ctx context.Context, tx *sql.Tx, ev ledger.RawEvent, p *ledger.BidPlaced) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE auctions SET price = ?, highest_bidder = ?
		WHERE collection = ? AND token_id = ? AND concluded = 0
	`, domain.FormatAmount(p.Amount), string(p.Bidder), string(p.Collection), p.TokenID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Warn("bid for unknown or concluded auction ignored",
			"collection", p.Collection, "token_id", p.TokenID, "seq", ev.Seq)
	}
	return nil
}

func (s *Store) applyPriceLowered(ctx context.Context, tx *sql.Tx, ev ledger.RawEvent, p *ledger.PriceLowered) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE auctions SET price = ?
		WHERE collection = ? AND token_id = ? AND concluded = 0
	`, domain.FormatAmount(p.Price), string(p.Collection), p.TokenID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Warn("price update for unknown or concluded auction ignored",
			"collection", p.Collection, "token_id", p.TokenID, "seq", ev.Seq)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const auctionSelect = `
	SELECT collection, token_id, seller, price, end_time_ms, highest_bidder, concluded, outcome
	FROM auctions
`

func scanAuctionInto(sc rowScanner) (*domain.Auction, error) {
	var a domain.Auction
	var collection, seller, bidder, price, outcome string
	var endMS int64
	var concluded int
	if err := sc.Scan(&collection, &a.TokenID, &seller, &price, &endMS, &bidder, &concluded, &outcome); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseAmount(price)
	if err != nil {
		return nil, err
	}
	a.Collection = domain.Address(collection)
	a.Seller = domain.Address(seller)
	a.Price = parsed
	a.EndTime = time.UnixMilli(endMS).UTC()
	a.HighestBidder = domain.Address(bidder)
	a.Concluded = concluded != 0
	a.Outcome = domain.Outcome(outcome)
	return &a, nil
}

func scanAuction(row *sql.Row) (*domain.Auction, error) {
	a, err := scanAuctionInto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}
