package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

func (s *Store) ItemsOwnedBy(ctx context.Context, owner domain.Address) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, token_id, owner, token_uri FROM items
		WHERE owner = ? ORDER BY collection, token_id
	`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer closeRows(rows)

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// ItemsHeldByHouse lists items currently escrowed by the auction house.
func (s *Store) ItemsHeldByHouse(ctx context.Context) ([]*domain.Item, error) {
	return s.ItemsOwnedBy(ctx, s.house)
}

func (s *Store) ItemFor(ctx context.Context, key domain.TokenKey) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, token_id, owner, token_uri FROM items
		WHERE collection = ? AND token_id = ?
	`, string(key.Collection), key.TokenID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// AuctionFor returns the auction record for key, or nil when none exists.
// The record may be concluded; status derivation distinguishes.
func (s *Store) AuctionFor(ctx context.Context, key domain.TokenKey) (*domain.Auction, error) {
	a, err := scanAuction(s.db.QueryRowContext(ctx, auctionSelect+`
		WHERE collection = ? AND token_id = ?
	`, string(key.Collection), key.TokenID))
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// LiveAuctions lists every auction that has not reached a terminal outcome,
// including time-ended ones awaiting claim or reclaim.
func (s *Store) LiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx, auctionSelect+`
		WHERE concluded = 0 ORDER BY end_time_ms, collection, token_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer closeRows(rows)

	var auctions []*domain.Auction
	for rows.Next() {
		a, err := scanAuctionInto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	return auctions, nil
}

func (s *Store) CollectionInfo(ctx context.Context, addr domain.Address) (*domain.Collection, error) {
	c := &domain.Collection{}
	var address, creator string
	err := s.db.QueryRowContext(ctx, `
		SELECT address, name, symbol, creator, created_at FROM collections WHERE address = ?
	`, string(addr)).Scan(&address, &c.Name, &c.Symbol, &creator, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	c.Address = domain.Address(address)
	c.Creator = domain.Address(creator)
	return c, nil
}

// CollectionsByCreator lists collections, restricted to one creator when
// creator is non-empty.
func (s *Store) CollectionsByCreator(ctx context.Context, creator domain.Address) ([]*domain.Collection, error) {
	query := `SELECT address, name, symbol, creator, created_at FROM collections`
	args := []any{}
	if creator != "" {
		query += ` WHERE creator = ?`
		args = append(args, string(creator))
	}
	query += ` ORDER BY created_at, address`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer closeRows(rows)

	var collections []*domain.Collection
	for rows.Next() {
		c := &domain.Collection{}
		var address, creatorCol string
		if err := rows.Scan(&address, &c.Name, &c.Symbol, &creatorCol, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c.Address = domain.Address(address)
		c.Creator = domain.Address(creatorCol)
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}
	return collections, nil
}

func (s *Store) Admin(ctx context.Context) (domain.Address, error) {
	var admin string
	if err := s.db.QueryRowContext(ctx, `SELECT admin FROM house WHERE id = 1`).Scan(&admin); err != nil {
		return "", fmt.Errorf("failed to get admin: %w", err)
	}
	return domain.Address(admin), nil
}

func (s *Store) FeeRate(ctx context.Context) (*big.Int, error) {
	var rate string
	if err := s.db.QueryRowContext(ctx, `SELECT fee_rate FROM house WHERE id = 1`).Scan(&rate); err != nil {
		return nil, fmt.Errorf("failed to get fee rate: %w", err)
	}
	return domain.ParseAmount(rate)
}

func (s *Store) Managers(ctx context.Context) ([]domain.Address, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM managers ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	defer closeRows(rows)

	var managers []domain.Address
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan manager: %w", err)
		}
		managers = append(managers, domain.Address(addr))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating managers: %w", err)
	}
	return managers, nil
}

// IsManager reports whether addr holds the manager role. The admin is a
// distinguished manager and always qualifies.
func (s *Store) IsManager(ctx context.Context, addr domain.Address) (bool, error) {
	admin, err := s.Admin(ctx)
	if err != nil {
		return false, err
	}
	if !addr.IsZero() && addr == admin {
		return true, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM managers WHERE address = ?`, string(addr)).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check manager: %w", err)
	}
	return n > 0, nil
}

func scanItem(sc rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	var collection, owner string
	if err := sc.Scan(&collection, &item.TokenID, &owner, &item.TokenURI); err != nil {
		return nil, err
	}
	item.Collection = domain.Address(collection)
	item.Owner = domain.Address(owner)
	return item, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}
