// Package projection folds ledger events into the current-state view of
// items, collections, auctions, and house roles. The store is the single
// owner of all projected entity state: writes are serialized through Apply,
// reads go straight to SQLite and observe a monotonically advancing view.
package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
)

// ErrMalformed marks an event whose payload could not be decoded. The
// ingestor logs and skips such events; they are never fatal.
var ErrMalformed = errors.New("malformed event")

type Store struct {
	db     *sql.DB
	house  domain.Address
	logger *slog.Logger

	// mu enforces the single-writer discipline on Apply.
	mu sync.Mutex
}

// NewStore builds a projection store. house is the auction-house address;
// items owned by it are the listed inventory.
func NewStore(db *sql.DB, house domain.Address, logger *slog.Logger) *Store {
	return &Store{db: db, house: house, logger: logger}
}

// House returns the auction-house address this projection tracks.
func (s *Store) House() domain.Address {
	return s.house
}

// Apply folds one raw event into the projection. It is idempotent: events
// are keyed by ledger sequence number, and a sequence number seen before
// has no effect. The first return value reports whether the event changed
// the projection (false for duplicates).
func (s *Store) Apply(ctx context.Context, ev ledger.RawEvent) (bool, error) {
	payload, err := ev.Decode()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO applied_events (seq) VALUES (?)`, ev.Seq)
	if err != nil {
		return false, fmt.Errorf("failed to record event seq: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		// Redelivery of an already-applied sequence number.
		return false, nil
	}

	switch p := payload.(type) {
	case *ledger.ItemTransfer:
		err = s.applyItemTransfer(ctx, tx, ev, p)
	case *ledger.CollectionCreated:
		err = s.applyCollectionCreated(ctx, tx, ev, p)
	case *ledger.AuctionListed:
		err = s.applyAuctionListed(ctx, tx, p)
	case *ledger.BidPlaced:
		err = s.applyBidPlaced(ctx, tx, ev, p)
	case *ledger.PriceLowered:
		err = s.applyPriceLowered(ctx, tx, ev, p)
	case *ledger.AdminTransferred:
		_, err = tx.ExecContext(ctx, `UPDATE house SET admin = ? WHERE id = 1`, string(p.New))
	case *ledger.ManagerToggled:
		if p.Enabled {
			_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO managers (address) VALUES (?)`, string(p.Account))
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM managers WHERE address = ?`, string(p.Account))
		}
	case *ledger.FeeChanged:
		_, err = tx.ExecContext(ctx, `UPDATE house SET fee_rate = ? WHERE id = 1`, domain.FormatAmount(p.Rate))
	}
	if err != nil {
		return false, fmt.Errorf("failed to apply %s (seq %d): %w", ev.Kind, ev.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit event %d: %w", ev.Seq, err)
	}
	return true, nil
}

// Cursor returns the last checkpointed ledger position.
func (s *Store) Cursor(ctx context.Context) (ledger.Cursor, error) {
	var seq uint64
	if err := s.db.QueryRowContext(ctx, `SELECT seq FROM cursor WHERE id = 1`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to load cursor: %w", err)
	}
	return ledger.Cursor(seq), nil
}

// SaveCursor checkpoints the ledger position to resume from after restart.
func (s *Store) SaveCursor(ctx context.Context, c ledger.Cursor) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE cursor SET seq = ? WHERE id = 1`, uint64(c)); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}
