// Package ingest drains the ledger's event stream into the projection. The
// ingestor is stateless except for its cursor, which the projection
// checkpoints; it can restart from any previously saved position because
// the fold deduplicates by sequence number.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vbonduro/auctionhouse/internal/ledger"
	"github.com/vbonduro/auctionhouse/internal/projection"
)

// Applier is the subset of projection.Store the ingestor requires.
type Applier interface {
	Apply(ctx context.Context, ev ledger.RawEvent) (bool, error)
	Cursor(ctx context.Context) (ledger.Cursor, error)
	SaveCursor(ctx context.Context, c ledger.Cursor) error
}

type Ingestor struct {
	ledger    ledger.Ledger
	applier   Applier
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	hooks     []func(ledger.RawEvent)
}

func New(l ledger.Ledger, applier Applier, logger *slog.Logger, interval time.Duration, batchSize int) *Ingestor {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Ingestor{
		ledger:    l,
		applier:   applier,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// OnApplied registers a hook invoked after each event changes the
// projection. Hooks must not block; the web layer uses one to feed the
// live event broadcast. Not safe to call after Run has started.
func (i *Ingestor) OnApplied(fn func(ledger.RawEvent)) {
	i.hooks = append(i.hooks, fn)
}

// Run polls the ledger until ctx is cancelled. It stops only between
// events; a partially processed batch resumes from the last applied
// sequence on the next start.
func (i *Ingestor) Run(ctx context.Context) error {
	cursor, err := i.applier.Cursor(ctx)
	if err != nil {
		return err
	}
	i.logger.Info("ingestor started", "cursor", uint64(cursor))

	for {
		cursor = i.drainOnce(ctx, cursor)
		select {
		case <-ctx.Done():
			i.logger.Info("ingestor stopped", "cursor", uint64(cursor))
			return ctx.Err()
		case <-time.After(i.interval):
		}
	}
}

// DrainOnce pulls and applies everything currently available. Exposed for
// callers that pump the projection synchronously (tests, rebuild tooling).
func (i *Ingestor) DrainOnce(ctx context.Context) error {
	cursor, err := i.applier.Cursor(ctx)
	if err != nil {
		return err
	}
	i.drainOnce(ctx, cursor)
	return nil
}

func (i *Ingestor) drainOnce(ctx context.Context, cursor ledger.Cursor) ledger.Cursor {
	for {
		if ctx.Err() != nil {
			return cursor
		}
		events, _, err := i.ledger.Events(ctx, cursor, i.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				i.logger.Error("failed to query ledger events", "cursor", uint64(cursor), "error", err)
			}
			return cursor
		}
		if len(events) == 0 {
			return cursor
		}

		applied := cursor
		for _, ev := range events {
			if ctx.Err() != nil {
				break
			}
			ok, err := i.applier.Apply(ctx, ev)
			if errors.Is(err, projection.ErrMalformed) {
				// Unparseable events are dropped; ingestion continues.
				i.logger.Warn("skipping malformed event", "seq", ev.Seq, "kind", ev.Kind, "error", err)
				applied = ledger.Cursor(ev.Seq)
				continue
			}
			if err != nil {
				// Storage error: stop before this event so the next poll
				// retries it. The cursor never moves past an unapplied event.
				i.logger.Error("failed to apply event", "seq", ev.Seq, "kind", ev.Kind, "error", err)
				break
			}
			applied = ledger.Cursor(ev.Seq)
			if ok {
				for _, hook := range i.hooks {
					hook(ev)
				}
			}
		}

		if applied != cursor {
			if err := i.applier.SaveCursor(ctx, applied); err != nil {
				i.logger.Error("failed to save cursor", "cursor", uint64(applied), "error", err)
			}
		}
		if applied != ledger.Cursor(events[len(events)-1].Seq) {
			// Stopped mid-batch; retry from the last applied position.
			return applied
		}
		cursor = applied
	}
}
