package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/auctionhouse/internal/db"
	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
	"github.com/vbonduro/auctionhouse/internal/ledger/memory"
	"github.com/vbonduro/auctionhouse/internal/projection"
)

const (
	house = domain.Address("0x00000000000000000000000000000000000a0c71")
	admin = domain.Address("0x0000000000000000000000000000000000000001")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *projection.Store {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return projection.NewStore(d, house, discardLogger())
}

func TestDrainAppliesEverything(t *testing.T) {
	led := memory.New(house, admin)
	store := newTestStore(t)
	ctx := context.Background()

	h, err := led.Submit(ctx, ledger.CreateCollection{Caller: admin, Name: "Artifacts", Symbol: "ART"})
	require.NoError(t, err)
	<-h.Done()
	require.NoError(t, h.Result().Err)

	ing := New(led, store, discardLogger(), time.Second, 100)
	require.NoError(t, ing.DrainOnce(ctx))

	got, err := store.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, got)

	cursor, err := store.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Cursor(2), cursor)

	// Draining again finds nothing new.
	require.NoError(t, ing.DrainOnce(ctx))
	cursor, err = store.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Cursor(2), cursor)
}

func TestDrainInvokesHooks(t *testing.T) {
	led := memory.New(house, admin)
	store := newTestStore(t)

	var seen []uint64
	ing := New(led, store, discardLogger(), time.Second, 100)
	ing.OnApplied(func(ev ledger.RawEvent) { seen = append(seen, ev.Seq) })

	require.NoError(t, ing.DrainOnce(context.Background()))
	assert.Equal(t, []uint64{1}, seen)

	// Redelivered events do not fire hooks again.
	require.NoError(t, store.SaveCursor(context.Background(), 0))
	require.NoError(t, ing.DrainOnce(context.Background()))
	assert.Equal(t, []uint64{1}, seen)
}

// stubLedger serves a canned event slice.
type stubLedger struct {
	events []ledger.RawEvent
}

func (s *stubLedger) Events(_ context.Context, from ledger.Cursor, limit int) ([]ledger.RawEvent, ledger.Cursor, error) {
	start := int(from)
	if start >= len(s.events) {
		return nil, from, nil
	}
	end := len(s.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	batch := s.events[start:end]
	return batch, ledger.Cursor(batch[len(batch)-1].Seq), nil
}

func (s *stubLedger) Submit(context.Context, ledger.Command) (*ledger.TxHandle, error) {
	return nil, errors.New("not implemented")
}

func mkEvent(t *testing.T, seq uint64, payload any) ledger.RawEvent {
	t.Helper()
	kind, data, err := ledger.Encode(payload)
	require.NoError(t, err)
	return ledger.RawEvent{Seq: seq, Time: time.Now().UTC(), Kind: kind, Data: data}
}

func TestMalformedEventSkipped(t *testing.T) {
	store := newTestStore(t)
	led := &stubLedger{events: []ledger.RawEvent{
		mkEvent(t, 1, &ledger.AdminTransferred{Previous: domain.ZeroAddress, New: admin}),
		{Seq: 2, Time: time.Now().UTC(), Kind: "mystery.kind", Data: []byte(`{}`)},
		mkEvent(t, 3, &ledger.FeeChanged{Rate: big.NewInt(7)}),
	}}

	ing := New(led, store, discardLogger(), time.Second, 100)
	require.NoError(t, ing.DrainOnce(context.Background()))

	// The malformed event is skipped, not a roadblock.
	cursor, err := store.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.Cursor(3), cursor)

	rate, err := store.FeeRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", rate.String())
}

// failingApplier rejects a chosen sequence with a storage error.
type failingApplier struct {
	inner   *projection.Store
	failSeq uint64
}

func (f *failingApplier) Apply(ctx context.Context, ev ledger.RawEvent) (bool, error) {
	if ev.Seq == f.failSeq {
		return false, errors.New("disk on fire")
	}
	return f.inner.Apply(ctx, ev)
}

func (f *failingApplier) Cursor(ctx context.Context) (ledger.Cursor, error) {
	return f.inner.Cursor(ctx)
}

func (f *failingApplier) SaveCursor(ctx context.Context, c ledger.Cursor) error {
	return f.inner.SaveCursor(ctx, c)
}

func TestStorageErrorHaltsBeforeEvent(t *testing.T) {
	store := newTestStore(t)
	led := &stubLedger{events: []ledger.RawEvent{
		mkEvent(t, 1, &ledger.AdminTransferred{Previous: domain.ZeroAddress, New: admin}),
		mkEvent(t, 2, &ledger.FeeChanged{Rate: big.NewInt(7)}),
		mkEvent(t, 3, &ledger.ManagerToggled{Account: admin, Enabled: true}),
	}}
	applier := &failingApplier{inner: store, failSeq: 2}

	ing := New(led, applier, discardLogger(), time.Second, 100)
	require.NoError(t, ing.DrainOnce(context.Background()))

	// The cursor never passes the unapplied event.
	cursor, err := store.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.Cursor(1), cursor)

	// Once storage recovers the drain picks up exactly where it stopped.
	applier.failSeq = 0
	require.NoError(t, ing.DrainOnce(context.Background()))
	cursor, err = store.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.Cursor(3), cursor)
}

func TestRunStopsOnCancel(t *testing.T) {
	led := memory.New(house, admin)
	store := newTestStore(t)
	ing := New(led, store, discardLogger(), 10*time.Millisecond, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("ingestor did not stop")
	}
}
