package service

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
	"github.com/vbonduro/auctionhouse/internal/ingest"
	"github.com/vbonduro/auctionhouse/internal/ledger"
	"github.com/vbonduro/auctionhouse/internal/ledger/memory"
	"github.com/vbonduro/auctionhouse/internal/projection"
)

const (
	house   = domain.Address("0x00000000000000000000000000000000000a0c71")
	admin   = domain.Address("0x0000000000000000000000000000000000000001")
	seller  = domain.Address("0x0000000000000000000000000000000000000aaa")
	bidder1 = domain.Address("0x0000000000000000000000000000000000000bb1")
	bidder2 = domain.Address("0x0000000000000000000000000000000000000bb2")
)

var startTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubResolver avoids network fetches in service tests.
type stubResolver struct{}

func (stubResolver) Resolve(context.Context, string) (*domain.Metadata, error) {
	return &domain.Metadata{Name: "Sword", Image: "https://img"}, nil
}

// env wires a service against the in-process ledger, pumping events into
// the projection on demand the way the running ingestor would.
type env struct {
	t     *testing.T
	svc   *AuctionService
	led   *memory.Ledger
	store *projection.Store
	ing   *ingest.Ingestor
	clock time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{t: t, clock: startTime}
	e.store = projection.NewStore(d, house, logger)
	e.led = memory.New(house, admin)
	e.led.SetNowFunc(func() time.Time { return e.clock })
	e.svc = NewAuctionService(e.store, e.led, e.led, stubResolver{}, house, logger)
	e.svc.SetNowFunc(func() time.Time { return e.clock })
	e.ing = ingest.New(e.led, e.store, logger, time.Second, 100)
	e.pump()
	return e
}

// pump folds everything the ledger has emitted so far.
func (e *env) pump() {
	e.t.Helper()
	require.NoError(e.t, e.ing.DrainOnce(context.Background()))
}

func (e *env) settle(h *ledger.TxHandle, err error) {
	e.t.Helper()
	require.NoError(e.t, err)
	<-h.Done()
	require.NoError(e.t, h.Result().Err)
	e.pump()
}

func (e *env) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

// listItem mints a fresh item for seller and lists it at price, returning
// the item key.
func (e *env) listItem(price int64) domain.TokenKey {
	e.t.Helper()
	ctx := context.Background()

	e.settle(e.svc.CreateCollection(ctx, seller, "Artifacts", "ART"))
	cols, err := e.svc.Collections(ctx, seller)
	require.NoError(e.t, err)
	require.NotEmpty(e.t, cols)
	collection := cols[len(cols)-1].Address

	e.settle(e.svc.MintItem(ctx, seller, collection, "ipfs://item1"))
	items, err := e.store.ItemsOwnedBy(ctx, seller)
	require.NoError(e.t, err)
	require.NotEmpty(e.t, items)
	key := items[len(items)-1].Key()

	e.settle(e.svc.ListItem(ctx, seller, key, big.NewInt(price), e.clock.Add(time.Hour)))
	return key
}

func (e *env) fund(addr domain.Address, amount int64) {
	e.t.Helper()
	e.settle(e.svc.MintCoin(context.Background(), addr, big.NewInt(amount)))
}

func assertRejected(t *testing.T, err error, kind domain.RejectKind, reason string) {
	t.Helper()
	require.Error(t, err)
	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, kind, rej.Kind)
	assert.Equal(t, reason, rej.Reason)
}

func TestBidRaisesPriceAndBlocksLowerBids(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := e.listItem(40)
	e.fund(bidder1, 1000)
	e.fund(bidder2, 1000)

	e.settle(e.svc.PlaceBid(ctx, bidder1, key, big.NewInt(50)))

	view, err := e.svc.AuctionDetail(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "50", view.Auction.Price.String())
	assert.Equal(t, bidder1, view.Auction.HighestBidder)

	// A later bid below the new price is refused locally.
	_, err = e.svc.PlaceBid(ctx, bidder2, key, big.NewInt(45))
	assertRejected(t, err, domain.RejectPolicy, "bid must exceed current price")
}

func TestBidNeedsBalance(t *testing.T) {
	e := newEnv(t)
	key := e.listItem(40)
	e.fund(bidder1, 45)

	_, err := e.svc.PlaceBid(context.Background(), bidder1, key, big.NewInt(50))
	assertRejected(t, err, domain.RejectValidation, "insufficient balance")
}

func TestClaimOnlyByWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := e.listItem(40)
	e.fund(bidder1, 1000)
	e.fund(bidder2, 1000)

	e.settle(e.svc.PlaceBid(ctx, bidder1, key, big.NewInt(50)))
	e.advance(2 * time.Hour)

	_, err := e.svc.ClaimItem(ctx, bidder2, key)
	assertRejected(t, err, domain.RejectPolicy, "not highest bidder")

	e.settle(e.svc.ClaimItem(ctx, bidder1, key))

	items, err := e.svc.OwnedItems(ctx, bidder1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, key, items[0].Item.Key())

	view, err := e.svc.AuctionDetail(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "claimed", string(view.Status))
}

func TestSetFeeRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// 150% is out of range no matter who asks.
	oneAndAHalf := new(big.Int).Mul(domain.FeeScale, big.NewInt(3))
	oneAndAHalf.Div(oneAndAHalf, big.NewInt(2))
	_, err := e.svc.SetFee(ctx, admin, oneAndAHalf)
	assertRejected(t, err, domain.RejectValidation, "fee out of range")

	fivePercent := new(big.Int).Div(domain.FeeScale, big.NewInt(20))
	_, err = e.svc.SetFee(ctx, seller, fivePercent)
	assertRejected(t, err, domain.RejectValidation, "not authorized")

	// The admin qualifies as a manager.
	e.settle(e.svc.SetFee(ctx, admin, fivePercent))

	info, err := e.svc.House(ctx)
	require.NoError(t, err)
	assert.Equal(t, fivePercent.String(), info.FeeRate.String())

	// A freshly appointed manager may change it too.
	e.settle(e.svc.AddManager(ctx, admin, seller))
	e.settle(e.svc.SetFee(ctx, seller, big.NewInt(0)))
}

func TestManagerRoster(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.AddManager(ctx, seller, bidder1)
	assertRejected(t, err, domain.RejectValidation, "not authorized")

	e.settle(e.svc.AddManager(ctx, admin, bidder1))

	_, err = e.svc.AddManager(ctx, admin, bidder1)
	assertRejected(t, err, domain.RejectValidation, domain.ReasonAlreadyManager)

	e.settle(e.svc.RemoveManager(ctx, admin, bidder1))

	_, err = e.svc.RemoveManager(ctx, admin, bidder1)
	assertRejected(t, err, domain.RejectValidation, domain.ReasonNotManager)
}

func TestTransferAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.TransferAdmin(ctx, admin, admin)
	assertRejected(t, err, domain.RejectValidation, domain.ReasonSameAdmin)

	_, err = e.svc.TransferAdmin(ctx, seller, bidder1)
	assertRejected(t, err, domain.RejectValidation, "not authorized")

	e.settle(e.svc.TransferAdmin(ctx, admin, seller))

	info, err := e.svc.House(ctx)
	require.NoError(t, err)
	assert.Equal(t, seller, info.Admin)
}

func TestCancelEndReclaimFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Cancel a bidless listing.
	key := e.listItem(40)
	e.settle(e.svc.CancelAuction(ctx, seller, key))
	view, err := e.svc.AuctionDetail(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(view.Status))

	// Relist, bid, end early.
	e.settle(e.svc.ListItem(ctx, seller, key, big.NewInt(40), e.clock.Add(time.Hour)))
	e.fund(bidder1, 1000)
	e.settle(e.svc.PlaceBid(ctx, bidder1, key, big.NewInt(50)))
	e.settle(e.svc.EndAuction(ctx, seller, key))
	view, err = e.svc.AuctionDetail(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "claimed", string(view.Status))

	// Winner relists, nobody bids, the clock passes the end, reclaim.
	e.settle(e.svc.ListItem(ctx, bidder1, key, big.NewInt(40), e.clock.Add(time.Hour)))
	e.advance(2 * time.Hour)
	_, err = e.svc.ReclaimItem(ctx, seller, key)
	assertRejected(t, err, domain.RejectPolicy, domain.ReasonNotSeller)
	e.settle(e.svc.ReclaimItem(ctx, bidder1, key))
}

func TestListItemValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := e.listItem(40)

	// Already listed.
	_, err := e.svc.ListItem(ctx, seller, key, big.NewInt(40), e.clock.Add(time.Hour))
	assertRejected(t, err, domain.RejectPolicy, domain.ReasonAlreadyListed)

	// Listing somebody else's unlisted item.
	e.settle(e.svc.CancelAuction(ctx, seller, key))
	_, err = e.svc.ListItem(ctx, bidder1, key, big.NewInt(40), e.clock.Add(time.Hour))
	assertRejected(t, err, domain.RejectPolicy, domain.ReasonNotOwner)

	// Bad arguments never reach the ledger.
	_, err = e.svc.ListItem(ctx, seller, key, big.NewInt(0), e.clock.Add(time.Hour))
	assertRejected(t, err, domain.RejectValidation, domain.ReasonAmountNotPositive)
	_, err = e.svc.ListItem(ctx, seller, key, big.NewInt(40), e.clock.Add(-time.Hour))
	assertRejected(t, err, domain.RejectValidation, domain.ReasonInvalidEndTime)
}

func TestLowerPriceFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := e.listItem(40)

	e.settle(e.svc.LowerPrice(ctx, seller, key, big.NewInt(30)))
	view, err := e.svc.AuctionDetail(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "30", view.Auction.Price.String())

	_, err = e.svc.LowerPrice(ctx, seller, key, big.NewInt(35))
	assertRejected(t, err, domain.RejectPolicy, domain.ReasonPriceNotLower)
}

func TestMintItemChecks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.MintItem(ctx, seller, "0x00000000000000000000000000000000000000ff", "ipfs://x")
	assertRejected(t, err, domain.RejectValidation, domain.ReasonUnknownCollection)

	e.settle(e.svc.CreateCollection(ctx, seller, "Artifacts", "ART"))
	cols, err := e.svc.Collections(ctx, seller)
	require.NoError(t, err)
	require.NotEmpty(t, cols)

	_, err = e.svc.MintItem(ctx, bidder1, cols[0].Address, "ipfs://x")
	assertRejected(t, err, domain.RejectPolicy, domain.ReasonNotCreator)

	_, err = e.svc.CreateCollection(ctx, seller, "", "ART")
	assertRejected(t, err, domain.RejectValidation, domain.ReasonEmptyName)
}

func TestWithdrawFees(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.WithdrawFees(ctx, seller)
	assertRejected(t, err, domain.RejectValidation, "not authorized")

	// Nothing accrued yet.
	_, err = e.svc.WithdrawFees(ctx, admin)
	assertRejected(t, err, domain.RejectValidation, domain.ReasonEmptyBalance)

	fivePercent := new(big.Int).Div(domain.FeeScale, big.NewInt(20))
	e.settle(e.svc.SetFee(ctx, admin, fivePercent))

	key := e.listItem(40)
	e.fund(bidder1, 1000)
	e.settle(e.svc.PlaceBid(ctx, bidder1, key, big.NewInt(100)))
	e.settle(e.svc.EndAuction(ctx, seller, key))

	e.settle(e.svc.WithdrawFees(ctx, admin))
	bal, err := e.led.BalanceOf(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "5", bal.String())
}

func TestQueriesAttachMetadata(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := e.listItem(40)

	auctions, err := e.svc.Auctions(ctx, "")
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	require.NotNil(t, auctions[0].Item)
	require.NotNil(t, auctions[0].Item.Metadata)
	assert.Equal(t, "Sword", auctions[0].Item.Metadata.Name)
	assert.Equal(t, "Artifacts", auctions[0].Item.Collection.Name)
	assert.Equal(t, "listed_no_bids", string(auctions[0].Status))

	bySeller, err := e.svc.Auctions(ctx, seller)
	require.NoError(t, err)
	assert.Len(t, bySeller, 1)

	byOther, err := e.svc.Auctions(ctx, bidder1)
	require.NoError(t, err)
	assert.Empty(t, byOther)

	missing, err := e.svc.AuctionDetail(ctx, domain.TokenKey{Collection: key.Collection, TokenID: 99})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// failingOracle simulates an unreachable balance collaborator.
type failingOracle struct{}

func (failingOracle) BalanceOf(context.Context, domain.Address) (*big.Int, error) {
	return nil, errors.New("oracle unreachable")
}

func TestOracleOutageDegrades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := e.listItem(40)
	e.fund(bidder1, 1000)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	degraded := NewAuctionService(e.store, e.led, failingOracle{}, stubResolver{}, house, logger)
	degraded.SetNowFunc(func() time.Time { return e.clock })

	// Bids still forward; the ledger is the final arbiter on funds.
	h, err := degraded.PlaceBid(ctx, bidder1, key, big.NewInt(50))
	require.NoError(t, err)
	<-h.Done()
	require.NoError(t, h.Result().Err)

	// House info reads still succeed, just without a balance.
	info, err := degraded.House(ctx)
	require.NoError(t, err)
	assert.Nil(t, info.Balance)
}
