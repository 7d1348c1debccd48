package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/auctionhouse/internal/db"
	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ingest"
	"github.com/vbonduro/auctionhouse/internal/ledger/memory"
	"github.com/vbonduro/auctionhouse/internal/metadata"
	"github.com/vbonduro/auctionhouse/internal/projection"
	"github.com/vbonduro/auctionhouse/internal/service"
	"github.com/vbonduro/auctionhouse/internal/web"
)

const (
	house  = "0x00000000000000000000000000000000000a0c71"
	admin  = "0x0000000000000000000000000000000000000001"
	seller = "0x0000000000000000000000000000000000000aaa"
	bidder = "0x0000000000000000000000000000000000000bbb"
	rival  = "0x0000000000000000000000000000000000000ccc"
)

// stubResolver keeps integration tests off the network.
type stubResolver struct{}

func (stubResolver) Resolve(context.Context, string) (*domain.Metadata, error) {
	return &domain.Metadata{Name: "Sword", Image: "https://img"}, nil
}

type testApp struct {
	t      *testing.T
	srv    *httptest.Server
	ing    *ingest.Ingestor
	feed   *web.Feed
	cancel context.CancelFunc
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := projection.NewStore(d, house, logger)
	led := memory.New(house, admin)
	resolver := metadata.NewCached(stubResolver{}, metadata.NewMemoryCache(), logger)
	svc := service.NewAuctionService(store, led, led, resolver, house, logger)

	feed := web.NewFeed(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go feed.Run(ctx)

	ing := ingest.New(led, store, logger, time.Second, 100)
	ing.OnApplied(feed.Publish)

	app := &testApp{
		t:      t,
		srv:    httptest.NewServer(web.NewServer(svc, feed, logger)),
		ing:    ing,
		feed:   feed,
		cancel: cancel,
	}
	t.Cleanup(app.srv.Close)
	t.Cleanup(cancel)
	app.pump()
	return app
}

func (a *testApp) pump() {
	a.t.Helper()
	require.NoError(a.t, a.ing.DrainOnce(context.Background()))
}

func (a *testApp) do(method, path string, body any) (*http.Response, map[string]any) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(a.t, err)

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(data) > 0 && json.Valid(data) && data[0] == '{' {
		require.NoError(a.t, json.Unmarshal(data, &decoded))
	}
	return resp, decoded
}

func (a *testApp) doList(path string) (*http.Response, []map[string]any) {
	a.t.Helper()
	resp, err := a.srv.Client().Get(a.srv.URL + path)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var decoded []map[string]any
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// accept posts body to path, requires a 202 and folds the resulting events.
func (a *testApp) accept(path string, body any) {
	a.t.Helper()
	resp, out := a.do(http.MethodPost, path, body)
	require.Equal(a.t, http.StatusAccepted, resp.StatusCode, "POST %s: %v", path, out)
	require.NotEmpty(a.t, out["submission_id"])
	a.pump()
}

// setupListing walks collection creation, minting and listing, returning
// the auction path fragment "{collection}/{tokenId}".
func (a *testApp) setupListing(price string) string {
	a.t.Helper()
	a.accept("/collections", map[string]any{"caller": seller, "name": "Artifacts", "symbol": "ART"})

	_, cols := a.doList("/collections?creator=" + seller)
	require.Len(a.t, cols, 1)
	collection := cols[0]["address"].(string)

	a.accept("/items", map[string]any{"caller": seller, "collection": collection, "token_uri": "ipfs://item1"})
	a.accept("/auctions", map[string]any{
		"caller":     seller,
		"collection": collection,
		"token_id":   1,
		"price":      price,
		"end_time":   time.Now().UTC().Add(time.Hour),
	})
	return collection + "/1"
}

func (a *testApp) fund(addr, amount string) {
	a.t.Helper()
	a.accept("/coin/mint", map[string]any{"caller": addr, "amount": amount})
}

func TestAuctionLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	frag := app.setupListing("40")
	app.fund(bidder, "1000")
	app.fund(rival, "1000")

	// The listed item shows up as a live auction with metadata attached.
	resp, auctions := app.doList("/auctions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, auctions, 1)
	assert.Equal(t, "listed_no_bids", auctions[0]["status"])
	assert.Equal(t, "40", auctions[0]["price"])
	item := auctions[0]["item"].(map[string]any)
	assert.Equal(t, "Sword", item["metadata"].(map[string]any)["name"])

	// A winning bid raises the price.
	app.accept("/auctions/"+frag+"/bids", map[string]any{"caller": bidder, "amount": "50"})
	resp, detail := app.do(http.MethodGet, "/auctions/"+frag, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "50", detail["price"])
	assert.Equal(t, bidder, detail["highest_bidder"])
	assert.Equal(t, "listed_with_bids", detail["status"])

	// An underbid is refused with the lifecycle reason.
	resp, out := app.do(http.MethodPost, "/auctions/"+frag+"/bids", map[string]any{"caller": rival, "amount": "45"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "bid must exceed current price", out["reason"])

	// The seller settles early; the winner now owns the item.
	app.accept("/auctions/"+frag+"/end", map[string]any{"caller": seller})
	resp, items := app.doList("/items?owner=" + bidder)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, items, 1)
	assert.Equal(t, "Artifacts", items[0]["collection_name"])

	resp, detail = app.do(http.MethodGet, "/auctions/"+frag, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "claimed", detail["status"])
}

func TestHouseAdministrationOverHTTP(t *testing.T) {
	app := newTestApp(t)

	resp, info := app.do(http.MethodGet, "/house", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, admin, info["admin"])
	assert.Equal(t, "0", info["fee_rate"])

	// Fee changes: range first, then role.
	resp, out := app.do(http.MethodPost, "/house/fee", map[string]any{"caller": admin, "rate": "1500000000000000000"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "fee out of range", out["reason"])

	resp, out = app.do(http.MethodPost, "/house/fee", map[string]any{"caller": seller, "rate": "50000000000000000"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "not authorized", out["reason"])

	app.accept("/house/fee", map[string]any{"caller": admin, "rate": "50000000000000000"})
	_, info = app.do(http.MethodGet, "/house", nil)
	assert.Equal(t, "50000000000000000", info["fee_rate"])

	// Manager roster round trip.
	app.accept("/house/managers", map[string]any{"caller": admin, "account": seller})
	_, info = app.do(http.MethodGet, "/house", nil)
	managers := info["managers"].([]any)
	require.Len(t, managers, 1)
	assert.Equal(t, seller, managers[0])

	resp, _ = app.do(http.MethodDelete, "/house/managers/"+seller+"?caller="+admin, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	app.pump()
	_, info = app.do(http.MethodGet, "/house", nil)
	assert.Empty(t, info["managers"])

	// Admin handover.
	app.accept("/house/admin", map[string]any{"caller": admin, "new_admin": seller})
	_, info = app.do(http.MethodGet, "/house", nil)
	assert.Equal(t, seller, info["admin"])
}

func TestBadRequestsOverHTTP(t *testing.T) {
	app := newTestApp(t)

	resp, out := app.do(http.MethodPost, "/auctions", map[string]any{
		"caller": seller, "collection": "0xc1", "token_id": 1, "price": "0",
		"end_time": time.Now().UTC().Add(time.Hour),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "amount must be positive", out["reason"])

	req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/auctions", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	raw, err := app.srv.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	getResp, err := app.srv.Client().Get(app.srv.URL + "/auctions/0xc1/notanumber")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, getResp.StatusCode)

	missing, err := app.srv.Client().Get(app.srv.URL + "/auctions/0xc1/99")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestFeedStreamsAppliedEvents(t *testing.T) {
	app := newTestApp(t)

	wsURL := "ws" + strings.TrimPrefix(app.srv.URL, "http") + "/feed"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Give the hub a beat to register the client before events flow.
	time.Sleep(50 * time.Millisecond)
	app.accept("/collections", map[string]any{"caller": seller, "name": "Relics", "symbol": "RLC"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Seq  uint64 `json:"seq"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.NotZero(t, ev.Seq)
	assert.Equal(t, "collection.created", ev.Kind)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	resp, body := app.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestWithdrawAfterSale(t *testing.T) {
	app := newTestApp(t)
	app.accept("/house/fee", map[string]any{"caller": admin, "rate": fmt.Sprintf("%d", int64(5e16))})
	frag := app.setupListing("40")
	app.fund(bidder, "1000")

	app.accept("/auctions/"+frag+"/bids", map[string]any{"caller": bidder, "amount": "100"})
	app.accept("/auctions/"+frag+"/end", map[string]any{"caller": seller})

	resp, info := app.do(http.MethodGet, "/house", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", info["balance"])

	app.accept("/house/withdraw", map[string]any{"caller": admin})
	_, info = app.do(http.MethodGet, "/house", nil)
	assert.Equal(t, "0", info["balance"])
}
