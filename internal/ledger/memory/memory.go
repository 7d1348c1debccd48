// Package memory implements the ledger contract in process. It executes
// submitted commands under the house contract's own rules and appends the
// resulting events to an ordered log, which makes it the final arbiter the
// rest of the system expects: a command that passed local validation can
// still settle with an error here (for example when a competing bid landed
// first). Used for development and as the test double.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
)

type itemState struct {
	owner    domain.Address
	tokenURI string
}

type auctionState struct {
	seller        domain.Address
	price         *big.Int
	endTime       time.Time
	highestBidder domain.Address
	live          bool
}

type collectionState struct {
	creator domain.Address
	name    string
	symbol  string
}

type Ledger struct {
	house domain.Address

	mu          sync.Mutex
	events      []ledger.RawEvent
	balances    map[domain.Address]*big.Int
	items       map[domain.TokenKey]*itemState
	nextToken   map[domain.Address]uint64
	collections map[domain.Address]*collectionState
	auctions    map[domain.TokenKey]*auctionState
	admin       domain.Address
	managers    map[domain.Address]bool
	feeRate     *big.Int
	fees        *big.Int
	nextAddr    uint64
	now         func() time.Time
}

// New builds a ledger whose genesis event installs admin as the house
// admin, mirroring the ownership event a freshly deployed contract emits.
func New(house, admin domain.Address) *Ledger {
	l := &Ledger{
		house:       house,
		balances:    make(map[domain.Address]*big.Int),
		items:       make(map[domain.TokenKey]*itemState),
		nextToken:   make(map[domain.Address]uint64),
		collections: make(map[domain.Address]*collectionState),
		auctions:    make(map[domain.TokenKey]*auctionState),
		admin:       admin,
		managers:    make(map[domain.Address]bool),
		feeRate:     big.NewInt(0),
		fees:        big.NewInt(0),
		now:         func() time.Time { return time.Now().UTC() },
	}
	l.append(&ledger.AdminTransferred{Previous: domain.ZeroAddress, New: admin})
	return l
}

// SetNowFunc overrides the clock. Tests use it to move past end times.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) Events(_ context.Context, from ledger.Cursor, limit int) ([]ledger.RawEvent, ledger.Cursor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := int(from)
	if start >= len(l.events) {
		return nil, from, nil
	}
	end := start + limit
	if limit <= 0 || end > len(l.events) {
		end = len(l.events)
	}
	batch := make([]ledger.RawEvent, end-start)
	copy(batch, l.events[start:end])
	return batch, ledger.Cursor(batch[len(batch)-1].Seq), nil
}

func (l *Ledger) Submit(_ context.Context, cmd ledger.Command) (*ledger.TxHandle, error) {
	if cmd == nil {
		return nil, fmt.Errorf("nil command")
	}
	handle := ledger.NewTxHandle(cmd)

	l.mu.Lock()
	err := l.execute(cmd)
	l.mu.Unlock()

	handle.Settle(err)
	return handle, nil
}

// BalanceOf implements the balance oracle: the coin lives on this ledger.
func (l *Ledger) BalanceOf(_ context.Context, addr domain.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(addr)), nil
}

func (l *Ledger) execute(cmd ledger.Command) error {
	switch c := cmd.(type) {
	case ledger.ListItem:
		return l.listItem(c)
	case ledger.PlaceBid:
		return l.placeBid(c)
	case ledger.LowerPrice:
		return l.lowerPrice(c)
	case ledger.CancelAuction:
		return l.settleToSeller(c.Caller, l.key(c.Collection, c.TokenID), false)
	case ledger.EndAuction:
		return l.endAuction(c)
	case ledger.ReclaimItem:
		return l.settleToSeller(c.Caller, l.key(c.Collection, c.TokenID), true)
	case ledger.ClaimItem:
		return l.claimItem(c)
	case ledger.SetFee:
		return l.setFee(c)
	case ledger.ToggleManager:
		return l.toggleManager(c)
	case ledger.TransferAdmin:
		return l.transferAdmin(c)
	case ledger.CreateCollection:
		return l.createCollection(c)
	case ledger.MintItem:
		return l.mintItem(c)
	case ledger.MintCoin:
		return l.mintCoin(c)
	case ledger.WithdrawFees:
		return l.withdrawFees(c)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

func (l *Ledger) key(collection domain.Address, tokenID uint64) domain.TokenKey {
	return domain.TokenKey{Collection: collection, TokenID: tokenID}
}

func (l *Ledger) append(payload any) {
	kind, data, err := ledger.Encode(payload)
	if err != nil {
		// Encode only fails on unsupported types, which is a programming
		// error in this package.
		panic(err)
	}
	l.events = append(l.events, ledger.RawEvent{
		Seq:  uint64(len(l.events) + 1),
		Time: l.now(),
		Kind: kind,
		Data: data,
	})
}

func (l *Ledger) transferItem(key domain.TokenKey, from, to domain.Address, tokenURI string) {
	l.items[key] = &itemState{owner: to, tokenURI: tokenURI}
	l.append(&ledger.ItemTransfer{
		Collection: key.Collection,
		TokenID:    key.TokenID,
		From:       from,
		To:         to,
		TokenURI:   tokenURI,
	})
}

func (l *Ledger) balanceOf(addr domain.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (l *Ledger) credit(addr domain.Address, amount *big.Int) {
	l.balances[addr] = new(big.Int).Add(l.balanceOf(addr), amount)
}

func (l *Ledger) debit(addr domain.Address, amount *big.Int) error {
	b := l.balanceOf(addr)
	if b.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", addr)
	}
	l.balances[addr] = new(big.Int).Sub(b, amount)
	return nil
}

func (l *Ledger) listItem(c ledger.ListItem) error {
	key := l.key(c.Collection, c.TokenID)
	item, ok := l.items[key]
	if !ok || item.owner != c.Caller {
		return fmt.Errorf("caller does not own %s", key)
	}
	if a, ok := l.auctions[key]; ok && a.live {
		return fmt.Errorf("%s is already listed", key)
	}
	if c.Price == nil || c.Price.Sign() <= 0 {
		return fmt.Errorf("listing price must be positive")
	}
	if !c.EndTime.After(l.now()) {
		return fmt.Errorf("end time must be in the future")
	}

	l.transferItem(key, c.Caller, l.house, c.TokenURI)
	l.auctions[key] = &auctionState{
		seller:  c.Caller,
		price:   new(big.Int).Set(c.Price),
		endTime: c.EndTime,
		live:    true,
	}
	l.append(&ledger.AuctionListed{
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Seller:     c.Caller,
		Price:      c.Price,
		EndTime:    c.EndTime,
	})
	return nil
}

func (l *Ledger) placeBid(c ledger.PlaceBid) error {
	key := l.key(c.Collection, c.TokenID)
	a, ok := l.auctions[key]
	if !ok || !a.live {
		return fmt.Errorf("no live auction for %s", key)
	}
	if !l.now().Before(a.endTime) {
		return fmt.Errorf("auction for %s has ended", key)
	}
	if c.Amount == nil || c.Amount.Cmp(a.price) <= 0 {
		return fmt.Errorf("bid does not exceed current price")
	}
	if err := l.debit(c.Caller, c.Amount); err != nil {
		return err
	}
	l.credit(l.house, c.Amount)
	if !a.highestBidder.IsZero() {
		// Refund the outbid bidder's escrowed amount.
		if err := l.debit(l.house, a.price); err != nil {
			return err
		}
		l.credit(a.highestBidder, a.price)
	}
	a.price = new(big.Int).Set(c.Amount)
	a.highestBidder = c.Caller
	l.append(&ledger.BidPlaced{
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Bidder:     c.Caller,
		Amount:     c.Amount,
	})
	return nil
}

func (l *Ledger) lowerPrice(c ledger.LowerPrice) error {
	key := l.key(c.Collection, c.TokenID)
	a, ok := l.auctions[key]
	if !ok || !a.live {
		return fmt.Errorf("no live auction for %s", key)
	}
	if c.Caller != a.seller {
		return fmt.Errorf("caller is not the seller")
	}
	if !a.highestBidder.IsZero() {
		return fmt.Errorf("auction for %s already has bids", key)
	}
	if !l.now().Before(a.endTime) {
		return fmt.Errorf("auction for %s has ended", key)
	}
	if c.Price == nil || c.Price.Sign() <= 0 || c.Price.Cmp(a.price) >= 0 {
		return fmt.Errorf("new price must be positive and below current price")
	}
	a.price = new(big.Int).Set(c.Price)
	l.append(&ledger.PriceLowered{Collection: key.Collection, TokenID: key.TokenID, Price: c.Price})
	return nil
}

// settleToSeller handles cancel (before end) and reclaim (after end): the
// item returns to the seller and no funds move.
func (l *Ledger) settleToSeller(caller domain.Address, key domain.TokenKey, afterEnd bool) error {
	a, ok := l.auctions[key]
	if !ok || !a.live {
		return fmt.Errorf("no live auction for %s", key)
	}
	if caller != a.seller {
		return fmt.Errorf("caller is not the seller")
	}
	if !a.highestBidder.IsZero() {
		return fmt.Errorf("auction for %s already has bids", key)
	}
	ended := !l.now().Before(a.endTime)
	if afterEnd != ended {
		if ended {
			return fmt.Errorf("auction for %s has ended", key)
		}
		return fmt.Errorf("auction for %s has not ended", key)
	}
	a.live = false
	l.transferItem(key, l.house, a.seller, l.items[key].tokenURI)
	return nil
}

func (l *Ledger) endAuction(c ledger.EndAuction) error {
	key := l.key(c.Collection, c.TokenID)
	a, ok := l.auctions[key]
	if !ok || !a.live {
		return fmt.Errorf("no live auction for %s", key)
	}
	if c.Caller != a.seller {
		return fmt.Errorf("caller is not the seller")
	}
	if a.highestBidder.IsZero() {
		return fmt.Errorf("auction for %s has no bids", key)
	}
	if !l.now().Before(a.endTime) {
		return fmt.Errorf("auction for %s has ended", key)
	}
	return l.settleToBidder(key, a)
}

func (l *Ledger) claimItem(c ledger.ClaimItem) error {
	key := l.key(c.Collection, c.TokenID)
	a, ok := l.auctions[key]
	if !ok || !a.live {
		return fmt.Errorf("no live auction for %s", key)
	}
	if l.now().Before(a.endTime) {
		return fmt.Errorf("auction for %s has not ended", key)
	}
	if a.highestBidder.IsZero() {
		return fmt.Errorf("auction for %s has no bids", key)
	}
	if c.Caller != a.highestBidder {
		return fmt.Errorf("caller is not the highest bidder")
	}
	return l.settleToBidder(key, a)
}

// settleToBidder pays out the seller minus the house fee and hands the
// item to the highest bidder. The fee stays in the house balance until a
// manager withdraws it.
func (l *Ledger) settleToBidder(key domain.TokenKey, a *auctionState) error {
	fee := new(big.Int).Mul(a.price, l.feeRate)
	fee.Div(fee, domain.FeeScale)
	payout := new(big.Int).Sub(a.price, fee)

	if err := l.debit(l.house, payout); err != nil {
		return err
	}
	l.credit(a.seller, payout)
	l.fees = new(big.Int).Add(l.fees, fee)
	a.live = false
	l.transferItem(key, l.house, a.highestBidder, l.items[key].tokenURI)
	return nil
}

func (l *Ledger) setFee(c ledger.SetFee) error {
	if !l.isManager(c.Caller) {
		return fmt.Errorf("caller is not a manager")
	}
	if !domain.ValidFeeRate(c.Rate) {
		return fmt.Errorf("fee rate out of range")
	}
	l.feeRate = new(big.Int).Set(c.Rate)
	l.append(&ledger.FeeChanged{Rate: c.Rate})
	return nil
}

func (l *Ledger) toggleManager(c ledger.ToggleManager) error {
	if c.Caller != l.admin {
		return fmt.Errorf("caller is not the admin")
	}
	enabled := !l.managers[c.Account]
	l.managers[c.Account] = enabled
	l.append(&ledger.ManagerToggled{Account: c.Account, Enabled: enabled})
	return nil
}

func (l *Ledger) transferAdmin(c ledger.TransferAdmin) error {
	if c.Caller != l.admin {
		return fmt.Errorf("caller is not the admin")
	}
	if c.NewAdmin.IsZero() || c.NewAdmin == l.admin {
		return fmt.Errorf("invalid new admin")
	}
	prev := l.admin
	l.admin = c.NewAdmin
	l.append(&ledger.AdminTransferred{Previous: prev, New: c.NewAdmin})
	return nil
}

func (l *Ledger) createCollection(c ledger.CreateCollection) error {
	if c.Name == "" || c.Symbol == "" {
		return fmt.Errorf("collection name and symbol are required")
	}
	l.nextAddr++
	addr := domain.Address(fmt.Sprintf("0x%040x", l.nextAddr))
	l.collections[addr] = &collectionState{creator: c.Caller, name: c.Name, symbol: c.Symbol}
	l.append(&ledger.CollectionCreated{
		Collection: addr,
		Creator:    c.Caller,
		Name:       c.Name,
		Symbol:     c.Symbol,
	})
	return nil
}

func (l *Ledger) mintItem(c ledger.MintItem) error {
	col, ok := l.collections[c.Collection]
	if !ok {
		return fmt.Errorf("unknown collection %s", c.Collection)
	}
	if col.creator != c.Caller {
		return fmt.Errorf("caller did not create collection %s", c.Collection)
	}
	l.nextToken[c.Collection]++
	key := l.key(c.Collection, l.nextToken[c.Collection])
	l.transferItem(key, domain.ZeroAddress, c.Caller, c.TokenURI)
	return nil
}

func (l *Ledger) mintCoin(c ledger.MintCoin) error {
	if c.Amount == nil || c.Amount.Sign() <= 0 {
		return fmt.Errorf("mint amount must be positive")
	}
	l.credit(c.Caller, c.Amount)
	return nil
}

func (l *Ledger) withdrawFees(c ledger.WithdrawFees) error {
	if !l.isManager(c.Caller) {
		return fmt.Errorf("caller is not a manager")
	}
	if l.fees.Sign() <= 0 {
		return fmt.Errorf("no fees to withdraw")
	}
	if err := l.debit(l.house, l.fees); err != nil {
		return err
	}
	l.credit(l.admin, l.fees)
	l.fees = big.NewInt(0)
	return nil
}

func (l *Ledger) isManager(addr domain.Address) bool {
	return addr == l.admin || l.managers[addr]
}
