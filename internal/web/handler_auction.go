package web

import (
	"net/http"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
)

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	seller := domain.Address(r.URL.Query().Get("seller"))
	views, err := s.service.Auctions(r.Context(), seller)
	if err != nil {
		http.Error(w, "failed to list auctions", http.StatusInternalServerError)
		s.logger.Error("list auctions error", "error", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toAuctionsJSON(views))
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		http.Error(w, "invalid token id", http.StatusBadRequest)
		return
	}
	view, err := s.service.AuctionDetail(r.Context(), key)
	if err != nil {
		http.Error(w, "failed to get auction", http.StatusInternalServerError)
		s.logger.Error("get auction error", "key", key, "error", err)
		return
	}
	if view == nil {
		http.NotFound(w, r)
		return
	}
	s.respondJSON(w, http.StatusOK, toAuctionJSON(view))
}

func (s *Server) handleListItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller     string    `json:"caller"`
		Collection string    `json:"collection"`
		TokenID    uint64    `json:"token_id"`
		Price      string    `json:"price"`
		EndTime    time.Time `json:"end_time"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}
	key := domain.TokenKey{Collection: domain.Address(req.Collection), TokenID: req.TokenID}
	handle, err := s.service.ListItem(r.Context(), domain.Address(req.Caller), key, price, req.EndTime)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		http.Error(w, "invalid token id", http.StatusBadRequest)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Amount string `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	handle, err := s.service.PlaceBid(r.Context(), domain.Address(req.Caller), key, amount)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleLowerPrice(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		http.Error(w, "invalid token id", http.StatusBadRequest)
		return
	}
	var req struct {
		Caller string `json:"caller"`
		Price  string `json:"price"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}
	handle, err := s.service.LowerPrice(r.Context(), domain.Address(req.Caller), key, price)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

// lifecycleAction covers the four caller-plus-key auction commands.
type lifecycleAction func(r *http.Request, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error)

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request, act lifecycleAction) {
	key, err := pathKey(r)
	if err != nil {
		http.Error(w, "invalid token id", http.StatusBadRequest)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := act(r, domain.Address(req.Caller), key)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycle(w, r, func(r *http.Request, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
		return s.service.CancelAuction(r.Context(), caller, key)
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycle(w, r, func(r *http.Request, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
		return s.service.EndAuction(r.Context(), caller, key)
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycle(w, r, func(r *http.Request, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
		return s.service.ClaimItem(r.Context(), caller, key)
	})
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycle(w, r, func(r *http.Request, caller domain.Address, key domain.TokenKey) (*ledger.TxHandle, error) {
		return s.service.ReclaimItem(r.Context(), caller, key)
	})
}
