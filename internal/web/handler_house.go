package web

import (
	"net/http"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

func (s *Server) handleGetHouse(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.House(r.Context())
	if err != nil {
		http.Error(w, "failed to get house info", http.StatusInternalServerError)
		s.logger.Error("get house error", "error", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toHouseJSON(info))
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Rate   string `json:"rate"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	rate, err := domain.ParseAmount(req.Rate)
	if err != nil {
		http.Error(w, "invalid rate", http.StatusBadRequest)
		return
	}
	handle, err := s.service.SetFee(r.Context(), domain.Address(req.Caller), rate)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleAddManager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		Account string `json:"account"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := s.service.AddManager(r.Context(), domain.Address(req.Caller), domain.Address(req.Account))
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleRemoveManager(w http.ResponseWriter, r *http.Request) {
	caller := domain.Address(r.URL.Query().Get("caller"))
	account := domain.Address(r.PathValue("address"))
	handle, err := s.service.RemoveManager(r.Context(), caller, account)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		NewAdmin string `json:"new_admin"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := s.service.TransferAdmin(r.Context(), domain.Address(req.Caller), domain.Address(req.NewAdmin))
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := s.service.WithdrawFees(r.Context(), domain.Address(req.Caller))
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleMintCoin(w http.ResponseWriter, r *http.Request) {
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
	handle, err := s.service.MintCoin(r.Context(), domain.Address(req.Caller), amount)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}
