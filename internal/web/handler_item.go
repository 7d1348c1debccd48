package web

import (
	"net/http"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	owner := domain.Address(r.URL.Query().Get("owner"))
	if owner == "" {
		http.Error(w, "owner query parameter required", http.StatusBadRequest)
		return
	}
	views, err := s.service.OwnedItems(r.Context(), owner)
	if err != nil {
		http.Error(w, "failed to list items", http.StatusInternalServerError)
		s.logger.Error("list items error", "owner", owner, "error", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toItemsJSON(views))
}

func (s *Server) handleMintItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller     string `json:"caller"`
		Collection string `json:"collection"`
		TokenURI   string `json:"token_uri"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := s.service.MintItem(r.Context(), domain.Address(req.Caller), domain.Address(req.Collection), req.TokenURI)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	creator := domain.Address(r.URL.Query().Get("creator"))
	collections, err := s.service.Collections(r.Context(), creator)
	if err != nil {
		http.Error(w, "failed to list collections", http.StatusInternalServerError)
		s.logger.Error("list collections error", "error", err)
		return
	}
	out := make([]*collectionJSON, 0, len(collections))
	for _, c := range collections {
		out = append(out, toCollectionJSON(c))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(r.PathValue("address"))
	c, err := s.service.Collection(r.Context(), addr)
	if err != nil {
		http.Error(w, "failed to get collection", http.StatusInternalServerError)
		s.logger.Error("get collection error", "address", addr, "error", err)
		return
	}
	if c == nil {
		http.NotFound(w, r)
		return
	}
	s.respondJSON(w, http.StatusOK, toCollectionJSON(c))
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	handle, err := s.service.CreateCollection(r.Context(), domain.Address(req.Caller), req.Name, req.Symbol)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondAccepted(w, handle)
}
