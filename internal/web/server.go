// Package web exposes the query and command API over HTTP plus a websocket
// feed of projection changes. Handlers translate wire requests into service
// calls; accepted commands answer 202 with a submission id, local
// rejections answer 409 or 422 depending on their kind.
package web

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ledger"
	"github.com/vbonduro/auctionhouse/internal/service"
)

type Server struct {
	service *service.AuctionService
	feed    *Feed
	mux     *http.ServeMux
	logger  *slog.Logger
}

func NewServer(svc *service.AuctionService, feed *Feed, logger *slog.Logger) *Server {
	s := &Server{
		service: svc,
		feed:    feed,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /items", s.handleListItems)
	s.mux.HandleFunc("POST /items", s.handleMintItem)
	s.mux.HandleFunc("GET /collections", s.handleListCollections)
	s.mux.HandleFunc("POST /collections", s.handleCreateCollection)
	s.mux.HandleFunc("GET /collections/{address}", s.handleGetCollection)

	s.mux.HandleFunc("GET /auctions", s.handleListAuctions)
	s.mux.HandleFunc("POST /auctions", s.handleListItem)
	s.mux.HandleFunc("GET /auctions/{collection}/{tokenId}", s.handleGetAuction)
	s.mux.HandleFunc("POST /auctions/{collection}/{tokenId}/bids", s.handlePlaceBid)
	s.mux.HandleFunc("POST /auctions/{collection}/{tokenId}/price", s.handleLowerPrice)
	s.mux.HandleFunc("POST /auctions/{collection}/{tokenId}/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /auctions/{collection}/{tokenId}/end", s.handleEnd)
	s.mux.HandleFunc("POST /auctions/{collection}/{tokenId}/claim", s.handleClaim)
	s.mux.HandleFunc("POST /auctions/{collection}/{tokenId}/reclaim", s.handleReclaim)

	s.mux.HandleFunc("GET /house", s.handleGetHouse)
	s.mux.HandleFunc("POST /house/fee", s.handleSetFee)
	s.mux.HandleFunc("POST /house/managers", s.handleAddManager)
	s.mux.HandleFunc("DELETE /house/managers/{address}", s.handleRemoveManager)
	s.mux.HandleFunc("POST /house/admin", s.handleTransferAdmin)
	s.mux.HandleFunc("POST /house/withdraw", s.handleWithdrawFees)
	s.mux.HandleFunc("POST /coin/mint", s.handleMintCoin)

	s.mux.HandleFunc("GET /feed", s.feed.handleConnect)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the wrapped writer so websocket upgrades work through
// the middleware chain.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: feed connections stay open indefinitely.
		IdleTimeout: 120 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondAccepted answers a forwarded command with its submission handle.
func (s *Server) respondAccepted(w http.ResponseWriter, h *ledger.TxHandle) {
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"submission_id": h.ID,
		"command":       h.Command,
	})
}

// respondCommandError maps local rejections onto 409 (lifecycle) and 422
// (argument validation); anything else is a server failure.
func (s *Server) respondCommandError(w http.ResponseWriter, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		status := http.StatusConflict
		if rej.Kind == domain.RejectValidation {
			status = http.StatusUnprocessableEntity
		}
		s.respondJSON(w, status, map[string]string{
			"rejected": string(rej.Kind),
			"reason":   rej.Reason,
		})
		return
	}
	s.logger.Error("command failed", "error", err)
	s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

// pathKey extracts the {collection}/{tokenId} pair from the request path.
func pathKey(r *http.Request) (domain.TokenKey, error) {
	tokenID, err := strconv.ParseUint(r.PathValue("tokenId"), 10, 64)
	if err != nil {
		return domain.TokenKey{}, err
	}
	return domain.TokenKey{
		Collection: domain.Address(r.PathValue("collection")),
		TokenID:    tokenID,
	}, nil
}
