package httpserver

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// handleSlippage serves GET /api/orderbook/{tokenID}/slippage?amount=&side=.
// It walks the stored full-depth ladder with a dollar-denominated order and
// reports the snapshot's age alongside the estimate.
func (s *Server) handleSlippage(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	if tokenID == "" {
		s.writeError(w, "missing token id", http.StatusBadRequest)
		return
	}

	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount <= 0 {
		s.writeError(w, "amount must be a positive number of dollars", http.StatusBadRequest)
		return
	}

	side := r.URL.Query().Get("side")
	if side == "" {
		side = "buy"
	}
	if side != "buy" && side != "sell" {
		s.writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}

	raw, err := s.store.LatestRaw(r.Context(), tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, "no order book stored for token", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("load-orderbook-failed", zap.String("token-id", tokenID), zap.Error(err))
		s.writeError(w, "failed to load order book", http.StatusInternalServerError)
		return
	}

	ladder := raw.Asks
	if side == "sell" {
		ladder = raw.Bids
	}

	est := types.EstimateSlippage(ladder, amount, side)
	est.TokenID = tokenID
	est.SnapshotAgeSeconds = time.Since(raw.Timestamp).Seconds()

	s.writeJSON(w, http.StatusOK, est)
}
