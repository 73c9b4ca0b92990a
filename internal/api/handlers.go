// Package api exposes the watchlist, stored quotes and alert history over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/trogers1052/stock-price-alerts/internal/database"
	"github.com/trogers1052/stock-price-alerts/internal/models"
)

const (
	defaultHistoryDays = 7
	defaultAlertLimit  = 50
	maxAlertLimit      = 500
)

// Store is the persistence the handlers need
type Store interface {
	ListMonitoredStocks(ctx context.Context) ([]*models.MonitoredStock, error)
	GetMonitoredStockBySymbol(ctx context.Context, symbol string) (*models.MonitoredStock, error)
	AddMonitoredStock(ctx context.Context, m *models.MonitoredStock) error
	RemoveMonitoredStock(ctx context.Context, symbol string) error
	LatestQuote(ctx context.Context, symbol string) (*models.Quote, bool, error)
	QuoteHistory(ctx context.Context, symbol string, since time.Time) ([]*models.Quote, error)
	GetRecentAlertHistory(ctx context.Context, limit int) ([]*models.AlertHistory, error)
	GetAlertHistoryBySymbol(ctx context.Context, symbol string, limit int) ([]*models.AlertHistory, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// DegradedReporter lists symbols whose quotes fail permanently
type DegradedReporter interface {
	Degraded() map[string]error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    Store
	checks   map[string]Pinger
	degraded DegradedReporter
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new Handler. checks and degraded may be nil.
func NewHandler(store Store, checks map[string]Pinger, degraded DegradedReporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		checks:   checks,
		degraded: degraded,
		logger:   logger,
		now:      time.Now,
	}
}

// ListWatchlist handles GET /watchlist
func (h *Handler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.store.ListMonitoredStocks(r.Context())
	if err != nil {
		h.serverError(w, "failed to list watchlist", err)
		return
	}
	if stocks == nil {
		stocks = []*models.MonitoredStock{}
	}
	respondJSON(w, http.StatusOK, stocks)
}

// AddToWatchlist handles POST /watchlist
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Notes  string `json:"notes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	symbol := normalizeSymbol(req.Symbol)
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	stock := &models.MonitoredStock{Symbol: symbol, Notes: req.Notes}
	if err := h.store.AddMonitoredStock(r.Context(), stock); err != nil {
		h.serverError(w, "failed to add to watchlist", err)
		return
	}

	h.logger.Info("added to watchlist", "symbol", symbol)
	respondJSON(w, http.StatusCreated, stock)
}

// GetWatchlistEntry handles GET /watchlist/{symbol}. Removed symbols are
// returned with enabled=false.
func (h *Handler) GetWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	stock, err := h.store.GetMonitoredStockBySymbol(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "symbol not on watchlist: "+symbol)
			return
		}
		h.serverError(w, "failed to get watchlist entry", err)
		return
	}
	respondJSON(w, http.StatusOK, stock)
}

// RemoveFromWatchlist handles DELETE /watchlist/{symbol}
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	if err := h.store.RemoveMonitoredStock(r.Context(), symbol); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "symbol not on watchlist: "+symbol)
			return
		}
		h.serverError(w, "failed to remove from watchlist", err)
		return
	}

	h.logger.Info("removed from watchlist", "symbol", symbol)
	w.WriteHeader(http.StatusNoContent)
}

// GetLatestQuote handles GET /quotes/{symbol}/latest
func (h *Handler) GetLatestQuote(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	q, found, err := h.store.LatestQuote(r.Context(), symbol)
	if err != nil {
		h.serverError(w, "failed to get latest quote", err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no quotes stored for "+symbol)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// GetQuoteHistory handles GET /quotes/{symbol}/history?days=N
func (h *Handler) GetQuoteHistory(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	days, err := intParam(r, "days", defaultHistoryDays)
	if err != nil || days <= 0 {
		respondError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	since := h.now().Add(-time.Duration(days) * 24 * time.Hour)
	quotes, err := h.store.QuoteHistory(r.Context(), symbol, since)
	if err != nil {
		h.serverError(w, "failed to get quote history", err)
		return
	}
	if quotes == nil {
		quotes = []*models.Quote{}
	}
	respondJSON(w, http.StatusOK, quotes)
}

// GetRecentAlerts handles GET /alerts?limit=N&symbol=SYM
func (h *Handler) GetRecentAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultAlertLimit)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}

	var alerts []*models.AlertHistory
	if symbol := normalizeSymbol(r.URL.Query().Get("symbol")); symbol != "" {
		alerts, err = h.store.GetAlertHistoryBySymbol(r.Context(), symbol, limit)
	} else {
		alerts, err = h.store.GetRecentAlertHistory(r.Context(), limit)
	}
	if err != nil {
		h.serverError(w, "failed to get alert history", err)
		return
	}
	if alerts == nil {
		alerts = []*models.AlertHistory{}
	}
	respondJSON(w, http.StatusOK, alerts)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Degraded []string          `json:"degraded,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	status := http.StatusOK

	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Checks = make(map[string]string, len(h.checks))
		for name, p := range h.checks {
			if err := p.Ping(ctx); err != nil {
				resp.Checks[name] = "down: " + err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
	}

	if h.degraded != nil {
		for sym := range h.degraded.Degraded() {
			resp.Degraded = append(resp.Degraded, sym)
		}
		sort.Strings(resp.Degraded)
	}

	respondJSON(w, status, resp)
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	respondError(w, http.StatusInternalServerError, msg)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
