package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Watchlist routes
	api.HandleFunc("/watchlist", handler.ListWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", handler.AddToWatchlist).Methods("POST")
	api.HandleFunc("/watchlist/{symbol}", handler.GetWatchlistEntry).Methods("GET")
	api.HandleFunc("/watchlist/{symbol}", handler.RemoveFromWatchlist).Methods("DELETE")

	// Quote routes
	api.HandleFunc("/quotes/{symbol}/latest", handler.GetLatestQuote).Methods("GET")
	api.HandleFunc("/quotes/{symbol}/history", handler.GetQuoteHistory).Methods("GET")

	// Alert routes
	api.HandleFunc("/alerts", handler.GetRecentAlerts).Methods("GET")

	return r
}
