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
	api.Use(RequireUser)

	// Holdings
	api.HandleFunc("/holdings", handler.GetHoldings).Methods("GET")
	api.HandleFunc("/holdings", handler.AddHolding).Methods("POST")
	api.HandleFunc("/holdings/{symbol}", handler.GetHolding).Methods("GET")
	api.HandleFunc("/holdings/{symbol}", handler.EditHolding).Methods("PATCH")
	api.HandleFunc("/holdings/{symbol}", handler.DiscardHolding).Methods("DELETE")
	api.HandleFunc("/holdings/{symbol}/sell", handler.SellHolding).Methods("POST")
	api.HandleFunc("/holdings/{symbol}/fills", handler.GetFills).Methods("GET")

	// Watchlist
	api.HandleFunc("/watchlist", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", handler.AddToWatchlist).Methods("POST")
	api.HandleFunc("/watchlist/{symbol}", handler.RemoveFromWatchlist).Methods("DELETE")
	api.HandleFunc("/watchlist/{symbol}/promote", handler.PromoteWatchlistEntry).Methods("POST")

	// Sale history
	api.HandleFunc("/closed", handler.GetClosedPositions).Methods("GET")
	api.HandleFunc("/closed/{id}", handler.DeleteClosedPosition).Methods("DELETE")

	// Dashboard
	api.HandleFunc("/summary", handler.GetSummary).Methods("GET")
	api.HandleFunc("/quotes/{symbol}", handler.GetQuote).Methods("GET")
	api.HandleFunc("/quotes/{symbol}/history", handler.GetPriceHistory).Methods("GET")

	return r
}
