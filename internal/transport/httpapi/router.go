package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kislikjeka/walletcore/internal/transport/httpapi/handler"
	"github.com/kislikjeka/walletcore/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/walletcore/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger          *logger.Logger
	AllowedOrigins  []string
	RateLimitRPS    float64
	RateLimitBurst  int
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	ReportHandler   *handler.ReportHandler
	AdminHandler    *handler.AdminHandler
	HealthHandler   *handler.HealthHandler
	AdminAuth       func(http.Handler) http.Handler
}

// NewRouter creates the HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Health endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetHealth)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AccountHandler != nil {
			r.Post("/accounts", cfg.AccountHandler.CreateAccount)
			r.Get("/accounts/{id}/balance", cfg.AccountHandler.GetBalance)
			r.Get("/accounts/{id}/transactions", cfg.AccountHandler.ListTransactions)
		}

		if cfg.TransferHandler != nil {
			r.Post("/transfers", cfg.TransferHandler.CreateTransfer)
			r.Get("/transactions/reference/{ref}", cfg.TransferHandler.GetTransactionByReference)
		}

		if cfg.ReportHandler != nil {
			r.Route("/reports", func(r chi.Router) {
				r.Get("/transactions/{id}", cfg.ReportHandler.GetTransactionHistory)
				r.Get("/accounts/{id}/ledger", cfg.ReportHandler.GetAccountLedger)
				r.Get("/accounts/{id}/statement", cfg.ReportHandler.GetAccountStatement)
			})
		}

		// Privileged routes, mounted only when a token service is configured
		if cfg.AdminHandler != nil && cfg.AdminAuth != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.AdminAuth)
				r.Post("/admin/credits", cfg.AdminHandler.CreateSystemCredit)
				r.Get("/admin/accounts/{id}/verify", cfg.AdminHandler.VerifyAccountBalance)
			})
		}
	})

	return r
}
