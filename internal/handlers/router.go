package handlers

import (
	"net/http"
	"strings"

	"cashledger/internal/config"
	"cashledger/internal/db"
	"cashledger/internal/middleware"
	"cashledger/internal/models"
	"cashledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	txRunner    db.TxRunner
	cfg         config.Config
	users       UserStore
	branches    BranchStore
	accounts    AccountStore
	audit       AuditStore
	ledger      Ledger
	hub         *websocket.Hub
	idempotency middleware.IdempotencyStore
	logger      *zap.Logger
}

// Deps groups everything the HTTP layer needs. Idempotency may be nil.
type Deps struct {
	TxRunner    db.TxRunner
	Config      config.Config
	Users       UserStore
	Branches    BranchStore
	Accounts    AccountStore
	Audit       AuditStore
	Ledger      Ledger
	Hub         *websocket.Hub
	Idempotency middleware.IdempotencyStore
	Logger      *zap.Logger
}

func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		txRunner:    deps.TxRunner,
		cfg:         deps.Config,
		users:       deps.Users,
		branches:    deps.Branches,
		accounts:    deps.Accounts,
		audit:       deps.Audit,
		ledger:      deps.Ledger,
		hub:         deps.Hub,
		idempotency: deps.Idempotency,
		logger:      logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{middleware.ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	admin := middleware.RequireRole(h.users, models.RoleAdmin)
	supervisors := middleware.RequireRole(h.users, models.RoleAdmin, models.RoleSupervisor)
	active := middleware.RequireRole(h.users)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.Idempotency(h.idempotency, h.logger))

		r.Route("/transactions", func(r chi.Router) {
			r.With(active).Post("/operation", h.CreateOperation)
			r.With(supervisors).Post("/rebalance", h.Rebalance)
			r.With(admin).Post("/inject", h.InjectCapital)
			r.With(active).Post("/expense", h.RegisterExpense)
			r.With(supervisors).Post("/annul", h.Annul)
			r.With(active).Get("/history", h.History)
			r.With(supervisors).Get("/history/export", h.ExportHistory)
		})
		r.Route("/debts", func(r chi.Router) {
			r.Use(active)
			r.Post("/loan", h.CreateLoan)
			r.Post("/pay", h.PayDebt)
			r.Get("/pending", h.ListPendingDebts)
		})
		r.Route("/closing", func(r chi.Router) {
			r.Use(active)
			r.Post("/perform", h.PerformCashCount)
			r.Get("/history", h.ListCashCounts)
		})
		r.Route("/closure", func(r chi.Router) {
			r.With(supervisors).Get("/preview", h.ClosurePreview)
			r.With(admin).Post("/close", h.PerformClosure)
		})
		r.With(active).Get("/accounts", h.ListAccounts)
		r.With(admin).Post("/accounts", h.CreateAccount)

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin)
			r.Get("/branches", h.ListBranches)
			r.Post("/branches", h.CreateBranch)
			r.Get("/cashiers", h.ListCashiers)
			r.Post("/cashiers", h.CreateCashier)
			r.Get("/audit", h.ListAuditLogs)
		})
	})

	router.Get("/ws/balances", h.WSBalances)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
