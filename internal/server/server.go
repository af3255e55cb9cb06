// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/advisor"
	"github.com/monofi/monofid/internal/allocation"
	"github.com/monofi/monofid/internal/events"
	"github.com/monofi/monofid/internal/explorer"
	"github.com/monofi/monofid/internal/export"
	"github.com/monofi/monofid/internal/prices"
	"github.com/monofi/monofid/internal/whales"
)

// Portfolio is the slice of the portfolio service the handlers need.
type Portfolio interface {
	Current() allocation.Set
	Draft() allocation.Set
	SetDraft(set allocation.Set)
	UpdateDraftEntry(id string, percentage int) error
	ResetDraft()
	AutoBalance(locked map[string]bool) allocation.Set
	ApplySuggestion(action *advisor.Action) (allocation.Set, error)
	Submit(ctx context.Context) (*allocation.SubmissionRecord, error)
	InFlight() *allocation.SubmissionRecord
	History() []*allocation.SubmissionRecord
}

// WhaleFeed exposes recorded whale activity.
type WhaleFeed interface {
	Recent(limit int) []whales.Sighting
	Summary() whales.ActivitySummary
}

// PriceBook exposes the latest market prices.
type PriceBook interface {
	Snapshot() []prices.TokenPrice
	Current(symbol string) (prices.TokenPrice, bool)
}

// Advisor is the AI chat surface. Nil-safe: the server checks Available.
type Advisor interface {
	Available() bool
	Chat(ctx context.Context, message string, history []advisor.ChatMessage) (*advisor.Reply, error)
	TokenInsights(ctx context.Context, symbol, priceContext string) (string, error)
	WhaleAnalysis(ctx context.Context, tx advisor.WhaleContext) (string, error)
}

// NetworkExplorer exposes on-chain lookups.
type NetworkExplorer interface {
	NetworkStats(ctx context.Context) (*explorer.NetworkStats, error)
	AccountTransactions(ctx context.Context, address string, limit int) ([]explorer.Transaction, error)
}

// Config wires the HTTP server.
type Config struct {
	Port      int
	Portfolio Portfolio
	Whales    WhaleFeed
	Prices    PriceBook
	Advisor   Advisor
	Explorer  NetworkExplorer
	Exporter  *export.SubmissionExporter
	Bus       *events.Bus // optional, enables the live event stream
	Logger    *zap.Logger
}

// Server is the REST front for the dashboard.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	portfolio Portfolio
	whales    WhaleFeed
	prices    PriceBook
	advisor   Advisor
	explorer  NetworkExplorer
	exporter  *export.SubmissionExporter
	bus       *events.Bus
	logger    *zap.Logger
}

func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		portfolio: cfg.Portfolio,
		whales:    cfg.Whales,
		prices:    cfg.Prices,
		advisor:   cfg.Advisor,
		explorer:  cfg.Explorer,
		exporter:  cfg.Exporter,
		bus:       cfg.Bus,
		logger:    cfg.Logger.Named("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEventStream)

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.handlePortfolio)
			r.Get("/draft", s.handleGetDraft)
			r.Put("/draft", s.handlePutDraft)
			r.Delete("/draft", s.handleResetDraft)
			r.Patch("/draft/{id}", s.handlePatchDraftEntry)
			r.Post("/draft/balance", s.handleAutoBalance)
			r.Post("/draft/suggestion", s.handleApplySuggestion)
			r.Post("/submit", s.handleSubmit)
			r.Get("/history", s.handleHistory)
			r.Post("/export", s.handleExport)
		})

		r.Route("/whales", func(r chi.Router) {
			r.Get("/", s.handleWhalesRecent)
			r.Get("/summary", s.handleWhalesSummary)
			r.Post("/analysis", s.handleWhaleAnalysis)
		})

		r.Route("/prices", func(r chi.Router) {
			r.Get("/", s.handlePrices)
			r.Get("/{symbol}", s.handlePriceBySymbol)
		})

		r.Route("/advisor", func(r chi.Router) {
			r.Post("/chat", s.handleChat)
			r.Post("/insights", s.handleInsights)
		})

		r.Route("/network", func(r chi.Router) {
			r.Get("/stats", s.handleNetworkStats)
			r.Get("/transactions/{address}", s.handleAccountTransactions)
		})
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}
