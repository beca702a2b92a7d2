// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wallet-insights/internal/flow"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/models"
	"github.com/wallet-insights/internal/privacy"
	"github.com/wallet-insights/internal/service"
	"github.com/wallet-insights/internal/storage"
)

// Service interfaces for dependency injection and testing

// FlowServiceInterface defines the flow analysis operations
type FlowServiceInterface interface {
	GetFlowAnalysis(ctx context.Context, walletID string, window flow.Window) (*models.FlowAnalysis, error)
}

// ScoringServiceInterface defines the scoring and adoption operations
type ScoringServiceInterface interface {
	GetOrComputeProductivity(ctx context.Context, walletID string) (*models.ProductivityScore, error)
	AdvanceAdoptionStages(ctx context.Context, walletID string) ([]models.AdoptionStage, error)
	InitializeWallet(ctx context.Context, walletID string) ([]models.AdoptionStage, error)
	RecomputeProject(ctx context.Context, projectID string) (*service.BatchResult, error)
}

// PrivacyServiceInterface defines the access control and monetization operations
type PrivacyServiceInterface interface {
	CheckAccess(ctx context.Context, walletID, requesterID string, paid bool) (*privacy.Decision, error)
	RequireAccess(ctx context.Context, walletID, requesterID string) (*privacy.Decision, *models.Wallet, error)
	RequireProjectOwner(ctx context.Context, projectID, requesterID string) error
	GetWalletView(ctx context.Context, walletID, requesterID string) (*service.WalletViewResult, error)
	SetPrivacyMode(ctx context.Context, walletID, actorID, mode string) (*models.PrivacyAuditEntry, error)
	PurchaseAccess(ctx context.Context, input service.PurchaseAccessInput) (*service.PurchaseResult, error)
	GetEarnings(ctx context.Context, ownerID, requesterID string) (*models.OwnerEarnings, error)
}

// AggregationServiceInterface defines the cached project view operations
type AggregationServiceInterface interface {
	GetDashboard(ctx context.Context, projectID string) (*storage.ViewResult, error)
	GetTimeSeries(ctx context.Context, projectID, metric string, days int) (*storage.ViewResult, error)
	ExportReport(ctx context.Context, projectID, format string) (*storage.ViewResult, error)
	Invalidate(ctx context.Context, projectID string) (int, error)
	ViewStats() service.ViewStats
}

// Server represents the HTTP API server.
type Server struct {
	router             *mux.Router
	httpServer         *http.Server
	flowService        FlowServiceInterface
	scoringService     ScoringServiceInterface
	privacyService     PrivacyServiceInterface
	aggregationService AggregationServiceInterface
	logger             *logging.Logger
	config             *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerMinute int // Requests per minute per requester
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	logger *logging.Logger,
	flowService FlowServiceInterface,
	scoringService ScoringServiceInterface,
	privacyService PrivacyServiceInterface,
	aggregationService AggregationServiceInterface,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:             mux.NewRouter(),
		flowService:        flowService,
		scoringService:     scoringService,
		privacyService:     privacyService,
		aggregationService: aggregationService,
		logger:             logger,
		config:             config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(RequestContextMiddleware(s.logger))
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/health/views", s.handleViewStats).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Wallet endpoints
	api.HandleFunc("/wallets/{id}/flows", s.handleGetFlows).Methods("GET")
	api.HandleFunc("/wallets/{id}/productivity", s.handleGetProductivity).Methods("GET")
	api.HandleFunc("/wallets/{id}/stages/advance", s.handleAdvanceStages).Methods("POST")
	api.HandleFunc("/wallets/{id}/initialize", s.handleInitializeWallet).Methods("POST")
	api.HandleFunc("/wallets/{id}/access", s.handleCheckAccess).Methods("GET")
	api.HandleFunc("/wallets/{id}/view", s.handleGetWalletView).Methods("GET")
	api.HandleFunc("/wallets/{id}/privacy", s.handleSetPrivacyMode).Methods("PUT")
	api.HandleFunc("/wallets/{id}/access-grants", s.handlePurchaseAccess).Methods("POST")

	// Project endpoints
	api.HandleFunc("/projects/{id}/dashboard", s.handleGetDashboard).Methods("GET")
	api.HandleFunc("/projects/{id}/cache", s.handleInvalidateCache).Methods("DELETE")
	api.HandleFunc("/projects/{id}/timeseries", s.handleGetTimeSeries).Methods("GET")
	api.HandleFunc("/projects/{id}/export", s.handleExport).Methods("GET")
	api.HandleFunc("/projects/{id}/recompute", s.handleRecompute).Methods("POST")

	// User endpoints
	api.HandleFunc("/users/{id}/earnings", s.handleGetEarnings).Methods("GET")
}

// Handler exposes the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "wallet-insights",
	})
}

// handleViewStats reports view latency and cache hit statistics.
func (s *Server) handleViewStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.aggregationService.ViewStats())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
