package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/ledgerd/internal/billing"
	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// Service is what the operator API needs from the application.
type Service interface {
	ListUnmatched(ctx context.Context) ([]*models.PaymentRecord, error)
	PaymentStats(ctx context.Context) (*models.PaymentStats, error)
	AssignPayment(ctx context.Context, paymentID, accountID uuid.UUID, createAlias bool) (*models.PaymentRecord, error)
	Balance(ctx context.Context, accountID uuid.UUID) (*models.Account, decimal.Decimal, error)
	SendMessage(ctx context.Context, accountID uuid.UUID, text string) (*models.NotificationLog, error)
	RunBilling(ctx context.Context, dryRun bool) (*billing.Result, error)
	Ping(ctx context.Context) error
}

// HTTPServer is the HTTP server struct that will serve the operator API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int
	// token guards /api/v1 when set
	token string

	// server is the underlying HTTP server
	server *http.Server

	service Service
	metrics *metrics.Metrics
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(service Service, port int, token string, m *metrics.Metrics, logger *logger.Logger) *HTTPServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger), metricsMiddleware(m), corsMiddleware(), secureMiddleware(logger))

	server := &HTTPServer{
		router:  router,
		port:    port,
		token:   token,
		service: service,
		metrics: m,
		logger:  logger,
	}

	// Define routes
	server.routes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
