package http_api

import (
	"time"

	"github.com/go-chi/httprate"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", s.promMetrics)

	api := s.router.Group("/api/v1")
	api.Use(
		wrapHTTP(httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))),
		authMiddleware(s.token),
	)
	api.GET("/payments/unmatched", s.unmatchedPayments)
	api.GET("/payments/stats", s.paymentStats)
	api.POST("/payments/:id/assign", s.assignPayment)
	api.GET("/accounts/:id/balance", s.accountBalance)
	api.POST("/accounts/:id/messages", s.sendMessage)
	api.POST("/jobs/billing", s.runBilling)
}
