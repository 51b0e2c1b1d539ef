package http_api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetpay/ledgerd/internal/models"
)

// AssignRequest represents the JSON body for a manual payment assignment
type AssignRequest struct {
	AccountID   string `json:"account_id" binding:"required,uuid"`
	CreateAlias bool   `json:"create_alias"`
}

// MessageRequest represents the JSON body for an ad-hoc message
type MessageRequest struct {
	Text string `json:"text" binding:"required,max=1600"`
}

// PaymentResponse is the API view of a stored payment
type PaymentResponse struct {
	ID               string    `json:"id"`
	Source           string    `json:"source"`
	Amount           string    `json:"amount"`
	SenderName       string    `json:"sender_name"`
	SenderIdentifier string    `json:"sender_identifier,omitempty"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Memo             string    `json:"memo,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
	Matched          bool      `json:"matched"`
	AccountID        string    `json:"account_id,omitempty"`
}

// BalanceResponse is the API view of an account balance
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	Rate      string `json:"rate"`
	Balance   string `json:"balance"`
}

// NotificationResponse is the API view of one send attempt
type NotificationResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

func paymentResponse(p *models.PaymentRecord) PaymentResponse {
	resp := PaymentResponse{
		ID:               p.ID.String(),
		Source:           p.Source.String(),
		Amount:           p.Amount.StringFixed(2),
		SenderName:       p.SenderName,
		SenderIdentifier: p.SenderIdentifier,
		TransactionID:    p.TransactionID,
		Memo:             p.Memo,
		ReceivedAt:       p.ReceivedAt,
		Matched:          p.Matched,
	}
	if p.AccountID != nil {
		resp.AccountID = p.AccountID.String()
	}
	return resp
}

func (s *HTTPServer) health(c *gin.Context) {
	if err := s.service.Ping(c.Request.Context()); err != nil {
		s.logger.Warnw("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) promMetrics(c *gin.Context) {
	s.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// unmatchedPayments lists payments waiting for manual assignment, newest first.
func (s *HTTPServer) unmatchedPayments(c *gin.Context) {
	payments, err := s.service.ListUnmatched(c.Request.Context())
	if err != nil {
		s.logger.Errorw("Failed to list unmatched payments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list payments"})
		return
	}
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

func (s *HTTPServer) paymentStats(c *gin.Context) {
	stats, err := s.service.PaymentStats(c.Request.Context())
	if err != nil {
		s.logger.Errorw("Failed to compute payment stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// assignPayment is a handler for POST /payments/:id/assign.
func (s *HTTPServer) assignPayment(c *gin.Context) {
	paymentID, ok := s.pathID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debugw("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	accountID := uuid.MustParse(req.AccountID)

	payment, err := s.service.AssignPayment(c.Request.Context(), paymentID, accountID, req.CreateAlias)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	case errors.Is(err, models.ErrUnknownAccount):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	case errors.Is(err, models.ErrAlreadyMatched):
		c.JSON(http.StatusConflict, gin.H{"error": "payment is already matched"})
		return
	case err != nil:
		s.logger.Errorw("Failed to assign payment", "payment_id", paymentID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign payment"})
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

func (s *HTTPServer) accountBalance(c *gin.Context) {
	accountID, ok := s.pathID(c)
	if !ok {
		return
	}
	account, balance, err := s.service.Balance(c.Request.Context(), accountID)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		s.logger.Errorw("Failed to compute balance", "account_id", accountID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute balance"})
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		AccountID: account.ID.String(),
		Name:      account.DisplayName,
		Plan:      account.Plan.String(),
		Rate:      account.Rate.StringFixed(2),
		Balance:   balance.StringFixed(2),
	})
}

// sendMessage delivers an ad-hoc message. A failed delivery is still logged
// and answered with 502.
func (s *HTTPServer) sendMessage(c *gin.Context) {
	accountID, ok := s.pathID(c)
	if !ok {
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	entry, err := s.service.SendMessage(c.Request.Context(), accountID, req.Text)
	if errors.Is(err, models.ErrUnknownAccount) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		s.logger.Errorw("Failed to send message", "account_id", accountID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	status := http.StatusCreated
	if entry.Status == models.DeliveryFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, NotificationResponse{
		ID:                entry.ID.String(),
		Status:            entry.Status.String(),
		ProviderMessageID: entry.ProviderMessageID,
		Error:             entry.ProviderError,
	})
}

// runBilling triggers a billing cycle; ?dry_run=true computes without committing.
func (s *HTTPServer) runBilling(c *gin.Context) {
	dryRun := false
	if v := c.Query("dry_run"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dry_run must be a boolean"})
			return
		}
		dryRun = parsed
	}

	result, err := s.service.RunBilling(c.Request.Context(), dryRun)
	if errors.Is(err, models.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "a billing run is already in progress"})
		return
	}
	if err != nil {
		s.logger.Errorw("Billing run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing run failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *HTTPServer) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
