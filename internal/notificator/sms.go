package notificator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
	"github.com/fleetpay/ledgerd/pkg/validation"
)

const (
	defaultOpenPhoneURL = "https://api.openphone.com/v1"
	smsTimeout          = 30 * time.Second
)

// SMSNotificator sends text messages through the OpenPhone API.
type SMSNotificator struct {
	logger *logger.Logger
	client *http.Client

	baseURL     string
	apiKey      string
	phoneNumber string
}

func NewSMSNotificator(logger *logger.Logger, baseURL, apiKey, phoneNumber string) *SMSNotificator {
	if baseURL == "" {
		baseURL = defaultOpenPhoneURL
	}
	return &SMSNotificator{
		logger:      logger,
		client:      &http.Client{Timeout: smsTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		phoneNumber: phoneNumber,
	}
}

type openPhoneRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Content string   `json:"content"`
}

type openPhoneResponse struct {
	ID   string `json:"id"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (s *SMSNotificator) Send(ctx context.Context, address, text string) models.SendResult {
	if s.apiKey == "" {
		return failed("API key not configured")
	}
	to, err := validation.NormalizePhone(address)
	if err != nil {
		return failed(err.Error())
	}

	payload, err := json.Marshal(openPhoneRequest{From: s.phoneNumber, To: []string{to}, Content: text})
	if err != nil {
		return failed(err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return failed(err.Error())
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Errorw("OpenPhone request failed", "to", to, "error", err)
		return failed(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		s.logger.Warnw("OpenPhone rejected message", "to", to, "status", resp.StatusCode)
		return failed(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded openPhoneResponse
	_ = json.Unmarshal(body, &decoded)
	id := decoded.ID
	if id == "" {
		id = decoded.Data.ID
	}
	s.logger.Debugw("SMS sent", "to", to, "provider_id", id)
	return models.SendResult{Success: true, ProviderMessageID: id}
}

func failed(reason string) models.SendResult {
	return models.SendResult{Error: reason}
}
