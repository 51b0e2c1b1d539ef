// Package notificator holds the gateways that deliver account notices.
package notificator

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/fleetpay/ledgerd/internal/config"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Notificator wraps a gateway so a panicking transport is reported as a
// failed send instead of taking the caller down.
type Notificator struct {
	logger  *logger.Logger
	channel string
	gateway models.Gateway
}

func NewNotificator(logger *logger.Logger, channel string, gateway models.Gateway) *Notificator {
	return &Notificator{logger: logger, channel: channel, gateway: gateway}
}

// NewGateway builds the gateway for the configured channel.
func NewGateway(cfg *config.Config, logger *logger.Logger) (*Notificator, error) {
	var gateway models.Gateway
	switch cfg.NotifyChannel {
	case config.ChannelSMS:
		gateway = NewSMSNotificator(logger, cfg.OpenPhoneBaseURL, cfg.OpenPhoneAPIKey, cfg.OpenPhonePhoneNumber)
	case config.ChannelTelegram:
		tg, err := NewTelegramNotificator(logger, cfg.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		gateway = tg
	case config.ChannelEmail:
		gateway = NewEmailNotificator(logger, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	case config.ChannelLog:
		gateway = NewLogNotificator(logger)
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.NotifyChannel)
	}
	return NewNotificator(logger, cfg.NotifyChannel, gateway), nil
}

// Channel names the configured delivery channel.
func (n *Notificator) Channel() string {
	return n.channel
}

// Gateway returns the wrapped transport.
func (n *Notificator) Gateway() models.Gateway {
	return n.gateway
}

func (n *Notificator) Send(ctx context.Context, address, text string) (result models.SendResult) {
	n.safeCall(func() { result = n.gateway.Send(ctx, address, text) }, n.channel, func(r interface{}) {
		result = failed(fmt.Sprintf("gateway panicked: %v", r))
	})
	return result
}

// safeCall runs fn with panic recovery (synchronous, no goroutine spawning).
func (n *Notificator) safeCall(fn func(), context string, onPanic func(r interface{})) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
			onPanic(r)
		}
	}()
	fn()
}

// LogNotificator writes messages to the log instead of delivering them.
type LogNotificator struct {
	logger *logger.Logger
}

func NewLogNotificator(logger *logger.Logger) *LogNotificator {
	return &LogNotificator{logger: logger}
}

func (l *LogNotificator) Send(_ context.Context, address, text string) models.SendResult {
	l.logger.Infow("Notification", "address", address, "text", text)
	return models.SendResult{Success: true}
}
