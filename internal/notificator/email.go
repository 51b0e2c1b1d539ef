package notificator

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
	"github.com/fleetpay/ledgerd/pkg/validation"
)

const emailSubject = "Account notice"

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPSender string

	SMTPAuth smtp.Auth

	// sendMail is smtp.SendMail, replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string) *EmailNotificator {
	var auth smtp.Auth
	if SMTPUser != "" {
		auth = smtp.PlainAuth("", SMTPUser, SMTPPassword, SMTPHost)
	}
	return &EmailNotificator{
		logger:     logger,
		SMTPAuth:   auth,
		SMTPHost:   SMTPHost,
		SMTPPort:   SMTPPort,
		SMTPSender: SMTPSender,
		sendMail:   smtp.SendMail,
	}
}

func (e *EmailNotificator) Send(_ context.Context, address, text string) models.SendResult {
	if err := validation.ValidateEmail(address); err != nil {
		return failed(err.Error())
	}
	addr := net.JoinHostPort(e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		e.SMTPSender,
		address,
		emailSubject,
		text,
	)
	if err := e.sendMail(addr, e.SMTPAuth, e.SMTPSender, []string{address}, []byte(msg)); err != nil {
		e.logger.Errorw("Failed to send email", "to", address, "error", err)
		return failed(err.Error())
	}
	return models.SendResult{Success: true}
}
