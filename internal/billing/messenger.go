package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Messenger sends ad-hoc messages to account holders and logs every attempt.
type Messenger struct {
	logger  *logger.Logger
	repo    models.Repository
	gateway models.Gateway

	now func() time.Time
}

func NewMessenger(logger *logger.Logger, repo models.Repository, gateway models.Gateway) *Messenger {
	return &Messenger{
		logger:  logger,
		repo:    repo,
		gateway: gateway,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Send delivers text to the account's contact address. A failed delivery is
// not an error: it comes back as a log with status failed. Errors are
// reserved for unknown accounts and storage failures.
func (m *Messenger) Send(ctx context.Context, accountID uuid.UUID, text string) (*models.NotificationLog, error) {
	account, err := m.repo.GetAccount(ctx, accountID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("account %s: %w", accountID, models.ErrUnknownAccount)
	}
	if err != nil {
		return nil, err
	}
	return deliver(ctx, m.logger, m.repo, m.gateway, account, text, m.now())
}

// deliver sends one message and records the attempt in store whatever the
// outcome.
func deliver(ctx context.Context, log *logger.Logger, store models.Repository, gateway models.Gateway, account *models.Account, text string, at time.Time) (*models.NotificationLog, error) {
	res := gateway.Send(ctx, account.ContactAddress, text)
	entry := &models.NotificationLog{
		AccountID:         account.ID,
		Address:           account.ContactAddress,
		Message:           text,
		Status:            models.DeliverySent,
		ProviderMessageID: res.ProviderMessageID,
		CreatedAt:         at,
	}
	if !res.Success {
		entry.Status = models.DeliveryFailed
		entry.ProviderError = res.Error
		log.Warnw("Message delivery failed", "account_id", account.ID.String(), "address", account.ContactAddress, "error", res.Error)
	} else {
		log.Infow("Message delivered", "account_id", account.ID.String(), "provider_id", res.ProviderMessageID)
	}
	if err := store.AppendNotification(ctx, entry); err != nil {
		return nil, fmt.Errorf("log notification for %s: %w", account.ID, err)
	}
	return entry, nil
}
