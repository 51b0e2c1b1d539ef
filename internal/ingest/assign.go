package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/ledgerd/internal/ledger"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Assigner resolves unmatched payments by hand.
type Assigner struct {
	logger *logger.Logger
	repo   models.Repository

	now func() time.Time
}

func NewAssigner(logger *logger.Logger, repo models.Repository) *Assigner {
	return &Assigner{
		logger: logger,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Assign attaches an unmatched payment to an account and credits it. With
// createAlias the payment's sender name becomes an alias of the account so
// later payments from the same sender match on their own.
func (a *Assigner) Assign(ctx context.Context, paymentID, accountID uuid.UUID, createAlias bool) (*models.PaymentRecord, error) {
	var assigned *models.PaymentRecord
	err := a.repo.WithTx(ctx, func(tx models.Repository) error {
		payment, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Matched {
			return fmt.Errorf("payment %s: %w", paymentID, models.ErrAlreadyMatched)
		}
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("account %s: %w", accountID, models.ErrUnknownAccount)
			}
			return err
		}

		if err := tx.MarkPaymentMatched(ctx, paymentID, accountID); err != nil {
			return err
		}
		now := a.now()
		if _, err := ledger.New(tx).Credit(ctx, accountID, payment.Amount, creditDescription(payment), &payment.ID, now); err != nil {
			return err
		}
		if createAlias {
			if err := a.ensureAlias(ctx, tx, accountID, payment, now); err != nil {
				return err
			}
		}

		payment.Matched = true
		payment.AccountID = &accountID
		assigned = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.logger.Infow("Payment assigned",
		"payment_id", paymentID.String(),
		"account_id", accountID.String(),
		"amount", assigned.Amount.StringFixed(2),
		"alias", createAlias)
	return assigned, nil
}

func (a *Assigner) ensureAlias(ctx context.Context, tx models.Repository, accountID uuid.UUID, payment *models.PaymentRecord, now time.Time) error {
	if payment.SenderName == "" {
		return nil
	}
	existing, err := tx.FindAliases(ctx, payment.SenderName)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		a.logger.Debugw("Alias already known", "value", payment.SenderName, "account_id", existing[0].AccountID.String())
		return nil
	}
	return tx.CreateAlias(ctx, &models.Alias{
		AccountID: accountID,
		Kind:      payment.Source.AliasKind(),
		Value:     payment.SenderName,
		CreatedAt: now,
	})
}

func (a *Assigner) ListUnmatched(ctx context.Context) ([]*models.PaymentRecord, error) {
	return a.repo.ListUnmatchedPayments(ctx)
}

func (a *Assigner) Stats(ctx context.Context) (*models.PaymentStats, error) {
	return a.repo.PaymentStats(ctx)
}
