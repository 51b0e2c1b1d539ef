// Package ledger is the append-only record of credits and debits per
// account. Balances are always derived from the full entry history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/ledgerd/internal/models"
)

// Store is the part of the repository the ledger needs.
type Store interface {
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	LedgerTotals(ctx context.Context, accountID uuid.UUID) (models.LedgerTotals, error)
	LastEntry(ctx context.Context, accountID uuid.UUID, direction models.Direction) (*models.LedgerEntry, error)
}

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns credits minus debits over every entry of the account.
func (l *Ledger) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	totals, err := l.store.LedgerTotals(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger totals for %s: %w", accountID, err)
	}
	return totals.Balance(), nil
}

// Append inserts entry. Entries are never updated; a correction is a new
// offsetting entry.
func (l *Ledger) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if err := l.store.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("append %s for %s: %w", entry.Direction, entry.AccountID, err)
	}
	return nil
}

// Credit records money received for an account, optionally tied to the
// payment record it came from.
func (l *Ledger) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string, paymentID *uuid.UUID, at time.Time) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		AccountID:   accountID,
		Direction:   models.DirectionCredit,
		Amount:      amount,
		Description: description,
		PaymentID:   paymentID,
		CreatedAt:   at,
	}
	return entry, l.Append(ctx, entry)
}

// Debit records a charge against an account.
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string, at time.Time) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		AccountID:   accountID,
		Direction:   models.DirectionDebit,
		Amount:      amount,
		Description: description,
		CreatedAt:   at,
	}
	return entry, l.Append(ctx, entry)
}

// LastDebit returns the most recent debit of the account, or nil when the
// account has never been charged.
func (l *Ledger) LastDebit(ctx context.Context, accountID uuid.UUID) (*models.LedgerEntry, error) {
	entry, err := l.store.LastEntry(ctx, accountID, models.DirectionDebit)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last debit for %s: %w", accountID, err)
	}
	return entry, nil
}
