package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/models"
)

func newAccount(t *testing.T, repo models.Repository) *models.Account {
	t.Helper()
	account := &models.Account{
		DisplayName:    "Jordan Lee",
		ContactAddress: "+13125550100",
		Plan:           models.BillingPlanDaily,
		Rate:           decimal.RequireFromString("45.00"),
		Active:         true,
	}
	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account
}

func TestMemoryPaymentUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	first := &models.PaymentRecord{Source: models.SourceZelle, Amount: decimal.NewFromInt(10), TransactionID: "482913"}
	require.NoError(t, repo.CreatePayment(ctx, first))

	dup := &models.PaymentRecord{Source: models.SourceZelle, Amount: decimal.NewFromInt(10), TransactionID: "482913"}
	err := repo.CreatePayment(ctx, dup)
	require.ErrorIs(t, err, models.ErrDuplicatePayment)

	// Same id on another network is a different payment.
	other := &models.PaymentRecord{Source: models.SourceVenmo, Amount: decimal.NewFromInt(10), TransactionID: "482913"}
	require.NoError(t, repo.CreatePayment(ctx, other))

	// Payments without an id are never considered duplicates.
	require.NoError(t, repo.CreatePayment(ctx, &models.PaymentRecord{Source: models.SourceChime, Amount: decimal.NewFromInt(5)}))
	require.NoError(t, repo.CreatePayment(ctx, &models.PaymentRecord{Source: models.SourceChime, Amount: decimal.NewFromInt(5)}))

	exists, err := repo.PaymentExists(ctx, models.SourceZelle, "482913")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.PaymentExists(ctx, models.SourceChime, "")
	require.NoError(t, err)
	require.False(t, exists)

	stats, err := repo.PaymentStats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, stats.Total)
	require.EqualValues(t, 4, stats.Unmatched)
	require.True(t, stats.TotalAmount.Equal(decimal.NewFromInt(30)))
}

func TestMemoryLedgerRequiresKnownAccount(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	err := repo.AppendEntry(ctx, &models.LedgerEntry{
		AccountID: uuid.New(),
		Direction: models.DirectionCredit,
		Amount:    decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, models.ErrUnknownAccount)

	account := newAccount(t, repo)
	err = repo.AppendEntry(ctx, &models.LedgerEntry{
		AccountID: account.ID,
		Direction: models.DirectionDebit,
		Amount:    decimal.Zero,
	})
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestMemoryLastEntryAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	account := newAccount(t, repo)

	_, err := repo.LastEntry(ctx, account.ID, models.DirectionDebit)
	require.ErrorIs(t, err, models.ErrNotFound)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, amount := range []string{"45.00", "45.00", "20.50"} {
		require.NoError(t, repo.AppendEntry(ctx, &models.LedgerEntry{
			AccountID: account.ID,
			Direction: models.DirectionDebit,
			Amount:    decimal.RequireFromString(amount),
			CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}
	require.NoError(t, repo.AppendEntry(ctx, &models.LedgerEntry{
		AccountID: account.ID,
		Direction: models.DirectionCredit,
		Amount:    decimal.RequireFromString("100.00"),
		CreatedAt: base,
	}))

	last, err := repo.LastEntry(ctx, account.ID, models.DirectionDebit)
	require.NoError(t, err)
	require.Equal(t, base.Add(48*time.Hour), last.CreatedAt)

	totals, err := repo.LedgerTotals(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "100", totals.Credits.String())
	require.Equal(t, "110.5", totals.Debits.String())
	require.Equal(t, "-10.5", totals.Balance().String())
}

func TestMemoryWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	account := newAccount(t, repo)

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx models.Repository) error {
		require.NoError(t, tx.AppendEntry(ctx, &models.LedgerEntry{
			AccountID: account.ID,
			Direction: models.DirectionDebit,
			Amount:    decimal.NewFromInt(45),
		}))
		totals, err := tx.LedgerTotals(ctx, account.ID)
		require.NoError(t, err)
		require.Equal(t, "45", totals.Debits.String())
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := repo.ListEntries(ctx, account.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	err = repo.WithTx(ctx, func(tx models.Repository) error {
		return tx.AppendEntry(ctx, &models.LedgerEntry{
			AccountID: account.ID,
			Direction: models.DirectionDebit,
			Amount:    decimal.NewFromInt(45),
		})
	})
	require.NoError(t, err)

	entries, err = repo.ListEntries(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMemoryMarkPaymentMatched(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	account := newAccount(t, repo)

	payment := &models.PaymentRecord{Source: models.SourceCashApp, Amount: decimal.NewFromInt(60), TransactionID: "D-1234"}
	require.NoError(t, repo.CreatePayment(ctx, payment))

	unmatched, err := repo.ListUnmatchedPayments(ctx)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)

	require.NoError(t, repo.MarkPaymentMatched(ctx, payment.ID, account.ID))
	require.ErrorIs(t, repo.MarkPaymentMatched(ctx, payment.ID, account.ID), models.ErrAlreadyMatched)
	require.ErrorIs(t, repo.MarkPaymentMatched(ctx, uuid.New(), account.ID), models.ErrNotFound)

	stored, err := repo.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.True(t, stored.Matched)
	require.Equal(t, account.ID, *stored.AccountID)
}

func TestMemoryLocks(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	ok, err := repo.AcquireLock(ctx, "billing", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AcquireLock(ctx, "billing", "b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// The holder may refresh its own lock.
	ok, err = repo.AcquireLock(ctx, "billing", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.ReleaseLock(ctx, "billing", "a"))
	ok, err = repo.AcquireLock(ctx, "billing", "b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCountNotificationsWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	account := newAccount(t, repo)

	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{day.Add(-time.Second), day, day.Add(23 * time.Hour)} {
		require.NoError(t, repo.AppendNotification(ctx, &models.NotificationLog{
			AccountID: account.ID,
			Address:   account.ContactAddress,
			Message:   "hi",
			Status:    models.DeliverySent,
			CreatedAt: at,
		}))
	}

	count, err := repo.CountNotifications(ctx, account.ID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}
