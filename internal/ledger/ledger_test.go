package ledger

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/internal/repository"
)

func newAccount(t *testing.T, repo *repository.Memory) uuid.UUID {
	t.Helper()
	account := &models.Account{DisplayName: "Jordan Lee", Plan: models.BillingPlanDaily, Rate: decimal.NewFromInt(45), Active: true}
	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account.ID
}

func TestBalanceIsCreditsMinusDebits(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	l := New(repo)
	id := newAccount(t, repo)
	other := newAccount(t, repo)

	balance, err := l.Balance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	now := time.Now()
	_, err = l.Debit(ctx, id, decimal.RequireFromString("45.00"), "daily rate", now)
	require.NoError(t, err)
	_, err = l.Debit(ctx, id, decimal.RequireFromString("45.00"), "daily rate", now)
	require.NoError(t, err)
	paymentID := uuid.New()
	credit, err := l.Credit(ctx, id, decimal.RequireFromString("60.25"), "zelle payment", &paymentID, now)
	require.NoError(t, err)
	assert.Equal(t, &paymentID, credit.PaymentID)
	_, err = l.Credit(ctx, other, decimal.RequireFromString("500"), "unrelated", nil, now)
	require.NoError(t, err)

	balance, err = l.Balance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "-29.75", balance.StringFixed(2))
}

func TestBalanceUnderConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	l := New(repo)
	id := newAccount(t, repo)

	rng := rand.New(rand.NewSource(7))
	amounts := make([]decimal.Decimal, 200)
	want := decimal.Zero
	for i := range amounts {
		amounts[i] = decimal.New(int64(rng.Intn(10000)+1), -2)
		if i%3 == 0 {
			want = want.Sub(amounts[i])
		} else {
			want = want.Add(amounts[i])
		}
	}

	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(i int, amount decimal.Decimal) {
			defer wg.Done()
			var err error
			if i%3 == 0 {
				_, err = l.Debit(ctx, id, amount, "charge", time.Now())
			} else {
				_, err = l.Credit(ctx, id, amount, "payment", nil, time.Now())
			}
			assert.NoError(t, err)
		}(i, amount)
	}
	wg.Wait()

	balance, err := l.Balance(ctx, id)
	require.NoError(t, err)
	assert.True(t, want.Equal(balance), "want %s, got %s", want, balance)
}

func TestAppendRejectsBadEntries(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	l := New(repo)

	_, err := l.Credit(ctx, uuid.New(), decimal.NewFromInt(5), "x", nil, time.Now())
	require.ErrorIs(t, err, models.ErrUnknownAccount)

	id := newAccount(t, repo)
	_, err = l.Debit(ctx, id, decimal.NewFromInt(-5), "x", time.Now())
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestLastDebit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	l := New(repo)
	id := newAccount(t, repo)

	last, err := l.LastDebit(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, last)

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = l.Debit(ctx, id, decimal.NewFromInt(45), "day 1", at)
	require.NoError(t, err)
	_, err = l.Credit(ctx, id, decimal.NewFromInt(45), "payment", nil, at.Add(48*time.Hour))
	require.NoError(t, err)

	last, err = l.LastDebit(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "day 1", last.Description)
}
