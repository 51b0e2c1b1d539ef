package ingest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

func TestAssignCreditsAndLearnsAlias(t *testing.T) {
	ctx := context.Background()
	repo, accountID := newFixture(t)
	in := newIngestor(repo, nil)
	assigner := NewAssigner(logger.NewNop(), repo)

	out := in.Ingest(ctx, zelleEmail("m1", "J Lee", "80.00", "900"), false)
	require.Equal(t, metrics.OutcomeUnmatched, out.Kind)

	unmatched, err := assigner.ListUnmatched(ctx)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)

	payment, err := assigner.Assign(ctx, out.PaymentID, accountID, true)
	require.NoError(t, err)
	assert.True(t, payment.Matched)
	assert.Equal(t, accountID, *payment.AccountID)
	assert.Equal(t, "80.00", balance(t, repo, accountID))

	aliases, err := repo.FindAliases(ctx, "J Lee")
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, models.AliasKindZelle, aliases[0].Kind)

	// The learned alias matches the next payment without help.
	next := in.Ingest(ctx, zelleEmail("m2", "J Lee", "20.00", "901"), false)
	assert.Equal(t, metrics.OutcomeStored, next.Kind)
	assert.Equal(t, "100.00", balance(t, repo, accountID))

	stats, err := assigner.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Matched)
	assert.EqualValues(t, 0, stats.Unmatched)
	assert.True(t, stats.MatchedAmount.Equal(decimal.NewFromInt(100)))
}

func TestAssignDoesNotDuplicateAlias(t *testing.T) {
	ctx := context.Background()
	repo, accountID := newFixture(t)
	require.NoError(t, repo.CreatePayment(ctx, &models.PaymentRecord{
		ID:         uuid.New(),
		Source:     models.SourceZelle,
		Amount:     decimal.NewFromInt(5),
		SenderName: "Jordan Lee",
	}))
	unmatched, err := repo.ListUnmatchedPayments(ctx)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)

	_, err = NewAssigner(logger.NewNop(), repo).Assign(ctx, unmatched[0].ID, accountID, true)
	require.NoError(t, err)

	aliases, err := repo.FindAliases(ctx, "Jordan Lee")
	require.NoError(t, err)
	assert.Len(t, aliases, 1)
}

func TestAssignErrors(t *testing.T) {
	ctx := context.Background()
	repo, accountID := newFixture(t)
	in := newIngestor(repo, nil)
	assigner := NewAssigner(logger.NewNop(), repo)

	_, err := assigner.Assign(ctx, uuid.New(), accountID, false)
	assert.ErrorIs(t, err, models.ErrNotFound)

	out := in.Ingest(ctx, zelleEmail("m1", "Pat Stranger", "60.00", "1001"), false)
	_, err = assigner.Assign(ctx, out.PaymentID, uuid.New(), false)
	assert.ErrorIs(t, err, models.ErrUnknownAccount)
	// A failed assignment leaves nothing behind.
	assert.Equal(t, "0.00", balance(t, repo, accountID))

	_, err = assigner.Assign(ctx, out.PaymentID, accountID, false)
	require.NoError(t, err)
	_, err = assigner.Assign(ctx, out.PaymentID, accountID, false)
	assert.ErrorIs(t, err, models.ErrAlreadyMatched)
	assert.Equal(t, "60.00", balance(t, repo, accountID))
}
