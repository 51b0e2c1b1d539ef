package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/internal/repository"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

func TestMessengerLogsEveryAttempt(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	account := newAccount(t, repo, "Jordan Lee", models.BillingPlanDaily, 45, today)
	gw := &fakeGateway{}
	messenger := NewMessenger(logger.NewNop(), repo, gw)

	entry, err := messenger.Send(ctx, account.ID, "Your vehicle is ready")
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySent, entry.Status)
	assert.Equal(t, "+13125550100", entry.Address)

	gw.fail = "API key not configured"
	entry, err = messenger.Send(ctx, account.ID, "Second message")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, entry.Status)
	assert.Equal(t, "API key not configured", entry.ProviderError)

	logs := repo.Notifications(account.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, "Your vehicle is ready", logs[0].Message)
}

func TestMessengerUnknownAccount(t *testing.T) {
	_, err := NewMessenger(logger.NewNop(), repository.NewMemory(), &fakeGateway{}).Send(context.Background(), uuid.New(), "hi")
	assert.ErrorIs(t, err, models.ErrUnknownAccount)
}
