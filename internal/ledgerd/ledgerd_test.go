package ledgerd

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/config"
	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/internal/repository"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

type okGateway struct{ sends int }

func (g *okGateway) Send(context.Context, string, string) models.SendResult {
	g.sends++
	return models.SendResult{Success: true}
}

type sliceSource []models.RawMessage

func (s sliceSource) Fetch(context.Context) ([]models.RawMessage, error) { return s, nil }

func testConfig() *config.Config {
	return &config.Config{
		InstanceID:        "test-1",
		IngestWorkers:     2,
		IngestSchedule:    "*/5 * * * *",
		BillingTimezone:   "UTC",
		BillingSchedule:   "0 0 * * *",
		LateAfterDays:     2,
		ReminderSignature: "Fleet Billing",
	}
}

func zelle(id, txID string) models.RawMessage {
	return models.RawMessage{ID: id, Raw: []byte(fmt.Sprintf(
		"From: alerts@chase.com\r\nSubject: Jordan Lee sent you money\r\n\r\nYou received $125.00. Transaction number: %s\r\n", txID))}
}

func setup(t *testing.T, source models.MessageSource) (*App, *repository.Memory, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemory()
	account := &models.Account{
		DisplayName:    "Jordan Lee",
		ContactAddress: "+13125550100",
		Plan:           models.BillingPlanDaily,
		Rate:           decimal.NewFromInt(45),
		Active:         true,
	}
	require.NoError(t, repo.CreateAccount(ctx, account))
	require.NoError(t, repo.CreateAlias(ctx, &models.Alias{AccountID: account.ID, Kind: models.AliasKindZelle, Value: "Jordan Lee"}))

	app, err := NewApp(testConfig(), repo, &okGateway{}, source, metrics.New(), logger.NewNop())
	require.NoError(t, err)
	return app, repo, account.ID
}

func TestIngestThenBill(t *testing.T) {
	ctx := context.Background()
	app, _, accountID := setup(t, sliceSource{zelle("a.eml", "482913")})

	summary, err := app.RunIngest(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stored)

	result, err := app.RunBilling(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Debits)

	account, balance, err := app.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Lee", account.DisplayName)
	assert.Equal(t, "80.00", balance.StringFixed(2))

	stats, err := app.PaymentStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Matched)
}

func TestRunIngestWithoutSource(t *testing.T) {
	app, _, _ := setup(t, nil)
	_, err := app.RunIngest(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrNoMessageSource)

	summary, err := app.RunIngest(context.Background(), sliceSource{zelle("b.eml", "1")}, true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
}

func TestBillingRefusedWhileLockHeld(t *testing.T) {
	ctx := context.Background()
	app, repo, _ := setup(t, nil)

	ok, err := repo.AcquireLock(ctx, JobBilling, "other-host", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = app.RunBilling(ctx, false)
	assert.ErrorIs(t, err, models.ErrRunInProgress)

	require.NoError(t, repo.ReleaseLock(ctx, JobBilling, "other-host"))
	_, err = app.RunBilling(ctx, false)
	assert.NoError(t, err)
}

func TestLockReleasedAfterRun(t *testing.T) {
	ctx := context.Background()
	app, repo, _ := setup(t, nil)

	_, err := app.RunBilling(ctx, true)
	require.NoError(t, err)

	ok, err := repo.AcquireLock(ctx, JobBilling, "other-host", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSameProcessRunsAreExclusive(t *testing.T) {
	app, _, _ := setup(t, nil)
	app.running[JobBilling].Lock()
	defer app.running[JobBilling].Unlock()

	_, err := app.RunBilling(context.Background(), false)
	assert.ErrorIs(t, err, models.ErrRunInProgress)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.BillingSchedule = "every day"
	app, err := NewApp(cfg, repository.NewMemory(), &okGateway{}, nil, nil, logger.NewNop())
	require.NoError(t, err)
	assert.Error(t, app.Start(context.Background()))

	app, _, _ = setup(t, sliceSource{})
	require.NoError(t, app.Start(context.Background()))
	assert.Len(t, app.cron.Entries(), 2)
	app.Stop()
}

func TestNewAppRejectsBadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.BillingTimezone = "Mars/Olympus"
	_, err := NewApp(cfg, repository.NewMemory(), &okGateway{}, nil, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestSendMessageAndAssign(t *testing.T) {
	ctx := context.Background()
	app, repo, accountID := setup(t, nil)

	entry, err := app.SendMessage(ctx, accountID, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySent, entry.Status)

	payment := &models.PaymentRecord{Source: models.SourceVenmo, Amount: decimal.NewFromInt(20), SenderName: "J L"}
	require.NoError(t, repo.CreatePayment(ctx, payment))
	unmatched, err := app.ListUnmatched(ctx)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)

	_, err = app.AssignPayment(ctx, payment.ID, accountID, false)
	require.NoError(t, err)
	_, balance, err := app.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", balance.StringFixed(2))
}
