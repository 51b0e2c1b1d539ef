package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/models"
)

func TestPaymentRowStoresMissingFieldsAsNull(t *testing.T) {
	record := &models.PaymentRecord{
		ID:         uuid.New(),
		Source:     models.SourceChime,
		Amount:     decimal.RequireFromString("12.34"),
		SenderName: "Riva Brewer",
		ReceivedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	row := toPaymentRow(record)
	require.Equal(t, "chime", row.Source)
	require.Nil(t, row.TransactionID)
	require.Nil(t, row.Memo)
	require.Nil(t, row.SenderIdentifier)

	back, err := row.toModel()
	require.NoError(t, err)
	require.Equal(t, record, back)
}

func TestRowsRejectUnknownEnumText(t *testing.T) {
	_, err := accountRow{ID: uuid.New(), BillingPlan: "hourly"}.toModel()
	require.ErrorContains(t, err, "unknown billing plan")

	_, err = ledgerRow{ID: uuid.New(), Direction: "sideways"}.toModel()
	require.ErrorContains(t, err, "unknown ledger direction")

	_, err = aliasRow{ID: uuid.New(), Kind: "fax"}.toModel()
	require.ErrorContains(t, err, "unknown alias kind")
}

func TestAccountRowRoundTrip(t *testing.T) {
	account := &models.Account{
		ID:             uuid.New(),
		DisplayName:    "Sam Ortiz",
		ContactAddress: "+13125550111",
		Plan:           models.BillingPlanWeekly,
		Rate:           decimal.RequireFromString("300.00"),
		Active:         true,
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	row := toAccountRow(account)
	require.Equal(t, "weekly", row.BillingPlan)

	back, err := row.toModel()
	require.NoError(t, err)
	require.Equal(t, account, back)
}
