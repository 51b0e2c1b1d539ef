package ingest

import (
	"context"
	"fmt"

	"github.com/fleetpay/ledgerd/internal/models"
)

// PaymentChecker is the part of the repository the Guard reads.
type PaymentChecker interface {
	PaymentExists(ctx context.Context, source models.Source, transactionID string) (bool, error)
}

// Guard rejects facts that were already recorded. Facts without a
// transaction id can never be recognised as repeats and always pass.
type Guard struct {
	payments PaymentChecker
}

func NewGuard(payments PaymentChecker) *Guard {
	return &Guard{payments: payments}
}

func (g *Guard) IsDuplicate(ctx context.Context, source models.Source, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	exists, err := g.payments.PaymentExists(ctx, source, transactionID)
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", source, transactionID, err)
	}
	return exists, nil
}
