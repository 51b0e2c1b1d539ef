package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of the ledger an entry lands on.
type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
)

var directionNames = map[Direction]string{
	DirectionCredit: "credit",
	DirectionDebit:  "debit",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection converts the stored text form back into a Direction.
func ParseDirection(s string) (Direction, error) {
	for dir, name := range directionNames {
		if name == s {
			return dir, nil
		}
	}
	return 0, fmt.Errorf("unknown ledger direction %q", s)
}

// LedgerEntry is an immutable credit or debit against an account.
// Amount is always positive; Direction carries the sign.
type LedgerEntry struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Direction   Direction
	Amount      decimal.Decimal
	Description string
	// PaymentID references the PaymentRecord a credit was created from.
	PaymentID *uuid.UUID
	CreatedAt time.Time
}

// Validate rejects entries that could never be appended.
func (e *LedgerEntry) Validate() error {
	if e.AccountID == uuid.Nil {
		return fmt.Errorf("ledger entry has no account")
	}
	if _, ok := directionNames[e.Direction]; !ok {
		return fmt.Errorf("ledger entry has invalid direction %d", int(e.Direction))
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: ledger amount must be positive, got %s", ErrInvalidAmount, e.Amount)
	}
	return nil
}

// LedgerTotals are the summed credits and debits for one account.
type LedgerTotals struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
}

// Balance is credits minus debits.
func (t LedgerTotals) Balance() decimal.Decimal {
	return t.Credits.Sub(t.Debits)
}
