package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingPlan decides how often an account is charged its billing rate.
type BillingPlan int

const (
	BillingPlanDaily BillingPlan = iota + 1
	BillingPlanWeekly
)

var billingPlanNames = map[BillingPlan]string{
	BillingPlanDaily:  "daily",
	BillingPlanWeekly: "weekly",
}

func (p BillingPlan) String() string {
	if name, ok := billingPlanNames[p]; ok {
		return name
	}
	return fmt.Sprintf("BillingPlan(%d)", int(p))
}

// ParseBillingPlan converts the stored text form back into a BillingPlan.
func ParseBillingPlan(s string) (BillingPlan, error) {
	for plan, name := range billingPlanNames {
		if name == s {
			return plan, nil
		}
	}
	return 0, fmt.Errorf("unknown billing plan %q", s)
}

// Account is a billed account holder.
type Account struct {
	ID          uuid.UUID
	DisplayName string
	// ContactAddress is where reminders are delivered (phone, chat id or e-mail, depending on channel).
	ContactAddress string
	Plan           BillingPlan
	Rate           decimal.Decimal
	Active         bool
	CreatedAt      time.Time
}

// AliasKind tags where an alias value was observed.
type AliasKind int

const (
	AliasKindEmail AliasKind = iota + 1
	AliasKindPhone
	AliasKindZelle
	AliasKindCashApp
	AliasKindVenmo
	AliasKindChime
	AliasKindStripe
)

var aliasKindNames = map[AliasKind]string{
	AliasKindEmail:   "email",
	AliasKindPhone:   "phone",
	AliasKindZelle:   "zelle",
	AliasKindCashApp: "cashapp",
	AliasKindVenmo:   "venmo",
	AliasKindChime:   "chime",
	AliasKindStripe:  "stripe",
}

func (k AliasKind) String() string {
	if name, ok := aliasKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("AliasKind(%d)", int(k))
}

// ParseAliasKind converts the stored text form back into an AliasKind.
func ParseAliasKind(s string) (AliasKind, error) {
	for kind, name := range aliasKindNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown alias kind %q", s)
}

// Alias maps a free-text sender name or identifier to an account.
type Alias struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Kind      AliasKind
	Value     string
	CreatedAt time.Time
}
