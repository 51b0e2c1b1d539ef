package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/ledgerd/internal/models"
)

// Row types are the storage shape of the domain models. Enums are stored as
// their text form and converted back on read.

type accountRow struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DisplayName    string          `gorm:"column:display_name;size:200;not null"`
	ContactAddress string          `gorm:"column:contact_address;size:255;not null"`
	BillingPlan    string          `gorm:"column:billing_plan;size:16;not null"`
	BillingRate    decimal.Decimal `gorm:"column:billing_rate;type:numeric(10,2);not null"`
	Active         bool            `gorm:"column:active;not null;default:true;index"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null"`
}

func (accountRow) TableName() string { return "accounts" }

type aliasRow struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	AccountID uuid.UUID   `gorm:"column:account_id;type:uuid;not null;index"`
	Account   *accountRow `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
	Kind      string      `gorm:"column:alias_kind;size:16;not null"`
	Value     string      `gorm:"column:alias_value;size:255;not null;index"`
	CreatedAt time.Time   `gorm:"column:created_at;not null"`
}

func (aliasRow) TableName() string { return "aliases" }

type paymentRow struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Source           string          `gorm:"column:source;size:16;not null;uniqueIndex:idx_payments_source_txn"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	SenderName       string          `gorm:"column:sender_name;size:255"`
	SenderIdentifier *string         `gorm:"column:sender_identifier;size:255"`
	TransactionID    *string         `gorm:"column:transaction_id;size:255;uniqueIndex:idx_payments_source_txn"`
	Memo             *string         `gorm:"column:memo;type:text"`
	SourceMessageID  *string         `gorm:"column:source_message_id;size:255"`
	ReceivedAt       time.Time       `gorm:"column:received_at;not null;index"`
	Matched          bool            `gorm:"column:matched;not null;default:false;index"`
	AccountID        *uuid.UUID      `gorm:"column:account_id;type:uuid;index"`
	Account          *accountRow     `gorm:"foreignKey:AccountID"`
	IngestedAt       time.Time       `gorm:"column:ingested_at;not null"`
}

func (paymentRow) TableName() string { return "payment_records" }

type ledgerRow struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AccountID   uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index:idx_ledger_account_created"`
	Account     *accountRow     `gorm:"foreignKey:AccountID"`
	Direction   string          `gorm:"column:direction;size:8;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Description string          `gorm:"column:description;size:255"`
	PaymentID   *uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;index:idx_ledger_account_created"`
}

func (ledgerRow) TableName() string { return "ledger_entries" }

type notificationRow struct {
	ID                uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	AccountID         uuid.UUID   `gorm:"column:account_id;type:uuid;not null;index:idx_notifications_account_created"`
	Account           *accountRow `gorm:"foreignKey:AccountID"`
	Address           string      `gorm:"column:address;size:255;not null"`
	Message           string      `gorm:"column:message;type:text;not null"`
	Status            string      `gorm:"column:status;size:16;not null"`
	ProviderMessageID *string     `gorm:"column:provider_message_id;size:255"`
	ProviderError     *string     `gorm:"column:provider_error;type:text"`
	CreatedAt         time.Time   `gorm:"column:created_at;not null;index:idx_notifications_account_created"`
}

func (notificationRow) TableName() string { return "notification_logs" }

// lockRow represents a named lock in the database, used to keep one instance
// of each job running at a time.
type lockRow struct {
	LockName   string `gorm:"column:lock_name;primaryKey;size:255"`
	InstanceID string `gorm:"column:instance_id;size:255;not null"`
	AcquiredAt int64  `gorm:"column:acquired_at;not null;index"`
	ExpiresAt  int64  `gorm:"column:expires_at;not null;index"`
}

func (lockRow) TableName() string { return "app_locks" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toAccountRow(a *models.Account) accountRow {
	return accountRow{
		ID:             a.ID,
		DisplayName:    a.DisplayName,
		ContactAddress: a.ContactAddress,
		BillingPlan:    a.Plan.String(),
		BillingRate:    a.Rate,
		Active:         a.Active,
		CreatedAt:      a.CreatedAt,
	}
}

func (r accountRow) toModel() (*models.Account, error) {
	plan, err := models.ParseBillingPlan(r.BillingPlan)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", r.ID, err)
	}
	return &models.Account{
		ID:             r.ID,
		DisplayName:    r.DisplayName,
		ContactAddress: r.ContactAddress,
		Plan:           plan,
		Rate:           r.BillingRate,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
	}, nil
}

func toAliasRow(a *models.Alias) aliasRow {
	return aliasRow{
		ID:        a.ID,
		AccountID: a.AccountID,
		Kind:      a.Kind.String(),
		Value:     a.Value,
		CreatedAt: a.CreatedAt,
	}
}

func (r aliasRow) toModel() (*models.Alias, error) {
	kind, err := models.ParseAliasKind(r.Kind)
	if err != nil {
		return nil, fmt.Errorf("alias %s: %w", r.ID, err)
	}
	return &models.Alias{
		ID:        r.ID,
		AccountID: r.AccountID,
		Kind:      kind,
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
	}, nil
}

func toPaymentRow(p *models.PaymentRecord) paymentRow {
	return paymentRow{
		ID:               p.ID,
		Source:           p.Source.String(),
		Amount:           p.Amount,
		SenderName:       p.SenderName,
		SenderIdentifier: nullable(p.SenderIdentifier),
		TransactionID:    nullable(p.TransactionID),
		Memo:             nullable(p.Memo),
		SourceMessageID:  nullable(p.SourceMessageID),
		ReceivedAt:       p.ReceivedAt,
		Matched:          p.Matched,
		AccountID:        p.AccountID,
		IngestedAt:       p.IngestedAt,
	}
}

func (r paymentRow) toModel() (*models.PaymentRecord, error) {
	source, err := models.ParseSource(r.Source)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", r.ID, err)
	}
	return &models.PaymentRecord{
		ID:               r.ID,
		Source:           source,
		Amount:           r.Amount,
		SenderName:       r.SenderName,
		SenderIdentifier: deref(r.SenderIdentifier),
		TransactionID:    deref(r.TransactionID),
		Memo:             deref(r.Memo),
		SourceMessageID:  deref(r.SourceMessageID),
		ReceivedAt:       r.ReceivedAt,
		Matched:          r.Matched,
		AccountID:        r.AccountID,
		IngestedAt:       r.IngestedAt,
	}, nil
}

func toLedgerRow(e *models.LedgerEntry) ledgerRow {
	return ledgerRow{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Direction:   e.Direction.String(),
		Amount:      e.Amount,
		Description: e.Description,
		PaymentID:   e.PaymentID,
		CreatedAt:   e.CreatedAt,
	}
}

func (r ledgerRow) toModel() (*models.LedgerEntry, error) {
	dir, err := models.ParseDirection(r.Direction)
	if err != nil {
		return nil, fmt.Errorf("ledger entry %s: %w", r.ID, err)
	}
	return &models.LedgerEntry{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Direction:   dir,
		Amount:      r.Amount,
		Description: r.Description,
		PaymentID:   r.PaymentID,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func toNotificationRow(n *models.NotificationLog) notificationRow {
	return notificationRow{
		ID:                n.ID,
		AccountID:         n.AccountID,
		Address:           n.Address,
		Message:           n.Message,
		Status:            n.Status.String(),
		ProviderMessageID: nullable(n.ProviderMessageID),
		ProviderError:     nullable(n.ProviderError),
		CreatedAt:         n.CreatedAt,
	}
}
