package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the system of record. Implementations must enforce
// uniqueness of (source, transaction id) for payments that carry an id and
// must reject ledger entries for unknown accounts.
type Repository interface {
	// WithTx runs fn against a transactional view of the repository. Nothing
	// fn wrote is visible to others unless fn returns nil.
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	ListActiveAccounts(ctx context.Context) ([]*Account, error)

	CreateAlias(ctx context.Context, alias *Alias) error
	// FindAliases returns every alias with exactly this value, oldest first.
	FindAliases(ctx context.Context, value string) ([]*Alias, error)

	PaymentExists(ctx context.Context, source Source, transactionID string) (bool, error)
	CreatePayment(ctx context.Context, payment *PaymentRecord) error
	GetPayment(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)
	ListUnmatchedPayments(ctx context.Context) ([]*PaymentRecord, error)
	MarkPaymentMatched(ctx context.Context, id, accountID uuid.UUID) error
	PaymentStats(ctx context.Context) (*PaymentStats, error)

	AppendEntry(ctx context.Context, entry *LedgerEntry) error
	LedgerTotals(ctx context.Context, accountID uuid.UUID) (LedgerTotals, error)
	// LastEntry returns the newest entry in the given direction or ErrNotFound.
	LastEntry(ctx context.Context, accountID uuid.UUID, direction Direction) (*LedgerEntry, error)
	ListEntries(ctx context.Context, accountID uuid.UUID) ([]*LedgerEntry, error)

	AppendNotification(ctx context.Context, log *NotificationLog) error
	// CountNotifications counts logs for the account created in [from, to).
	CountNotifications(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error)

	// AcquireLock takes the named lock for ttl unless another instance holds an unexpired one.
	AcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, instanceID string) error

	Ping(ctx context.Context) error
	Close() error
}
