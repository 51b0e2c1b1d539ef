package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	_ models.Repository = (*PostgresDB)(nil)
	_ models.Repository = (*Memory)(nil)
)

// Memory is an in-process Repository with the same constraints as the
// Postgres store. Transactions run against a copy of the state that replaces
// the original only when the transaction function succeeds; the store is
// locked for the whole transaction.
type Memory struct {
	mu    sync.Mutex
	state *memState
	// inTx is set on the view handed to a transaction function; its methods
	// must not take mu since the parent already holds it.
	inTx bool
}

type memState struct {
	accounts      map[uuid.UUID]models.Account
	aliases       []models.Alias
	payments      map[uuid.UUID]models.PaymentRecord
	paymentOrder  []uuid.UUID
	entries       []models.LedgerEntry
	notifications []models.NotificationLog
	locks         map[string]lockRow
}

type paymentKey struct {
	source models.Source
	txID   string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{state: &memState{
		accounts: make(map[uuid.UUID]models.Account),
		payments: make(map[uuid.UUID]models.PaymentRecord),
		locks:    make(map[string]lockRow),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts:      make(map[uuid.UUID]models.Account, len(s.accounts)),
		aliases:       append([]models.Alias(nil), s.aliases...),
		payments:      make(map[uuid.UUID]models.PaymentRecord, len(s.payments)),
		paymentOrder:  append([]uuid.UUID(nil), s.paymentOrder...),
		entries:       append([]models.LedgerEntry(nil), s.entries...),
		notifications: append([]models.NotificationLog(nil), s.notifications...),
		locks:         make(map[string]lockRow, len(s.locks)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.locks {
		c.locks[k] = v
	}
	return c
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx models.Repository) error) error {
	unlock := m.lock()
	defer unlock()

	view := &Memory{state: m.state.clone(), inTx: true}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = view.state
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateAccount(_ context.Context, account *models.Account) error {
	defer m.lock()()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if _, ok := m.state.accounts[account.ID]; ok {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	m.state.accounts[account.ID] = *account
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	defer m.lock()()
	account, ok := m.state.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	return &account, nil
}

func (m *Memory) ListActiveAccounts(_ context.Context) ([]*models.Account, error) {
	defer m.lock()()
	var out []*models.Account
	for _, account := range m.state.accounts {
		if account.Active {
			a := account
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CreateAlias(_ context.Context, alias *models.Alias) error {
	defer m.lock()()
	if _, ok := m.state.accounts[alias.AccountID]; !ok {
		return fmt.Errorf("alias for account %s: %w", alias.AccountID, models.ErrUnknownAccount)
	}
	if alias.ID == uuid.Nil {
		alias.ID = uuid.New()
	}
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now().UTC()
	}
	m.state.aliases = append(m.state.aliases, *alias)
	return nil
}

func (m *Memory) FindAliases(_ context.Context, value string) ([]*models.Alias, error) {
	defer m.lock()()
	var out []*models.Alias
	for _, alias := range m.state.aliases {
		if alias.Value == value {
			a := alias
			out = append(out, &a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) PaymentExists(_ context.Context, source models.Source, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	defer m.lock()()
	return m.state.hasPayment(paymentKey{source, transactionID}), nil
}

func (s *memState) hasPayment(key paymentKey) bool {
	for _, p := range s.payments {
		if p.Source == key.source && p.TransactionID == key.txID {
			return true
		}
	}
	return false
}

func (m *Memory) CreatePayment(_ context.Context, payment *models.PaymentRecord) error {
	defer m.lock()()
	if payment.TransactionID != "" && m.state.hasPayment(paymentKey{payment.Source, payment.TransactionID}) {
		return fmt.Errorf("%s %s: %w", payment.Source, payment.TransactionID, models.ErrDuplicatePayment)
	}
	if payment.AccountID != nil {
		if _, ok := m.state.accounts[*payment.AccountID]; !ok {
			return fmt.Errorf("payment for account %s: %w", *payment.AccountID, models.ErrUnknownAccount)
		}
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	m.state.payments[payment.ID] = *payment
	m.state.paymentOrder = append(m.state.paymentOrder, payment.ID)
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	defer m.lock()()
	p, ok := m.state.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) ListUnmatchedPayments(_ context.Context) ([]*models.PaymentRecord, error) {
	defer m.lock()()
	var out []*models.PaymentRecord
	for _, id := range m.state.paymentOrder {
		p := m.state.payments[id]
		if !p.Matched {
			out = append(out, &p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (m *Memory) MarkPaymentMatched(_ context.Context, id, accountID uuid.UUID) error {
	defer m.lock()()
	p, ok := m.state.payments[id]
	if !ok {
		return fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	if p.Matched {
		return fmt.Errorf("payment %s: %w", id, models.ErrAlreadyMatched)
	}
	if _, ok := m.state.accounts[accountID]; !ok {
		return fmt.Errorf("payment for account %s: %w", accountID, models.ErrUnknownAccount)
	}
	p.Matched = true
	p.AccountID = &accountID
	m.state.payments[id] = p
	return nil
}

func (m *Memory) PaymentStats(_ context.Context) (*models.PaymentStats, error) {
	defer m.lock()()
	stats := &models.PaymentStats{TotalAmount: decimal.Zero, MatchedAmount: decimal.Zero}
	for _, p := range m.state.payments {
		stats.Total++
		stats.TotalAmount = stats.TotalAmount.Add(p.Amount)
		if p.Matched {
			stats.Matched++
			stats.MatchedAmount = stats.MatchedAmount.Add(p.Amount)
		}
	}
	stats.Unmatched = stats.Total - stats.Matched
	return stats, nil
}

func (m *Memory) AppendEntry(_ context.Context, entry *models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	defer m.lock()()
	if _, ok := m.state.accounts[entry.AccountID]; !ok {
		return fmt.Errorf("ledger entry for account %s: %w", entry.AccountID, models.ErrUnknownAccount)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.state.entries = append(m.state.entries, *entry)
	return nil
}

func (m *Memory) LedgerTotals(_ context.Context, accountID uuid.UUID) (models.LedgerTotals, error) {
	defer m.lock()()
	totals := models.LedgerTotals{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, e := range m.state.entries {
		if e.AccountID != accountID {
			continue
		}
		switch e.Direction {
		case models.DirectionCredit:
			totals.Credits = totals.Credits.Add(e.Amount)
		case models.DirectionDebit:
			totals.Debits = totals.Debits.Add(e.Amount)
		}
	}
	return totals, nil
}

func (m *Memory) LastEntry(_ context.Context, accountID uuid.UUID, direction models.Direction) (*models.LedgerEntry, error) {
	defer m.lock()()
	var last *models.LedgerEntry
	for i := range m.state.entries {
		e := m.state.entries[i]
		if e.AccountID != accountID || e.Direction != direction {
			continue
		}
		if last == nil || !e.CreatedAt.Before(last.CreatedAt) {
			last = &e
		}
	}
	if last == nil {
		return nil, models.ErrNotFound
	}
	return last, nil
}

func (m *Memory) ListEntries(_ context.Context, accountID uuid.UUID) ([]*models.LedgerEntry, error) {
	defer m.lock()()
	var out []*models.LedgerEntry
	for _, e := range m.state.entries {
		if e.AccountID == accountID {
			entry := e
			out = append(out, &entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AppendNotification(_ context.Context, n *models.NotificationLog) error {
	defer m.lock()()
	if _, ok := m.state.accounts[n.AccountID]; !ok {
		return fmt.Errorf("notification for account %s: %w", n.AccountID, models.ErrUnknownAccount)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.state.notifications = append(m.state.notifications, *n)
	return nil
}

func (m *Memory) CountNotifications(_ context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	defer m.lock()()
	var count int64
	for _, n := range m.state.notifications {
		if n.AccountID == accountID && !n.CreatedAt.Before(from) && n.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

// Notifications returns every logged notification for the account, oldest first.
func (m *Memory) Notifications(accountID uuid.UUID) []models.NotificationLog {
	defer m.lock()()
	var out []models.NotificationLog
	for _, n := range m.state.notifications {
		if n.AccountID == accountID {
			out = append(out, n)
		}
	}
	return out
}

func (m *Memory) AcquireLock(_ context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	defer m.lock()()
	now := time.Now()
	if held, ok := m.state.locks[name]; ok && held.InstanceID != instanceID && held.ExpiresAt >= now.Unix() {
		return false, nil
	}
	m.state.locks[name] = lockRow{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}
	return true, nil
}

func (m *Memory) ReleaseLock(_ context.Context, name, instanceID string) error {
	defer m.lock()()
	if held, ok := m.state.locks[name]; ok && held.InstanceID == instanceID {
		delete(m.state.locks, name)
	}
	return nil
}
