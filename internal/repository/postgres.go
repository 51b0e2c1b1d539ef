package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

// Migrate creates or updates the schema.
func (db *PostgresDB) Migrate() error {
	if err := db.Conn.AutoMigrate(&accountRow{}, &aliasRow{}, &paymentRow{}, &ledgerRow{}, &notificationRow{}, &lockRow{}); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (db *PostgresDB) WithTx(ctx context.Context, fn func(tx models.Repository) error) error {
	return db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresDB{Conn: tx, logger: db.logger})
	})
}

func (db *PostgresDB) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	row := toAccountRow(account)
	if err := db.Conn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var row accountRow
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return row.toModel()
}

func (db *PostgresDB) ListActiveAccounts(ctx context.Context) ([]*models.Account, error) {
	var rows []accountRow
	if err := db.Conn.WithContext(ctx).Where("active = ?", true).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	accounts := make([]*models.Account, 0, len(rows))
	for _, row := range rows {
		account, err := row.toModel()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (db *PostgresDB) accountExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := db.Conn.WithContext(ctx).Model(&accountRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return count > 0, nil
}

func (db *PostgresDB) CreateAlias(ctx context.Context, alias *models.Alias) error {
	exists, err := db.accountExists(ctx, alias.AccountID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("alias for account %s: %w", alias.AccountID, models.ErrUnknownAccount)
	}
	if alias.ID == uuid.Nil {
		alias.ID = uuid.New()
	}
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now().UTC()
	}
	row := toAliasRow(alias)
	if err := db.Conn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create alias: %w", err)
	}
	return nil
}

func (db *PostgresDB) FindAliases(ctx context.Context, value string) ([]*models.Alias, error) {
	var rows []aliasRow
	if err := db.Conn.WithContext(ctx).Where("alias_value = ?", value).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find aliases: %w", err)
	}
	aliases := make([]*models.Alias, 0, len(rows))
	for _, row := range rows {
		alias, err := row.toModel()
		if err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, nil
}

func (db *PostgresDB) PaymentExists(ctx context.Context, source models.Source, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	var count int64
	if err := db.Conn.WithContext(ctx).Model(&paymentRow{}).
		Where("source = ? AND transaction_id = ?", source.String(), transactionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check payment: %w", err)
	}
	return count > 0, nil
}

func (db *PostgresDB) CreatePayment(ctx context.Context, payment *models.PaymentRecord) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	row := toPaymentRow(payment)
	if err := db.Conn.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s %s: %w", payment.Source, payment.TransactionID, models.ErrDuplicatePayment)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetPayment(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	var row paymentRow
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return row.toModel()
}

func (db *PostgresDB) ListUnmatchedPayments(ctx context.Context) ([]*models.PaymentRecord, error) {
	var rows []paymentRow
	if err := db.Conn.WithContext(ctx).Where("matched = ?", false).Order("received_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list unmatched payments: %w", err)
	}
	payments := make([]*models.PaymentRecord, 0, len(rows))
	for _, row := range rows {
		payment, err := row.toModel()
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (db *PostgresDB) MarkPaymentMatched(ctx context.Context, id, accountID uuid.UUID) error {
	res := db.Conn.WithContext(ctx).Model(&paymentRow{}).
		Where("id = ? AND matched = ?", id, false).
		Updates(map[string]interface{}{"matched": true, "account_id": accountID})
	if res.Error != nil {
		return fmt.Errorf("failed to mark payment matched: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := db.GetPayment(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("payment %s: %w", id, models.ErrAlreadyMatched)
	}
	return nil
}

func (db *PostgresDB) PaymentStats(ctx context.Context) (*models.PaymentStats, error) {
	var out struct {
		Total         int64
		Matched       int64
		TotalAmount   decimal.Decimal
		MatchedAmount decimal.Decimal
	}
	err := db.Conn.WithContext(ctx).Model(&paymentRow{}).Select(
		"COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0) AS matched, " +
			"COALESCE(SUM(amount), 0) AS total_amount, " +
			"COALESCE(SUM(CASE WHEN matched THEN amount ELSE 0 END), 0) AS matched_amount",
	).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute payment stats: %w", err)
	}
	return &models.PaymentStats{
		Total:         out.Total,
		Matched:       out.Matched,
		Unmatched:     out.Total - out.Matched,
		TotalAmount:   out.TotalAmount,
		MatchedAmount: out.MatchedAmount,
	}, nil
}

func (db *PostgresDB) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	exists, err := db.accountExists(ctx, entry.AccountID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("ledger entry for account %s: %w", entry.AccountID, models.ErrUnknownAccount)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	row := toLedgerRow(entry)
	if err := db.Conn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (db *PostgresDB) LedgerTotals(ctx context.Context, accountID uuid.UUID) (models.LedgerTotals, error) {
	var rows []struct {
		Direction string
		Total     decimal.Decimal
	}
	err := db.Conn.WithContext(ctx).Model(&ledgerRow{}).
		Select("direction, COALESCE(SUM(amount), 0) AS total").
		Where("account_id = ?", accountID).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return models.LedgerTotals{}, fmt.Errorf("failed to sum ledger: %w", err)
	}
	totals := models.LedgerTotals{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, row := range rows {
		dir, err := models.ParseDirection(row.Direction)
		if err != nil {
			return models.LedgerTotals{}, err
		}
		switch dir {
		case models.DirectionCredit:
			totals.Credits = row.Total
		case models.DirectionDebit:
			totals.Debits = row.Total
		}
	}
	return totals, nil
}

func (db *PostgresDB) LastEntry(ctx context.Context, accountID uuid.UUID, direction models.Direction) (*models.LedgerEntry, error) {
	var row ledgerRow
	err := db.Conn.WithContext(ctx).
		Where("account_id = ? AND direction = ?", accountID, direction.String()).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get last %s: %w", direction, err)
	}
	return row.toModel()
}

func (db *PostgresDB) ListEntries(ctx context.Context, accountID uuid.UUID) ([]*models.LedgerEntry, error) {
	var rows []ledgerRow
	if err := db.Conn.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	entries := make([]*models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (db *PostgresDB) AppendNotification(ctx context.Context, n *models.NotificationLog) error {
	exists, err := db.accountExists(ctx, n.AccountID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("notification for account %s: %w", n.AccountID, models.ErrUnknownAccount)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	row := toNotificationRow(n)
	if err := db.Conn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to log notification: %w", err)
	}
	return nil
}

func (db *PostgresDB) CountNotifications(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := db.Conn.WithContext(ctx).Model(&notificationRow{}).
		Where("account_id = ? AND created_at >= ? AND created_at < ?", accountID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (db *PostgresDB) AcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res := db.Conn.WithContext(ctx).Model(&lockRow{}).
		Where("lock_name = ? AND (expires_at < ? OR instance_id = ?)", name, now.Unix(), instanceID).
		Updates(map[string]interface{}{
			"instance_id": instanceID,
			"acquired_at": now.Unix(),
			"expires_at":  now.Add(ttl).Unix(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to take over lock %s: %w", name, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	row := lockRow{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}
	if err := db.Conn.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock %s: %w", name, err)
	}
	return true, nil
}

func (db *PostgresDB) ReleaseLock(ctx context.Context, name, instanceID string) error {
	if err := db.Conn.WithContext(ctx).
		Where("lock_name = ? AND instance_id = ?", name, instanceID).
		Delete(&lockRow{}).Error; err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
