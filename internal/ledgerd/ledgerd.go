// Package ledgerd wires ingestion, billing and the operator workflows into a
// single application object and schedules the recurring jobs.
package ledgerd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/ledgerd/internal/billing"
	"github.com/fleetpay/ledgerd/internal/config"
	"github.com/fleetpay/ledgerd/internal/ingest"
	"github.com/fleetpay/ledgerd/internal/ledger"
	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/internal/parsers"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Job names, also used as lock names and metric labels.
const (
	JobIngest  = "ingest"
	JobBilling = "billing"
)

// lockTTL bounds how long a crashed run can block the next one.
const lockTTL = 30 * time.Minute

var ErrNoMessageSource = errors.New("no message source configured")

// App is the main struct for the ledgerd application. It owns the jobs and
// serves the operator workflows used by the HTTP API.
type App struct {
	logger  *logger.Logger
	config  *config.Config
	repo    models.Repository
	metrics *metrics.Metrics
	source  models.MessageSource

	ingestor  *ingest.Ingestor
	assigner  *ingest.Assigner
	runner    *billing.Runner
	messenger *billing.Messenger

	// running keeps two runs of the same job in this process apart; the
	// repository lock does the same across processes.
	running map[string]*sync.Mutex
	cron    *cron.Cron
}

// NewApp creates the application. source may be nil when the process only
// serves the API or runs billing.
func NewApp(
	cfg *config.Config,
	repo models.Repository,
	gateway models.Gateway,
	source models.MessageSource,
	m *metrics.Metrics,
	logger *logger.Logger,
) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &App{
		logger:    logger,
		config:    cfg,
		repo:      repo,
		metrics:   m,
		source:    source,
		ingestor:  ingest.NewIngestor(logger.With("job", JobIngest), repo, parsers.NewDispatcher(logger), m, cfg.IngestWorkers),
		assigner:  ingest.NewAssigner(logger, repo),
		runner:    billing.NewRunner(logger.With("job", JobBilling), repo, gateway, m, billing.Options{Location: loc, LateAfterDays: cfg.LateAfterDays, Signature: cfg.ReminderSignature}),
		messenger: billing.NewMessenger(logger, repo, gateway),
		running: map[string]*sync.Mutex{
			JobIngest:  {},
			JobBilling: {},
		},
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{logger}))),
	}, nil
}

// RunIngest ingests every message from source, or from the configured source
// when source is nil.
func (a *App) RunIngest(ctx context.Context, source models.MessageSource, dryRun bool) (*ingest.Summary, error) {
	if source == nil {
		source = a.source
	}
	if source == nil {
		return nil, ErrNoMessageSource
	}
	var summary *ingest.Summary
	tracker := a.metrics.Track(JobIngest)
	err := a.exclusive(ctx, JobIngest, func(ctx context.Context) error {
		var err error
		summary, err = a.ingestor.Run(ctx, source, dryRun)
		return err
	})
	return summary, tracker.End(err)
}

// RunBilling executes one billing cycle.
func (a *App) RunBilling(ctx context.Context, dryRun bool) (*billing.Result, error) {
	var result *billing.Result
	tracker := a.metrics.Track(JobBilling)
	err := a.exclusive(ctx, JobBilling, func(ctx context.Context) error {
		var err error
		result, err = a.runner.Run(ctx, dryRun)
		return err
	})
	return result, tracker.End(err)
}

// exclusive runs fn while holding the job's lock. A held lock yields
// ErrRunInProgress.
func (a *App) exclusive(ctx context.Context, job string, fn func(context.Context) error) error {
	local := a.running[job]
	if !local.TryLock() {
		return fmt.Errorf("%s: %w", job, models.ErrRunInProgress)
	}
	defer local.Unlock()

	ok, err := a.repo.AcquireLock(ctx, job, a.config.InstanceID, lockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", job, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", job, models.ErrRunInProgress)
	}
	defer func() {
		if err := a.repo.ReleaseLock(context.Background(), job, a.config.InstanceID); err != nil {
			a.logger.Warnw("Failed to release job lock", "job", job, "error", err)
		}
	}()
	return fn(ctx)
}

func (a *App) ListUnmatched(ctx context.Context) ([]*models.PaymentRecord, error) {
	return a.assigner.ListUnmatched(ctx)
}

func (a *App) PaymentStats(ctx context.Context) (*models.PaymentStats, error) {
	return a.assigner.Stats(ctx)
}

func (a *App) AssignPayment(ctx context.Context, paymentID, accountID uuid.UUID, createAlias bool) (*models.PaymentRecord, error) {
	return a.assigner.Assign(ctx, paymentID, accountID, createAlias)
}

func (a *App) SendMessage(ctx context.Context, accountID uuid.UUID, text string) (*models.NotificationLog, error) {
	return a.messenger.Send(ctx, accountID, text)
}

// Balance returns the account and its current balance.
func (a *App) Balance(ctx context.Context, accountID uuid.UUID) (*models.Account, decimal.Decimal, error) {
	account, err := a.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	balance, err := ledger.New(a.repo).Balance(ctx, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return account, balance, nil
}

func (a *App) Ping(ctx context.Context) error {
	return a.repo.Ping(ctx)
}

// Start schedules the recurring jobs. Ingestion is only scheduled when a
// message source is configured.
func (a *App) Start(ctx context.Context) error {
	if a.source != nil {
		if _, err := a.cron.AddFunc(a.config.IngestSchedule, func() { a.scheduled(ctx, JobIngest) }); err != nil {
			return fmt.Errorf("invalid ingest schedule %q: %w", a.config.IngestSchedule, err)
		}
	}
	if _, err := a.cron.AddFunc(a.config.BillingSchedule, func() { a.scheduled(ctx, JobBilling) }); err != nil {
		return fmt.Errorf("invalid billing schedule %q: %w", a.config.BillingSchedule, err)
	}
	a.cron.Start()
	a.logger.Infow("Scheduler started",
		"ingest", a.config.IngestSchedule,
		"billing", a.config.BillingSchedule,
		"instance", a.config.InstanceID)
	return nil
}

// Stop stops scheduling and waits for running jobs to finish.
func (a *App) Stop() {
	<-a.cron.Stop().Done()
	a.logger.Info("Scheduler stopped")
}

func (a *App) scheduled(ctx context.Context, job string) {
	var err error
	switch job {
	case JobIngest:
		_, err = a.RunIngest(ctx, nil, false)
	case JobBilling:
		_, err = a.RunBilling(ctx, false)
	}
	switch {
	case errors.Is(err, models.ErrRunInProgress):
		a.logger.Infow("Job skipped, another run is in progress", "job", job)
	case err != nil:
		a.logger.Errorw("Scheduled job failed", "job", job, "error", err)
	}
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	logger *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
