// Package billing runs the recurring billing cycle: it charges every active
// account once per billing period and reminds accounts that stay in debt.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/ledgerd/internal/ledger"
	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

const week = 7 * 24 * time.Hour

// Reminder states reported per account.
const (
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
	ReminderSkipped = "skipped"
	ReminderDryRun  = "dry_run"
)

var errDryRun = errors.New("dry run")

type Options struct {
	// Location defines calendar days for daily debits and reminders.
	Location *time.Location
	// LateAfterDays is how many whole days after the last debit a negative
	// balance counts as late.
	LateAfterDays int
	Signature     string
}

type Runner struct {
	logger  *logger.Logger
	repo    models.Repository
	gateway models.Gateway
	metrics *metrics.Metrics
	opts    Options

	now func() time.Time
}

func NewRunner(logger *logger.Logger, repo models.Repository, gateway models.Gateway, m *metrics.Metrics, opts Options) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LateAfterDays < 1 {
		opts.LateAfterDays = 2
	}
	return &Runner{
		logger:  logger,
		repo:    repo,
		gateway: gateway,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// AccountResult is what one run did to one account.
type AccountResult struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Debited   bool      `json:"debited"`
	Balance   string    `json:"balance"`
	Late      bool      `json:"late"`
	DaysLate  int       `json:"days_late,omitempty"`
	Reminder  string    `json:"reminder,omitempty"`

	plan models.BillingPlan
}

type Result struct {
	Accounts []AccountResult `json:"accounts"`
	Debits   int             `json:"debits"`
	Late     int             `json:"late"`
	Sent     int             `json:"reminders_sent"`
	Failed   int             `json:"reminders_failed"`
	DryRun   bool            `json:"dry_run"`
}

// Run executes one billing cycle. All debits and notification logs of the run
// are committed together; any error discards them all. A dry run computes
// and logs everything but commits nothing and sends nothing.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Result, error) {
	now := r.now().In(r.opts.Location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.opts.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	r.logger.Infow("Billing cycle started", "at", now.Format(time.RFC3339), "dry_run", dryRun)

	var result *Result
	err := r.repo.WithTx(ctx, func(tx models.Repository) error {
		result = &Result{DryRun: dryRun}
		accounts, err := tx.ListActiveAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		for _, account := range accounts {
			res, err := r.billAccount(ctx, tx, account, now, dayStart, dayEnd, dryRun)
			if err != nil {
				return fmt.Errorf("account %s: %w", account.ID, err)
			}
			result.add(res)
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		r.logger.Errorw("Billing cycle rolled back", "error", err)
		return nil, err
	}

	if !dryRun {
		for _, res := range result.Accounts {
			if res.Debited {
				r.metrics.Debit(res.plan.String())
			}
			if res.Reminder == ReminderSent || res.Reminder == ReminderFailed {
				r.metrics.Reminder(res.Reminder)
			}
		}
	}
	r.logger.Infow("Billing cycle finished",
		"accounts", len(result.Accounts),
		"debits", result.Debits,
		"late", result.Late,
		"reminders_sent", result.Sent,
		"reminders_failed", result.Failed,
		"dry_run", dryRun)
	return result, nil
}

func (r *Runner) billAccount(ctx context.Context, tx models.Repository, account *models.Account, now, dayStart, dayEnd time.Time, dryRun bool) (AccountResult, error) {
	log := r.logger.With("account_id", account.ID.String(), "plan", account.Plan.String())
	res := AccountResult{AccountID: account.ID, Name: account.DisplayName, plan: account.Plan}
	l := ledger.New(tx)

	last, err := l.LastDebit(ctx, account.ID)
	if err != nil {
		return res, err
	}
	if r.debitDue(account.Plan, last, now) {
		desc := fmt.Sprintf("%s charge for %s", account.Plan, now.Format("2006-01-02"))
		if _, err := l.Debit(ctx, account.ID, account.Rate, desc, now.UTC()); err != nil {
			return res, err
		}
		res.Debited = true
		log.Infow("Debit issued", "amount", account.Rate.StringFixed(2))
	} else {
		log.Debugw("Debit already issued for this period")
	}

	balance, err := l.Balance(ctx, account.ID)
	if err != nil {
		return res, err
	}
	res.Balance = balance.StringFixed(2)
	if !balance.IsNegative() || last == nil {
		return res, nil
	}

	res.DaysLate = int(now.Sub(last.CreatedAt) / (24 * time.Hour))
	if res.DaysLate < r.opts.LateAfterDays {
		return res, nil
	}
	res.Late = true

	sent, err := tx.CountNotifications(ctx, account.ID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return res, err
	}
	if sent > 0 {
		res.Reminder = ReminderSkipped
		log.Infow("Account late, already notified today", "balance", res.Balance, "days_late", res.DaysLate)
		return res, nil
	}

	text := FormatReminder(account.DisplayName, balance, res.DaysLate, r.opts.Signature)
	if dryRun {
		res.Reminder = ReminderDryRun
		log.Infow("Dry run, reminder not sent", "address", account.ContactAddress, "text", text)
		return res, nil
	}
	entry, err := deliver(ctx, log, tx, r.gateway, account, text, now.UTC())
	if err != nil {
		return res, err
	}
	res.Reminder = entry.Status.String()
	return res, nil
}

// debitDue reports whether the account still owes a debit for the period
// containing now.
func (r *Runner) debitDue(plan models.BillingPlan, last *models.LedgerEntry, now time.Time) bool {
	if last == nil {
		return true
	}
	switch plan {
	case models.BillingPlanDaily:
		return !sameDay(last.CreatedAt.In(r.opts.Location), now)
	case models.BillingPlanWeekly:
		return now.Sub(last.CreatedAt) >= week
	default:
		return false
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (r *Result) add(res AccountResult) {
	r.Accounts = append(r.Accounts, res)
	if res.Debited {
		r.Debits++
	}
	if res.Late {
		r.Late++
	}
	switch res.Reminder {
	case ReminderSent:
		r.Sent++
	case ReminderFailed:
		r.Failed++
	}
}
