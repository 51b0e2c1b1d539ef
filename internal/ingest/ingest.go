// Package ingest turns raw payment notifications into stored payment records
// and ledger credits.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fleetpay/ledgerd/internal/ledger"
	"github.com/fleetpay/ledgerd/internal/matcher"
	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/metrics"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/internal/parsers"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Outcome is what happened to one message.
type Outcome struct {
	MessageID string
	// Kind is one of the metrics.Outcome* labels.
	Kind      string
	PaymentID uuid.UUID
	AccountID *uuid.UUID
	Err       error
}

// Summary counts the outcomes of one run.
type Summary struct {
	Messages  int  `json:"messages"`
	Stored    int  `json:"stored"`
	Unmatched int  `json:"unmatched"`
	Duplicate int  `json:"duplicate"`
	Unparsed  int  `json:"unparsed"`
	Unhandled int  `json:"unhandled"`
	Failed    int  `json:"failed"`
	DryRun    bool `json:"dry_run"`
}

func (s *Summary) add(o Outcome) {
	switch o.Kind {
	case metrics.OutcomeStored:
		s.Stored++
	case metrics.OutcomeUnmatched:
		s.Unmatched++
	case metrics.OutcomeDuplicate:
		s.Duplicate++
	case metrics.OutcomeUnparsed:
		s.Unparsed++
	case metrics.OutcomeUnhandled:
		s.Unhandled++
	default:
		s.Failed++
	}
}

type Ingestor struct {
	logger     *logger.Logger
	repo       models.Repository
	dispatcher *parsers.Dispatcher
	guard      *Guard
	matcher    *matcher.Matcher
	metrics    *metrics.Metrics
	workers    int

	now func() time.Time
}

// NewIngestor wires the pipeline. workers bounds how many messages are
// processed at once; values below one mean one.
func NewIngestor(logger *logger.Logger, repo models.Repository, dispatcher *parsers.Dispatcher, m *metrics.Metrics, workers int) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{
		logger:     logger,
		repo:       repo,
		dispatcher: dispatcher,
		guard:      NewGuard(repo),
		matcher:    matcher.NewMatcher(logger, repo),
		metrics:    m,
		workers:    workers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run fetches every message from source and ingests them in parallel.
// Per-message problems are counted, not returned; the error reports a failed
// fetch or a cancelled context.
func (i *Ingestor) Run(ctx context.Context, source models.MessageSource, dryRun bool) (*Summary, error) {
	raws, err := source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	i.logger.Infow("Ingestion started", "messages", len(raws), "dry_run", dryRun)

	outcomes := make([]Outcome, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for idx, raw := range raws {
		idx, raw := idx, raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[idx] = i.Ingest(gctx, raw, dryRun)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Messages: len(raws), DryRun: dryRun}
	for _, o := range outcomes {
		summary.add(o)
	}
	i.logger.Infow("Ingestion finished",
		"messages", summary.Messages,
		"stored", summary.Stored,
		"unmatched", summary.Unmatched,
		"duplicate", summary.Duplicate,
		"unparsed", summary.Unparsed,
		"unhandled", summary.Unhandled,
		"failed", summary.Failed,
		"dry_run", dryRun)
	return summary, nil
}

// Ingest processes a single message. The payment record and its ledger
// credit are written in one transaction; in dry-run mode nothing is written.
func (i *Ingestor) Ingest(ctx context.Context, raw models.RawMessage, dryRun bool) Outcome {
	out := i.ingest(ctx, raw, dryRun)
	out.MessageID = raw.ID
	if !dryRun {
		i.metrics.Message(out.Kind)
	}
	return out
}

func (i *Ingestor) ingest(ctx context.Context, raw models.RawMessage, dryRun bool) Outcome {
	now := i.now()
	msg := message.Decode(raw, now)
	log := i.logger.With("message", raw.ID)

	fact, err := i.dispatcher.Parse(msg)
	switch {
	case errors.Is(err, parsers.ErrUnhandled):
		log.Debugw("No parser for message", "from", msg.From, "subject", msg.Subject)
		return Outcome{Kind: metrics.OutcomeUnhandled, Err: err}
	case err != nil:
		log.Infow("Message did not parse", "from", msg.From, "subject", msg.Subject, "reason", err)
		return Outcome{Kind: metrics.OutcomeUnparsed, Err: err}
	}
	log = log.With("source", fact.Source.String(), "transaction_id", fact.TransactionID)

	duplicate, err := i.guard.IsDuplicate(ctx, fact.Source, fact.TransactionID)
	if err != nil {
		log.Errorw("Duplicate check failed", "error", err)
		return Outcome{Kind: metrics.OutcomeFailed, Err: err}
	}
	if duplicate {
		log.Infow("Payment already recorded, skipping")
		return Outcome{Kind: metrics.OutcomeDuplicate, Err: models.ErrDuplicatePayment}
	}

	accountID, matched, err := i.matcher.Match(ctx, fact.SenderName, fact.SenderIdentifier)
	if err != nil {
		log.Errorw("Matching failed", "error", err)
		return Outcome{Kind: metrics.OutcomeFailed, Err: err}
	}

	record := models.NewPaymentRecord(fact, raw.ID, now)
	out := Outcome{Kind: metrics.OutcomeUnmatched, PaymentID: record.ID}
	if matched {
		record.Matched = true
		record.AccountID = &accountID
		out.Kind = metrics.OutcomeStored
		out.AccountID = &accountID
	}
	if dryRun {
		log.Infow("Dry run, payment not stored", "outcome", out.Kind, "amount", fact.Amount.StringFixed(2), "sender", fact.SenderName)
		return out
	}

	err = i.repo.WithTx(ctx, func(tx models.Repository) error {
		if err := tx.CreatePayment(ctx, record); err != nil {
			return err
		}
		if !matched {
			return nil
		}
		_, err := ledger.New(tx).Credit(ctx, accountID, record.Amount, creditDescription(record), &record.ID, now)
		return err
	})
	switch {
	case errors.Is(err, models.ErrDuplicatePayment):
		// Lost a race with a concurrent copy of the same payment.
		log.Infow("Payment already recorded, skipping")
		return Outcome{Kind: metrics.OutcomeDuplicate, Err: err}
	case err != nil:
		log.Errorw("Failed to store payment", "error", err)
		return Outcome{Kind: metrics.OutcomeFailed, Err: err}
	}

	if matched {
		log.Infow("Payment stored", "payment_id", record.ID.String(), "account_id", accountID.String(), "amount", record.Amount.StringFixed(2))
	} else {
		log.Infow("Payment stored unmatched", "payment_id", record.ID.String(), "sender", record.SenderName, "amount", record.Amount.StringFixed(2))
	}
	return out
}

func creditDescription(p *models.PaymentRecord) string {
	desc := fmt.Sprintf("%s payment from %s", p.Source, p.SenderName)
	if p.Memo != "" {
		desc += " (" + p.Memo + ")"
	}
	return desc
}
