package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source identifies the payment network a notification came from.
type Source int

const (
	SourceZelle Source = iota + 1
	SourceCashApp
	SourceVenmo
	SourceChime
	SourceStripe
)

var sourceNames = map[Source]string{
	SourceZelle:   "zelle",
	SourceCashApp: "cashapp",
	SourceVenmo:   "venmo",
	SourceChime:   "chime",
	SourceStripe:  "stripe",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ParseSource converts the stored text form back into a Source.
func ParseSource(s string) (Source, error) {
	for src, name := range sourceNames {
		if name == s {
			return src, nil
		}
	}
	return 0, fmt.Errorf("unknown payment source %q", s)
}

// AliasKind returns the alias kind used when a sender of this source is
// remembered for future matching.
func (s Source) AliasKind() AliasKind {
	switch s {
	case SourceCashApp:
		return AliasKindCashApp
	case SourceVenmo:
		return AliasKindVenmo
	case SourceChime:
		return AliasKindChime
	case SourceStripe:
		return AliasKindStripe
	default:
		return AliasKindZelle
	}
}

// PaymentFact is what a source parser extracts from one notification.
type PaymentFact struct {
	Source           Source
	Amount           decimal.Decimal
	SenderName       string
	SenderIdentifier string
	TransactionID    string
	Memo             string
	ReceivedAt       time.Time
}

// PaymentRecord is a persisted PaymentFact.
type PaymentRecord struct {
	ID               uuid.UUID
	Source           Source
	Amount           decimal.Decimal
	SenderName       string
	SenderIdentifier string
	// TransactionID is empty when the notification carried no usable id.
	TransactionID string
	Memo          string
	// SourceMessageID is the message source's id for the notification.
	SourceMessageID string
	ReceivedAt      time.Time
	Matched         bool
	AccountID       *uuid.UUID
	IngestedAt      time.Time
}

// NewPaymentRecord builds an unsaved record from a fact.
func NewPaymentRecord(fact *PaymentFact, sourceMessageID string, now time.Time) *PaymentRecord {
	return &PaymentRecord{
		ID:               uuid.New(),
		Source:           fact.Source,
		Amount:           fact.Amount,
		SenderName:       fact.SenderName,
		SenderIdentifier: fact.SenderIdentifier,
		TransactionID:    fact.TransactionID,
		Memo:             fact.Memo,
		SourceMessageID:  sourceMessageID,
		ReceivedAt:       fact.ReceivedAt,
		IngestedAt:       now,
	}
}

// PaymentStats summarises stored payment records.
type PaymentStats struct {
	Total         int64           `json:"total_payments"`
	Matched       int64           `json:"matched_payments"`
	Unmatched     int64           `json:"unmatched_payments"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	MatchedAmount decimal.Decimal `json:"matched_amount"`
}
