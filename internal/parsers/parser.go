// Package parsers extracts payment facts from decoded notifications. Each
// supported network has its own Parser; a Dispatcher routes a message to the
// first parser that claims it.
package parsers

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	// ErrExcluded marks notifications that are recognised but describe
	// something other than an incoming payment, such as an outgoing transfer.
	ErrExcluded = errors.New("notification is not an incoming payment")
	// ErrIncomplete is returned when the amount or the sender could not be
	// extracted.
	ErrIncomplete = errors.New("payment fields missing")
	// ErrUnhandled is returned by the Dispatcher when no parser claims a message.
	ErrUnhandled = errors.New("no parser for message")
	// ErrParserFailed wraps a panic raised inside a parser.
	ErrParserFailed = errors.New("parser failed")
)

// Parser is implemented by each network's extractor.
type Parser interface {
	Source() models.Source
	// CanHandle reports whether the sender address and subject belong to
	// this parser's network.
	CanHandle(from, subject string) bool
	// Parse extracts a fact or returns an error describing why none could be.
	Parse(msg *message.Message) (*models.PaymentFact, error)
}

// firstSubmatch returns the capture groups of the first pattern that matches.
func firstSubmatch(text string, patterns ...*regexp.Regexp) []string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

// firstGroup returns the trimmed first capture group of the first matching
// pattern, or "".
func firstGroup(text string, patterns ...*regexp.Regexp) string {
	if m := firstSubmatch(text, patterns...); m != nil && len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// parseAmount reads a currency amount such as "1,250.00". Only positive
// values are accepted.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

func titleName(name string) string {
	return cases.Title(language.English).String(strings.TrimSpace(name))
}

// splitFor splits "Name for note" into its name and note halves.
func splitFor(s string) (string, string) {
	name, note, found := strings.Cut(s, " for ")
	if !found {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(name), strings.TrimSpace(note)
}

// plausibleMemo drops captures that are obviously not a payer's note.
func plausibleMemo(memo string) string {
	memo = strings.TrimSpace(memo)
	lower := strings.ToLower(memo)
	switch {
	case memo == "", lower == "n/a":
		return ""
	case utf8.RuneCountInString(memo) >= 50:
		return ""
	case strings.Contains(lower, "transaction"), strings.Contains(memo, "-->"), strings.Contains(lower, "most cases"):
		return ""
	}
	return memo
}

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), prefix)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// complete applies the gate every parser shares: a fact needs a positive
// amount and a sender name.
func complete(fact *models.PaymentFact, msg *message.Message) (*models.PaymentFact, error) {
	if !fact.Amount.IsPositive() || fact.SenderName == "" {
		return nil, ErrIncomplete
	}
	fact.ReceivedAt = msg.Date
	return fact, nil
}
