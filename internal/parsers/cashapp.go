package parsers

import (
	"regexp"
	"strings"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	// "Riva Brewer sent you $120 for car payment"
	cashAppSentYou     = regexp.MustCompile(`(?i)(.+?)\s+sent you \$?([\d,]+\.?\d*)`)
	cashAppSentYouMemo = regexp.MustCompile(`(?i)sent you \$[\d,]+\.?\d*\s+for\s+(.+)$`)
	// "Cash App: You received $120 from Riva Brewer for car payment"
	cashAppReceived = regexp.MustCompile(`(?i)received \$?([\d,]+\.?\d*)\s+from\s+(.+)`)

	cashAppWereSent = regexp.MustCompile(`(?i)You were sent \$([\d,]+\.?\d*) by ([^.\n<]+)`)
	cashAppPaidYou  = regexp.MustCompile(`(?i)([^.\n<>]+) paid you \$([\d,]+\.?\d*)`)

	cashAppMemo = regexp.MustCompile(`(?i)profile-description"[^>]*>\s*For\s+([^<]+)`)
	// Ids look like "#D-7QX2K9". A bare "#" token is usually a CSS colour.
	cashAppTransaction = []*regexp.Regexp{
		regexp.MustCompile(`#(D-[A-Z0-9]{4,})\b`),
		regexp.MustCompile(`(?i)(?:Identifier|Transaction ID)[^#<]*#([A-Z0-9-]{4,})\b`),
	}
	cashAppCashtag = regexp.MustCompile(`(?:^|[\s>(])(\$[A-Za-z][A-Za-z0-9_]{1,19})\b`)
)

// CashApp parses Cash App payments, which arrive from Square.
type CashApp struct{}

func (CashApp) Source() models.Source { return models.SourceCashApp }

func (CashApp) CanHandle(from, _ string) bool {
	return containsFold(from, "square.com") || containsFold(from, "cash app")
}

func (CashApp) Parse(msg *message.Message) (*models.PaymentFact, error) {
	if hasPrefixFold(msg.Subject, "you sent") || containsFold(msg.Subject, "privacy notice") {
		return nil, ErrExcluded
	}

	fact := &models.PaymentFact{Source: models.SourceCashApp}

	if m := cashAppSentYou.FindStringSubmatch(msg.Subject); m != nil {
		fact.SenderName = strings.TrimSpace(m[1])
		fact.Amount, _ = parseAmount(m[2])
		fact.Memo = firstGroup(msg.Subject, cashAppSentYouMemo)
	} else if m := cashAppReceived.FindStringSubmatch(msg.Subject); m != nil {
		fact.Amount, _ = parseAmount(m[1])
		fact.SenderName, fact.Memo = splitFor(m[2])
	}

	if !fact.Amount.IsPositive() || fact.SenderName == "" {
		if m := cashAppWereSent.FindStringSubmatch(msg.Body); m != nil {
			fact.Amount, _ = parseAmount(m[1])
			fact.SenderName = strings.TrimSpace(m[2])
		} else if m := cashAppPaidYou.FindStringSubmatch(msg.Body); m != nil {
			fact.SenderName = strings.TrimSpace(m[1])
			fact.Amount, _ = parseAmount(m[2])
		}
	}

	if hasPrefixFold(fact.SenderName, "cash app:") {
		fact.SenderName = strings.TrimSpace(fact.SenderName[len("cash app:"):])
	}

	if fact.Memo == "" {
		fact.Memo = firstGroup(msg.Body, cashAppMemo)
	}
	fact.TransactionID = firstGroup(msg.Body, cashAppTransaction...)
	fact.SenderIdentifier = firstGroup(msg.Body, cashAppCashtag)

	return complete(fact, msg)
}
