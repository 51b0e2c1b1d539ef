package parsers

import (
	"regexp"
	"strings"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	zelleSubjectName = regexp.MustCompile(`(?i)^\s*(.+?)\s+sent you money`)
	zelleBodyName    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<h1[^>]*>\s*([A-Za-z\s]+?)\s+sent you money`),
		regexp.MustCompile(`(?i)You received \$[\d,]+\.?\d* from ([A-Za-z\s]+)`),
	}
	zelleAmount = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Amount</td>.*?>\s*\$?([\d,]+\.\d{2})\s*</td>`),
		regexp.MustCompile(`>\s*\$([\d,]+\.?\d*)\s*</td>`),
		regexp.MustCompile(`(?i)Amount:?\s*\$?([\d,]+\.?\d*)`),
		regexp.MustCompile(`\$([\d,]+\.\d{2})`),
	}
	zelleTransaction = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Transaction number</td>.*?>\s*(\d+)\s*</td>`),
		regexp.MustCompile(`(?i)Transaction number:?\s*(\d+)`),
	}
	zelleMemo = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Memo</td>.*?>\s*([^<]+?)\s*</td>`),
		regexp.MustCompile(`(?i)Memo:?\s*([^\n<]+)`),
	}
)

// Zelle parses Zelle transfers received through Chase. Chase sends more than
// Zelle alerts, so the subject must name Zelle or read like a received
// transfer.
type Zelle struct{}

func (Zelle) Source() models.Source { return models.SourceZelle }

func (Zelle) CanHandle(from, subject string) bool {
	if !containsFold(from, "chase.com") {
		return false
	}
	return containsFold(subject, "zelle") || containsFold(subject, "sent you money")
}

func (Zelle) Parse(msg *message.Message) (*models.PaymentFact, error) {
	if hasPrefixFold(msg.Subject, "you sent") {
		return nil, ErrExcluded
	}

	fact := &models.PaymentFact{Source: models.SourceZelle}

	name := firstGroup(msg.Subject, zelleSubjectName)
	if name == "" {
		name = firstGroup(msg.Body, zelleBodyName...)
	}
	if name != "" {
		fact.SenderName = titleName(name)
	}

	for _, re := range zelleAmount {
		if amount, ok := parseAmount(firstGroup(msg.Body, re)); ok {
			fact.Amount = amount
			break
		}
	}

	fact.TransactionID = firstGroup(msg.Body, zelleTransaction...)
	if memo := firstGroup(msg.Body, zelleMemo...); memo != "" && !strings.EqualFold(memo, "n/a") {
		fact.Memo = memo
	}

	return complete(fact, msg)
}
