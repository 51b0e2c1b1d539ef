package parsers

import (
	"regexp"
	"strings"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	venmoPaidYou     = regexp.MustCompile(`(?i)(.+?)\s+paid you \$?([\d,]+\.?\d*)`)
	venmoTransaction = regexp.MustCompile(`(?i)Transaction ID[:\s<]+(\d+)`)
	venmoNote        = []*regexp.Regexp{
		regexp.MustCompile(`class="[^"]*transaction-note[^"]*"[^>]*>\s*([^<]+)`),
		// "Note:" must open a line or element, not sit inside a word.
		regexp.MustCompile(`(?i)(?:^|[\n>])Note:\s*([^<]+)`),
	}
)

type Venmo struct{}

func (Venmo) Source() models.Source { return models.SourceVenmo }

func (Venmo) CanHandle(from, _ string) bool {
	return containsFold(from, "venmo.com")
}

func (Venmo) Parse(msg *message.Message) (*models.PaymentFact, error) {
	if hasPrefixFold(msg.Subject, "you paid") {
		return nil, ErrExcluded
	}

	fact := &models.PaymentFact{Source: models.SourceVenmo}
	if m := venmoPaidYou.FindStringSubmatch(msg.Subject); m != nil {
		fact.SenderName = strings.TrimSpace(m[1])
		fact.Amount, _ = parseAmount(m[2])
	}
	fact.TransactionID = firstGroup(msg.Body, venmoTransaction)
	fact.Memo = firstGroup(msg.Body, venmoNote...)

	return complete(fact, msg)
}
