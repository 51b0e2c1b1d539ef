package parsers

import (
	"regexp"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	stripeSubject     = regexp.MustCompile(`(?i)Payment of \$?([\d,]+\.?\d*)\s+from\s+(.+)`)
	stripeBodyAmount  = regexp.MustCompile(`\$?([\d,]+\.?\d*)\s*USD`)
	stripeTransaction = regexp.MustCompile(`(pi_[A-Za-z0-9]+)`)
	stripeCustomer    = regexp.MustCompile(`(?i)customer(?:\s+email)?:?\s*(?:</t[dh]>\s*<td[^>]*>\s*)?([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)
)

type Stripe struct{}

func (Stripe) Source() models.Source { return models.SourceStripe }

func (Stripe) CanHandle(from, _ string) bool {
	return containsFold(from, "stripe.com")
}

func (Stripe) Parse(msg *message.Message) (*models.PaymentFact, error) {
	fact := &models.PaymentFact{Source: models.SourceStripe}

	if m := stripeSubject.FindStringSubmatch(msg.Subject); m != nil {
		fact.Amount, _ = parseAmount(m[1])
		// The trailing "for ..." names the merchant account, not a memo.
		fact.SenderName, _ = splitFor(m[2])
	} else {
		fact.Amount, _ = parseAmount(firstGroup(msg.Body, stripeBodyAmount))
	}

	fact.TransactionID = firstGroup(msg.Body, stripeTransaction)
	fact.SenderIdentifier = firstGroup(msg.Body, stripeCustomer)

	return complete(fact, msg)
}
