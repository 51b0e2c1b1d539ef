package parsers

import (
	"regexp"
	"strings"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
)

var (
	chimeSubjectName = regexp.MustCompile(`(?i)(.+?)\s+just sent you money`)
	chimeAmount      = regexp.MustCompile(`(?i)received\s+\$?([\d,]+\.?\d*)`)
	chimeBodyName    = regexp.MustCompile(`(?i)from\s+([A-Za-z\s]+)`)
	chimeMemoHTML    = regexp.MustCompile(`(?i)for\s+<strong[^>]*>([^<]+)</strong>`)
	chimeMemoText    = regexp.MustCompile(`(?i)for\s+([^<.\n]+)`)
)

// Chime parses Chime transfers. Chime bodies carry no transaction number, so
// the Message-ID header stands in for one, or the message source's id when
// the header is missing.
type Chime struct{}

func (Chime) Source() models.Source { return models.SourceChime }

func (Chime) CanHandle(from, _ string) bool {
	return containsFold(from, "chime.com")
}

func (Chime) Parse(msg *message.Message) (*models.PaymentFact, error) {
	fact := &models.PaymentFact{Source: models.SourceChime}

	fact.SenderName = firstGroup(msg.Subject, chimeSubjectName)
	if fact.SenderName == "" {
		// "from Riva Brewer through Chime": the bank name is not the sender.
		name, _, _ := strings.Cut(firstGroup(msg.Body, chimeBodyName), " through")
		fact.SenderName = strings.Join(strings.Fields(name), " ")
	}
	fact.Amount, _ = parseAmount(firstGroup(msg.Body, chimeAmount))

	if memo := firstGroup(msg.Body, chimeMemoHTML); memo != "" {
		fact.Memo = memo
	} else {
		fact.Memo = plausibleMemo(firstGroup(msg.Body, chimeMemoText))
	}

	fact.TransactionID = msg.MessageID
	if fact.TransactionID == "" {
		fact.TransactionID = msg.ID
	}

	return complete(fact, msg)
}
