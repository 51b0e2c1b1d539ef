package parsers

import (
	"fmt"
	"runtime/debug"

	"github.com/fleetpay/ledgerd/internal/message"
	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Registry returns the supported parsers in priority order. When two
// parsers would both claim a message, the one listed first wins; new
// networks are added here.
func Registry() []Parser {
	return []Parser{
		Zelle{},
		CashApp{},
		Venmo{},
		Chime{},
		Stripe{},
	}
}

// Dispatcher routes messages to the first parser whose CanHandle matches.
type Dispatcher struct {
	logger  *logger.Logger
	parsers []Parser
}

// NewDispatcher builds a dispatcher over parsers, tried in the given order.
// With no parsers it uses Registry().
func NewDispatcher(logger *logger.Logger, parsers ...Parser) *Dispatcher {
	if len(parsers) == 0 {
		parsers = Registry()
	}
	return &Dispatcher{logger: logger, parsers: parsers}
}

// Dispatch returns the parser for a sender address and subject, or nil.
func (d *Dispatcher) Dispatch(from, subject string) Parser {
	for _, p := range d.parsers {
		if p.CanHandle(from, subject) {
			return p
		}
	}
	return nil
}

// Parse dispatches msg and runs the chosen parser. It returns ErrUnhandled
// when no parser claims the message. A parser panic is recovered and
// reported as ErrParserFailed so one bad message cannot stop a batch.
func (d *Dispatcher) Parse(msg *message.Message) (*models.PaymentFact, error) {
	p := d.Dispatch(msg.From, msg.Subject)
	if p == nil {
		return nil, ErrUnhandled
	}
	return d.safeParse(p, msg)
}

func (d *Dispatcher) safeParse(p Parser, msg *message.Message) (fact *models.PaymentFact, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("Parser panicked",
				"source", p.Source().String(),
				"message", msg.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			fact, err = nil, fmt.Errorf("%w: %s: %v", ErrParserFailed, p.Source(), r)
		}
	}()
	fact, err = p.Parse(msg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Source(), err)
	}
	return fact, nil
}
