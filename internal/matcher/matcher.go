// Package matcher resolves payment senders to accounts through the alias
// registry.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// AliasFinder is the part of the repository the matcher reads.
type AliasFinder interface {
	FindAliases(ctx context.Context, value string) ([]*models.Alias, error)
}

type Matcher struct {
	logger  *logger.Logger
	aliases AliasFinder
}

func NewMatcher(logger *logger.Logger, aliases AliasFinder) *Matcher {
	return &Matcher{logger: logger, aliases: aliases}
}

// Match looks up the sender name, then the sender identifier, as exact alias
// values. The first value with any alias decides the result; when that value
// belongs to more than one account the oldest alias wins. It returns the
// account id only; callers load the account themselves when they need it.
func (m *Matcher) Match(ctx context.Context, senderName, senderIdentifier string) (uuid.UUID, bool, error) {
	for _, value := range []string{senderName, senderIdentifier} {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		aliases, err := m.aliases.FindAliases(ctx, value)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("find aliases for %q: %w", value, err)
		}
		if len(aliases) == 0 {
			continue
		}
		if accounts := distinctAccounts(aliases); accounts > 1 {
			m.logger.Warnw("Alias value belongs to several accounts, using the oldest alias",
				"value", value,
				"accounts", accounts,
				"account_id", aliases[0].AccountID.String())
		}
		return aliases[0].AccountID, true, nil
	}
	return uuid.Nil, false, nil
}

func distinctAccounts(aliases []*models.Alias) int {
	seen := make(map[uuid.UUID]struct{}, len(aliases))
	for _, a := range aliases {
		seen[a.AccountID] = struct{}{}
	}
	return len(seen)
}
