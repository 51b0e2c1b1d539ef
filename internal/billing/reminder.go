package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatReminder renders the late payment reminder. owed is shown as a
// positive amount with two decimals.
func FormatReminder(name string, owed decimal.Decimal, daysLate int, signature string) string {
	return fmt.Sprintf("Hi %s, your payment of $%s is %d days overdue. "+
		"Please make a payment as soon as possible to avoid service interruption. - %s",
		name, owed.Abs().StringFixed(2), daysLate, signature)
}
