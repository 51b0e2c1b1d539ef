package validation

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// NormalizePhone converts a phone number to E.164. Ten-digit numbers are
// taken as North American and get the +1 country code.
func NormalizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) == 10:
		digits = "1" + digits
	case len(digits) == 11 && digits[0] == '1':
	case strings.HasPrefix(strings.TrimSpace(phone), "+") && len(digits) >= 8 && len(digits) <= 15:
	default:
		return "", fmt.Errorf("invalid phone number %q: got %d digits", phone, len(digits))
	}

	normalized := "+" + digits
	if err := instance().Var(normalized, "e164"); err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", phone, err)
	}
	return normalized, nil
}

// ValidateEmail checks an e-mail address format.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if err := instance().Var(email, "email"); err != nil {
		return fmt.Errorf("invalid email %q: %w", email, err)
	}
	return nil
}

// ValidateChatID checks a Telegram chat id: a possibly negative integer or
// an @channel username.
func ValidateChatID(chatID string) error {
	if chatID == "" {
		return fmt.Errorf("chat id cannot be empty")
	}
	if strings.HasPrefix(chatID, "@") && len(chatID) > 1 {
		return nil
	}
	if err := instance().Var(strings.TrimPrefix(chatID, "-"), "numeric"); err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return nil
}
