package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus int

const (
	DeliverySent DeliveryStatus = iota + 1
	DeliveryFailed
)

var deliveryStatusNames = map[DeliveryStatus]string{
	DeliverySent:   "sent",
	DeliveryFailed: "failed",
}

func (s DeliveryStatus) String() string {
	if name, ok := deliveryStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DeliveryStatus(%d)", int(s))
}

// ParseDeliveryStatus converts the stored text form back into a DeliveryStatus.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	for status, name := range deliveryStatusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown delivery status %q", s)
}

// NotificationLog records one attempted send, successful or not.
type NotificationLog struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	Address           string
	Message           string
	Status            DeliveryStatus
	ProviderMessageID string
	ProviderError     string
	CreatedAt         time.Time
}

// SendResult is what a Gateway reports back for a single message.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// Gateway delivers a text message to an address. Implementations report
// delivery problems through SendResult rather than an error.
type Gateway interface {
	Send(ctx context.Context, address, text string) SendResult
}
