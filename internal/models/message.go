package models

import "context"

// RawMessage is one notification as handed over by a message source.
type RawMessage struct {
	// ID is the provider-assigned message id.
	ID  string
	Raw []byte
}

// MessageSource supplies raw notifications to the ingestion job.
type MessageSource interface {
	Fetch(ctx context.Context) ([]RawMessage, error)
}
