package models

import "time"

// WebhookError records a failed attempt to process an asynchronous payment
// notification, with enough context to reprocess it later.
type WebhookError struct {
	ID           string
	PaymentID    string
	ErrorMessage string
	ErrorStack   string
	Payload      []byte
	RetryCount   int
	LastRetryAt  *time.Time
	Resolved     bool
	ResolvedAt   *time.Time
	CreatedAt    time.Time
}
