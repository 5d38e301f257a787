package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingVariant identifies which deferred side effect a pending record stages.
type PendingVariant string

const (
	VariantSubscription PendingVariant = "subscription"
	VariantCompletion   PendingVariant = "completion"
)

// PendingStatus represents the lifecycle state of a pending record
type PendingStatus string

const (
	PendingStatusPending   PendingStatus = "pending"
	PendingStatusCompleted PendingStatus = "completed"
	PendingStatusFailed    PendingStatus = "failed"
	PendingStatusExpired   PendingStatus = "expired"
)

// SubscriptionPayload holds everything needed to create a member subscription
// after its payment has been confirmed.
type SubscriptionPayload struct {
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerCPF     string          `json:"customer_cpf"`
	PlanID          string          `json:"plan_id"`
	BillingType     string          `json:"billing_type"`
	Cycle           string          `json:"cycle"`
	Value           decimal.Decimal `json:"value"`
	NextDueDate     time.Time       `json:"next_due_date"`
	AffiliateID     string          `json:"affiliate_id,omitempty"`
}

// CompletionPayload holds everything needed to finish a paid service request.
type CompletionPayload struct {
	RequestID   string          `json:"request_id"`
	CustomerID  string          `json:"customer_id"`
	ServiceType ServiceType     `json:"service_type"`
	Value       decimal.Decimal `json:"value"`
	AffiliateID string          `json:"affiliate_id,omitempty"`
}

// PendingRecord stages an intended application-side effect tied to a payment.
// It is written before the side effect is attempted and consulted whenever the
// side effect must be retried.
type PendingRecord struct {
	ID                  string
	Variant             PendingVariant
	PaymentID           string
	AsaasCustomerID     string
	AsaasSubscriptionID string
	Subscription        *SubscriptionPayload
	Completion          *CompletionPayload
	Attempts            int
	Status              PendingStatus
	LastError           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FallbackStats aggregates fallback store counters for monitoring.
type FallbackStats struct {
	PendingSubscriptions int64
	PendingCompletions   int64
	TotalRetries         int64
	SuccessRate          float64
	LastProcessed        *time.Time
}
