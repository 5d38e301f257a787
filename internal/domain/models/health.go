package models

import "time"

// SystemHealthSnapshot is one observation of system health. Snapshots live in
// a fixed-size in-memory ring owned by the recovery orchestrator; they are
// never persisted.
type SystemHealthSnapshot struct {
	Timestamp         time.Time
	GatewayConnected  bool
	DatabaseConnected bool
	GatewayLatency    time.Duration
	DatabaseLatency   time.Duration
	SuccessRate       float64
	ErrorRate         float64
	Throughput        float64 // requests per minute over the last window
	QueueDepth        int     // unresolved webhook errors
	PendingPayments   int     // pending fallback records, both variants
}

// AlertSeverity grades an alert.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is raised by the rule engine when a threshold is crossed.
type Alert struct {
	ID        string
	Type      string
	Severity  AlertSeverity
	Title     string
	Message   string
	Timestamp time.Time
	Resolved  bool
	Metadata  map[string]string
}

// ActionType identifies a concrete remediation.
type ActionType string

const (
	ActionRefreshData       ActionType = "refresh_data"
	ActionRetryPayment      ActionType = "retry_payment"
	ActionResendWebhook     ActionType = "resend_webhook"
	ActionAlternativeMethod ActionType = "alternative_method"
)

// ActionPriority orders remediation.
type ActionPriority string

const (
	PriorityLow    ActionPriority = "low"
	PriorityMedium ActionPriority = "medium"
	PriorityHigh   ActionPriority = "high"
)

// RecoveryAction is a remediation proposed by the rule engine. Automated
// actions are executed unattended after a short delay; manual actions wait
// for operator confirmation.
type RecoveryAction struct {
	ID          string
	Type        ActionType
	Priority    ActionPriority
	Automated   bool
	Reason      string
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	LastAttempt *time.Time
}
