package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayErrorType is the gateway's own error taxonomy. It is consumed, not
// redefined, by the recovery orchestrator's rule engine.
type GatewayErrorType string

const (
	GatewayErrorValidation     GatewayErrorType = "validation"
	GatewayErrorRateLimit      GatewayErrorType = "rate_limit"
	GatewayErrorAuthentication GatewayErrorType = "authentication"
	GatewayErrorBusinessRule   GatewayErrorType = "business_rule"
	GatewayErrorNetwork        GatewayErrorType = "network"
)

// GatewayError carries the gateway's classification alongside its message.
type GatewayError struct {
	Type       GatewayErrorType
	Code       string
	Message    string
	HTTPStatus int
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s error [%s]: %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s error: %s", e.Type, e.Message)
}

// TransferRequest asks the gateway to move part of a payment's value to an
// external wallet.
type TransferRequest struct {
	PaymentID   string
	WalletID    string
	Amount      decimal.Decimal
	Description string
}

// TransferResult is the gateway's acknowledgment of a created transfer.
type TransferResult struct {
	ID     string
	Status string
}

// PaymentStatus is the gateway's current view of a payment.
type PaymentStatus struct {
	ID     string
	Status string
	Value  decimal.Decimal
}

// ConnectionResult reports a connectivity probe.
type ConnectionResult struct {
	Success bool
	Latency time.Duration
}

// PaymentGateway is the synchronous request/response contract with the
// payment provider.
type PaymentGateway interface {
	// CreateTransfer creates a value transfer tied to a payment
	CreateTransfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)

	// GetPayment queries the current status of a payment
	GetPayment(ctx context.Context, externalID string) (*PaymentStatus, error)

	// TestConnection performs a lightweight connectivity probe
	TestConnection(ctx context.Context) (*ConnectionResult, error)
}
