package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceType categorizes the originating transaction and selects the
// percentage table used to split its value.
type ServiceType string

const (
	ServiceFiliacao    ServiceType = "filiacao"
	ServiceServico     ServiceType = "servico"
	ServicePublicidade ServiceType = "publicidade"
	ServiceEvento      ServiceType = "evento"
	ServiceOutro       ServiceType = "outro"
)

// RecipientType identifies a split beneficiary.
type RecipientType string

const (
	RecipientPlatform  RecipientType = "platform"
	RecipientPartner   RecipientType = "partner"
	RecipientAffiliate RecipientType = "affiliate"
)

// SplitStatus represents the state of one beneficiary's share.
type SplitStatus string

const (
	SplitStatusPending   SplitStatus = "pending"
	SplitStatusConfirmed SplitStatus = "confirmed"
	SplitStatusFailed    SplitStatus = "failed"
)

// PlannedSplit is one row of a computed split plan, before persistence.
// WalletID is resolved at plan time for affiliates; it stays empty for the
// platform (direct receipt) and the partner (static configuration).
type PlannedSplit struct {
	Recipient   RecipientType
	Percentage  int
	Amount      decimal.Decimal
	AffiliateID string
	WalletID    string
}

// SplitRecord is one beneficiary's persisted share of a payment. WalletID and
// AsaasSplitID are nil when the recipient is the platform itself.
type SplitRecord struct {
	ID               string
	CobrancaID       string
	Recipient        RecipientType
	ServiceType      ServiceType
	Percentage       int
	CommissionAmount decimal.Decimal
	TotalValue       decimal.Decimal
	WalletID         *string
	AsaasSplitID     *string
	Status           SplitStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CobrancaStatus mirrors the gateway's payment status for locally tracked charges.
type CobrancaStatus string

const (
	CobrancaPending   CobrancaStatus = "pending"
	CobrancaAwaiting  CobrancaStatus = "awaiting_confirmation"
	CobrancaConfirmed CobrancaStatus = "confirmed"
	CobrancaReceived  CobrancaStatus = "received"
	CobrancaOverdue   CobrancaStatus = "overdue"
	CobrancaRefunded  CobrancaStatus = "refunded"
	CobrancaFailed    CobrancaStatus = "failed"
)

// Cobranca is the local view of a gateway charge.
type Cobranca struct {
	ID             string
	AsaasPaymentID string
	CustomerID     string
	ServiceType    ServiceType
	Value          decimal.Decimal
	Status         CobrancaStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CobrancaStatusFromGateway translates the gateway's payment status into the
// local charge status. Unknown statuses map to empty.
func CobrancaStatusFromGateway(s string) CobrancaStatus {
	switch strings.ToUpper(s) {
	case "PENDING":
		return CobrancaPending
	case "AWAITING_RISK_ANALYSIS":
		return CobrancaAwaiting
	case "CONFIRMED":
		return CobrancaConfirmed
	case "RECEIVED", "RECEIVED_IN_CASH":
		return CobrancaReceived
	case "OVERDUE":
		return CobrancaOverdue
	case "REFUNDED":
		return CobrancaRefunded
	}
	return ""
}

// IsTransient reports whether the status may still change at the gateway.
func (s CobrancaStatus) IsTransient() bool {
	switch s {
	case CobrancaPending, CobrancaAwaiting, CobrancaOverdue:
		return true
	}
	return false
}
