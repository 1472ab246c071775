package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // token issued, user redirected to checkout
	PaymentStatusSucceeded PaymentStatus = "succeeded" // confirmed at provider
	PaymentStatusFailed    PaymentStatus = "failed"    // provider reported failure or confirm failed
	PaymentStatusCancelled PaymentStatus = "cancelled" // user cancelled on the checkout page
)

// IsFinal reports whether no further provider call can change the status.
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// Payment records one IMEPay checkout attempt, keyed by the merchant RefID.
type Payment struct {
	ID                  string // UUID
	RefID               string // merchant reference, unique
	TokenID             string // provider checkout token
	Amount              decimal.Decimal
	Status              PaymentStatus
	TransactionID       string // provider transaction id, set by the callback
	Msisdn              string // paying wallet
	ResponseCode        string // last provider response code
	ResponseDescription string
	ProviderResponse    GatewayResponse // last raw confirm/recheck body
	CreatedAt           time.Time
	UpdatedAt           time.Time
	PaidAt              *time.Time
}
