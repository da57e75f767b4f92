package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status constants
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusPaymentFailed  = "PAYMENT_FAILED"
	OrderStatusRefunded       = "REFUNDED"
)

// Order is owned by the marketplace; reconciliation only moves its status
// together with the payment that settles it.
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `json:"user_id" gorm:"index"`
	InvoiceNumber string          `json:"invoice_number" gorm:"size:64;index"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:numeric(20,2)"`
	Currency      string          `json:"currency" gorm:"size:3"`
	Status        string          `json:"status" gorm:"size:32;index"`
	PaymentID     *uint           `json:"payment_id,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
