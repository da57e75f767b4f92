package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment is one checkout payment attempt against the gateway. It is never
// deleted; Payload accumulates every observed gateway event for audit.
type Payment struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	OrderID        uint            `json:"order_id" gorm:"index"`
	Provider       string          `json:"provider" gorm:"size:32;not null;uniqueIndex:idx_payments_provider_order,priority:1"`
	GatewayOrderID string          `json:"gateway_order_id" gorm:"size:64;not null;uniqueIndex:idx_payments_provider_order,priority:2"`
	CaptureID      string          `json:"capture_id,omitempty" gorm:"size:64;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(20,2);not null"`
	Currency       string          `json:"currency" gorm:"size:3"`
	Status         string          `json:"status" gorm:"size:16;not null;index"` // pending, completed, failed, refunded
	Payload        datatypes.JSON  `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
