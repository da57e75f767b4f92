package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Deposit status constants
const (
	DepositStatusPending   = "pending"
	DepositStatusCompleted = "completed"
)

// Deposit is a wallet top-up request. The wallet is credited at most once per
// deposit ID.
type Deposit struct {
	ID             string          `json:"id" gorm:"primaryKey;size:64"`
	UserID         uint            `json:"user_id" gorm:"index;not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(20,2);not null"`
	Description    string          `json:"description"`
	GatewayOrderID string          `json:"gateway_order_id,omitempty" gorm:"size:64;index"`
	PaymentURL     string          `json:"payment_url,omitempty"`
	Status         string          `json:"status" gorm:"size:16;not null;default:pending"` // pending, completed
	Payload        datatypes.JSON  `json:"payload,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
