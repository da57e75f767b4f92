package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet represents a user's wallet
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `json:"user_id" gorm:"uniqueIndex"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric(20,2);not null;default:0"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WalletTransaction is one ledger line. Reference is unique so a deposit can
// only ever produce one credit line.
type WalletTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WalletID    uint            `json:"wallet_id" gorm:"index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(20,2);not null"`
	Type        string          `json:"type" gorm:"size:16"` // credit, debit
	Description string          `json:"description"`
	DepositID   *string         `json:"deposit_id,omitempty" gorm:"size:64"`
	Reference   string          `json:"reference" gorm:"size:96;uniqueIndex"`
	Status      string          `json:"status" gorm:"size:16"` // pending, completed, failed, reversed
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TransactionType constants
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

// TransactionStatus constants
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusReversed  = "reversed"
)

// DepositReference is the ledger reference for a deposit credit.
func DepositReference(depositID string) string {
	return "DEPOSIT-" + depositID
}
