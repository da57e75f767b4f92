package models

import (
	"gorm.io/gorm"
)

// User is the marketplace account that owns wallets, deposits and orders.
// Reconciliation only reads it to address notifications.
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Wallet   Wallet `json:"wallet,omitempty" gorm:"foreignKey:UserID"`
}
