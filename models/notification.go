package models

import "time"

// Notification is an in-app message shown to a marketplace user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	Title     string    `json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Reference string    `gorm:"size:128" json:"reference,omitempty"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
