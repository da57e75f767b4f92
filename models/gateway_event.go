package models

import (
	"time"

	"gorm.io/datatypes"
)

// GatewayEvent is an append-only record of every inbound callback, kept
// whether or not it led to a state change.
type GatewayEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Provider    string         `gorm:"size:32;not null;index:idx_gateway_events_provider_event,priority:1" json:"provider"`
	EventID     string         `gorm:"size:128;index:idx_gateway_events_provider_event,priority:2" json:"event_id,omitempty"`
	EventType   string         `gorm:"size:100;index" json:"event_type"`
	Intent      string         `gorm:"size:32;not null" json:"intent"`
	Reference   string         `gorm:"size:128;index" json:"reference,omitempty"`
	Outcome     string         `gorm:"size:32;not null" json:"outcome"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	Payload     datatypes.JSON `json:"payload"`
	ProcessedAt time.Time      `gorm:"index" json:"processed_at"`
	CreatedAt   time.Time      `json:"created_at"`
}
