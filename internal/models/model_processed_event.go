package models

import "time"

// ProcessedEvent marks a provider event id as admitted. Existence means the
// event was already handled.
type ProcessedEvent struct {
	EventID     string    `gorm:"column:event_id;type:varchar(128);primary_key" json:"event_id"`
	EventKind   string    `gorm:"column:event_kind;type:varchar(64);not null" json:"event_kind"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null" json:"processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (ProcessedEvent) TableName() string { return "processed_event" }
