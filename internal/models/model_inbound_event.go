package models

import (
	"time"

	"gorm.io/datatypes"
)

type InboundEventStatus string

const (
	InboundEventStatusReceived     InboundEventStatus = "received"
	InboundEventStatusHandled      InboundEventStatus = "handled"
	InboundEventStatusHandleFailed InboundEventStatus = "handle_failed"
)

// InboundEvent is the raw notification as admitted. Data never changes after
// insert; Status and Result track handling.
type InboundEvent struct {
	ID             string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID        string             `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex" json:"event_id"`
	EventKind      string             `gorm:"column:event_kind;type:varchar(64);not null" json:"event_kind"`
	UserID         string             `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	SubscriptionID string             `gorm:"column:subscription_id;type:varchar(128)" json:"subscription_id"`
	TraceID        string             `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	OccurredAt     time.Time          `gorm:"column:occurred_at" json:"occurred_at"`
	Data           datatypes.JSON     `gorm:"column:data;type:jsonb" json:"data"`
	Result         *datatypes.JSON    `gorm:"column:result;type:jsonb" json:"result"`
	Status         InboundEventStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (InboundEvent) TableName() string { return "inbound_event" }
