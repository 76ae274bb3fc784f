package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// AuditLogEntry is append-only. Application code never updates or deletes it.
type AuditLogEntry struct {
	ID             string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventKind      string              `gorm:"column:event_kind;type:varchar(64)" json:"event_kind"`
	Severity       types.AuditSeverity `gorm:"column:severity;type:varchar(16);not null" json:"severity"`
	UserID         string              `gorm:"column:user_id;type:varchar(64);index" json:"user_id"`
	SubscriptionID string              `gorm:"column:subscription_id;type:varchar(128);index" json:"subscription_id"`
	TransactionID  string              `gorm:"column:transaction_id;type:varchar(128)" json:"transaction_id"`
	EventID        string              `gorm:"column:event_id;type:varchar(128);index" json:"event_id"`
	Actor          string              `gorm:"column:actor;type:varchar(128);not null" json:"actor"`
	Action         types.AuditAction   `gorm:"column:action;type:varchar(64);not null" json:"action"`
	// Before and After snapshot the canonical record around the transition.
	Before    datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	After     datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	Metadata  datatypes.JSONMap                 `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	Timestamp time.Time                         `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (AuditLogEntry) TableName() string { return "audit_log" }
