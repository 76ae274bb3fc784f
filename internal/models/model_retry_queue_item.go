package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// RetryQueueItem is a handler failure waiting for replay. Terminal states are
// resolved and expired; expired items carry Unresolved for operators.
type RetryQueueItem struct {
	ID                     string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID                string            `gorm:"column:event_id;type:varchar(128);not null;index" json:"event_id"`
	EventKind              string            `gorm:"column:event_kind;type:varchar(64);not null" json:"event_kind"`
	UserID                 string            `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	ProviderSubscriptionID string            `gorm:"column:provider_subscription_id;type:varchar(128)" json:"provider_subscription_id"`
	Payload                datatypes.JSON    `gorm:"column:payload;type:jsonb" json:"payload"`
	Error                  string            `gorm:"column:error;type:text" json:"error"`
	RetryCount             int               `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	MaxRetries             int               `gorm:"column:max_retries;not null" json:"max_retries"`
	NextRetryAt            time.Time         `gorm:"column:next_retry_at;not null;index:idx_retry_due,priority:2" json:"next_retry_at"`
	Status                 types.RetryStatus `gorm:"column:status;type:varchar(16);not null;index:idx_retry_due,priority:1" json:"status"`
	Unresolved             bool              `gorm:"column:unresolved;not null;default:false" json:"unresolved"`
	ExpiresAt              time.Time         `gorm:"column:expires_at;not null" json:"expires_at"`
	LastAttemptAt          *time.Time        `gorm:"column:last_attempt_at;default:null" json:"last_attempt_at"`
	ResolvedAt             *time.Time        `gorm:"column:resolved_at;default:null" json:"resolved_at"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

func (RetryQueueItem) TableName() string { return "retry_queue_item" }

// RetryQueueItemFilterFields are the columns operators may filter on.
var RetryQueueItemFilterFields = []string{
	"event_id", "event_kind", "user_id", "provider_subscription_id",
	"status", "unresolved", "retry_count", "next_retry_at", "created_at",
}
