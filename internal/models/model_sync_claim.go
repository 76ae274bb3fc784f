package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncClaim admits at most one reconciliation per actor per time bucket.
// Key is "<actor>:<bucket>".
type SyncClaim struct {
	Key       string          `gorm:"column:claim_key;type:varchar(191);primary_key" json:"key"`
	ActorID   string          `gorm:"column:actor_id;type:varchar(128);not null;index" json:"actor_id"`
	Bucket    int64           `gorm:"column:bucket;not null" json:"bucket"`
	ClaimedAt time.Time       `gorm:"column:claimed_at;not null" json:"claimed_at"`
	ExpiresAt time.Time       `gorm:"column:expires_at;not null;index" json:"expires_at"`
	Result    *datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
}

func (SyncClaim) TableName() string { return "sync_claim" }
