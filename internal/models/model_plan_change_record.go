package models

import (
	"time"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// PlanChangeRecord is an append-only log of price transitions.
type PlanChangeRecord struct {
	ID             string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string                    `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	SubscriptionID string                    `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	FromPriceID    string                    `gorm:"column:from_price_id;type:varchar(128)" json:"from_price_id"`
	ToPriceID      string                    `gorm:"column:to_price_id;type:varchar(128)" json:"to_price_id"`
	FromPrice      int64                     `gorm:"column:from_price" json:"from_price"`
	ToPrice        int64                     `gorm:"column:to_price" json:"to_price"`
	Direction      types.PlanChangeDirection `gorm:"column:direction;type:varchar(16);not null" json:"direction"`
	EventID        string                    `gorm:"column:event_id;type:varchar(128)" json:"event_id"`
	CreatedAt      time.Time                 `json:"created_at"`
}

func (PlanChangeRecord) TableName() string { return "plan_change_record" }
