package models

import "time"

// DailyUsageStat is one row per user per calendar day (UTC). Rows for past
// days are history and are never rewritten by status changes.
type DailyUsageStat struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_daily_usage_user_date,priority:1" json:"user_id"`
	Date      string    `gorm:"column:date;type:varchar(10);not null;uniqueIndex:uk_daily_usage_user_date,priority:2" json:"date"`
	Count     int       `gorm:"column:count;not null;default:0" json:"count"`
	IsPremium bool      `gorm:"column:is_premium;not null;default:false" json:"is_premium"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DailyUsageStat) TableName() string { return "daily_usage_stat" }
