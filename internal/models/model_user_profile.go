package models

import "time"

// PremiumFlag is the denormalized premium state embedded in the profile.
// It is a cache of the latest Subscription status, never a source of truth.
type PremiumFlag struct {
	Active    bool       `gorm:"column:active;not null;default:false" json:"is_premium"`
	Plan      string     `gorm:"column:plan;type:varchar(64);not null;default:'free'" json:"plan"`
	ChangedAt *time.Time `gorm:"column:updated_at;default:null" json:"updated_at"`
}

type UserProfile struct {
	ID        string      `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Email     string      `gorm:"column:email;type:varchar(255)" json:"email"`
	Premium   PremiumFlag `gorm:"embedded;embeddedPrefix:premium_" json:"premium"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profile" }

// Premium flag column names after the embedded prefix.
const (
	ColumnPremiumActive    = "premium_active"
	ColumnPremiumPlan      = "premium_plan"
	ColumnPremiumUpdatedAt = "premium_updated_at"
)
