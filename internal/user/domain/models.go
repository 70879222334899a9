package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/entitlement"
)

// User is a telegram account that has contacted the bot at least once.
type User struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	ExternalID    string        `gorm:"column:external_id;not null;uniqueIndex" json:"telegramId"`
	Username      *string       `gorm:"column:username" json:"username"`
	FirstName     *string       `gorm:"column:first_name" json:"firstName"`
	IsPro         bool          `gorm:"column:is_pro;not null;default:false" json:"isPro"`
	TrialStart    time.Time     `gorm:"column:trial_start;not null" json:"trialStart"`
	ProEnd        *time.Time    `gorm:"column:pro_end" json:"proEnd"`
	ReferredBy    *snowflake.ID `gorm:"column:referred_by;index" json:"referredBy"`
	ReferralCount int           `gorm:"column:referral_count;not null;default:0" json:"referralCount"`
	CreatedAt     time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Subject projects the stored entitlement fields for evaluation.
func (u User) Subject() entitlement.Subject {
	return entitlement.Subject{
		IsPro:      u.IsPro,
		ProEnd:     u.ProEnd,
		TrialStart: u.TrialStart,
	}
}

// DisplayName prefers @username, then first name, then the telegram id.
func (u User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	if u.FirstName != nil && *u.FirstName != "" {
		return *u.FirstName
	}
	return u.ExternalID
}
