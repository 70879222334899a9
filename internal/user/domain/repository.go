package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*User, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*User, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, username, firstName *string, updatedAt time.Time) error
	UpdatePro(ctx context.Context, db *gorm.DB, id snowflake.ID, isPro bool, proEnd *time.Time, updatedAt time.Time) error
	// SetReferrer sets referred_by only while it is NULL and returns the affected row count.
	SetReferrer(ctx context.Context, db *gorm.DB, id, referrerID snowflake.ID, updatedAt time.Time) (int64, error)
	ApplyReferralBonus(ctx context.Context, db *gorm.DB, id snowflake.ID, proEnd *time.Time, updatedAt time.Time) error
	List(ctx context.Context, db *gorm.DB, limit int) ([]*User, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountPro(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
	CountActiveTrials(ctx context.Context, db *gorm.DB, now, trialCutoff time.Time) (int64, error)
}
