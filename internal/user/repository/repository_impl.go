package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, external_id, username, first_name, is_pro, trial_start, pro_end,
	referred_by, referral_count, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalID,
		user.Username,
		user.FirstName,
		user.IsPro,
		user.TrialStart,
		user.ProEnd,
		user.ReferredBy,
		user.ReferralCount,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var user domain.User
	if err := db.WithContext(ctx).Raw(query, id).Scan(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE external_id = ?`,
		externalID,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, username, firstName *string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET username = ?, first_name = ?, updated_at = ? WHERE id = ?`,
		username,
		firstName,
		updatedAt,
		id,
	).Error
}

func (r *repo) UpdatePro(ctx context.Context, db *gorm.DB, id snowflake.ID, isPro bool, proEnd *time.Time, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET is_pro = ?, pro_end = ?, updated_at = ? WHERE id = ?`,
		isPro,
		proEnd,
		updatedAt,
		id,
	).Error
}

func (r *repo) SetReferrer(ctx context.Context, db *gorm.DB, id, referrerID snowflake.ID, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users SET referred_by = ?, updated_at = ? WHERE id = ? AND referred_by IS NULL`,
		referrerID,
		updatedAt,
		id,
	)
	return result.RowsAffected, result.Error
}

// ApplyReferralBonus counts the referral and marks the referrer pro. A nil
// proEnd leaves the current expiry untouched.
func (r *repo) ApplyReferralBonus(ctx context.Context, db *gorm.DB, id snowflake.ID, proEnd *time.Time, updatedAt time.Time) error {
	if proEnd == nil {
		return db.WithContext(ctx).Exec(
			`UPDATE users
			 SET referral_count = referral_count + 1, is_pro = ?, updated_at = ?
			 WHERE id = ?`,
			true,
			updatedAt,
			id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET referral_count = referral_count + 1, is_pro = ?, pro_end = ?, updated_at = ?
		 WHERE id = ?`,
		true,
		*proEnd,
		updatedAt,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]*domain.User, error) {
	var users []*domain.User
	stmt := db.WithContext(ctx).
		Model(&domain.User{}).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM users`).Scan(&count).Error
	return count, err
}

func (r *repo) CountPro(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM users
		 WHERE is_pro = ? AND (pro_end IS NULL OR pro_end > ?)`,
		true,
		now,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountActiveTrials(ctx context.Context, db *gorm.DB, now, trialCutoff time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM users
		 WHERE trial_start > ?
		   AND NOT (is_pro = ? AND (pro_end IS NULL OR pro_end > ?))`,
		trialCutoff,
		true,
		now,
	).Scan(&count).Error
	return count, err
}
