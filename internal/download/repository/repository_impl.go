package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/download/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.DownloadEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO download_events (id, user_id, source_url, media_url, media_kind, is_watermarked, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		event.SourceURL,
		event.MediaURL,
		event.MediaKind,
		event.IsWatermarked,
		event.Metadata,
		event.CreatedAt,
	).Error
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM download_events`).Scan(&count).Error
	return count, err
}

func (r *repo) CountByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM download_events WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ActivityByUser(ctx context.Context, db *gorm.DB, limit int) ([]domain.UserActivity, error) {
	var rows []domain.UserActivity
	err := db.WithContext(ctx).Raw(
		`SELECT u.external_id AS telegram_id, u.username, u.first_name, COUNT(*) AS downloads
		 FROM download_events d
		 JOIN users u ON u.id = d.user_id
		 GROUP BY u.external_id, u.username, u.first_name
		 ORDER BY downloads DESC, u.external_id ASC
		 LIMIT ?`,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
