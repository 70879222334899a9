package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *DownloadEvent) error
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
	ActivityByUser(ctx context.Context, db *gorm.DB, limit int) ([]UserActivity, error)
}
