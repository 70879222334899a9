package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RecordRequest struct {
	UserID        snowflake.ID
	SourceURL     string
	MediaURL      string
	Kind          MediaKind
	IsWatermarked bool
	Provider      string
	Items         int
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*DownloadEvent, error)
	Count(ctx context.Context) (int64, error)
	CountByUser(ctx context.Context, userID snowflake.ID) (int64, error)
	// ActivityByUser returns users ordered by download count, at most limit rows.
	ActivityByUser(ctx context.Context, limit int) ([]UserActivity, error)
}

const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidSourceURL = errors.New("invalid_source_url")
	ErrInvalidKind      = errors.New("invalid_media_kind")
)
