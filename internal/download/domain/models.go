package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type MediaKind string

const (
	MediaKindVideo    MediaKind = "video"
	MediaKindPhotoSet MediaKind = "photo_set"
)

// DownloadEvent is one delivered link. Rows are append-only.
type DownloadEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID      `gorm:"column:user_id;not null;index" json:"userId"`
	SourceURL     string            `gorm:"column:source_url;not null" json:"sourceUrl"`
	MediaURL      string            `gorm:"column:media_url" json:"mediaUrl"`
	MediaKind     MediaKind         `gorm:"column:media_kind;not null" json:"mediaKind"`
	IsWatermarked bool              `gorm:"column:is_watermarked;not null;default:true" json:"isWatermarked"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"createdAt"`
}

func (DownloadEvent) TableName() string { return "download_events" }

// UserActivity is the per-user download count projection.
type UserActivity struct {
	TelegramID string  `json:"telegramId"`
	Username   *string `json:"username"`
	FirstName  *string `json:"firstName"`
	Downloads  int64   `json:"downloads"`
}
