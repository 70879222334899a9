package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/download/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("download.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.DownloadEvent, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceURL == "" {
		return nil, domain.ErrInvalidSourceURL
	}
	switch req.Kind {
	case domain.MediaKindVideo, domain.MediaKindPhotoSet:
	default:
		return nil, domain.ErrInvalidKind
	}

	metadata := datatypes.JSONMap{}
	if provider := strings.TrimSpace(req.Provider); provider != "" {
		metadata["provider"] = provider
	}
	if req.Items > 0 {
		metadata["items"] = req.Items
	}

	event := &domain.DownloadEvent{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		SourceURL:     sourceURL,
		MediaURL:      strings.TrimSpace(req.MediaURL),
		MediaKind:     req.Kind,
		IsWatermarked: req.IsWatermarked,
		Metadata:      metadata,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, s.db)
}

func (s *Service) CountByUser(ctx context.Context, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, domain.ErrInvalidUser
	}
	return s.repo.CountByUser(ctx, s.db, userID)
}

func (s *Service) ActivityByUser(ctx context.Context, limit int) ([]domain.UserActivity, error) {
	if limit <= 0 {
		limit = domain.DefaultActivityLimit
	}
	if limit > domain.MaxActivityLimit {
		limit = domain.MaxActivityLimit
	}
	return s.repo.ActivityByUser(ctx, s.db, limit)
}
