package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	"github.com/smallbiznis/teleload/internal/entitlement"
	"github.com/smallbiznis/teleload/internal/user/domain"
	"github.com/smallbiznis/teleload/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	clock        clock.Clock
	trialPeriod  time.Duration
	referralDays int
}

func New(p Params) domain.Service {
	trial := p.Config.Pipeline.TrialPeriod
	if trial <= 0 {
		trial = entitlement.DefaultTrialPeriod
	}
	bonus := p.Config.Pipeline.ReferralBonusDays
	if bonus <= 0 {
		bonus = 1
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("user.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		clock:        p.Clock,
		trialPeriod:  trial,
		referralDays: bonus,
	}
}

func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidID
	}
	user, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.User, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return nil, domain.ErrInvalidID
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:         s.genID.Generate(),
		ExternalID: externalID,
		Username:   normalizeOptional(req.Username),
		FirstName:  normalizeOptional(req.FirstName),
		TrialStart: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	username, firstName := user.Username, user.FirstName
	if req.Username != nil {
		username = normalizeOptional(req.Username)
	}
	if req.FirstName != nil {
		firstName = normalizeOptional(req.FirstName)
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateProfile(ctx, s.db, user.ID, username, firstName, now); err != nil {
		return nil, err
	}
	user.Username, user.FirstName, user.UpdatedAt = username, firstName, now
	return user, nil
}

func (s *Service) SetPro(ctx context.Context, externalID string, isPro bool, durationDays *int) (*domain.User, error) {
	if durationDays != nil && *durationDays <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	user, err := s.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	proEnd := user.ProEnd
	switch {
	case !isPro:
		proEnd = nil
	case durationDays != nil:
		end := now.AddDate(0, 0, *durationDays)
		proEnd = &end
	}

	if err := s.repo.UpdatePro(ctx, s.db, user.ID, isPro, proEnd, now); err != nil {
		return nil, err
	}
	user.IsPro, user.ProEnd, user.UpdatedAt = isPro, proEnd, now

	s.log.Info("pro status changed",
		zap.String("user_id", user.ExternalID),
		zap.Bool("is_pro", isPro),
		zap.Timep("pro_end", proEnd),
	)
	return user, nil
}

// AddReferral links userID to referrerID and credits the referrer with bonus
// days. The link is written at most once per user; repeats apply no bonus.
func (s *Service) AddReferral(ctx context.Context, userID, referrerID snowflake.ID) error {
	if userID == 0 || referrerID == 0 {
		return domain.ErrInvalidID
	}
	if userID == referrerID {
		return domain.ErrSelfReferral
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		referrer, err := s.repo.FindByID(ctx, tx, referrerID, true)
		if err != nil {
			return err
		}
		if referrer == nil {
			return domain.ErrNotFound
		}

		affected, err := s.repo.SetReferrer(ctx, tx, userID, referrerID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			user, err := s.repo.FindByID(ctx, tx, userID, false)
			if err != nil {
				return err
			}
			if user == nil {
				return domain.ErrNotFound
			}
			return domain.ErrAlreadyReferred
		}

		// Unlimited pro has no expiry to extend.
		if referrer.IsPro && referrer.ProEnd == nil {
			return s.repo.ApplyReferralBonus(ctx, tx, referrer.ID, nil, now)
		}
		base := now
		if referrer.ProEnd != nil && referrer.ProEnd.After(now) {
			base = referrer.ProEnd.UTC()
		}
		proEnd := base.AddDate(0, 0, s.referralDays)
		return s.repo.ApplyReferralBonus(ctx, tx, referrer.ID, &proEnd, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyReferred) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("add referral: %w", err)
	}

	s.log.Info("referral applied",
		zap.String("user", userID.String()),
		zap.String("referrer", referrerID.String()),
	)
	return nil
}

// Touch returns the sender's record, creating it on first contact and
// refreshing display fields when they changed.
func (s *Service) Touch(ctx context.Context, req domain.ContactRequest) (*domain.User, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return nil, domain.ErrInvalidID
	}
	username := optional(req.Username)
	firstName := optional(req.FirstName)

	user, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.Create(ctx, domain.CreateRequest{
			ExternalID: externalID,
			Username:   username,
			FirstName:  firstName,
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Two updates from a new user raced; the other one created the row.
			return s.GetByExternalID(ctx, externalID)
		}
		return user, err
	}

	if sameOptional(user.Username, username) && sameOptional(user.FirstName, firstName) {
		return user, nil
	}
	now := s.clock.Now().UTC()
	if err := s.repo.UpdateProfile(ctx, s.db, user.ID, username, firstName, now); err != nil {
		return nil, err
	}
	user.Username, user.FirstName, user.UpdatedAt = username, firstName, now
	return user, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	items, err := s.repo.List(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, s.db)
}

func (s *Service) CountPro(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.CountPro(ctx, s.db, now.UTC())
}

func (s *Service) CountActiveTrials(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	return s.repo.CountActiveTrials(ctx, s.db, now, now.Add(-s.trialPeriod))
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(*value)
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
