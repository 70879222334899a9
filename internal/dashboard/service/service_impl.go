package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	"github.com/smallbiznis/teleload/internal/dashboard/domain"
	"github.com/smallbiznis/teleload/internal/dashboard/report"
	downloaddomain "github.com/smallbiznis/teleload/internal/download/domain"
	"github.com/smallbiznis/teleload/internal/entitlement"
	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const reportActivityLimit = 20

type Params struct {
	fx.In

	Log       *zap.Logger
	Users     userdomain.Service
	Downloads downloaddomain.Service
	Clock     clock.Clock
	Config    config.Config
}

type Service struct {
	log         *zap.Logger
	users       userdomain.Service
	downloads   downloaddomain.Service
	clock       clock.Clock
	trialPeriod time.Duration
	appName     string
}

func New(p Params) domain.Service {
	trial := p.Config.Pipeline.TrialPeriod
	if trial <= 0 {
		trial = entitlement.DefaultTrialPeriod
	}
	return &Service{
		log:         p.Log.Named("dashboard.service"),
		users:       p.Users,
		downloads:   p.Downloads,
		clock:       p.Clock,
		trialPeriod: trial,
		appName:     p.Config.AppName,
	}
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	now := s.clock.Now()

	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	proUsers, err := s.users.CountPro(ctx, now)
	if err != nil {
		return domain.Stats{}, err
	}
	activeTrials, err := s.users.CountActiveTrials(ctx, now)
	if err != nil {
		return domain.Stats{}, err
	}
	totalDownloads, err := s.downloads.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	return domain.Stats{
		TotalUsers:     totalUsers,
		ProUsers:       proUsers,
		TotalDownloads: totalDownloads,
		ActiveTrials:   activeTrials,
	}, nil
}

func (s *Service) Activity(ctx context.Context, limit int) ([]downloaddomain.UserActivity, error) {
	return s.downloads.ActivityByUser(ctx, limit)
}

func (s *Service) Users(ctx context.Context, limit int) ([]domain.UserView, error) {
	users, err := s.users.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	views := make([]domain.UserView, 0, len(users))
	for i := range users {
		views = append(views, s.view(&users[i], now))
	}
	return views, nil
}

func (s *Service) SetPro(ctx context.Context, telegramID string, req domain.SetProRequest) (*domain.UserView, error) {
	user, err := s.users.SetPro(ctx, telegramID, req.IsPro, req.DurationDays)
	if err != nil {
		return nil, err
	}
	s.log.Info("pro status set from dashboard",
		zap.String("telegram_id", user.ExternalID),
		zap.Bool("is_pro", user.IsPro),
	)
	view := s.view(user, s.clock.Now())
	return &view, nil
}

func (s *Service) view(u *userdomain.User, now time.Time) domain.UserView {
	return domain.UserView{
		ID:            u.ID.String(),
		TelegramID:    u.ExternalID,
		Username:      u.Username,
		FirstName:     u.FirstName,
		IsPro:         u.IsPro,
		ProEnd:        u.ProEnd,
		TrialStart:    u.TrialStart,
		ReferralCount: u.ReferralCount,
		Entitlement:   entitlement.EvaluateWithTrial(u.Subject(), now, s.trialPeriod).String(),
		CreatedAt:     u.CreatedAt,
	}
}

func (s *Service) UsageReport(ctx context.Context) (*domain.Report, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.downloads.ActivityByUser(ctx, reportActivityLimit)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rows := make([]report.Row, 0, len(activity))
	for _, a := range activity {
		rows = append(rows, report.Row{
			TelegramID: a.TelegramID,
			Name:       activityName(a),
			Downloads:  a.Downloads,
		})
	}

	content, err := report.Render(report.Data{
		Title:          fmt.Sprintf("%s usage report", s.appName),
		GeneratedAt:    now,
		TotalUsers:     stats.TotalUsers,
		ProUsers:       stats.ProUsers,
		TotalDownloads: stats.TotalDownloads,
		ActiveTrials:   stats.ActiveTrials,
		Activity:       rows,
	})
	if err != nil {
		s.log.Error("render usage report", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrReportFailed, err)
	}

	return &domain.Report{
		FileName: fmt.Sprintf("usage-%s.pdf", now.UTC().Format("20060102")),
		Content:  content,
	}, nil
}

func activityName(a downloaddomain.UserActivity) string {
	if a.Username != nil && *a.Username != "" {
		return "@" + *a.Username
	}
	if a.FirstName != nil && *a.FirstName != "" {
		return *a.FirstName
	}
	return "-"
}
