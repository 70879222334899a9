package domain

import (
	"context"
	"errors"
	"time"

	downloaddomain "github.com/smallbiznis/teleload/internal/download/domain"
)

// Stats is the headline projection shown on the dashboard and in /stats.
type Stats struct {
	TotalUsers     int64 `json:"totalUsers"`
	ProUsers       int64 `json:"proUsers"`
	TotalDownloads int64 `json:"totalDownloads"`
	ActiveTrials   int64 `json:"activeTrials"`
}

// UserView is a user row with its entitlement evaluated at request time.
type UserView struct {
	ID            string     `json:"id"`
	TelegramID    string     `json:"telegramId"`
	Username      *string    `json:"username"`
	FirstName     *string    `json:"firstName"`
	IsPro         bool       `json:"isPro"`
	ProEnd        *time.Time `json:"proEnd"`
	TrialStart    time.Time  `json:"trialStart"`
	ReferralCount int        `json:"referralCount"`
	Entitlement   string     `json:"entitlement"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type SetProRequest struct {
	IsPro        bool `json:"isPro"`
	DurationDays *int `json:"durationDays"`
}

type Report struct {
	FileName string
	Content  []byte
}

type Service interface {
	Stats(ctx context.Context) (Stats, error)
	Activity(ctx context.Context, limit int) ([]downloaddomain.UserActivity, error)
	Users(ctx context.Context, limit int) ([]UserView, error)
	// SetPro grants or revokes the subscription of the user with the given telegram id.
	SetPro(ctx context.Context, telegramID string, req SetProRequest) (*UserView, error)
	UsageReport(ctx context.Context) (*Report, error)
}

var ErrReportFailed = errors.New("report_failed")
