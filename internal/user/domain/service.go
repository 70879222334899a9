package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	ExternalID string
	Username   *string
	FirstName  *string
}

type UpdateRequest struct {
	Username  *string
	FirstName *string
}

// ContactRequest carries the sender fields seen on every inbound event.
type ContactRequest struct {
	ExternalID string
	Username   string
	FirstName  string
}

type Service interface {
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	Create(ctx context.Context, req CreateRequest) (*User, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*User, error)
	// SetPro enables or disables the subscription. Enabling with a duration
	// sets proEnd to now+days; enabling without one keeps the current proEnd.
	SetPro(ctx context.Context, externalID string, isPro bool, durationDays *int) (*User, error)
	AddReferral(ctx context.Context, userID, referrerID snowflake.ID) error
	Touch(ctx context.Context, req ContactRequest) (*User, error)
	List(ctx context.Context, limit int) ([]User, error)
	Count(ctx context.Context) (int64, error)
	CountPro(ctx context.Context, now time.Time) (int64, error)
	CountActiveTrials(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrAlreadyExists   = errors.New("already_exists")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrSelfReferral    = errors.New("self_referral")
	ErrAlreadyReferred = errors.New("already_referred")
)
