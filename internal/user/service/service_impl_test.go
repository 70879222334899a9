package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	"github.com/smallbiznis/teleload/internal/user/domain"
	"github.com/smallbiznis/teleload/internal/user/repository"
	"github.com/smallbiznis/teleload/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest(&domain.User{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(baseTime)
	cfg := config.Config{Pipeline: config.PipelineConfig{TrialPeriod: 24 * time.Hour, ReferralBonusDays: 1}}
	svc := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Clock:  clk,
		Config: cfg,
	})
	return svc, clk
}

func ptr[T any](v T) *T { return &v }

func TestTouchCreatesUserOnFirstContact(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Touch(ctx, domain.ContactRequest{ExternalID: "1001", Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "1001", user.ExternalID)
	assert.True(t, user.TrialStart.Equal(baseTime))
	assert.False(t, user.IsPro)

	stored, err := svc.GetByExternalID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	require.NotNil(t, stored.Username)
	assert.Equal(t, "alice", *stored.Username)
}

func TestTouchUpdatesChangedDisplayFields(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Touch(ctx, domain.ContactRequest{ExternalID: "1002", Username: "bob"})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	second, err := svc.Touch(ctx, domain.ContactRequest{ExternalID: "1002", Username: "bobby", FirstName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.TrialStart.Equal(first.TrialStart), "trial start must not move")

	stored, err := svc.GetByExternalID(ctx, "1002")
	require.NoError(t, err)
	require.NotNil(t, stored.Username)
	assert.Equal(t, "bobby", *stored.Username)
	require.NotNil(t, stored.FirstName)
	assert.Equal(t, "Bob", *stored.FirstName)
}

func TestCreateDuplicateReturnsAlreadyExists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "1003"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{ExternalID: "1003"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestGetByExternalIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetByExternalID(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePartialFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "1004", Username: ptr("carol"), FirstName: ptr("Carol")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, user.ID, domain.UpdateRequest{FirstName: ptr("Caroline")})
	require.NoError(t, err)
	require.NotNil(t, updated.Username)
	assert.Equal(t, "carol", *updated.Username)
	assert.Equal(t, "Caroline", *updated.FirstName)
}

func TestSetProWithDurationSetsProEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "2001"})
	require.NoError(t, err)

	user, err := svc.SetPro(ctx, "2001", true, ptr(30))
	require.NoError(t, err)
	assert.True(t, user.IsPro)
	require.NotNil(t, user.ProEnd)
	assert.True(t, user.ProEnd.Equal(baseTime.AddDate(0, 0, 30)))

	stored, err := svc.GetByExternalID(ctx, "2001")
	require.NoError(t, err)
	assert.True(t, stored.IsPro)
	require.NotNil(t, stored.ProEnd)
	assert.WithinDuration(t, baseTime.AddDate(0, 0, 30), *stored.ProEnd, time.Second)
}

func TestSetProWithoutDurationKeepsProEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "2002"})
	require.NoError(t, err)

	_, err = svc.SetPro(ctx, "2002", true, ptr(3))
	require.NoError(t, err)
	user, err := svc.SetPro(ctx, "2002", true, nil)
	require.NoError(t, err)
	require.NotNil(t, user.ProEnd)
	assert.WithinDuration(t, baseTime.AddDate(0, 0, 3), *user.ProEnd, time.Second)
}

func TestSetProDisableClearsProEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "2003"})
	require.NoError(t, err)
	_, err = svc.SetPro(ctx, "2003", true, ptr(7))
	require.NoError(t, err)

	user, err := svc.SetPro(ctx, "2003", false, nil)
	require.NoError(t, err)
	assert.False(t, user.IsPro)
	assert.Nil(t, user.ProEnd)

	stored, err := svc.GetByExternalID(ctx, "2003")
	require.NoError(t, err)
	assert.False(t, stored.IsPro)
	assert.Nil(t, stored.ProEnd)
}

func TestSetProUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SetPro(context.Background(), "nobody", true, ptr(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SetPro(context.Background(), "nobody", true, ptr(0))
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestAddReferralExtendsReferrerFromNow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3001"})
	require.NoError(t, err)
	referred, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3002"})
	require.NoError(t, err)

	require.NoError(t, svc.AddReferral(ctx, referred.ID, referrer.ID))

	a, err := svc.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.True(t, a.IsPro)
	assert.Equal(t, 1, a.ReferralCount)
	require.NotNil(t, a.ProEnd)
	assert.WithinDuration(t, baseTime.Add(24*time.Hour), *a.ProEnd, time.Second)

	b, err := svc.GetByID(ctx, referred.ID)
	require.NoError(t, err)
	require.NotNil(t, b.ReferredBy)
	assert.Equal(t, referrer.ID, *b.ReferredBy)
}

func TestAddReferralExtendsFromFutureProEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3101"})
	require.NoError(t, err)
	_, err = svc.SetPro(ctx, "3101", true, ptr(5))
	require.NoError(t, err)
	referred, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3102"})
	require.NoError(t, err)

	require.NoError(t, svc.AddReferral(ctx, referred.ID, referrer.ID))

	a, err := svc.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	require.NotNil(t, a.ProEnd)
	assert.WithinDuration(t, baseTime.AddDate(0, 0, 6), *a.ProEnd, time.Second)
}

func TestAddReferralKeepsUnlimitedPro(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3151"})
	require.NoError(t, err)
	_, err = svc.SetPro(ctx, "3151", true, nil)
	require.NoError(t, err)
	referred, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3152"})
	require.NoError(t, err)

	require.NoError(t, svc.AddReferral(ctx, referred.ID, referrer.ID))

	a, err := svc.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.True(t, a.IsPro)
	assert.Nil(t, a.ProEnd)
	assert.Equal(t, 1, a.ReferralCount)
}

func TestAddReferralIsSetOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3201"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3202"})
	require.NoError(t, err)
	referred, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3203"})
	require.NoError(t, err)

	require.NoError(t, svc.AddReferral(ctx, referred.ID, referrer.ID))
	assert.ErrorIs(t, svc.AddReferral(ctx, referred.ID, referrer.ID), domain.ErrAlreadyReferred)
	assert.ErrorIs(t, svc.AddReferral(ctx, referred.ID, other.ID), domain.ErrAlreadyReferred)

	a, err := svc.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.ReferralCount)

	o, err := svc.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, o.ReferralCount)
	assert.False(t, o.IsPro)

	b, err := svc.GetByID(ctx, referred.ID)
	require.NoError(t, err)
	require.NotNil(t, b.ReferredBy)
	assert.Equal(t, referrer.ID, *b.ReferredBy)
}

func TestAddReferralRejectsSelfAndUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "3301"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.AddReferral(ctx, user.ID, user.ID), domain.ErrSelfReferral)
	assert.ErrorIs(t, svc.AddReferral(ctx, user.ID, snowflake.ID(42)), domain.ErrNotFound)
}

func TestCountsFollowEntitlementRules(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{ExternalID: "old"})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	now := clk.Now()
	_, err = svc.Create(ctx, domain.CreateRequest{ExternalID: "fresh"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{ExternalID: "paid"})
	require.NoError(t, err)
	_, err = svc.SetPro(ctx, "paid", true, ptr(10))
	require.NoError(t, err)

	total, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	pro, err := svc.CountPro(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pro)

	trials, err := svc.CountActiveTrials(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, trials)

	users, err := svc.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
}
