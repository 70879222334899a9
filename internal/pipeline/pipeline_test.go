package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	downloaddomain "github.com/smallbiznis/teleload/internal/download/domain"
	downloadrepo "github.com/smallbiznis/teleload/internal/download/repository"
	downloadservice "github.com/smallbiznis/teleload/internal/download/service"
	"github.com/smallbiznis/teleload/internal/resolver"
	"github.com/smallbiznis/teleload/internal/token"
	"github.com/smallbiznis/teleload/internal/transcoder"
	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
	userrepo "github.com/smallbiznis/teleload/internal/user/repository"
	userservice "github.com/smallbiznis/teleload/internal/user/service"
	"github.com/smallbiznis/teleload/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sentText struct {
	Ref  MessageRef
	Text string
	Opts SendOptions
}

type sentEdit struct {
	Ref  MessageRef
	Text string
}

type sentVideo struct {
	ChatID  int64
	URL     string
	Caption string
	Action  *Action
}

type sentAudio struct {
	ChatID   int64
	Path     string
	FileName string
	Caption  string
}

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	texts   []sentText
	edits   []sentEdit
	deletes []MessageRef
	videos  []sentVideo
	albums  [][]Photo
	audios  []sentAudio
	answers []string

	member    bool
	memberErr error
	videoErr  error
	deleteErr error
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, opts ...SendOption) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ref := MessageRef{ChatID: chatID, MessageID: f.nextID}
	f.texts = append(f.texts, sentText{Ref: ref, Text: text, Opts: ApplySendOptions(opts...)})
	return ref, nil
}

func (f *fakeTransport) EditText(_ context.Context, ref MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentEdit{Ref: ref, Text: text})
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, ref)
	return nil
}

func (f *fakeTransport) SendVideo(_ context.Context, chatID int64, url, caption string, action *Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.videoErr != nil {
		return f.videoErr
	}
	f.videos = append(f.videos, sentVideo{ChatID: chatID, URL: url, Caption: caption, Action: action})
	return nil
}

func (f *fakeTransport) SendPhotoGroup(_ context.Context, _ int64, photos []Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, photos)
	return nil
}

func (f *fakeTransport) SendAudio(_ context.Context, chatID int64, path, fileName, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audios = append(f.audios, sentAudio{ChatID: chatID, Path: path, FileName: fileName, Caption: caption})
	return nil
}

func (f *fakeTransport) AnswerAction(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTransport) IsChannelMember(context.Context, string, int64) (bool, error) {
	return f.member, f.memberErr
}

func (f *fakeTransport) BotUsername() string { return "teleload_bot" }

func (f *fakeTransport) lastText() sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return sentText{}
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeTransport) lastEdit() sentEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return sentEdit{}
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeTransport) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.texts {
		if t.Ref.ChatID == chatID {
			out = append(out, t.Text)
		}
	}
	return out
}

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	res   resolver.Resolution
	panic bool
}

func (r *fakeResolver) Resolve(context.Context, string) resolver.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.panic {
		panic("provider exploded")
	}
	return r.res
}

func (r *fakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []transcoder.Request
	err   error
}

func (e *fakeExtractor) ExtractAudio(ctx context.Context, req transcoder.Request, deliver func(context.Context, transcoder.Audio) error) error {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	return deliver(ctx, transcoder.Audio{Path: "tmp/" + req.ID + ".mp3", FileName: transcoder.FileName(req.Title)})
}

func (e *fakeExtractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeLimiter struct {
	deny bool
	busy bool
	err  error
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) {
	return !l.deny, l.err
}

func (l *fakeLimiter) Acquire(context.Context, string) (func(), bool, error) {
	return func() {}, !l.busy, nil
}

type harness struct {
	pipeline  *Pipeline
	transport *fakeTransport
	resolver  *fakeResolver
	audio     *fakeExtractor
	tokens    *token.Store
	clock     *clock.FakeClock
	users     userdomain.Service
	downloads downloaddomain.Service
	db        *gorm.DB
	msgs      Messages
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	conn, err := db.NewTest(&userdomain.User{}, &downloaddomain.DownloadEvent{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(baseTime)
	cfg := config.Config{Pipeline: config.PipelineConfig{TrialPeriod: 24 * time.Hour, ReferralBonusDays: 1}}
	users := userservice.New(userservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Repo: userrepo.Provide(), Clock: clk, Config: cfg,
	})
	downloads := downloadservice.New(downloadservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Repo: downloadrepo.Provide(), Clock: clk,
	})

	h := &harness{
		transport: &fakeTransport{},
		resolver:  &fakeResolver{res: resolver.Resolution{Media: resolver.NotFound{}}},
		audio:     &fakeExtractor{},
		tokens:    token.NewStore(token.DefaultTTL, clk),
		clock:     clk,
		users:     users,
		downloads: downloads,
		db:        conn,
		msgs:      DefaultMessages(),
	}
	deps := Deps{
		Log:       zap.NewNop(),
		Clock:     clk,
		Transport: h.transport,
		Users:     users,
		Downloads: downloads,
		Resolver:  h.resolver,
		Tokens:    h.tokens,
		Audio:     h.audio,
		Options: Options{
			TrialPeriod:      24 * time.Hour,
			Channel:          "@TeleLoadd",
			AdminID:          "9000",
			SubscriptionDays: 7,
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.pipeline, err = NewWithDeps(deps)
	require.NoError(t, err)
	return h
}

func envelope(userID int64) Envelope {
	return Envelope{UpdateID: 1, ChatID: userID, From: Sender{ID: userID, Username: fmt.Sprintf("user%d", userID)}}
}

func (h *harness) sendLink(userID int64, link string) {
	h.pipeline.Dispatch(context.Background(), TextEvent{Envelope: envelope(userID), Text: "look " + link + " lol"})
}

func (h *harness) command(userID int64, command, args string) {
	h.pipeline.Dispatch(context.Background(), CommandEvent{Envelope: envelope(userID), Command: command, Args: args})
}

func (h *harness) press(userID int64, data string) {
	h.pipeline.Dispatch(context.Background(), ActionEvent{
		Envelope:   envelope(userID),
		CallbackID: "cb",
		Data:       data,
		Message:    MessageRef{ChatID: userID, MessageID: 77},
	})
}

func (h *harness) downloadEvents(t *testing.T) []downloaddomain.DownloadEvent {
	t.Helper()
	var events []downloaddomain.DownloadEvent
	require.NoError(t, h.db.Order("created_at").Find(&events).Error)
	return events
}

const tiktokLink = "https://vm.tiktok.com/ZMabc123/"

func TestTrialUserReceivesVideoAndAudio(t *testing.T) {
	h := newHarness(t)
	h.resolver.res = resolver.Resolution{
		Media:    resolver.Video{URL: "https://cdn.example/v.mp4", Title: "dance #fyp #viral"},
		Provider: "tikwm",
	}

	h.sendLink(1001, tiktokLink)

	require.Len(t, h.transport.videos, 1)
	video := h.transport.videos[0]
	assert.Equal(t, "https://cdn.example/v.mp4", video.URL)
	assert.Contains(t, video.Caption, "@teleload_bot")
	assert.Contains(t, video.Caption, "📝 dance")
	assert.Contains(t, video.Caption, "#fyp #viral")
	assert.Contains(t, video.Caption, "Status: Trial")
	require.NotNil(t, video.Action)
	assert.True(t, strings.HasPrefix(video.Action.Data, AudioActionPrefix))

	assert.Equal(t, h.msgs.Processing, h.transport.texts[0].Text)
	require.Len(t, h.transport.deletes, 1)
	assert.Equal(t, h.transport.texts[0].Ref, h.transport.deletes[0])

	events := h.downloadEvents(t)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsWatermarked)
	assert.Equal(t, downloaddomain.MediaKindVideo, events[0].MediaKind)
	assert.Equal(t, tiktokLink, events[0].SourceURL)
	assert.Equal(t, 1, h.tokens.Len())

	h.press(1001, video.Action.Data)

	require.Len(t, h.transport.audios, 1)
	audio := h.transport.audios[0]
	assert.Equal(t, "dance.mp3", audio.FileName)
	assert.Equal(t, h.msgs.AudioCaption, audio.Caption)
	assert.Equal(t, 0, h.tokens.Len())
	assert.Contains(t, h.transport.answers, h.msgs.PreparingAudio)

	h.press(1001, video.Action.Data)
	assert.Equal(t, 1, h.audio.Calls())
	assert.Equal(t, h.msgs.ForKind(KindTokenExpiredOrMissing), h.transport.lastText().Text)
}

func TestProUserVideoIsNotWatermarked(t *testing.T) {
	h := newHarness(t)
	h.resolver.res = resolver.Resolution{Media: resolver.Video{URL: "https://cdn.example/v.mp4", Title: "hi"}, Provider: "tikwm"}

	h.command(1001, "start", "")
	days := 30
	_, err := h.users.SetPro(context.Background(), "1001", true, &days)
	require.NoError(t, err)
	h.clock.Advance(72 * time.Hour)

	h.sendLink(1001, tiktokLink)

	require.Len(t, h.transport.videos, 1)
	assert.Contains(t, h.transport.videos[0].Caption, "Status: PRO")
	events := h.downloadEvents(t)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsWatermarked)
}

func TestExpiredUserIsGatedBeforeResolve(t *testing.T) {
	h := newHarness(t)
	h.command(1001, "start", "")
	h.clock.Advance(25 * time.Hour)

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, 0, h.resolver.Calls())
	last := h.transport.lastText()
	assert.Equal(t, h.msgs.ForKind(KindAccessExpired), last.Text)
	require.Len(t, last.Opts.Buttons, 1)
	assert.Equal(t, "https://t.me/TeleLoadd", last.Opts.Buttons[0][0].URL)
	assert.Empty(t, h.downloadEvents(t))
	assert.Empty(t, h.transport.videos)
}

func TestPhotoSetIsSentInBatches(t *testing.T) {
	h := newHarness(t)
	items := make([]resolver.Photo, 23)
	for i := range items {
		items[i] = resolver.Photo{URL: fmt.Sprintf("https://cdn.example/p%d.jpg", i)}
	}
	h.resolver.res = resolver.Resolution{Media: resolver.PhotoSet{Items: items, Title: "carousel"}, Provider: "tiklydown"}

	h.sendLink(1001, tiktokLink)

	require.Len(t, h.transport.albums, 3)
	assert.Len(t, h.transport.albums[0], 10)
	assert.Len(t, h.transport.albums[1], 10)
	assert.Len(t, h.transport.albums[2], 3)
	assert.Equal(t, "carousel", h.transport.albums[0][0].Caption)
	assert.Empty(t, h.transport.albums[0][1].Caption)
	assert.Empty(t, h.transport.albums[1][0].Caption)

	events := h.downloadEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, downloaddomain.MediaKindPhotoSet, events[0].MediaKind)
	assert.Equal(t, "https://cdn.example/p0.jpg", events[0].MediaURL)
	assert.Equal(t, 0, h.tokens.Len())
}

func TestUnresolvableLinkEditsStatusToError(t *testing.T) {
	h := newHarness(t)

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, 1, h.resolver.Calls())
	assert.Equal(t, h.msgs.ForKind(KindResolutionNotFound), h.transport.lastEdit().Text)
	assert.Empty(t, h.downloadEvents(t))
}

func TestVideoSendFailureDiscardsToken(t *testing.T) {
	h := newHarness(t)
	h.transport.videoErr = errors.New("file too big")
	h.resolver.res = resolver.Resolution{Media: resolver.Video{URL: "https://cdn.example/v.mp4"}, Provider: "tikwm"}

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, h.msgs.ForKind(KindDeliveryFailed), h.transport.lastEdit().Text)
	assert.Equal(t, 0, h.tokens.Len())
	assert.Empty(t, h.downloadEvents(t))
}

func TestStatusEditedWhenDeleteFails(t *testing.T) {
	h := newHarness(t)
	h.transport.deleteErr = errors.New("message too old")
	h.resolver.res = resolver.Resolution{Media: resolver.Video{URL: "https://cdn.example/v.mp4"}, Provider: "tikwm"}

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, h.msgs.Done, h.transport.lastEdit().Text)
}

func TestTextWithoutLinkIsIgnored(t *testing.T) {
	h := newHarness(t)

	h.pipeline.Dispatch(context.Background(), TextEvent{Envelope: envelope(1001), Text: "hello there"})

	assert.Equal(t, 0, h.resolver.Calls())
	assert.Empty(t, h.transport.texts)
}

func TestRateLimitedLinkNeverReachesResolver(t *testing.T) {
	limiter := &fakeLimiter{deny: true}
	h := newHarness(t, func(d *Deps) { d.Limiter = limiter })

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, 0, h.resolver.Calls())
	assert.Equal(t, h.msgs.ForKind(KindRateLimited), h.transport.lastText().Text)

	limiter.deny, limiter.busy = false, true
	h.sendLink(1001, tiktokLink)
	assert.Equal(t, 0, h.resolver.Calls())
	assert.Equal(t, h.msgs.ForKind(KindBusy), h.transport.lastText().Text)
}

func TestExpiredUserSeesUpgradeEvenWhenRateLimited(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Limiter = &fakeLimiter{deny: true} })
	h.command(1001, "start", "")
	h.clock.Advance(25 * time.Hour)

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, 0, h.resolver.Calls())
	last := h.transport.lastText()
	assert.Equal(t, h.msgs.ForKind(KindAccessExpired), last.Text)
	require.Len(t, last.Opts.Buttons, 1)
}

func TestLimiterBackendErrorFailsOpen(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Limiter = &fakeLimiter{err: errors.New("redis down")} })

	h.sendLink(1001, tiktokLink)

	assert.Equal(t, 1, h.resolver.Calls())
}

func TestAudioFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.audio.err = transcoder.ErrTranscodeUnavailable
	id, err := h.tokens.Put(token.Payload{SourceURL: "https://cdn.example/v.mp4", Title: "x"})
	require.NoError(t, err)

	h.press(1001, AudioActionPrefix+id)

	assert.Equal(t, h.msgs.ForKind(KindTranscodeUnavailable), h.transport.lastText().Text)
	assert.Empty(t, h.transport.audios)
	assert.Equal(t, 0, h.tokens.Len())
}

func TestExpiredTokenNeverReachesTranscoder(t *testing.T) {
	h := newHarness(t)
	id, err := h.tokens.Put(token.Payload{SourceURL: "https://cdn.example/v.mp4"})
	require.NoError(t, err)
	h.clock.Advance(token.DefaultTTL + time.Second)

	h.press(1001, AudioActionPrefix+id)

	assert.Equal(t, 0, h.audio.Calls())
	assert.Equal(t, h.msgs.ForKind(KindTokenExpiredOrMissing), h.transport.lastText().Text)
}

func TestPanicBecomesInternalError(t *testing.T) {
	h := newHarness(t)
	h.resolver.panic = true

	require.NotPanics(t, func() { h.sendLink(1001, tiktokLink) })
	assert.Equal(t, h.msgs.ForKind(KindInternal), h.transport.lastText().Text)
}

func TestConcurrentDispatchRecordsEveryLink(t *testing.T) {
	h := newHarness(t)
	h.resolver.res = resolver.Resolution{Media: resolver.Video{URL: "https://cdn.example/v.mp4"}, Provider: "tikwm"}
	h.command(1001, "start", "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.sendLink(1001, tiktokLink)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, h.resolver.Calls())
	assert.Len(t, h.downloadEvents(t), 8)
	assert.Equal(t, 8, h.tokens.Len())
}
