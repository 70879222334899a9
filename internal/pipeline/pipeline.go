// Package pipeline turns inbound bot events into deliveries: gate, resolve,
// deliver and record for links, and take, transcode and deliver for audio.
package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/teleload/internal/clock"
	"github.com/smallbiznis/teleload/internal/config"
	dashboarddomain "github.com/smallbiznis/teleload/internal/dashboard/domain"
	downloaddomain "github.com/smallbiznis/teleload/internal/download/domain"
	"github.com/smallbiznis/teleload/internal/entitlement"
	obscontext "github.com/smallbiznis/teleload/internal/observability/context"
	obslogger "github.com/smallbiznis/teleload/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/teleload/internal/observability/metrics"
	"github.com/smallbiznis/teleload/internal/ratelimit"
	"github.com/smallbiznis/teleload/internal/resolver"
	"github.com/smallbiznis/teleload/internal/token"
	"github.com/smallbiznis/teleload/internal/transcoder"
	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	AudioActionPrefix       = "dl_audio_"
	ActionCheckSubscription = "check_subscription"
	ActionAdminStats        = "admin_stats"
	ActionAdminUsers        = "admin_users"
	ActionAdminClose        = "admin_close"
)

type Resolver interface {
	Resolve(ctx context.Context, sourceURL string) resolver.Resolution
}

type TokenStore interface {
	Put(payload token.Payload) (string, error)
	Take(id string) (token.Payload, error)
}

type AudioExtractor interface {
	ExtractAudio(ctx context.Context, req transcoder.Request, deliver func(context.Context, transcoder.Audio) error) error
}

// LinkLimiter throttles link submissions per user.
type LinkLimiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
	Acquire(ctx context.Context, userID string) (release func(), ok bool, err error)
}

type StatsReader interface {
	Stats(ctx context.Context) (dashboarddomain.Stats, error)
}

type Options struct {
	TrialPeriod      time.Duration
	CaptionLimit     int
	PhotoBatchSize   int
	LinkPattern      string
	Channel          string
	AdminID          string
	SubscriptionDays int
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		TrialPeriod:      cfg.Pipeline.TrialPeriod,
		CaptionLimit:     cfg.Pipeline.CaptionLimit,
		PhotoBatchSize:   cfg.Pipeline.PhotoBatchSize,
		LinkPattern:      cfg.Pipeline.LinkPattern,
		Channel:          cfg.Telegram.Channel,
		AdminID:          cfg.Admin.TelegramID,
		SubscriptionDays: cfg.Pipeline.SubscriptionDays,
	}
}

func (o Options) withDefaults() Options {
	if o.TrialPeriod <= 0 {
		o.TrialPeriod = entitlement.DefaultTrialPeriod
	}
	if o.CaptionLimit <= 0 {
		o.CaptionLimit = DefaultCaptionLimit
	}
	if o.PhotoBatchSize <= 0 {
		o.PhotoBatchSize = DefaultPhotoBatchSize
	}
	if strings.TrimSpace(o.LinkPattern) == "" {
		o.LinkPattern = config.DefaultLinkPattern
	}
	if o.SubscriptionDays <= 0 {
		o.SubscriptionDays = 7
	}
	return o
}

// Deps are the collaborators of a Pipeline. Limiter, Stats and Metrics may be nil.
type Deps struct {
	Log       *zap.Logger
	Clock     clock.Clock
	Transport Transport
	Users     userdomain.Service
	Downloads downloaddomain.Service
	Resolver  Resolver
	Tokens    TokenStore
	Audio     AudioExtractor
	Limiter   LinkLimiter
	Stats     StatsReader
	Metrics   *obsmetrics.Metrics
	Messages  *Messages
	Options   Options
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	Transport  Transport
	Users      userdomain.Service
	Downloads  downloaddomain.Service
	Resolver   *resolver.Resolver
	Tokens     *token.Store
	Transcoder *transcoder.Transcoder
	Limiter    *ratelimit.LinkLimiter  `optional:"true"`
	Dashboard  dashboarddomain.Service `optional:"true"`
	Metrics    *obsmetrics.Metrics     `optional:"true"`
}

// Pipeline is the single entry point for inbound events. It is safe for concurrent use.
type Pipeline struct {
	log       *zap.Logger
	clock     clock.Clock
	transport Transport
	users     userdomain.Service
	downloads downloaddomain.Service
	resolver  Resolver
	tokens    TokenStore
	audio     AudioExtractor
	limiter   LinkLimiter
	stats     StatsReader
	metrics   *obsmetrics.Metrics
	msgs      Messages
	opts      Options
	links     *regexp.Regexp
	tracer    trace.Tracer
}

func New(p Params) (*Pipeline, error) {
	deps := Deps{
		Log:       p.Log,
		Clock:     p.Clock,
		Transport: p.Transport,
		Users:     p.Users,
		Downloads: p.Downloads,
		Resolver:  p.Resolver,
		Tokens:    p.Tokens,
		Audio:     p.Transcoder,
		Metrics:   p.Metrics,
		Options:   OptionsFromConfig(p.Config),
	}
	if p.Limiter != nil {
		deps.Limiter = p.Limiter
	}
	if p.Dashboard != nil {
		deps.Stats = p.Dashboard
	}
	return NewWithDeps(deps)
}

func NewWithDeps(d Deps) (*Pipeline, error) {
	opts := d.Options.withDefaults()
	links, err := regexp.Compile(opts.LinkPattern)
	if err != nil {
		return nil, err
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := d.Clock
	if c == nil {
		c = clock.New()
	}
	msgs := DefaultMessages()
	if d.Messages != nil {
		msgs = *d.Messages
	}
	return &Pipeline{
		log:       log.Named("pipeline"),
		clock:     c,
		transport: d.Transport,
		users:     d.Users,
		downloads: d.Downloads,
		resolver:  d.Resolver,
		tokens:    d.Tokens,
		audio:     d.Audio,
		limiter:   d.Limiter,
		stats:     d.Stats,
		metrics:   d.Metrics,
		msgs:      msgs,
		opts:      opts,
		links:     links,
		tracer:    otel.Tracer("teleload/pipeline"),
	}, nil
}

// Dispatch handles one inbound event to completion. It never panics and never returns an error:
// every failure ends as a message to the user.
func (p *Pipeline) Dispatch(ctx context.Context, ev Event) {
	if ev == nil {
		return
	}
	env := ev.envelope()
	ctx = obscontext.WithUpdateID(ctx, strconv.Itoa(env.UpdateID))
	ctx, _ = obscontext.EnsureCorrelationID(ctx)
	ctx = obscontext.WithUserID(ctx, env.From.ExternalID())

	ctx, span := p.tracer.Start(ctx, "pipeline.Dispatch",
		trace.WithAttributes(attribute.String("pipeline.event", eventName(ev))),
	)
	defer span.End()

	log := p.logger(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked",
				zap.String("event", eventName(ev)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			p.reply(ctx, env.ChatID, p.msgs.ForKind(KindInternal))
		}
	}()

	user, err := p.users.Touch(ctx, userdomain.ContactRequest{
		ExternalID: env.From.ExternalID(),
		Username:   env.From.Username,
		FirstName:  env.From.FirstName,
	})
	if err != nil {
		log.Error("failed to load user", zap.Error(err))
		if action, ok := ev.(ActionEvent); ok {
			p.answer(ctx, action.CallbackID, "")
		}
		p.reply(ctx, env.ChatID, p.msgs.ForKind(KindInternal))
		return
	}

	switch e := ev.(type) {
	case TextEvent:
		p.handleText(ctx, e, user)
	case CommandEvent:
		p.handleCommand(ctx, e, user)
	case ActionEvent:
		p.handleAction(ctx, e, user)
	}
}

func (p *Pipeline) handleText(ctx context.Context, e TextEvent, user *userdomain.User) {
	link := p.links.FindString(e.Text)
	if link == "" {
		return
	}
	p.handleLink(ctx, e.ChatID, link, user)
}

func (p *Pipeline) handleCommand(ctx context.Context, e CommandEvent, user *userdomain.User) {
	switch strings.ToLower(e.Command) {
	case "start":
		p.handleStart(ctx, e, user)
	case "profile":
		p.handleProfile(ctx, e.ChatID, user)
	case "admin", "stats", "users", "setpro", "revoke":
		p.handleAdminCommand(ctx, e)
	default:
		p.reply(ctx, e.ChatID, p.msgs.Help)
	}
}

func (p *Pipeline) handleAction(ctx context.Context, e ActionEvent, user *userdomain.User) {
	switch {
	case strings.HasPrefix(e.Data, AudioActionPrefix):
		p.handleAudio(ctx, e, strings.TrimPrefix(e.Data, AudioActionPrefix))
	case e.Data == ActionCheckSubscription:
		p.handleCheckSubscription(ctx, e, user)
	case e.Data == ActionAdminStats, e.Data == ActionAdminUsers, e.Data == ActionAdminClose:
		p.handleAdminAction(ctx, e)
	default:
		p.answer(ctx, e.CallbackID, "")
	}
}

func (p *Pipeline) state(user *userdomain.User) entitlement.State {
	return entitlement.EvaluateWithTrial(user.Subject(), p.clock.Now(), p.opts.TrialPeriod)
}

func (p *Pipeline) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, p.log)
}

// reply sends text and only logs a transport failure.
func (p *Pipeline) reply(ctx context.Context, chatID int64, text string, opts ...SendOption) {
	if _, err := p.transport.SendText(ctx, chatID, text, opts...); err != nil {
		p.logger(ctx).Warn("send message failed", zap.Error(err))
	}
}

func (p *Pipeline) answer(ctx context.Context, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if err := p.transport.AnswerAction(ctx, callbackID, text); err != nil {
		p.logger(ctx).Debug("answer action failed", zap.Error(err))
	}
}

// editOrReply rewrites ref, sending a fresh message when the edit is rejected.
func (p *Pipeline) editOrReply(ctx context.Context, ref MessageRef, chatID int64, text string) {
	if ref.MessageID != 0 {
		err := p.transport.EditText(ctx, ref, text)
		if err == nil {
			return
		}
		p.logger(ctx).Debug("edit message failed, replying instead", zap.Error(err))
	}
	p.reply(ctx, chatID, text)
}

func (p *Pipeline) channelURL() string {
	channel := strings.TrimPrefix(strings.TrimSpace(p.opts.Channel), "@")
	if channel == "" {
		return ""
	}
	return "https://t.me/" + channel
}

func (p *Pipeline) upgradeButtons() []SendOption {
	url := p.channelURL()
	if url == "" {
		return nil
	}
	return []SendOption{WithButtons([]Button{{Text: p.msgs.UpgradeButton, URL: url}})}
}
