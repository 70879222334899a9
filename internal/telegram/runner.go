package telegram

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/teleload/internal/config"
	"github.com/smallbiznis/teleload/internal/pipeline"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DefaultDrainTimeout = 30 * time.Second
	pollTimeoutSeconds  = 60

	// WebhookPath is where Telegram posts updates in webhook mode.
	WebhookPath = "/telegram-webhook"
	// SecretTokenHeader carries the secret registered with setWebhook.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
)

var ErrWebhookURLRequired = errors.New("telegram_webhook_url_required")

// Dispatcher is the pipeline entry point.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev pipeline.Event)
}

type RunnerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	API       *tgbotapi.BotAPI
	Pipeline  *pipeline.Pipeline
}

// Runner receives updates by long polling or webhook and dispatches each one
// on its own goroutine. Stop waits for in-flight updates up to the drain timeout.
type Runner struct {
	log           *zap.Logger
	api           *tgbotapi.BotAPI
	dispatcher    Dispatcher
	mode          string
	webhookURL    string
	webhookSecret string
	drainTimeout  time.Duration
	decode        func(*http.Request) (*tgbotapi.Update, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

type runnerOptions struct {
	Mode          string
	WebhookURL    string
	WebhookSecret string
}

func NewRunner(p RunnerParams) (*Runner, error) {
	r := newRunner(p.Log, p.API, p.Pipeline, runnerOptions{
		Mode:          p.Config.Telegram.Mode,
		WebhookURL:    p.Config.Telegram.WebhookURL,
		WebhookSecret: p.Config.Telegram.WebhookSecret,
	})
	if r.mode == config.BotModeWebhook {
		if r.webhookURL == "" {
			return nil, ErrWebhookURLRequired
		}
		if r.webhookSecret == "" {
			secret, err := newWebhookSecret()
			if err != nil {
				return nil, err
			}
			r.webhookSecret = secret
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			r.stop(ctx)
			return nil
		},
	})
	return r, nil
}

func newRunner(log *zap.Logger, api *tgbotapi.BotAPI, d Dispatcher, opts runnerOptions) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode != config.BotModeWebhook {
		mode = config.BotModePolling
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:           log.Named("telegram.runner"),
		api:           api,
		dispatcher:    d,
		mode:          mode,
		webhookURL:    webhookEndpoint(opts.WebhookURL),
		webhookSecret: strings.TrimSpace(opts.WebhookSecret),
		drainTimeout:  DefaultDrainTimeout,
		decode:        api.HandleUpdate,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (r *Runner) Mode() string {
	return r.mode
}

func (r *Runner) start(ctx context.Context) error {
	if r.mode == config.BotModeWebhook {
		params := tgbotapi.Params{"url": r.webhookURL}
		params.AddNonEmpty("secret_token", r.webhookSecret)
		if _, err := r.api.MakeRequest("setWebhook", params); err != nil {
			return err
		}
		r.log.Info("webhook registered", zap.String("url", r.webhookURL))
		return nil
	}

	if _, err := r.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn("failed to clear webhook before polling", zap.Error(err))
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := r.api.GetUpdatesChan(u)

	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		for update := range updates {
			r.dispatch(update)
		}
	}()
	r.log.Info("long polling started")
	return nil
}

func (r *Runner) stop(ctx context.Context) {
	if r.mode == config.BotModePolling && r.api != nil {
		r.api.StopReceivingUpdates()
	}
	if r.done != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
		}
	}
	r.drain(ctx)
	r.cancel()
}

// drain waits for in-flight updates, bounded by the drain timeout and ctx.
func (r *Runner) drain(ctx context.Context) bool {
	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()
	select {
	case <-finished:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	r.log.Warn("stopped before in-flight updates finished")
	return false
}

func (r *Runner) dispatch(update tgbotapi.Update) {
	ev, ok := EventFromUpdate(update)
	if !ok {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dispatcher.Dispatch(r.ctx, ev)
	}()
}

// WebhookHandler accepts updates pushed by Telegram. Requests without the
// registered secret token are rejected. It acknowledges before the update is
// processed.
func (r *Runner) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.authorized(req) {
			r.log.Warn("rejected unauthenticated webhook request", zap.String("remote_addr", req.RemoteAddr))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		update, err := r.decode(req)
		if err != nil {
			r.log.Debug("rejected webhook request", zap.Error(err))
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		r.dispatch(*update)
		w.WriteHeader(http.StatusOK)
	})
}

func (r *Runner) authorized(req *http.Request) bool {
	if r.webhookSecret == "" {
		return false
	}
	got := req.Header.Get(SecretTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(r.webhookSecret)) == 1
}

// webhookEndpoint appends WebhookPath unless the url already ends with it.
func webhookEndpoint(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" || strings.HasSuffix(raw, WebhookPath) {
		return raw
	}
	return raw + WebhookPath
}

func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
