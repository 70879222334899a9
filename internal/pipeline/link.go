package pipeline

import (
	"context"
	"fmt"

	downloaddomain "github.com/smallbiznis/teleload/internal/download/domain"
	"github.com/smallbiznis/teleload/internal/entitlement"
	obsmetrics "github.com/smallbiznis/teleload/internal/observability/metrics"
	"github.com/smallbiznis/teleload/internal/resolver"
	"github.com/smallbiznis/teleload/internal/token"
	"github.com/smallbiznis/teleload/internal/transcoder"
	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
	"go.uber.org/zap"
)

const linkOutcomeSuccess = "success"

type delivery struct {
	kind     downloaddomain.MediaKind
	mediaURL string
	items    int
	provider string
}

func (p *Pipeline) handleLink(ctx context.Context, chatID int64, sourceURL string, user *userdomain.User) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Link")
	defer span.End()

	log := p.logger(ctx)
	counters := obsmetrics.Pipeline()

	state := p.state(user)
	p.metrics.RecordLinkReceived(ctx, state.String())
	if state == entitlement.Expired {
		counters.IncLink(KindAccessExpired.String())
		p.reply(ctx, chatID, p.msgs.ForKind(KindAccessExpired), p.upgradeButtons()...)
		return
	}

	release, err := p.admit(ctx, user.ExternalID)
	if err != nil {
		kind := KindOf(err)
		p.metrics.RecordRateLimitDenied(ctx, kind.String())
		counters.IncLink(kind.String())
		p.reply(ctx, chatID, p.msgs.ForKind(kind))
		return
	}
	defer release()

	status, err := p.transport.SendText(ctx, chatID, p.msgs.Processing)
	if err != nil {
		log.Warn("send status message failed", zap.Error(err))
		counters.IncLink(KindDeliveryFailed.String())
		return
	}
	p.setStatus(ctx, status, p.msgs.Fetching)

	res := p.resolver.Resolve(ctx, sourceURL)
	out, err := p.deliver(ctx, chatID, status, res, state)
	if err != nil {
		kind := KindOf(err)
		counters.IncLink(kind.String())
		if kind == KindResolutionNotFound {
			log.Info("no provider could resolve link", zap.String("source_url", sourceURL))
		} else {
			log.Warn("link delivery failed", zap.String("kind", kind.String()), zap.Error(err))
		}
		p.editOrReply(ctx, status, chatID, p.msgs.ForKind(kind))
		return
	}

	p.record(ctx, user, sourceURL, out, state)
	counters.IncLink(linkOutcomeSuccess)

	if err := p.transport.DeleteMessage(ctx, status); err != nil {
		log.Debug("delete status message failed", zap.Error(err))
		p.setStatus(ctx, status, p.msgs.Done)
	}
}

// admit applies the per-user rate limit and in-flight lock. A limiter backend
// failure lets the link through rather than blocking every user.
func (p *Pipeline) admit(ctx context.Context, userID string) (func(), error) {
	noop := func() {}
	if p.limiter == nil {
		return noop, nil
	}
	log := p.logger(ctx)

	allowed, err := p.limiter.Allow(ctx, userID)
	if err != nil {
		log.Warn("rate limit check failed", zap.Error(err))
		allowed = true
	}
	if !allowed {
		return noop, ErrRateLimited
	}

	release, ok, err := p.limiter.Acquire(ctx, userID)
	if err != nil {
		log.Warn("link lock failed", zap.Error(err))
		return noop, nil
	}
	if !ok {
		return noop, ErrBusy
	}
	if release == nil {
		release = noop
	}
	return release, nil
}

func (p *Pipeline) deliver(ctx context.Context, chatID int64, status MessageRef, res resolver.Resolution, state entitlement.State) (delivery, error) {
	switch m := res.Media.(type) {
	case resolver.PhotoSet:
		if len(m.Items) == 0 {
			return delivery{}, ErrResolutionNotFound
		}
		p.setStatus(ctx, status, p.msgs.SendingPhotos)

		photos := make([]Photo, 0, len(m.Items))
		for _, item := range m.Items {
			photos = append(photos, Photo{URL: item.URL})
		}
		caption := TruncateCaption(m.Title, p.opts.CaptionLimit)
		for _, batch := range BatchPhotos(photos, caption, p.opts.PhotoBatchSize) {
			if err := p.transport.SendPhotoGroup(ctx, chatID, batch); err != nil {
				return delivery{}, fmt.Errorf("%w: send photo group: %v", ErrDeliveryFailed, err)
			}
		}
		return delivery{
			kind:     downloaddomain.MediaKindPhotoSet,
			mediaURL: m.Items[0].URL,
			items:    len(m.Items),
			provider: res.Provider,
		}, nil

	case resolver.Video:
		p.setStatus(ctx, status, p.msgs.SendingVideo)

		clean, _ := SplitTitle(m.Title)
		id, err := p.tokens.Put(token.Payload{
			SourceURL: m.URL,
			Title:     transcoder.SanitizeTitle(clean),
		})
		if err != nil {
			return delivery{}, fmt.Errorf("register audio token: %w", err)
		}

		caption := VideoCaption(p.transport.BotUsername(), m.Title, state, p.opts.CaptionLimit)
		action := &Action{Text: p.msgs.AudioButton, Data: AudioActionPrefix + id}
		if err := p.transport.SendVideo(ctx, chatID, m.URL, caption, action); err != nil {
			_, _ = p.tokens.Take(id)
			return delivery{}, fmt.Errorf("%w: send video: %v", ErrDeliveryFailed, err)
		}
		return delivery{
			kind:     downloaddomain.MediaKindVideo,
			mediaURL: m.URL,
			items:    1,
			provider: res.Provider,
		}, nil

	default:
		return delivery{}, ErrResolutionNotFound
	}
}

// record appends the download event. A failure here is logged and never reaches the user.
func (p *Pipeline) record(ctx context.Context, user *userdomain.User, sourceURL string, out delivery, state entitlement.State) {
	watermarked := state != entitlement.Pro
	_, err := p.downloads.Record(ctx, downloaddomain.RecordRequest{
		UserID:        user.ID,
		SourceURL:     sourceURL,
		MediaURL:      out.mediaURL,
		Kind:          out.kind,
		IsWatermarked: watermarked,
		Provider:      out.provider,
		Items:         out.items,
	})
	if err != nil {
		p.logger(ctx).Error("record download failed", zap.Error(err))
		return
	}
	p.metrics.RecordDownload(ctx, string(out.kind), out.provider, watermarked)
}

func (p *Pipeline) setStatus(ctx context.Context, ref MessageRef, text string) {
	if err := p.transport.EditText(ctx, ref, text); err != nil {
		p.logger(ctx).Debug("status edit failed", zap.String("status", text), zap.Error(err))
	}
}
