package pipeline

import (
	"context"
	"fmt"

	obsmetrics "github.com/smallbiznis/teleload/internal/observability/metrics"
	"github.com/smallbiznis/teleload/internal/transcoder"
	"go.uber.org/zap"
)

// handleAudio consumes the token first, so it is gone whatever happens next.
func (p *Pipeline) handleAudio(ctx context.Context, e ActionEvent, id string) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Audio")
	defer span.End()

	p.answer(ctx, e.CallbackID, p.msgs.PreparingAudio)
	counters := obsmetrics.Pipeline()

	payload, err := p.tokens.Take(id)
	if err != nil {
		p.audioFailed(ctx, e.ChatID, err)
		return
	}

	err = p.audio.ExtractAudio(ctx, transcoder.Request{
		ID:        id,
		SourceURL: payload.SourceURL,
		Title:     payload.Title,
	}, func(ctx context.Context, a transcoder.Audio) error {
		if err := p.transport.SendAudio(ctx, e.ChatID, a.Path, a.FileName, p.msgs.AudioCaption); err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return nil
	})
	if err != nil {
		p.audioFailed(ctx, e.ChatID, err)
		return
	}

	counters.IncAudio(linkOutcomeSuccess)
	p.metrics.RecordAudioDelivered(ctx)
}

func (p *Pipeline) audioFailed(ctx context.Context, chatID int64, err error) {
	kind := KindOf(err)
	obsmetrics.Pipeline().IncAudio(kind.String())

	log := p.logger(ctx)
	switch kind {
	case KindTokenExpiredOrMissing:
		log.Debug("audio token missing")
	case KindTranscodeUnavailable:
		log.Info("audio requested but transcoder unavailable")
	default:
		log.Warn("audio extraction failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	p.reply(ctx, chatID, p.msgs.ForKind(kind))
}
