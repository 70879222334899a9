package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teleload/internal/entitlement"
	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
	"go.uber.org/zap"
)

const referralPrefix = "ref_"

func (p *Pipeline) handleStart(ctx context.Context, e CommandEvent, user *userdomain.User) {
	if referrerID, ok := parseReferral(e.Args); ok {
		if p.applyReferral(ctx, user, referrerID) {
			p.reply(ctx, e.ChatID, p.msgs.ReferralThanks)
		}
	}
	p.reply(ctx, e.ChatID, p.msgs.Welcome(user, p.state(user), p.opts.TrialPeriod))
}

func parseReferral(args string) (snowflake.ID, bool) {
	payload := strings.TrimSpace(args)
	if !strings.HasPrefix(payload, referralPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, referralPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return snowflake.ID(id), true
}

// applyReferral reports whether the referral was recorded. Rejected referrals are silent to the user.
func (p *Pipeline) applyReferral(ctx context.Context, user *userdomain.User, referrerID snowflake.ID) bool {
	if user.ReferredBy != nil || user.ID == referrerID {
		return false
	}
	err := p.users.AddReferral(ctx, user.ID, referrerID)
	switch {
	case err == nil:
		p.logger(ctx).Info("referral applied", zap.String("referrer_id", referrerID.String()))
		return true
	case errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrSelfReferral),
		errors.Is(err, userdomain.ErrAlreadyReferred):
		p.logger(ctx).Debug("referral ignored", zap.Error(err))
	default:
		p.logger(ctx).Warn("referral failed", zap.Error(err))
	}
	return false
}

func (p *Pipeline) handleProfile(ctx context.Context, chatID int64, user *userdomain.User) {
	state := p.state(user)
	text := p.msgs.Profile(user, state, p.opts.TrialPeriod, p.referralLink(user), p.opts.SubscriptionDays)

	var opts []SendOption
	if state != entitlement.Pro {
		row := []Button{}
		if url := p.channelURL(); url != "" {
			row = append(row, Button{Text: p.msgs.ChannelButton, URL: url})
		}
		row = append(row, Button{Text: p.msgs.CheckButton, Data: ActionCheckSubscription})
		opts = append(opts, WithButtons(row))
	}
	p.reply(ctx, chatID, text, opts...)
}

func (p *Pipeline) referralLink(user *userdomain.User) string {
	bot := strings.TrimPrefix(p.transport.BotUsername(), "@")
	if bot == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%s%s", bot, referralPrefix, user.ID.String())
}

func (p *Pipeline) handleCheckSubscription(ctx context.Context, e ActionEvent, user *userdomain.User) {
	if p.state(user) == entitlement.Pro {
		p.answer(ctx, e.CallbackID, p.msgs.AlreadyPro)
		return
	}
	p.answer(ctx, e.CallbackID, "")

	log := p.logger(ctx)
	member, err := p.transport.IsChannelMember(ctx, p.opts.Channel, e.From.ID)
	if err != nil {
		log.Warn("channel membership check failed", zap.String("channel", p.opts.Channel), zap.Error(err))
		p.editOrReply(ctx, e.Message, e.ChatID, p.msgs.VerifyFailed)
		return
	}
	if !member {
		p.editOrReply(ctx, e.Message, e.ChatID, fmt.Sprintf(p.msgs.NotSubscribed, p.opts.Channel))
		return
	}

	days := p.opts.SubscriptionDays
	if _, err := p.users.SetPro(ctx, user.ExternalID, true, &days); err != nil {
		log.Error("grant subscription bonus failed", zap.Error(err))
		p.editOrReply(ctx, e.Message, e.ChatID, p.msgs.ForKind(KindInternal))
		return
	}
	p.editOrReply(ctx, e.Message, e.ChatID, fmt.Sprintf(p.msgs.SubscribedOK, days))
}
