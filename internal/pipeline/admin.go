package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
	"go.uber.org/zap"
)

const adminUsersLimit = 5

func (p *Pipeline) isAdmin(from Sender) bool {
	admin := strings.TrimSpace(p.opts.AdminID)
	return admin != "" && from.ExternalID() == admin
}

func (p *Pipeline) adminMenu() SendOption {
	return WithButtons(
		[]Button{
			{Text: "📊 Stats", Data: ActionAdminStats},
			{Text: "👥 Users", Data: ActionAdminUsers},
		},
		[]Button{{Text: "❌ Close", Data: ActionAdminClose}},
	)
}

func (p *Pipeline) handleAdminCommand(ctx context.Context, e CommandEvent) {
	if !p.isAdmin(e.From) {
		p.logger(ctx).Info("admin command rejected", zap.String("command", e.Command))
		p.reply(ctx, e.ChatID, p.msgs.AccessDenied)
		return
	}

	switch strings.ToLower(e.Command) {
	case "admin":
		p.reply(ctx, e.ChatID, "🛠 Admin panel\n\n"+p.statsText(ctx), p.adminMenu())
	case "stats":
		p.reply(ctx, e.ChatID, p.statsText(ctx))
	case "users":
		p.reply(ctx, e.ChatID, p.usersText(ctx))
	case "setpro":
		p.handleSetPro(ctx, e)
	case "revoke":
		p.handleRevoke(ctx, e)
	}
}

func (p *Pipeline) handleAdminAction(ctx context.Context, e ActionEvent) {
	if !p.isAdmin(e.From) {
		p.answer(ctx, e.CallbackID, p.msgs.AccessDenied)
		return
	}
	p.answer(ctx, e.CallbackID, "")

	switch e.Data {
	case ActionAdminStats:
		p.editOrReply(ctx, e.Message, e.ChatID, p.statsText(ctx))
	case ActionAdminUsers:
		p.editOrReply(ctx, e.Message, e.ChatID, p.usersText(ctx))
	case ActionAdminClose:
		if err := p.transport.DeleteMessage(ctx, e.Message); err != nil {
			p.logger(ctx).Debug("close admin menu failed", zap.Error(err))
		}
	}
}

func (p *Pipeline) statsText(ctx context.Context) string {
	if p.stats == nil {
		return "Stats are not available."
	}
	stats, err := p.stats.Stats(ctx)
	if err != nil {
		p.logger(ctx).Error("load stats failed", zap.Error(err))
		return p.msgs.ForKind(KindInternal)
	}
	return fmt.Sprintf("📊 Statistics\n\n👥 Users: %d\n💎 PRO: %d\n⏳ Active trials: %d\n📥 Downloads: %d",
		stats.TotalUsers, stats.ProUsers, stats.ActiveTrials, stats.TotalDownloads)
}

func (p *Pipeline) usersText(ctx context.Context) string {
	users, err := p.users.List(ctx, adminUsersLimit)
	if err != nil {
		p.logger(ctx).Error("list users failed", zap.Error(err))
		return p.msgs.ForKind(KindInternal)
	}
	if len(users) == 0 {
		return "No users yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 Last %d users\n", len(users))
	for i := range users {
		u := &users[i]
		fmt.Fprintf(&b, "\n%s (%s) %s", u.DisplayName(), u.ExternalID, statusLabel(p.state(u)))
	}
	return b.String()
}

func (p *Pipeline) handleSetPro(ctx context.Context, e CommandEvent) {
	fields := e.Fields()
	if len(fields) != 2 {
		p.reply(ctx, e.ChatID, "Usage: /setpro <telegram_id> <days>")
		return
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil || days <= 0 {
		p.reply(ctx, e.ChatID, "Days must be a positive number.")
		return
	}

	user, err := p.users.SetPro(ctx, fields[0], true, &days)
	if err != nil {
		p.reply(ctx, e.ChatID, p.adminError(ctx, err))
		return
	}
	p.reply(ctx, e.ChatID, fmt.Sprintf("✅ %s is PRO for %d days.", user.DisplayName(), days))

	target, err := strconv.ParseInt(user.ExternalID, 10, 64)
	if err != nil {
		return
	}
	p.reply(ctx, target, fmt.Sprintf("💎 You have been granted PRO for %d days. Enjoy!", days))
}

func (p *Pipeline) handleRevoke(ctx context.Context, e CommandEvent) {
	fields := e.Fields()
	if len(fields) != 1 {
		p.reply(ctx, e.ChatID, "Usage: /revoke <telegram_id>")
		return
	}
	user, err := p.users.SetPro(ctx, fields[0], false, nil)
	if err != nil {
		p.reply(ctx, e.ChatID, p.adminError(ctx, err))
		return
	}
	p.reply(ctx, e.ChatID, fmt.Sprintf("✅ %s is now %s.", user.DisplayName(), statusLabel(p.state(user))))
}

func (p *Pipeline) adminError(ctx context.Context, err error) string {
	if errors.Is(err, userdomain.ErrNotFound) {
		return "❌ User not found."
	}
	p.logger(ctx).Error("admin update failed", zap.Error(err))
	return p.msgs.ForKind(KindInternal)
}
