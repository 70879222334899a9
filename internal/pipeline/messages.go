package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/teleload/internal/entitlement"
	userdomain "github.com/smallbiznis/teleload/internal/user/domain"
)

const timeLayout = "2006-01-02 15:04 MST"

// Messages is the English text catalog. Every user-visible string the pipeline sends lives here.
type Messages struct {
	Processing     string
	Fetching       string
	SendingPhotos  string
	SendingVideo   string
	Done           string
	PreparingAudio string
	AudioCaption   string
	AudioButton    string
	UpgradePrompt  string
	UpgradeButton  string
	ChannelButton  string
	CheckButton    string
	ReferralThanks string
	AlreadyPro     string
	SubscribedOK   string
	NotSubscribed  string
	VerifyFailed   string
	AccessDenied   string
	Help           string
	Errors         map[Kind]string
}

func DefaultMessages() Messages {
	return Messages{
		Processing:     "🔗 Link detected! Starting the magic...",
		Fetching:       "⏳ Fetching metadata...",
		SendingPhotos:  "📸 Sending photo carousel...",
		SendingVideo:   "🚀 Sending video file...",
		Done:           "✅ Done!",
		PreparingAudio: "⏳ Preparing audio...",
		AudioCaption:   "🔊 Audio from video",
		AudioButton:    "🎵 Download audio",
		UpgradePrompt:  "⚠️ Your access is limited.\n\nThe free trial has expired. Upgrade to PRO to continue.",
		UpgradeButton:  "💳 Get PRO",
		ChannelButton:  "📢 Go to channel",
		CheckButton:    "✅ I subscribed!",
		ReferralThanks: "🎉 You joined via an invitation!\n\nYour friend received a bonus. Enjoy!",
		AlreadyPro:     "You are already PRO 💎",
		SubscribedOK:   "🎉 Congratulations!\n\nWe verified your subscription. You have been granted %d days of PRO.",
		NotSubscribed:  "❌ You are not subscribed to %s yet. Subscribe and try again.",
		VerifyFailed:   "⚠️ Could not verify the subscription right now. Try again later.",
		AccessDenied:   "❌ This command is only available to administrators.",
		Help: "📥 How to use the bot:\n\n" +
			"1. Open TikTok and find a video.\n" +
			"2. Tap Share and choose Copy link.\n" +
			"3. Send the link here.\n\n" +
			"Commands: /start /profile /help",
		Errors: map[Kind]string{
			KindResolutionNotFound:    "❌ Could not process this link. Try another link or later.",
			KindAccessExpired:         "⚠️ Your access is limited.\n\nThe free trial has expired. Upgrade to PRO to continue.",
			KindTranscodeUnavailable:  "⚠️ Audio extraction is not available on this server.",
			KindDownloadFailed:        "❌ Could not fetch the video for audio extraction. Try again later.",
			KindTranscodeFailed:       "❌ Could not extract audio. Try again later.",
			KindTokenExpiredOrMissing: "⌛ This link has expired. Send the video link again.",
			KindDeliveryFailed:        "❌ Could not deliver the file. Try another link or later.",
			KindRateLimited:           "🐢 Too many links. Wait a moment and try again.",
			KindBusy:                  "⏳ Your previous link is still being processed.",
			KindInternal:              "❌ Something went wrong. Try again later.",
		},
	}
}

// ForKind renders the message for k, falling back to the internal error text.
func (m Messages) ForKind(k Kind) string {
	if text, ok := m.Errors[k]; ok && text != "" {
		return text
	}
	if text, ok := m.Errors[KindInternal]; ok && text != "" {
		return text
	}
	return "Something went wrong."
}

func statusLabel(state entitlement.State) string {
	switch state {
	case entitlement.Pro:
		return "💎 PRO"
	case entitlement.Trial:
		return "⏳ Free trial"
	default:
		return "❌ Access expired"
	}
}

func expiryLine(u *userdomain.User, state entitlement.State, trial time.Duration) string {
	switch state {
	case entitlement.Pro:
		if u.ProEnd == nil {
			return "📅 Active: no expiry"
		}
		return "📅 Active until: " + u.ProEnd.UTC().Format(timeLayout)
	case entitlement.Trial:
		return "📅 Trial ends: " + entitlement.TrialEndsAt(u.TrialStart, trial).UTC().Format(timeLayout)
	default:
		return ""
	}
}

func (m Messages) Welcome(u *userdomain.User, state entitlement.State, trial time.Duration) string {
	var b strings.Builder
	b.WriteString("🌟 Welcome to TeleLoad! 🌟\n\n")
	b.WriteString("Send me a TikTok link and I will return the video without watermarks.\n\n")
	b.WriteString("Status: " + statusLabel(state) + "\n")
	if line := expiryLine(u, state, trial); line != "" {
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Messages) Profile(u *userdomain.User, state entitlement.State, trial time.Duration, referralLink string, bonusDays int) string {
	var b strings.Builder
	b.WriteString("👤 Your profile\n\n")
	b.WriteString("🆔 ID: " + u.ExternalID + "\n")
	b.WriteString("🎭 Status: " + statusLabel(state) + "\n")
	if line := expiryLine(u, state, trial); line != "" {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "👥 Referrals: %d\n", u.ReferralCount)
	if referralLink != "" {
		b.WriteString("🔗 Invite link: " + referralLink + "\n")
	}
	if state != entitlement.Pro {
		fmt.Fprintf(&b, "\n🎁 Subscribe to our channel and get +%d days of PRO for free!", bonusDays)
	}
	return strings.TrimRight(b.String(), "\n")
}
