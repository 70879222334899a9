package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/smallbiznis/teleload/internal/entitlement"
)

const (
	DefaultCaptionLimit   = 1024
	DefaultPhotoBatchSize = 10
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// SplitTitle separates the hashtags from a video title.
func SplitTitle(title string) (clean string, hashtags []string) {
	hashtags = hashtagPattern.FindAllString(title, -1)
	clean = strings.Join(strings.Fields(hashtagPattern.ReplaceAllString(title, "")), " ")
	return clean, hashtags
}

// VideoCaption builds the caption for a delivered video and cuts it to limit
// UTF-16 code units.
func VideoCaption(botUsername, title string, state entitlement.State, limit int) string {
	clean, hashtags := SplitTitle(title)

	var b strings.Builder
	b.WriteString("✅ Downloaded via @" + botUsername + "\n")
	if clean != "" {
		b.WriteString("📝 " + clean + "\n")
	}
	if len(hashtags) > 0 {
		b.WriteString(strings.Join(hashtags, " ") + "\n")
	}
	status := "Trial"
	if state == entitlement.Pro {
		status = "PRO"
	}
	b.WriteString("💎 Status: " + status)

	return TruncateCaption(b.String(), limit)
}

// TruncateCaption cuts s to at most limit UTF-16 code units, the unit Telegram
// counts caption length in. A surrogate pair is never split.
func TruncateCaption(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	units := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

// BatchPhotos splits items into albums of at most size. Only the first item
// of the first album carries the caption.
func BatchPhotos(items []Photo, caption string, size int) [][]Photo {
	if size <= 0 {
		size = DefaultPhotoBatchSize
	}
	batches := make([][]Photo, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batch := make([]Photo, 0, end-start)
		for i := start; i < end; i++ {
			p := Photo{URL: items[i].URL}
			if i == 0 {
				p.Caption = caption
			}
			batch = append(batch, p)
		}
		batches = append(batches, batch)
	}
	return batches
}
