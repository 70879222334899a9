package transcoder

import (
	"strings"
	"unicode"
)

const (
	maxTitleRunes = 50
	fallbackTitle = "audio"
)

// SanitizeTitle keeps letters, digits and whitespace, caps the result at 50
// runes and falls back to "audio" when nothing usable is left.
func SanitizeTitle(title string) string {
	var b strings.Builder
	count := 0
	for _, r := range title {
		if count == maxTitleRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
			count++
		}
	}
	clean := strings.Join(strings.Fields(b.String()), " ")
	if clean == "" {
		return fallbackTitle
	}
	return clean
}

// FileName is the name the audio file is delivered under.
func FileName(title string) string {
	return SanitizeTitle(title) + ".mp3"
}
