package calendar

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var twitchLinkRe = regexp.MustCompile(`(?i)^https?://(?:www\.)?twitch\.tv/([a-z0-9_]+)/?$`)

// TwitchChannelFromLink returns the channel name of a twitch.tv channel link,
// or "" when link points elsewhere.
func TwitchChannelFromLink(link string) string {
	m := twitchLinkRe.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return ""
	}
	return m[1]
}

// FormattedTitle is the title used for an event on an external schedule.
// Events hosted on another Twitch channel than username get " @ <channel>"
// appended. The result is cut to maxLen runes, ending in "…" when cut.
func FormattedTitle(title, link, username string, maxLen int) string {
	out := title
	if channel := TwitchChannelFromLink(link); channel != "" && !strings.EqualFold(channel, username) {
		out += " @ " + channel
	}
	return Truncate(out, maxLen)
}

// Truncate cuts s to at most maxLen runes. A non-positive maxLen disables it.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:maxLen-1]), unicode.IsSpace) + "…"
}

// CamelToKebab converts an identifier like winnieTheMoo to winnie-the-moo
func CamelToKebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
