package util

import (
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]+`)

// SanitizeFilename strips characters that are invalid on common filesystems
// and bounds the length so generated media names stay portable.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// FormatHashtags renders hashtags as a single "#a #b" string, capped at limit
// tags. Platforms cap hashtag counts differently (Instagram 30, YouTube 10).
func FormatHashtags(tags []string, limit int) string {
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}

	var sb strings.Builder
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("#")
		sb.WriteString(tag)
	}
	return sb.String()
}

// Truncate cuts s to at most n bytes without splitting past the limit.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
