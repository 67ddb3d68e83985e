package util

import (
	"strings"
	"time"
)

// MediaFolderDate formats the per-message folder date segment. Monthly mode
// groups a whole month into one folder; otherwise each day gets its own.
func MediaFolderDate(t time.Time, monthly bool) string {
	if monthly {
		return t.Format("2006-01")
	}
	return t.Format("060102")
}

// FileNameFromURL returns the last path segment of a media URL, which the CDN
// keeps unique per asset.
func FileNameFromURL(rawURL string) string {
	idx := strings.LastIndex(rawURL, "/")
	if idx < 0 || idx+1 >= len(rawURL) {
		return rawURL
	}
	return rawURL[idx+1:]
}

// SanitizeFileNamePart removes characters invalid on common filesystems,
// collapses repeated separators/whitespace, and returns "artist" for empty
// results.
func SanitizeFileNamePart(value string) string {
	replacer := strings.NewReplacer(
		"\\", "_",
		"/", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	s := replacer.Replace(value)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return "artist"
	}
	return s
}
