package jobs

import (
	"fmt"
	"strings"
	"time"
)

// ObjectKey builds a unique object key for an upload: a timestamp prefix
// followed by the sanitized original filename. Uniqueness per upload is what
// keeps the one-active-job-per-key invariant sound; the original filename is
// preserved separately on the UploadRecord.
func ObjectKey(originalFilename string, now time.Time) string {
	return now.UTC().Format("20060102_150405") + "_" + sanitizeFilename(originalFilename)
}

// sanitizeFilename keeps alphanumerics and "._- ", dropping everything else.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '_' || c == '-' || c == ' ':
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "recording"
	}
	return b.String()
}

// FormatTimestamp renders a millisecond offset as HH:MM:SS for display.
// Persisted utterances keep millisecond precision.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
