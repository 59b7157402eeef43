package pipeline

import (
	"strings"
	"time"
)

const timestampPlaceholder = "{Timestamp:"

// ResolvePath expands every {Timestamp:<format>} placeholder in template
// with now formatted by FormatTimestamp. Examples:
//
//	"photo__{Timestamp:yyyyMMdd_HHmmssffff}.jpg" -> "photo__20240728_0055518573.jpg"
//	"faces_{Timestamp:yyyyMMdd}/photo.jpg"       -> "faces_20240728/photo.jpg"
//
// An opening placeholder without a closing brace stops expansion; the rest
// of the template is returned verbatim.
func ResolvePath(template string, now time.Time) string {
	resolved, _ := resolvePath(template, now)
	return resolved
}

// resolvePath also reports whether expansion was cut short by an unmatched
// placeholder.
func resolvePath(template string, now time.Time) (string, bool) {
	var b strings.Builder
	rest := template

	for {
		start := strings.Index(rest, timestampPlaceholder)
		if start == -1 {
			b.WriteString(rest)
			return b.String(), false
		}

		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			b.WriteString(rest)
			return b.String(), true
		}
		end += start

		b.WriteString(rest[:start])
		b.WriteString(FormatTimestamp(now, rest[start+len(timestampPlaceholder):end]))

		// Scanning resumes after the placeholder, so formatted output is
		// never expanded again.
		rest = rest[end+1:]
	}
}
