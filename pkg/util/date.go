package util

import (
	"strings"
	"time"
)

// dateTokens maps template placeholders to Go layout elements. Longer
// tokens come first so YYYY is not read as two YY.
var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"hh", "15",
	"mm", "04",
	"ss", "05",
)

// FormatDate formats t in UTC using a template with placeholders:
// YYYY, YY, MM, DD, hh, mm and ss. The zero time (or the Unix epoch, which
// the database stores for "never") yields an empty string.
//
// Example:
//
//	FormatDate(t, "YYYY-MM-DD hh:mm") // "2023-11-10 00:00"
func FormatDate(t time.Time, tpl string) string {
	if t.IsZero() || t.Unix() == 0 {
		return ""
	}
	return t.UTC().Format(dateTokens.Replace(tpl))
}
