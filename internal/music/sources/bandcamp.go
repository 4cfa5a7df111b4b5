package sources

import (
	"fmt"
	"regexp"
)

var bcRegex = regexp.MustCompile(`^(https?://)?(?P<artist>[^.:/]+)\.bandcamp\.com/track/(?P<track>[^/?]+)`)

type Bandcamp struct{}

func (Bandcamp) Kind() string               { return "bc" }
func (Bandcamp) SourceName() string         { return "Bandcamp" }
func (Bandcamp) AvailableParsers() []string { return []string{ParserYtdlp} }

func (Bandcamp) UURI(u string) (string, bool) {
	m := bcRegex.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("bc:%s:%s", m[bcRegex.SubexpIndex("artist")], m[bcRegex.SubexpIndex("track")]), true
}

func (Bandcamp) URL(parts []string) (string, error) {
	if err := wantParts(parts, 2); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.bandcamp.com/track/%s", parts[0], parts[1]), nil
}
