package sources

import (
	"fmt"
	"regexp"
)

var scRegex = regexp.MustCompile(`^(https?://)?soundcloud\.com/(?P<artist>[^/]+)/(?P<track>[^/?]+)`)

type SoundCloud struct{}

func (SoundCloud) Kind() string               { return "sc" }
func (SoundCloud) SourceName() string         { return "SoundCloud" }
func (SoundCloud) AvailableParsers() []string { return []string{ParserYtdlp} }

func (SoundCloud) UURI(u string) (string, bool) {
	m := scRegex.FindStringSubmatch(u)
	if m == nil || m[scRegex.SubexpIndex("track")] == "sets" {
		return "", false
	}
	return fmt.Sprintf("sc:%s:%s", m[scRegex.SubexpIndex("artist")], m[scRegex.SubexpIndex("track")]), true
}

func (SoundCloud) URL(parts []string) (string, error) {
	if err := wantParts(parts, 2); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://soundcloud.com/%s/%s", parts[0], parts[1]), nil
}
