// Package sources knows the supported song hosts: how to recognise their
// URLs, how to turn them into unique URIs (uuri) for storage and how to build
// a canonical URL back from a uuri.
//
// uuri formats:
//
//	yt:<video id>
//	sc:<artist>:<track>
//	bc:<artist>:<track>
package sources

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	ParserKkdai = "kkdai"
	ParserYtdlp = "ytdlp"
)

// ErrUnsupportedURL is returned for links no source recognises.
var ErrUnsupportedURL = errors.New("unsupported URL, only YouTube, SoundCloud and Bandcamp links are supported")

// Source describes one song host.
type Source interface {
	// Kind is the uuri prefix ("yt", "sc", "bc").
	Kind() string
	// SourceName returns the human readable name.
	SourceName() string
	// UURI returns the unique URI for a song URL of this source.
	UURI(url string) (string, bool)
	// URL builds the canonical song URL from the uuri parts after the prefix.
	URL(parts []string) (string, error)
	// AvailableParsers lists the stream extractors in preference order.
	AvailableParsers() []string
}

var all = []Source{YouTube{}, SoundCloud{}, Bandcamp{}}

var listRegex = regexp.MustCompile(
	`^(https?://)?(www\.youtube\.com/.*[?&]list=.+|soundcloud\.com/[^/]+/sets/.+|[^.:/]+\.bandcamp\.com/album/.+)$`)

// All returns the known sources.
func All() []Source {
	return all
}

// IsURL reports whether s looks like a link rather than a search query.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.Contains(s, ".com/") || strings.Contains(s, "youtu.be/")
}

// IsList reports whether the URL points at a playlist, set or album.
func IsList(url string) bool {
	return listRegex.MatchString(strings.TrimSpace(url))
}

// MakeUURI returns the unique URI for a song URL.
func MakeUURI(url string) (string, bool) {
	url = strings.TrimSpace(url)
	for _, src := range all {
		if uuri, ok := src.UURI(url); ok {
			return uuri, true
		}
	}
	return "", false
}

// ForUURI returns the source responsible for a uuri.
func ForUURI(uuri string) (Source, error) {
	kind, _, _ := strings.Cut(uuri, ":")
	for _, src := range all {
		if src.Kind() == kind {
			return src, nil
		}
	}
	return nil, fmt.Errorf("unknown uuri %q", uuri)
}

// MakeURL rebuilds the canonical URL of a uuri.
func MakeURL(uuri string) (string, error) {
	src, err := ForUURI(uuri)
	if err != nil {
		return "", err
	}
	parts := strings.Split(uuri, ":")
	return src.URL(parts[1:])
}

// Canonical normalises a song URL through its uuri.
func Canonical(url string) (uuri, canonical string, err error) {
	uuri, ok := MakeUURI(url)
	if !ok {
		return "", "", ErrUnsupportedURL
	}
	canonical, err = MakeURL(uuri)
	return uuri, canonical, err
}

func wantParts(parts []string, n int) error {
	if len(parts) != n {
		return fmt.Errorf("malformed uuri: expected %d parts, got %d", n, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return errors.New("malformed uuri: empty part")
		}
	}
	return nil
}
