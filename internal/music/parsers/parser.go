// Package parsers defines the extractors that turn song page URLs into
// metadata and directly playable media URLs.
package parsers

import (
	"context"
	"errors"
	"time"
)

// ErrNoAudio is returned when a page has no playable audio format.
var ErrNoAudio = errors.New("no audio formats found")

// TrackParse is what an extractor learned about a page.
type TrackParse struct {
	URL         string
	Title       string
	Duration    time.Duration
	StreamURL   string
	Description string
	Extractor   string
	IsLive      bool
}

// Parser extracts tracks from a host.
type Parser interface {
	Name() string
	// Track returns the metadata and media URL of a single page.
	Track(ctx context.Context, url string) (*TrackParse, error)
	// Playlist lists the entries of a playlist page. Entries may lack
	// duration or title when the host only offers a flat listing.
	Playlist(ctx context.Context, url string) ([]TrackParse, error)
}
