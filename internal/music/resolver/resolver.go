// Package resolver turns user input (a song link, a playlist link or a search
// query) into storable tracks, and song links into playable media URLs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ddmbot/internal/database"
	"ddmbot/internal/logging"
	"ddmbot/internal/music/parsers"
	"ddmbot/internal/music/parsers/kkdai"
	"ddmbot/internal/music/parsers/ytdlp"
	"ddmbot/internal/music/sources"
	"ddmbot/pkg/util"
)

const (
	playlistWorkers   = 4
	untitledStream    = "<untitled stream>"
	maxPlaylistLength = 500
)

var (
	ErrNoParser       = errors.New("no parser available for this source")
	ErrStreamURL      = errors.New("Failed to extract stream URL, is the link valid?")
	ErrEmptyPlaylist  = errors.New("the playlist has no songs")
	ErrSearchNotFound = errors.New("could not find a YouTube video for the query")
)

// Searcher finds a YouTube video URL for a free text query.
type Searcher interface {
	SearchFirstVideoURL(ctx context.Context, query string) (string, error)
}

// StreamInfo describes a live stream to be played in stream mode.
type StreamInfo struct {
	URL       string
	StreamURL string
	Title     string
}

type Resolver struct {
	parsers  map[string]parsers.Parser
	searcher Searcher
	log      zerolog.Logger
}

// New wires the kkdai and yt-dlp parsers, kkdai using the optional proxy.
func New(youtubeProxy string) *Resolver {
	return NewWith(sources.NewYouTubeSearcher(), kkdai.New(youtubeProxy), ytdlp.New())
}

// NewWith builds a resolver from explicit parsers.
func NewWith(searcher Searcher, ps ...parsers.Parser) *Resolver {
	r := &Resolver{
		parsers:  make(map[string]parsers.Parser, len(ps)),
		searcher: searcher,
		log:      logging.Component("resolver"),
	}
	for _, p := range ps {
		r.parsers[p.Name()] = p
	}
	return r
}

// chain returns the parsers of a source in preference order.
func (r *Resolver) chain(src sources.Source) []parsers.Parser {
	var out []parsers.Parser
	for _, name := range src.AvailableParsers() {
		if p, ok := r.parsers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) sourceFor(url string) (sources.Source, string, error) {
	uuri, ok := sources.MakeUURI(url)
	if !ok {
		return nil, "", sources.ErrUnsupportedURL
	}
	src, err := sources.ForUURI(uuri)
	return src, uuri, err
}

// track asks each parser of the source in turn until one succeeds.
func (r *Resolver) track(ctx context.Context, src sources.Source, url string) (*parsers.TrackParse, error) {
	chain := r.chain(src)
	if len(chain) == 0 {
		return nil, ErrNoParser
	}

	var lastErr error
	for _, p := range chain {
		t, err := p.Track(ctx, url)
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn().Err(err).Str("parser", p.Name()).Str("url", url).Msg("parser failed, trying next")
		lastErr = err
	}
	return nil, lastErr
}

// Resolve returns the tracks behind the input.
func (r *Resolver) Resolve(ctx context.Context, input string) ([]database.Track, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("nothing to resolve")
	}

	if !sources.IsURL(input) {
		if r.searcher == nil {
			return nil, ErrSearchNotFound
		}
		found, err := r.searcher.SearchFirstVideoURL(ctx, input)
		if err != nil {
			r.log.Debug().Err(err).Str("query", input).Msg("search failed")
			return nil, ErrSearchNotFound
		}
		input = found
	}

	if sources.IsList(input) {
		return r.resolveList(ctx, input)
	}

	t, err := r.resolveOne(ctx, input)
	if err != nil {
		return nil, err
	}
	return []database.Track{*t}, nil
}

func (r *Resolver) resolveOne(ctx context.Context, url string) (*database.Track, error) {
	src, uuri, err := r.sourceFor(url)
	if err != nil {
		return nil, err
	}
	canonical, err := sources.MakeURL(uuri)
	if err != nil {
		return nil, err
	}
	t, err := r.track(ctx, src, canonical)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", canonical, err)
	}
	return &database.Track{
		UURI:     uuri,
		Title:    t.Title,
		Duration: int(t.Duration.Seconds()),
	}, nil
}

func (r *Resolver) listParsers(url string) []parsers.Parser {
	if _, ok := sources.YouTubePlaylistID(url); ok && strings.Contains(url, "youtube.com") {
		return r.chain(sources.YouTube{})
	}
	if p, ok := r.parsers[sources.ParserYtdlp]; ok {
		return []parsers.Parser{p}
	}
	return nil
}

func (r *Resolver) resolveList(ctx context.Context, url string) ([]database.Track, error) {
	chain := r.listParsers(url)
	if len(chain) == 0 {
		return nil, ErrNoParser
	}

	var (
		entries []parsers.TrackParse
		lastErr error
	)
	for _, p := range chain {
		entries, lastErr = p.Playlist(ctx, url)
		if lastErr == nil {
			break
		}
		r.log.Warn().Err(lastErr).Str("parser", p.Name()).Msg("playlist extraction failed, trying next")
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if len(entries) > maxPlaylistLength {
		entries = entries[:maxPlaylistLength]
	}

	// flat listings lack details, fetch them per entry; failures only drop the entry
	tracks, err := util.Map(ctx, entries, playlistWorkers, func(ctx context.Context, e parsers.TrackParse) (*database.Track, error) {
		if uuri, ok := sources.MakeUURI(e.URL); ok && e.Title != "" && e.Duration > 0 {
			return &database.Track{UURI: uuri, Title: e.Title, Duration: int(e.Duration.Seconds())}, nil
		}
		t, err := r.resolveEntry(ctx, e.URL)
		if err != nil {
			r.log.Warn().Err(err).Str("url", e.URL).Msg("skipping playlist entry")
			return nil, nil
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]database.Track, 0, len(tracks))
	for _, t := range tracks {
		if t != nil {
			out = append(out, *t)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyPlaylist
	}
	return out, nil
}

// resolveEntry handles playlist entries whose URL may not be canonical, such
// as SoundCloud API links.
func (r *Resolver) resolveEntry(ctx context.Context, url string) (*database.Track, error) {
	if _, _, err := r.sourceFor(url); err == nil {
		return r.resolveOne(ctx, url)
	}
	p, ok := r.parsers[sources.ParserYtdlp]
	if !ok {
		return nil, ErrNoParser
	}
	t, err := p.Track(ctx, url)
	if err != nil {
		return nil, err
	}
	uuri, ok := sources.MakeUURI(t.URL)
	if !ok {
		return nil, sources.ErrUnsupportedURL
	}
	return &database.Track{UURI: uuri, Title: t.Title, Duration: int(t.Duration.Seconds())}, nil
}

// StreamURL returns a directly playable media URL for a song link.
func (r *Resolver) StreamURL(ctx context.Context, songURL string) (string, error) {
	src, _, err := r.sourceFor(songURL)
	if err != nil {
		return "", err
	}
	t, err := r.track(ctx, src, songURL)
	if err != nil {
		return "", err
	}
	return t.StreamURL, nil
}

// StreamInfo extracts an arbitrary live stream for stream mode. Twitch
// streams are titled by their description.
func (r *Resolver) StreamInfo(ctx context.Context, url string) (*StreamInfo, error) {
	p, ok := r.parsers[sources.ParserYtdlp]
	if !ok {
		return nil, ErrNoParser
	}
	t, err := p.Track(ctx, strings.TrimSpace(url))
	if err != nil {
		r.log.Warn().Err(err).Str("url", url).Msg("stream extraction failed")
		return nil, ErrStreamURL
	}
	if t.StreamURL == "" {
		return nil, ErrStreamURL
	}

	title := t.Title
	if strings.HasPrefix(strings.ToLower(t.Extractor), "twitch") {
		title = t.Description
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = untitledStream
	}
	return &StreamInfo{URL: url, StreamURL: t.StreamURL, Title: title}, nil
}
