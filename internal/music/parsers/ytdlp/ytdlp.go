// Package ytdlp extracts tracks, playlists and live streams through the
// yt-dlp executable.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ddmbot/internal/music/parsers"
	"ddmbot/internal/music/sources"
)

// ErrNotInstalled is returned when the yt-dlp executable cannot be found.
var ErrNotInstalled = errors.New("yt-dlp executable was not found")

// Runner executes yt-dlp with the given arguments and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

type Parser struct {
	run Runner
}

// New returns a parser running the yt-dlp binary found in PATH.
func New() *Parser {
	return &Parser{run: execRunner("yt-dlp")}
}

// NewWithRunner returns a parser using a custom runner.
func NewWithRunner(run Runner) *Parser {
	return &Parser{run: run}
}

func (p *Parser) Name() string {
	return sources.ParserYtdlp
}

func execRunner(binary string) Runner {
	return func(ctx context.Context, args ...string) ([]byte, error) {
		path, err := exec.LookPath(binary)
		if err != nil {
			return nil, ErrNotInstalled
		}
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, path, args...)
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return nil, fmt.Errorf("yt-dlp: %s: %w", msg, err)
			}
			return nil, fmt.Errorf("yt-dlp: %w", err)
		}
		return out, nil
	}
}

type fragment struct {
	Duration float64 `json:"duration"`
}

type format struct {
	URL       string     `json:"url"`
	Vcodec    string     `json:"vcodec"`
	Acodec    string     `json:"acodec"`
	Fragments []fragment `json:"fragments,omitempty"`
}

type info struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    float64  `json:"duration"`
	URL         string   `json:"url"`
	WebpageURL  string   `json:"webpage_url"`
	Extractor   string   `json:"extractor"`
	IsLive      bool     `json:"is_live"`
	Formats     []format `json:"formats"`
}

type entry struct {
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	IEKey      string  `json:"ie_key"`
}

type playlist struct {
	Title   string  `json:"title"`
	Entries []entry `json:"entries"`
}

func (p *Parser) Track(ctx context.Context, pageURL string) (*parsers.TrackParse, error) {
	out, err := p.run(ctx, "-j", "-f", "bestaudio/best", "--no-playlist", pageURL)
	if err != nil {
		return nil, err
	}
	return parseInfo(out)
}

func (p *Parser) Playlist(ctx context.Context, listURL string) ([]parsers.TrackParse, error) {
	out, err := p.run(ctx, "-J", "--flat-playlist", listURL)
	if err != nil {
		return nil, err
	}
	return parsePlaylist(out)
}

// Search returns the first result of a YouTube search.
func (p *Parser) Search(ctx context.Context, query string) (*parsers.TrackParse, error) {
	out, err := p.run(ctx, "-j", "-f", "bestaudio/best", "ytsearch1:"+query)
	if err != nil {
		return nil, err
	}
	return parseInfo(out)
}

func parseInfo(raw []byte) (*parsers.TrackParse, error) {
	var i info
	if err := json.Unmarshal(raw, &i); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}

	// the root duration may be missing on fragmented formats
	if i.Duration == 0 && len(i.Formats) > 0 && len(i.Formats[0].Fragments) > 0 {
		i.Duration = i.Formats[0].Fragments[0].Duration
	}

	link := strings.TrimSpace(i.URL)
	if link == "" {
		// formats are listed from worst to best
		for _, f := range i.Formats {
			if f.URL != "" && f.Acodec != "none" {
				link = strings.TrimSpace(f.URL)
			}
		}
	}
	if link == "" {
		return nil, parsers.ErrNoAudio
	}

	return &parsers.TrackParse{
		URL:         i.WebpageURL,
		Title:       i.Title,
		Duration:    time.Duration(i.Duration * float64(time.Second)),
		StreamURL:   link,
		Description: i.Description,
		Extractor:   i.Extractor,
		IsLive:      i.IsLive,
	}, nil
}

func parsePlaylist(raw []byte) ([]parsers.TrackParse, error) {
	var pl playlist
	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}

	out := make([]parsers.TrackParse, 0, len(pl.Entries))
	for _, e := range pl.Entries {
		u := e.WebpageURL
		if u == "" {
			u = e.URL
		}
		if u == "" {
			continue
		}
		if e.IEKey == "Youtube" && !strings.Contains(u, "/") {
			u = "https://www.youtube.com/watch?v=" + u
		}
		out = append(out, parsers.TrackParse{
			URL:      u,
			Title:    e.Title,
			Duration: time.Duration(e.Duration * float64(time.Second)),
		})
	}
	return out, nil
}
