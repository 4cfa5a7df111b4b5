package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

var (
	ytRegex     = regexp.MustCompile(`^(https?://)?(www\.)?youtu(\.be/|be\.com/.+?[?&]v=)(?P<id>[a-zA-Z0-9_-]+)`)
	ytListRegex = regexp.MustCompile(`[?&]list=([a-zA-Z0-9_-]+)`)

	searchPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	ErrNoVideoMatch = errors.New("no video found for the given title")
)

type YouTube struct{}

func (YouTube) Kind() string       { return "yt" }
func (YouTube) SourceName() string { return "YouTube" }

func (YouTube) AvailableParsers() []string {
	return []string{ParserKkdai, ParserYtdlp}
}

func (YouTube) UURI(u string) (string, bool) {
	m := ytRegex.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return "yt:" + m[ytRegex.SubexpIndex("id")], true
}

func (YouTube) URL(parts []string) (string, error) {
	if err := wantParts(parts, 1); err != nil {
		return "", err
	}
	return "https://www.youtube.com/watch?v=" + parts[0], nil
}

// YouTubePlaylistID extracts the list parameter of a playlist URL.
func YouTubePlaylistID(u string) (string, bool) {
	m := ytListRegex.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// YouTubeSearcher finds videos by title by scraping the results page.
type YouTubeSearcher struct {
	BaseURL string
	Client  *http.Client
}

func NewYouTubeSearcher() *YouTubeSearcher {
	return &YouTubeSearcher{
		BaseURL: "https://www.youtube.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SearchFirstVideoURL returns the URL of the best match for the query.
func (r *YouTubeSearcher) SearchFirstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", r.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("YouTube search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := searchPattern.FindStringSubmatch(string(body))
	if len(matches) > 1 {
		return "https://www.youtube.com/watch?v=" + matches[1], nil
	}
	return "", ErrNoVideoMatch
}
