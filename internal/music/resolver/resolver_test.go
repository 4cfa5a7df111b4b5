package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/music/parsers"
	"ddmbot/internal/music/sources"
)

type fakeParser struct {
	name     string
	tracks   map[string]*parsers.TrackParse
	lists    map[string][]parsers.TrackParse
	err      error
	mu       sync.Mutex
	requests []string
}

func (f *fakeParser) Name() string { return f.name }

func (f *fakeParser) Track(_ context.Context, url string) (*parsers.TrackParse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, url)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tracks[url]
	if !ok {
		return nil, errors.New("unknown url " + url)
	}
	return t, nil
}

func (f *fakeParser) Playlist(_ context.Context, url string) ([]parsers.TrackParse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[url], nil
}

type fakeSearcher struct {
	url string
	err error
}

func (f fakeSearcher) SearchFirstVideoURL(context.Context, string) (string, error) {
	return f.url, f.err
}

const ytURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestResolveSingleFallsBackToNextParser(t *testing.T) {
	kk := &fakeParser{name: sources.ParserKkdai, err: errors.New("blocked")}
	yd := &fakeParser{name: sources.ParserYtdlp, tracks: map[string]*parsers.TrackParse{
		ytURL: {Title: "Never", Duration: 213 * time.Second, StreamURL: "media"},
	}}
	r := NewWith(nil, kk, yd)

	tracks, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "yt:dQw4w9WgXcQ", tracks[0].UURI)
	assert.Equal(t, "Never", tracks[0].Title)
	assert.Equal(t, 213, tracks[0].Duration)
	assert.Equal(t, []string{ytURL}, kk.requests)

	media, err := r.StreamURL(context.Background(), ytURL)
	require.NoError(t, err)
	assert.Equal(t, "media", media)
}

func TestResolveSearch(t *testing.T) {
	kk := &fakeParser{name: sources.ParserKkdai, tracks: map[string]*parsers.TrackParse{
		ytURL: {Title: "Never", Duration: time.Minute},
	}}
	r := NewWith(fakeSearcher{url: ytURL}, kk)

	tracks, err := r.Resolve(context.Background(), "rick astley never gonna")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	r = NewWith(fakeSearcher{err: errors.New("nope")}, kk)
	_, err = r.Resolve(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrSearchNotFound)
}

func TestResolveUnsupported(t *testing.T) {
	r := NewWith(nil)
	_, err := r.Resolve(context.Background(), "https://vimeo.com/1")
	assert.ErrorIs(t, err, sources.ErrUnsupportedURL)

	_, err = r.Resolve(context.Background(), "https://soundcloud.com/a/b")
	assert.Error(t, err)
}

func TestResolveList(t *testing.T) {
	list := "https://soundcloud.com/artist/sets/album"
	yd := &fakeParser{
		name: sources.ParserYtdlp,
		lists: map[string][]parsers.TrackParse{list: {
			{URL: "https://soundcloud.com/artist/one", Title: "One", Duration: 100 * time.Second},
			{URL: "https://soundcloud.com/artist/two"},
			{URL: "https://api.soundcloud.com/tracks/3"},
			{URL: "https://soundcloud.com/artist/broken"},
		}},
		tracks: map[string]*parsers.TrackParse{
			"https://soundcloud.com/artist/two":   {Title: "Two", Duration: 50 * time.Second},
			"https://api.soundcloud.com/tracks/3": {URL: "https://soundcloud.com/artist/three", Title: "Three", Duration: 30 * time.Second},
		},
	}
	r := NewWith(nil, yd)

	tracks, err := r.Resolve(context.Background(), list)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "sc:artist:one", tracks[0].UURI)
	assert.Equal(t, "sc:artist:two", tracks[1].UURI)
	assert.Equal(t, "sc:artist:three", tracks[2].UURI)
}

func TestStreamInfo(t *testing.T) {
	yd := &fakeParser{name: sources.ParserYtdlp, tracks: map[string]*parsers.TrackParse{
		"https://twitch.tv/x":   {Title: "x (live)", Description: "Playing records", Extractor: "twitch:stream", StreamURL: "m1"},
		"https://radio/live":    {StreamURL: "m2"},
		"https://radio/nothing": {Title: "silent"},
	}}
	r := NewWith(nil, yd)

	info, err := r.StreamInfo(context.Background(), "https://twitch.tv/x")
	require.NoError(t, err)
	assert.Equal(t, "Playing records", info.Title)

	info, err = r.StreamInfo(context.Background(), "https://radio/live")
	require.NoError(t, err)
	assert.Equal(t, "<untitled stream>", info.Title)

	_, err = r.StreamInfo(context.Background(), "https://radio/nothing")
	assert.ErrorIs(t, err, ErrStreamURL)

	_, err = r.StreamInfo(context.Background(), "https://unknown")
	assert.EqualError(t, err, "Failed to extract stream URL, is the link valid?")
}
