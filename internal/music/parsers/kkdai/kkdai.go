// Package kkdai extracts YouTube videos and playlists with the kkdai client.
package kkdai

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"ddmbot/internal/logging"
	"ddmbot/internal/music/parsers"
	"ddmbot/internal/music/sources"
)

type Parser struct {
	client *youtube.Client
	log    zerolog.Logger
}

// New returns a parser using the optional http, https, socks4 or socks5 proxy.
func New(proxyStr string) *Parser {
	log := logging.Component("kkdai")
	return &Parser{
		client: newClient(proxyStr, log),
		log:    log,
	}
}

func (p *Parser) Name() string {
	return sources.ParserKkdai
}

func newClient(proxyStr string, log zerolog.Logger) *youtube.Client {
	direct := &youtube.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	if proxyStr == "" {
		return direct
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Error().Err(err).Msg("invalid proxy format, going without proxy")
		return direct
	}

	var transport *http.Transport

	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			log.Error().Err(err).Msg("SOCKS5 dialer error")
			break
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "socks4":
		// the socks4 scheme is registered by the go-socks4 import
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			log.Error().Err(err).Msg("SOCKS4 dialer error")
			break
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		log.Error().Str("scheme", proxyURL.Scheme).Msg("unsupported proxy scheme")
	}

	if transport == nil {
		log.Warn().Msg("falling back to a direct YouTube client")
		return direct
	}

	log.Info().Str("scheme", proxyURL.Scheme).Str("host", proxyURL.Host).Msg("using proxy for YouTube")
	return &youtube.Client{
		HTTPClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

func (p *Parser) Track(ctx context.Context, videoURL string) (*parsers.TrackParse, error) {
	video, err := p.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("youtube client error: %w", err)
	}

	formats := bestAudioFirst(video.Formats.WithAudioChannels())
	if len(formats) == 0 {
		return nil, parsers.ErrNoAudio
	}

	link, err := p.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, fmt.Errorf("get stream URL error: %w", err)
	}

	return &parsers.TrackParse{
		URL:         "https://www.youtube.com/watch?v=" + video.ID,
		Title:       video.Title,
		Duration:    video.Duration,
		StreamURL:   link,
		Description: video.Description,
		Extractor:   "youtube",
	}, nil
}

func (p *Parser) Playlist(ctx context.Context, listURL string) ([]parsers.TrackParse, error) {
	playlist, err := p.client.GetPlaylistContext(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("youtube playlist error: %w", err)
	}

	out := make([]parsers.TrackParse, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		out = append(out, parsers.TrackParse{
			URL:       "https://www.youtube.com/watch?v=" + entry.ID,
			Title:     entry.Title,
			Duration:  entry.Duration,
			Extractor: "youtube",
		})
	}
	p.log.Debug().Str("playlist", playlist.Title).Int("entries", len(out)).Msg("playlist extracted")
	return out, nil
}

// bestAudioFirst prefers audio-only formats, then higher bitrates.
func bestAudioFirst(formats youtube.FormatList) youtube.FormatList {
	sorted := append(youtube.FormatList(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := sorted[i].Width == 0, sorted[j].Width == 0
		if ai != aj {
			return ai
		}
		return sorted[i].Bitrate > sorted[j].Bitrate
	})
	return sorted
}
