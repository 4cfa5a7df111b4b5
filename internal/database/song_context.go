package database

import (
	"errors"
	"sync"
)

// ErrNotVoted is returned when a user withdraws a skip vote they never cast.
var ErrNotVoted = errors.New("you haven't voted to skip this song")

// SongContext is the song being played along with its audience. DJ is empty
// for songs picked by the automatic playlist.
type SongContext struct {
	DJ        string
	SongID    int64
	Title     string
	URL       string
	StreamURL string
	Duration  int

	mu           sync.Mutex
	listeners    map[string]struct{}
	everListened map[string]struct{}
	skipVoters   map[string]struct{}
}

// NewSongContext starts tracking the audience of a song.
func NewSongContext(dj string, song *Song, streamURL string) *SongContext {
	return &SongContext{
		DJ:           dj,
		SongID:       song.ID,
		Title:        song.Title,
		URL:          song.URL(),
		StreamURL:    streamURL,
		Duration:     song.Duration,
		listeners:    make(map[string]struct{}),
		everListened: make(map[string]struct{}),
		skipVoters:   make(map[string]struct{}),
	}
}

// UpdateListeners replaces the current audience. Everyone who was ever
// present is remembered for the statistics.
func (c *SongContext) UpdateListeners(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.listeners[id] = struct{}{}
		c.everListened[id] = struct{}{}
	}
}

// SkipVote records a vote and returns the current counts.
func (c *SongContext) SkipVote(userID string) (listeners, votes int) {
	c.mu.Lock()
	c.skipVoters[userID] = struct{}{}
	c.mu.Unlock()
	return c.Counts()
}

// SkipUnvote withdraws a vote.
func (c *SongContext) SkipUnvote(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.skipVoters[userID]; !ok {
		return ErrNotVoted
	}
	delete(c.skipVoters, userID)
	return nil
}

// Counts returns the current listener count and the number of skip voters
// still listening.
func (c *SongContext) Counts() (listeners, votes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.skipVoters {
		if _, ok := c.listeners[id]; ok {
			votes++
		}
	}
	return len(c.listeners), votes
}

func (c *SongContext) statistics() (listeners []string, votes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	listeners = make([]string, 0, len(c.everListened))
	for id := range c.everListened {
		listeners = append(listeners, id)
	}
	return listeners, len(c.skipVoters)
}
