package main

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"ddmbot/internal/discord"
	"ddmbot/internal/music/player"
	"ddmbot/internal/music/users"
)

func TestTransient(t *testing.T) {
	assert.True(t, transient(&discord.ConnectionError{Err: errors.New("dial")}))
	assert.True(t, transient(fmt.Errorf("run: %w", &net.OpError{Op: "dial", Err: errors.New("refused")})))
	assert.False(t, transient(errors.New("Specified text_channel cannot be found")))
	assert.False(t, transient(discord.ErrShutdownRequested))
}

func TestStreamStatus(t *testing.T) {
	info := users.Info{ListenerCount: 3, Direct: []string{"1"}}

	st := streamStatus(player.Snapshot{State: player.DJPlaying, Title: "Song"}, info)
	assert.Equal(t, "Song", st.Title)
	assert.Equal(t, 3, st.Listeners)
	assert.Equal(t, 1, st.DirectListeners)

	st = streamStatus(player.Snapshot{State: player.Streaming, Title: "ignored", StreamTitle: "Live"}, info)
	assert.Equal(t, "Live", st.Title)
	assert.Equal(t, player.Streaming.String(), st.State)
}

func TestRootFlags(t *testing.T) {
	root := newRootCmd()
	assert.NotNil(t, root.Flags().ShorthandLookup("c"))
	assert.NotNil(t, root.Flags().ShorthandLookup("l"))
	assert.Equal(t, defaultLogFile, root.Flags().Lookup("log-file").DefValue)
}
