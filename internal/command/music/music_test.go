package music

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/command/commandtest"
	"ddmbot/internal/music/player"
)

func TestPlayerOperatorSubcommands(t *testing.T) {
	c := &PlayerCommand{}
	for _, sub := range []string{"stop", "djmode", "stream", "title", "skip"} {
		assert.True(t, c.RequiresOperator(sub), sub)
	}
	assert.False(t, c.RequiresOperator("status"))
	assert.False(t, c.RequiresOperator("volume"))
}

func TestPlayerStop(t *testing.T) {
	env := commandtest.NewEnv(t)
	sc, rec := env.Context(commandtest.Invoke{Command: "player", Subcommand: "stop", UserID: "1", Operator: true})

	require.NoError(t, (&PlayerCommand{}).Run(context.Background(), sc))
	assert.Equal(t, []string{"stop"}, env.Player.Calls)
	assert.Equal(t, "**Player is stopping**", rec.Last().Text)
	assert.True(t, rec.Last().Ephemeral)
}

func TestPlayerTitleOutsideStream(t *testing.T) {
	env := commandtest.NewEnv(t)
	env.Player.Err = player.ErrTitleNotStreaming
	sc, rec := env.Context(commandtest.Invoke{
		Command: "player", Subcommand: "title", UserID: "1", Operator: true,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{commandtest.Opt("title", "Live")},
	})

	require.NoError(t, (&PlayerCommand{}).Run(context.Background(), sc))
	assert.Equal(t, "Title can be changed only in the streaming mode", rec.Last().Text)
}

func TestPlayerVolume(t *testing.T) {
	env := commandtest.NewEnv(t)

	sc, rec := env.Context(commandtest.Invoke{Command: "player", Subcommand: "volume", UserID: "1"})
	require.NoError(t, (&PlayerCommand{}).Run(context.Background(), sc))
	assert.Equal(t, "**Volume:** 100%", rec.Last().Text)

	sc, rec = env.Context(commandtest.Invoke{
		Command: "player", Subcommand: "volume", UserID: "1",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{commandtest.Opt("percent", 50)},
	})
	require.NoError(t, (&PlayerCommand{}).Run(context.Background(), sc))
	assert.Equal(t, "You must be an operator to change the volume", rec.Last().Text)

	sc, rec = env.Context(commandtest.Invoke{
		Command: "player", Subcommand: "volume", UserID: "1", Operator: true,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{commandtest.Opt("percent", 50)},
	})
	require.NoError(t, (&PlayerCommand{}).Run(context.Background(), sc))
	assert.Equal(t, "**Volume was set to** 50%", rec.Last().Text)
	assert.InDelta(t, 0.5, env.Player.Volume(), 1e-9)

	saved, ok, err := env.Deps.Storage.Volume(commandtest.GuildID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50, saved)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "**Player is stopped**", statusText(player.Snapshot{State: player.Stopped}))
	assert.Equal(t, "**Playing stream:** Radio", statusText(player.Snapshot{State: player.Streaming, StreamTitle: "Radio"}))
	assert.Equal(t, "**Playing:** [3] Song, **queued by** <@7>",
		statusText(player.Snapshot{State: player.DJPlaying, SongID: 3, Title: "Song", DJ: "7"}))
	assert.Equal(t, "**Playing:** [3] Song from the automatic playlist",
		statusText(player.Snapshot{State: player.DJPlaying, SongID: 3, Title: "Song"}))
}

func TestSkipVote(t *testing.T) {
	env := commandtest.NewEnv(t)
	sc, rec := env.Context(commandtest.Invoke{Command: "skip", UserID: "5"})
	require.NoError(t, (&SkipCommand{}).Run(context.Background(), sc))
	assert.Equal(t, []string{"skip:5"}, env.Player.Calls)
	assert.Equal(t, "**Your skip vote was counted**", rec.Last().Text)

	env.Player.Err = player.ErrNotVoted
	sc, rec = env.Context(commandtest.Invoke{Command: "unskip", UserID: "5"})
	require.NoError(t, (&UnskipCommand{}).Run(context.Background(), sc))
	assert.Equal(t, "You haven't voted to skip", rec.Last().Text)
}

func TestQueueJoinLeave(t *testing.T) {
	env := commandtest.NewEnv(t)
	ctx := context.Background()
	q := &QueueCommand{}

	sc, rec := env.Context(commandtest.Invoke{Command: "queue", Subcommand: "join", UserID: "1"})
	require.NoError(t, q.Run(ctx, sc))
	assert.Equal(t, "You must be listening to join the DJ queue", rec.Last().Text)

	require.NoError(t, env.Deps.Users.AddListener("1", false))
	require.NoError(t, env.Deps.Users.AddListener("2", true))

	for _, id := range []string{"1", "2"} {
		sc, rec = env.Context(commandtest.Invoke{Command: "queue", Subcommand: "join", UserID: id})
		require.NoError(t, q.Run(ctx, sc))
		assert.Equal(t, "**You have joined the DJ queue**", rec.Last().Text)
	}

	sc, rec = env.Context(commandtest.Invoke{Command: "queue", Subcommand: "list", UserID: "1"})
	require.NoError(t, q.Run(ctx, sc))
	assert.Equal(t, "**DJ queue (2):** <@1> -> <@2>", rec.Last().Text)

	sc, rec = env.Context(commandtest.Invoke{
		Command: "queue", Subcommand: "kick", UserID: "1", Operator: true,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{commandtest.Opt("user", "2")},
	})
	require.NoError(t, q.Run(ctx, sc))
	assert.Equal(t, "**User** <@2> **was removed from the DJ queue**", rec.Last().Text)
	assert.Len(t, env.Whisperer.Messages["2"], 1)

	sc, rec = env.Context(commandtest.Invoke{Command: "queue", Subcommand: "leave", UserID: "1"})
	require.NoError(t, q.Run(ctx, sc))
	assert.Equal(t, "**You have left the DJ queue**", rec.Last().Text)
	assert.Equal(t, "**DJ queue is empty**", queueText(env.Deps.Users.Queue()))
}
