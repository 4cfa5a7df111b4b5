// Package music holds the commands that control playback and the DJ queue.
package music

import (
	"context"
	"fmt"
	"math"

	"ddmbot/internal/command"
	"ddmbot/internal/music/player"
	"ddmbot/internal/music/stream"

	"github.com/bwmarrin/discordgo"
)

const maxVolumePercent = int(stream.MaxVolume * 100)

type PlayerCommand struct{}

func (c *PlayerCommand) Name() string        { return "player" }
func (c *PlayerCommand) Description() string { return "Control the player mode, volume and status" }
func (c *PlayerCommand) Category() string    { return "🎵 Player" }

func (c *PlayerCommand) RequiresOperator(sub string) bool {
	switch sub {
	case "stop", "djmode", "stream", "title", "skip":
		return true
	}
	return false
}

func (c *PlayerCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := 0.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop the player",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "djmode",
				Description: "Play songs from the DJ queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stream",
				Description: "Play a live stream",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "url",
						Description: "Stream URL",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "title",
						Description: "Title shown instead of the one provided by the stream",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "title",
				Description: "Change the title of the current stream",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "title",
						Description: "New title",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current song without a vote",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Show or set the playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "percent",
						Description: "New volume in percent",
						MinValue:    &minVolume,
						MaxValue:    float64(maxVolumePercent),
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show what the player is doing",
			},
		},
	}
}

func (c *PlayerCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	p := sc.Deps.Player
	sub, opts := sc.Subcommand()

	switch sub {
	case "stop":
		p.SetStop(ctx)
		return sc.Whisper("**Player is stopping**")

	case "djmode":
		p.SetDJMode()
		return sc.Whisper("**Player is switching to the DJ mode**")

	case "stream":
		if err := p.SetStream(opts.String("url"), opts.String("title")); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisper("**Player is switching to the stream**")

	case "title":
		if err := p.SetStreamTitle(ctx, opts.String("title")); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisper("**Stream title was changed**")

	case "skip":
		if err := p.ForceSkip(); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisper("**Song will be skipped**")

	case "volume":
		return c.volume(sc, opts)

	case "status":
		return sc.Whisper(statusText(p.Snapshot()))
	}
	return sc.Whisperf("Unknown subcommand: %s", sub)
}

func (c *PlayerCommand) volume(sc *command.SlashInteractionContext, opts command.Options) error {
	p := sc.Deps.Player
	if !opts.Has("percent") {
		return sc.Whisperf("**Volume:** %d%%", int(math.Round(p.Volume()*100)))
	}
	if !sc.IsOperator() {
		return sc.Whisper("You must be an operator to change the volume")
	}

	percent := int(opts.Int("percent", 100))
	if percent < 0 || percent > maxVolumePercent {
		return sc.Whisperf("Volume must be between 0 and %d", maxVolumePercent)
	}
	p.SetVolume(float64(percent) / 100)
	if sc.Deps.Storage != nil {
		if err := sc.Deps.Storage.SetVolume(sc.Deps.GuildID, percent); err != nil {
			return fmt.Errorf("save volume: %w", err)
		}
	}
	return sc.Whisperf("**Volume was set to** %d%%", percent)
}

func statusText(s player.Snapshot) string {
	switch s.State {
	case player.Stopped:
		return "**Player is stopped**"
	case player.Streaming:
		return fmt.Sprintf("**Playing stream:** %s", s.StreamTitle)
	case player.DJWaiting:
		return "**Waiting for the first listener**"
	case player.DJCooldown:
		return "**Waiting for DJs**"
	case player.DJPlaying:
		if s.DJ == "" {
			return fmt.Sprintf("**Playing:** [%d] %s from the automatic playlist", s.SongID, s.Title)
		}
		return fmt.Sprintf("**Playing:** [%d] %s, **queued by** <@%s>", s.SongID, s.Title, s.DJ)
	}
	return s.State.String()
}
