// Package playlist holds the commands users manage their playlists with.
package playlist

import (
	"context"
	"fmt"

	"ddmbot/internal/command"
	"ddmbot/internal/logging"

	"github.com/bwmarrin/discordgo"
)

type PlaylistCommand struct{}

func (c *PlaylistCommand) Name() string                 { return "playlist" }
func (c *PlaylistCommand) Description() string          { return "Manage your playlists" }
func (c *PlaylistCommand) Category() string             { return "📜 Playlists" }
func (c *PlaylistCommand) RequiresOperator(string) bool { return false }

func nameOption(required bool, desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: desc,
		Required:    required,
		MaxLength:   32,
	}
}

func startOption() *discordgo.ApplicationCommandOption {
	minStart := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "start",
		Description: "Position of the first listed song",
		MinValue:    &minStart,
	}
}

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

func (c *PlaylistCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("active", "Show your active playlist"),
			sub("create", "Create a playlist and make it active", nameOption(true, "Playlist name")),
			sub("clear", "Remove every song from a playlist", nameOption(false, "Playlist name, the active one if omitted")),
			sub("list", "List your playlists or the songs of one of them",
				nameOption(false, "Playlist to show the songs of"), startOption()),
			sub("peek", "Show the songs of your active playlist", startOption()),
			sub("remove", "Delete a playlist", nameOption(true, "Playlist name")),
			sub("repeat", "Choose whether played songs are repeated or removed",
				nameOption(true, "Playlist name"),
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "policy",
					Description: "on, true, 1, repeat or off, false, 0, remove",
					Required:    true,
				}),
			sub("switch", "Make a playlist active", nameOption(true, "Playlist name")),
			sub("shuffle", "Shuffle the songs of a playlist", nameOption(false, "Playlist name, the active one if omitted")),
			sub("add", "Add songs from a link to a playlist",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "link",
					Description: "YouTube, SoundCloud or Bandcamp link, or a YouTube search",
					Required:    true,
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "playlist",
					Description: "Target playlist, the active one if omitted",
					MaxLength:   32,
				},
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "front",
					Description: "Insert the songs at the front of the playlist",
				}),
		},
	}
}

func (c *PlaylistCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	db := sc.Deps.DB
	user := sc.UserID()
	sub, opts := sc.Subcommand()
	name := opts.String("name")

	switch sub {
	case "active":
		p, err := db.ActivePlaylist(ctx, user)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Active playlist:** %s", p.Name)

	case "create":
		if _, err := db.CreatePlaylist(ctx, user, name); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**New playlist with the name** %s **was created**\n"+
			"Your active playlist was switched  to the newly created one.", name)

	case "clear":
		cleared, err := db.ClearPlaylist(ctx, user, name)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Playlist** %s **was cleared**", cleared)

	case "list":
		if name == "" && !opts.Has("start") {
			items, err := db.ListPlaylists(ctx, user)
			if err != nil {
				return err
			}
			return sc.Whisper(listText(items))
		}
		return c.show(ctx, sc, name, int(opts.Int("start", 1)))

	case "peek":
		return c.show(ctx, sc, "", int(opts.Int("start", 1)))

	case "remove":
		if err := db.RemovePlaylist(ctx, user, name); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Playlist** %s **was removed**", name)

	case "repeat":
		repeat, ok := parseRepeat(opts.String("policy"))
		if !ok {
			return sc.Whisper(repeatHelp())
		}
		updated, err := db.SetRepeat(ctx, user, name, repeat)
		if err != nil {
			return sc.Fail(err)
		}
		if repeat {
			return sc.Whisperf("**Songs from the playlist** %s **will be repeated after playing**", updated)
		}
		return sc.Whisperf("**Songs from the playlist** %s **will be removed after playing**", updated)

	case "switch":
		if err := db.SetActive(ctx, user, name); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Playlist** %s **was set as active**", name)

	case "shuffle":
		shuffled, err := db.ShufflePlaylist(ctx, user, name)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Playlist** %s **was shuffled**", shuffled)

	case "add":
		return c.add(ctx, sc, opts)
	}
	return sc.Whisperf("Unknown subcommand: %s", sub)
}

func (c *PlaylistCommand) show(ctx context.Context, sc *command.SlashInteractionContext, name string, start int) error {
	if start < 1 {
		start = 1
	}
	page, err := sc.Deps.DB.ShowPlaylist(ctx, sc.UserID(), name, start-1, PageSize)
	if err != nil {
		return sc.Fail(err)
	}
	return sc.Whisper(showText(page, start))
}

// add resolves the link after deferring the reply since playlist links can
// take a while to expand.
func (c *PlaylistCommand) add(ctx context.Context, sc *command.SlashInteractionContext, opts command.Options) error {
	log := logging.Component("playlist")
	if err := sc.Reply.Defer(sc.Event, true); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}

	followup := func(text string) error { return sc.Reply.Followup(sc.Event, text, true) }

	tracks, err := sc.Deps.Resolver.Resolve(ctx, opts.String("link"))
	if err != nil {
		if msg, ok := command.UserMessage(err); ok {
			return followup(msg)
		}
		log.Warn().Err(err).Str("link", opts.String("link")).Msg("Failed to resolve link")
		return followup("Failed to process the link, is it valid?")
	}

	res, err := sc.Deps.DB.AddSongs(ctx, sc.UserID(), opts.String("playlist"), tracks, opts.Bool("front"))
	if err != nil {
		if msg, ok := command.UserMessage(err); ok {
			return followup(msg)
		}
		return err
	}
	log.Info().Str("user", sc.UserID()).Str("playlist", res.Playlist).Int("added", res.Added).Msg("Songs added")
	return followup(addText(res))
}
