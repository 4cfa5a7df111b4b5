// Package library holds the commands that inspect and curate the song
// library and its users.
package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ddmbot/internal/command"
	"ddmbot/internal/database"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

const searchLimit = 20

type SongCommand struct{}

func (c *SongCommand) Name() string        { return "song" }
func (c *SongCommand) Description() string { return "Look up and curate songs in the library" }
func (c *SongCommand) Category() string    { return "💿 Songs" }

func (c *SongCommand) RequiresOperator(sub string) bool {
	switch sub {
	case "blacklist", "unblacklist", "merge", "rename", "failed":
		return true
	}
	return false
}

func idOption(name, desc string) *discordgo.ApplicationCommandOption {
	minID := 1.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: desc,
		Required:    true,
		MinValue:    &minID,
	}
}

func (c *SongCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Show details of a song",
				Options:     []*discordgo.ApplicationCommandOption{idOption("id", "Song ID")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "search",
				Description: "Search songs by title",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Words the title contains",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "blacklist",
				Description: "Prevent a song from being played",
				Options:     []*discordgo.ApplicationCommandOption{idOption("id", "Song ID")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unblacklist",
				Description: "Allow a blacklisted song again",
				Options:     []*discordgo.ApplicationCommandOption{idOption("id", "Song ID")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "merge",
				Description: "Mark a song as a duplicate of another one",
				Options: []*discordgo.ApplicationCommandOption{
					idOption("duplicate", "ID of the duplicate song"),
					idOption("into", "ID of the song to keep"),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "rename",
				Description: "Change the title of a song",
				Options: []*discordgo.ApplicationCommandOption{
					idOption("id", "Song ID"),
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
				Name:        "failed",
				Description: "List songs that failed to play",
			},
		},
	}
}

func (c *SongCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	db := sc.Deps.DB
	sub, opts := sc.Subcommand()
	id := opts.Int("id", 0)

	switch sub {
	case "info":
		song, err := db.Song(ctx, id)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Reply.RespondEmbed(sc.Event, songEmbed(song), true)

	case "search":
		songs, err := db.SearchSongs(ctx, opts.String("query"), searchLimit)
		if err != nil {
			return err
		}
		if len(songs) == 0 {
			return sc.Whisper("**No songs match the query**")
		}
		return sc.Whisper(fmt.Sprintf("**Found %d song(s):**\n", len(songs)) + songLines(songs))

	case "blacklist", "unblacklist":
		song, err := db.SetBlacklisted(ctx, id, sub == "blacklist")
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Song** [%d] %s **was %sed**", song.ID, song.Title, sub)

	case "merge":
		dup, into := opts.Int("duplicate", 0), opts.Int("into", 0)
		if dup == into {
			return sc.Whisper("A song cannot be merged into itself")
		}
		song, err := db.MergeSongs(ctx, dup, into)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Song** [%d] **was merged into** [%d] %s", dup, song.ID, song.Title)

	case "rename":
		title := strings.TrimSpace(opts.String("title"))
		if title == "" {
			return sc.Whisper("Title must not be empty")
		}
		song, err := db.RenameSong(ctx, id, title)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**Song** [%d] **was renamed to** %s", song.ID, song.Title)

	case "failed":
		songs, err := db.FailedSongs(ctx)
		if err != nil {
			return err
		}
		if len(songs) == 0 {
			return sc.Whisper("**There are no failed songs**")
		}
		return sc.Whisper(fmt.Sprintf("**%d failed song(s):**\n", len(songs)) + songLines(songs))
	}
	return sc.Whisperf("Unknown subcommand: %s", sub)
}

func songLines(songs []*database.Song) string {
	lines := make([]string, len(songs))
	for i, s := range songs {
		lines[i] = fmt.Sprintf(" **>** [%d] %s", s.ID, s.Title)
	}
	return strings.Join(lines, "\n")
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), seconds%60)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func songEmbed(s *database.Song) *discordgo.MessageEmbed {
	lastPlayed := "never"
	if !s.LastPlayed.IsZero() && s.LastPlayed.Unix() > 0 {
		lastPlayed = fmt.Sprintf("<t:%d:R>", s.LastPlayed.Unix())
	}

	e := embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetTitle(fmt.Sprintf("[%d] %s", s.ID, s.Title)).
		SetDescription(s.URL()).
		AddField("Duration", formatDuration(s.Duration)).
		AddField("Last played", lastPlayed).
		AddField("Credits", strconv.Itoa(s.CreditCount)).
		AddField("Listeners", strconv.Itoa(s.ListenerCount)).
		AddField("Skip votes", strconv.Itoa(s.SkipVoteCount)).
		AddField("Blacklisted", yesNo(s.IsBlacklisted)).
		AddField("Failed", yesNo(s.HasFailed))
	if s.DuplicateID != 0 {
		e = e.AddField("Duplicate of", strconv.FormatInt(s.DuplicateID, 10))
	}
	return e.InlineAllFields().MessageEmbed
}
