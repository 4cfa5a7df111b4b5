package library

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ddmbot/internal/command"
	"ddmbot/internal/database"
	"ddmbot/internal/music/users"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

type UserCommand struct{}

func (c *UserCommand) Name() string        { return "user" }
func (c *UserCommand) Description() string { return "Show user statistics or manage the ignore list" }
func (c *UserCommand) Category() string    { return "👥 Users" }

func (c *UserCommand) RequiresOperator(sub string) bool {
	return sub == "ignore" || sub == "unignore"
}

func userOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: "Target user",
		Required:    required,
	}
}

func (c *UserCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Show statistics of a user, yourself by default",
				Options:     []*discordgo.ApplicationCommandOption{userOption(false)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ignore",
				Description: "Ignore every command and listening of a user",
				Options:     []*discordgo.ApplicationCommandOption{userOption(true)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unignore",
				Description: "Stop ignoring a user",
				Options:     []*discordgo.ApplicationCommandOption{userOption(true)},
			},
		},
	}
}

func (c *UserCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	db := sc.Deps.DB
	sub, opts := sc.Subcommand()
	target := opts.User("user")

	switch sub {
	case "info":
		if target == "" {
			target = sc.UserID()
		}
		info, err := db.UserInfo(ctx, target)
		if err != nil {
			return sc.Fail(err)
		}
		return sc.Reply.RespondEmbed(sc.Event, userEmbed(info, sc.Deps.Users), true)

	case "ignore":
		if target == sc.UserID() {
			return sc.Whisper("You cannot ignore yourself")
		}
		if err := db.SetIgnored(ctx, target, true); err != nil {
			return err
		}
		if err := sc.Deps.Users.LeaveQueue(target); err != nil && !errors.Is(err, users.ErrNotInQueue) {
			return err
		}
		return sc.Whisperf("**User** <@%s> **is now ignored**", target)

	case "unignore":
		if err := db.SetIgnored(ctx, target, false); err != nil {
			return err
		}
		return sc.Whisperf("**User** <@%s> **is no longer ignored**", target)
	}
	return sc.Whisperf("Unknown subcommand: %s", sub)
}

func userEmbed(u *database.User, m *users.Manager) *discordgo.MessageEmbed {
	active := u.ActivePlaylist
	if active == "" {
		active = "none"
	}
	listening := "no"
	if m != nil && m.IsListening(u.ID) {
		listening = "yes"
		if m.InQueue(u.ID) {
			listening = "yes, in the DJ queue"
		}
	}

	return embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetDescription(fmt.Sprintf("<@%s>", u.ID)).
		AddField("Active playlist", active).
		AddField("Playlists", strconv.Itoa(u.PlaylistCount)).
		AddField("Songs played", strconv.Itoa(u.PlayCount)).
		AddField("Songs listened", strconv.Itoa(u.ListenCount)).
		AddField("Listening", listening).
		AddField("Ignored", yesNo(u.IsIgnored)).
		AddField("First seen", fmt.Sprintf("<t:%d:D>", u.CreatedAt.Unix())).
		InlineAllFields().MessageEmbed
}
