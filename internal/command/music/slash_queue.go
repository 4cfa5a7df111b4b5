package music

import (
	"context"
	"fmt"
	"strings"

	"ddmbot/internal/command"

	"github.com/bwmarrin/discordgo"
)

type QueueCommand struct{}

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Join, leave or list the DJ queue" }
func (c *QueueCommand) Category() string    { return "🎧 DJ Queue" }

func (c *QueueCommand) RequiresOperator(sub string) bool {
	return sub == "kick"
}

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "join",
				Description: "Join the DJ queue, songs are played from your active playlist",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "leave",
				Description: "Leave the DJ queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "Show the DJ queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "kick",
				Description: "Remove a user from the DJ queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to remove",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *QueueCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	u := sc.Deps.Users
	sub, opts := sc.Subcommand()

	switch sub {
	case "join":
		if err := u.JoinQueue(sc.UserID()); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisper("**You have joined the DJ queue**")

	case "leave":
		if err := u.LeaveQueue(sc.UserID()); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisper("**You have left the DJ queue**")

	case "list":
		return sc.Whisper(queueText(u.Queue()))

	case "kick":
		target := opts.User("user")
		if err := u.Kick(ctx, target); err != nil {
			return sc.Fail(err)
		}
		return sc.Whisperf("**User** <@%s> **was removed from the DJ queue**", target)
	}
	return sc.Whisperf("Unknown subcommand: %s", sub)
}

func queueText(queue []string) string {
	if len(queue) == 0 {
		return "**DJ queue is empty**"
	}
	mentions := make([]string, len(queue))
	for i, id := range queue {
		mentions[i] = fmt.Sprintf("<@%s>", id)
	}
	return fmt.Sprintf("**DJ queue (%d):** %s", len(queue), strings.Join(mentions, " -> "))
}
