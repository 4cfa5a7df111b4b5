package core

import (
	"context"

	"ddmbot/internal/command"

	"github.com/bwmarrin/discordgo"
)

type StreamCommand struct{}

func (c *StreamCommand) Name() string                 { return "stream" }
func (c *StreamCommand) Description() string          { return "Get your personal direct stream link" }
func (c *StreamCommand) Category() string             { return "🕯️ Information" }
func (c *StreamCommand) RequiresOperator(string) bool { return false }

func (c *StreamCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "link",
				Description: "Show your direct stream link",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "reset",
					Description: "Invalidate the old link and issue a new one",
				}},
			},
		},
	}
}

func (c *StreamCommand) Run(_ context.Context, sc *command.SlashInteractionContext) error {
	_, opts := sc.Subcommand()
	link, err := command.StreamLink(sc.Deps, sc.UserID(), opts.Bool("reset"))
	if err != nil {
		return err
	}
	if opts.Bool("reset") {
		return sc.Whisperf("**Your new direct stream link:** %s\nThe previous link no longer works.", link)
	}
	return sc.Whisperf("**Your direct stream link:** %s\nKeep it private, anyone with the link listens as you.", link)
}
