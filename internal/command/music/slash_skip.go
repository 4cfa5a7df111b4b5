package music

import (
	"context"

	"ddmbot/internal/command"

	"github.com/bwmarrin/discordgo"
)

type SkipCommand struct{}

func (c *SkipCommand) Name() string                 { return "skip" }
func (c *SkipCommand) Description() string          { return "Vote to skip the current song" }
func (c *SkipCommand) Category() string             { return "🎵 Player" }
func (c *SkipCommand) RequiresOperator(string) bool { return false }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *SkipCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	if err := sc.Deps.Player.SkipVote(ctx, sc.UserID()); err != nil {
		return sc.Fail(err)
	}
	return sc.Whisper("**Your skip vote was counted**")
}

type UnskipCommand struct{}

func (c *UnskipCommand) Name() string                 { return "unskip" }
func (c *UnskipCommand) Description() string          { return "Take back your skip vote" }
func (c *UnskipCommand) Category() string             { return "🎵 Player" }
func (c *UnskipCommand) RequiresOperator(string) bool { return false }

func (c *UnskipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *UnskipCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	if err := sc.Deps.Player.SkipUnvote(ctx, sc.UserID()); err != nil {
		return sc.Fail(err)
	}
	return sc.Whisper("**Your skip vote was removed**")
}
