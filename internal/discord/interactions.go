package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"ddmbot/internal/command"
	"ddmbot/pkg/cmd"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	reply := command.SessionResponder{Session: s}

	if !b.initialized.Load() {
		_ = reply.Respond(i, "The bot is starting up, try again in a moment", true)
		return
	}

	b.dispatch(b.ctx, &command.SlashInteractionContext{
		Session: s,
		Event:   i,
		Deps:    b.deps,
		Reply:   reply,
	})
}

// dispatch runs the invoked command, then brings the status message back to
// the bottom of the text channel if the conversation buried it.
func (b *Bot) dispatch(ctx context.Context, sc *command.SlashInteractionContext) {
	name := sc.Event.ApplicationCommandData().Name
	c := b.registry.Get(name)
	if c == nil {
		b.log.Warn().Str("command", name).Msg("Unknown command")
		return
	}

	if err := c.Run(ctx, &cmd.Invocation{Data: sc}); err != nil {
		b.log.Error().Err(err).Str("command", name).Msg("Error running slash command")
		_ = sc.Reply.Respond(sc.Event, "Something went wrong while running the command", true)
	}
	b.opts.Player.ReprintStatus(ctx)
}
