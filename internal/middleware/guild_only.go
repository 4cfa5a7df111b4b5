// Package middleware wraps slash commands with the checks every invocation
// goes through.
package middleware

import (
	"context"

	"ddmbot/internal/command"
	"ddmbot/pkg/cmd"
)

// WithGuildOnly wraps a command to reject invocations from outside the bot's server.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return c.Run(ctx, inv)
			}
			if v.Event.GuildID == "" || v.Event.GuildID != v.Deps.GuildID {
				return v.Whisper("Commands can be used only on the server the bot runs on")
			}
			return c.Run(ctx, inv)
		})
	}
}
