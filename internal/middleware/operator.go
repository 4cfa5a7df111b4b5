package middleware

import (
	"context"

	"ddmbot/internal/command"
	"ddmbot/pkg/cmd"
)

// WithOperatorCheck rejects subcommands reserved for operators when the
// invoking member lacks the operator role.
func WithOperatorCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return c.Run(ctx, inv)
			}
			meta, ok := command.Meta(c)
			if !ok {
				return c.Run(ctx, inv)
			}
			sub, _ := v.Subcommand()
			if meta.RequiresOperator(sub) && !v.IsOperator() {
				return v.Whisper("You don't have permission to use this command, operator role is required")
			}
			return c.Run(ctx, inv)
		})
	}
}
