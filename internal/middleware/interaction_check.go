package middleware

import (
	"context"
	"errors"

	"ddmbot/internal/command"
	"ddmbot/internal/database"
	"ddmbot/internal/logging"
	"ddmbot/pkg/cmd"
)

// WithInteractionCheck registers users on their first command, greets them
// and rejects ignored users.
func WithInteractionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return c.Run(ctx, inv)
			}

			userID := v.UserID()
			created, err := v.Deps.DB.InteractionCheck(ctx, userID)
			if errors.Is(err, database.ErrIgnoredUser) {
				return v.Whisper("You are on the ignore list and cannot use the bot")
			}
			if err != nil {
				return err
			}

			if created {
				welcome(ctx, v.Deps, userID)
			}
			if v.Deps.Users != nil {
				v.Deps.Users.RefreshActivity(userID)
			}
			return c.Run(ctx, inv)
		})
	}
}

func welcome(ctx context.Context, deps *command.Deps, userID string) {
	log := logging.Component("middleware")
	if deps.Whisperer == nil {
		return
	}
	text, err := command.WelcomeText(deps, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("Failed to build welcome message")
		return
	}
	if err := deps.Whisperer.Whisper(ctx, userID, text); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("Failed to send welcome message")
	}
}
