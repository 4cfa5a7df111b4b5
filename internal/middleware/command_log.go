package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ddmbot/internal/command"
	"ddmbot/internal/logging"
	"ddmbot/internal/storage"
	"ddmbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// WithCommandLogger wraps a command to log its execution and keep it in the
// per-guild command history.
func WithCommandLogger() cmd.Middleware {
	log := logging.Component("command")
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return c.Run(ctx, inv)
			}

			started := time.Now()
			err := c.Run(ctx, inv)

			user := v.User()
			if user == nil {
				user = &discordgo.User{ID: "unknown", Username: "Unknown"}
			}
			param := describeOptions(v.Event.ApplicationCommandData().Options)

			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("command", c.Name()).
				Str("param", param).
				Str("user", user.ID).
				Str("username", user.Username).
				Dur("took", time.Since(started)).
				Msg("Slash command")

			if v.Deps.Storage != nil {
				rec := storage.CommandHistoryRecord{
					ChannelID: v.Event.ChannelID,
					UserID:    user.ID,
					Username:  user.Username,
					Command:   c.Name(),
					Param:     param,
					Datetime:  started,
				}
				if v.Session != nil && v.Session.State != nil {
					if ch, chErr := v.Session.State.Channel(v.Event.ChannelID); chErr == nil {
						rec.ChannelName = ch.Name
					}
					if g, gErr := v.Session.State.Guild(v.Event.GuildID); gErr == nil {
						rec.GuildName = g.Name
					}
				}
				if hErr := v.Deps.Storage.AppendCommandToHistory(v.Event.GuildID, rec); hErr != nil {
					log.Warn().Err(hErr).Str("command", c.Name()).Msg("Failed to store command history")
				}
			}
			return err
		})
	}
}

// describeOptions flattens subcommands and option values into one line.
func describeOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			inner := describeOptions(o.Options)
			if inner == "" {
				parts = append(parts, o.Name)
			} else {
				parts = append(parts, o.Name+" "+inner)
			}
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", o.Name, o.Value))
		}
	}
	return strings.Join(parts, " ")
}
