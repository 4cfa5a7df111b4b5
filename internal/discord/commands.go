package discord

import (
	"context"
	"fmt"

	"ddmbot/internal/command"
	"ddmbot/internal/command/core"
	"ddmbot/internal/command/library"
	"ddmbot/internal/command/music"
	"ddmbot/internal/command/playlist"
	"ddmbot/internal/middleware"
	"ddmbot/pkg/cmd"
	"ddmbot/pkg/retrylimit"

	"github.com/bwmarrin/discordgo"
)

// NewRegistry returns every slash command wrapped with the default middleware chain.
func NewRegistry() (*cmd.Registry, error) {
	reg := cmd.NewRegistry()
	all := []command.DiscordCommand{
		&core.HelpCommand{},
		&core.BotCommand{},
		&core.StreamCommand{},
		&music.PlayerCommand{},
		&music.QueueCommand{},
		&music.SkipCommand{},
		&music.UnskipCommand{},
		&playlist.PlaylistCommand{},
		&library.SongCommand{},
		&library.UserCommand{},
	}
	for _, c := range all {
		if err := command.RegisterCommand(reg, c, middleware.Default()...); err != nil {
			return nil, fmt.Errorf("register %s: %w", c.Name(), err)
		}
	}
	return reg, nil
}

// commandDefinitions returns the slash definitions of all registered commands.
func commandDefinitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.GetAll() {
		if def := command.Definition(c); def != nil {
			if def.Type == 0 {
				def.Type = discordgo.ChatApplicationCommand
			}
			defs = append(defs, def)
		}
	}
	return defs
}

// commandPlan compares local definitions with the remote ones and the cached
// hashes. It returns the remote commands to delete, the definitions to upsert
// and the hashes to store once the sync is done.
func commandPlan(local, remote []*discordgo.ApplicationCommand, cached map[string]string) (stale []*discordgo.ApplicationCommand, changed []*discordgo.ApplicationCommand, hashes map[string]string) {
	hashes = make(map[string]string, len(local))
	remoteByName := make(map[string]bool, len(remote))
	for _, rc := range remote {
		remoteByName[rc.Name] = true
	}
	for _, d := range local {
		h := hashCommand(d)
		hashes[d.Name] = h
		if cached[d.Name] != h || !remoteByName[d.Name] {
			changed = append(changed, d)
		}
	}
	for _, rc := range remote {
		if _, ok := hashes[rc.Name]; !ok {
			stale = append(stale, rc)
		}
	}
	return stale, changed, hashes
}

// registerCommands syncs the guild's slash commands with Discord: obsolete
// ones are deleted and changed ones are created or updated.
func (b *Bot) registerCommands(ctx context.Context, guildID string) error {
	s := b.opts.Session
	appID := s.State.User.ID

	remote, err := s.ApplicationCommands(appID, guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch registered commands: %w", err)
	}
	cached, err := b.opts.Storage.CommandHashes(guildID)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to load command hashes")
		cached = map[string]string{}
	}

	stale, changed, hashes := commandPlan(commandDefinitions(b.registry), remote, cached)
	lim := retrylimit.NewAdaptiveLimiter(10, 1, 40, 2, 0.5)

	for _, rc := range stale {
		b.log.Info().Str("command", rc.Name).Msg("Deleting obsolete command")
		err := retrylimit.WithRetry(ctx, func() error {
			return s.ApplicationCommandDelete(appID, guildID, rc.ID, discordgo.WithContext(ctx))
		}, lim)
		if err != nil {
			b.log.Error().Err(err).Str("command", rc.Name).Msg("Failed to delete command")
		}
	}

	if len(changed) > 0 {
		b.log.Info().Int("count", len(changed)).Msg("Registering changed commands")
	}
	for _, d := range changed {
		err := retrylimit.WithRetry(ctx, func() error {
			_, err := s.ApplicationCommandCreate(appID, guildID, d, discordgo.WithContext(ctx))
			return err
		}, lim)
		if err != nil {
			b.log.Error().Err(err).Str("command", d.Name).Msg("Failed to register command")
			delete(hashes, d.Name)
			continue
		}
		b.log.Debug().Str("command", d.Name).Msg("Registered command")
	}

	if err := b.opts.Storage.SetCommandHashes(guildID, hashes); err != nil {
		b.log.Warn().Err(err).Msg("Failed to save command hashes")
	}
	return nil
}
