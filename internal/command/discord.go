package command

import (
	"context"

	"ddmbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// SlashProvider describes how a command is registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta is exposed by the Discord adapter so middleware can read the
// category and the operator requirements without knowing the concrete command.
type DiscordMeta interface {
	Category() string
	RequiresOperator(sub string) bool
}

// DiscordCommand is what individual Discord commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Category() string
	RequiresOperator(sub string) bool
	SlashDefinition() *discordgo.ApplicationCommand
	Run(ctx context.Context, sc *SlashInteractionContext) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string                     { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string              { return a.Cmd.Description() }
func (a *DiscordAdapter) Category() string                 { return a.Cmd.Category() }
func (a *DiscordAdapter) RequiresOperator(sub string) bool { return a.Cmd.RequiresOperator(sub) }

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	def := a.Cmd.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	sc, ok := inv.Data.(*SlashInteractionContext)
	if !ok {
		return nil
	}
	return a.Cmd.Run(ctx, sc)
}

// RegisterCommand adds a Discord command to reg with the middlewares applied.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) error {
	return reg.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// Definition extracts the slash definition from a registered command,
// walking through middleware wrappers.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	if sp, ok := cmd.Root(c).(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// Meta returns the Discord metadata of a registered command.
func Meta(c cmd.Command) (DiscordMeta, bool) {
	m, ok := cmd.Root(c).(DiscordMeta)
	return m, ok
}
