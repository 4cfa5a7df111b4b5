// Package core holds the informational and maintenance commands.
package core

import (
	"context"
	"fmt"
	"strings"

	"ddmbot/internal/command"
	"ddmbot/internal/version"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

type HelpCommand struct{}

func (c *HelpCommand) Name() string                 { return "help" }
func (c *HelpCommand) Description() string          { return "Get a list of available commands" }
func (c *HelpCommand) Category() string             { return "🕯️ Information" }
func (c *HelpCommand) RequiresOperator(string) bool { return false }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *HelpCommand) Run(_ context.Context, sc *command.SlashInteractionContext) error {
	e := embed.NewEmbed().
		SetColor(command.EmbedColor).
		SetTitle(version.AppName + " Help").
		SetDescription(version.AppDescription + "\n🔒 marks operator only commands")
	for _, sec := range command.Sections(sc.Deps.Registry.GetAll()) {
		e = e.AddField(sec.Category, helpField(sec))
	}
	return sc.Reply.RespondEmbed(sc.Event, e.Truncate().MessageEmbed, true)
}

// helpField renders one category as an embed field body.
func helpField(sec command.Section) string {
	lines := make([]string, 0, len(sec.Entries))
	for _, e := range sec.Entries {
		lock := ""
		if e.Operator {
			lock = " 🔒"
		}
		lines = append(lines, fmt.Sprintf("`%s`%s - %s", e.Usage, lock, e.Description))
	}
	return strings.Join(lines, "\n")
}
