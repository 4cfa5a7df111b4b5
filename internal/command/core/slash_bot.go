package core

import (
	"context"
	"fmt"

	"ddmbot/internal/command"
	"ddmbot/internal/version"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

type BotCommand struct{}

func (c *BotCommand) Name() string        { return "bot" }
func (c *BotCommand) Description() string { return "Bot maintenance commands" }
func (c *BotCommand) Category() string    { return "🛠️ Maintenance" }

func (c *BotCommand) RequiresOperator(sub string) bool {
	return sub == "restart" || sub == "shutdown"
}

func (c *BotCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ping",
				Description: "Check bot latency",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stats",
				Description: "Show library statistics",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "restart",
				Description: "Restart the bot",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shutdown",
				Description: "Shut the bot down",
			},
		},
	}
}

func (c *BotCommand) Run(ctx context.Context, sc *command.SlashInteractionContext) error {
	sub, _ := sc.Subcommand()
	switch sub {
	case "ping":
		latency := "n/a"
		if sc.Session != nil {
			latency = fmt.Sprintf("%dms", sc.Session.HeartbeatLatency().Milliseconds())
		}
		return sc.Whisperf("🏓 Pong! %s", latency)

	case "stats":
		st, err := sc.Deps.DB.Stats(ctx)
		if err != nil {
			return err
		}
		e := embed.NewEmbed().
			SetColor(command.EmbedColor).
			SetTitle(fmt.Sprintf("%s %s", version.AppName, version.AppVersion)).
			AddField("Songs", fmt.Sprint(st.Songs)).
			AddField("Blacklisted", fmt.Sprint(st.Blacklisted)).
			AddField("Failed", fmt.Sprint(st.Failed)).
			AddField("Duplicates", fmt.Sprint(st.Duplicates)).
			AddField("Users", fmt.Sprint(st.Users)).
			AddField("Ignored", fmt.Sprint(st.Ignored)).
			AddField("Playlists", fmt.Sprint(st.Playlists)).
			AddField("Playlist entries", fmt.Sprint(st.Links)).
			InlineAllFields()
		return sc.Reply.RespondEmbed(sc.Event, e.MessageEmbed, true)

	case "restart":
		if err := sc.Whisper("**Restarting...**"); err != nil {
			return err
		}
		sc.Deps.Lifecycle.Restart()
		return nil

	case "shutdown":
		if err := sc.Whisper("**Shutting down...**"); err != nil {
			return err
		}
		sc.Deps.Lifecycle.Shutdown()
		return nil
	}
	return sc.Whisperf("Unknown subcommand: %s", sub)
}
