package command

import (
	"github.com/bwmarrin/discordgo"
)

// EmbedColor is used for every embed the bot sends.
const EmbedColor = 0x1e88e5

// messageLimit is the Discord message length limit.
const messageLimit = 2000

// Responder answers interactions. Commands never talk to the session
// directly so they can run against a recorder in tests.
type Responder interface {
	Respond(i *discordgo.InteractionCreate, text string, ephemeral bool) error
	RespondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error
	Defer(i *discordgo.InteractionCreate, ephemeral bool) error
	Followup(i *discordgo.InteractionCreate, text string, ephemeral bool) error
}

// SessionResponder answers through a Discord session.
type SessionResponder struct {
	Session *discordgo.Session
}

func flags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r SessionResponder) Respond(i *discordgo.InteractionCreate, text string, ephemeral bool) error {
	return r.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: Truncate(text), Flags: flags(ephemeral)},
	})
}

func (r SessionResponder) RespondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	return r.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags(ephemeral),
		},
	})
}

// Defer acknowledges an interaction that needs more than three seconds.
func (r SessionResponder) Defer(i *discordgo.InteractionCreate, ephemeral bool) error {
	return r.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags(ephemeral)},
	})
}

func (r SessionResponder) Followup(i *discordgo.InteractionCreate, text string, ephemeral bool) error {
	_, err := r.Session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: Truncate(text),
		Flags:   flags(ephemeral),
	})
	return err
}

// Truncate shortens text to fit in a single message.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= messageLimit {
		return text
	}
	return string(runes[:messageLimit-1]) + "…"
}
