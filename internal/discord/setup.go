package discord

import (
	"errors"
	"fmt"

	"ddmbot/internal/config"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrNoGuild        = errors.New("Bot needs a server to run on but is connected to none")
	ErrMultipleGuilds = errors.New("Bot is connected to multiple servers, multi-server configuration is not supported")
)

// channels are the validated Discord objects the bot works with.
type channels struct {
	guildID  string
	text     string
	log      string
	voice    string
	direct   string
	operator string
}

// pickGuild returns the only guild the bot is a member of.
func pickGuild(guilds []*discordgo.Guild) (string, error) {
	switch len(guilds) {
	case 0:
		return "", ErrNoGuild
	case 1:
		return guilds[0].ID, nil
	}
	return "", ErrMultipleGuilds
}

type permCheck struct {
	perm int64
	msg  string
}

func checkChannel(st *discordgo.State, botID, channelID, name string, kind discordgo.ChannelType, checks ...permCheck) error {
	ch, err := st.Channel(channelID)
	if err != nil || ch == nil {
		return fmt.Errorf("Specified %s cannot be found", name)
	}
	if ch.Type != kind {
		return fmt.Errorf("Specified %s is a wrong type", name)
	}
	perms, err := st.UserChannelPermissions(botID, channelID)
	if err != nil {
		return fmt.Errorf("resolve permissions in the %s: %w", name, err)
	}
	for _, c := range checks {
		if perms&c.perm != c.perm {
			return errors.New(c.msg)
		}
	}
	return nil
}

// validateSetup checks the configured channels and role against the guild
// state and returns them.
func validateSetup(st *discordgo.State, guildID, botID string, cfg config.Discord) (*channels, error) {
	err := checkChannel(st, botID, cfg.TextChannel, "text_channel", discordgo.ChannelTypeGuildText,
		permCheck{discordgo.PermissionSendMessages, "Bot does not have a permission to send messages in the text_channel"},
		permCheck{discordgo.PermissionViewChannel, "Bot does not have a permission to read messages in the text_channel"},
		permCheck{discordgo.PermissionManageMessages, "Bot does not have a permission to manage messages in the text_channel"},
	)
	if err != nil {
		return nil, err
	}

	err = checkChannel(st, botID, cfg.LogChannel, "log_channel", discordgo.ChannelTypeGuildText,
		permCheck{discordgo.PermissionSendMessages, "Bot does not have a permission to send messages in the log_channel"},
	)
	if err != nil {
		return nil, err
	}

	voiceChecks := []permCheck{
		{discordgo.PermissionVoiceConnect, "Bot does not have a permission to connect to the voice channel"},
		{discordgo.PermissionVoiceSpeak, "Bot does not have a permission to speak in the voice channel"},
	}
	if cfg.DirectChannel != "" {
		voiceChecks = append(voiceChecks, permCheck{discordgo.PermissionVoiceMoveMembers,
			"Bot does not have a permission to move members, either grant it this permission " +
				"or disable seamless stream switch feature"})
	}
	if err := checkChannel(st, botID, cfg.VoiceChannel, "voice_channel", discordgo.ChannelTypeGuildVoice, voiceChecks...); err != nil {
		return nil, err
	}

	if cfg.DirectChannel != "" {
		if err := checkChannel(st, botID, cfg.DirectChannel, "direct_channel", discordgo.ChannelTypeGuildVoice); err != nil {
			return nil, err
		}
	}

	if role, err := st.Role(guildID, cfg.OperatorRole); err != nil || role == nil {
		return nil, errors.New("Operator role specified cannot be found")
	}

	return &channels{
		guildID:  guildID,
		text:     cfg.TextChannel,
		log:      cfg.LogChannel,
		voice:    cfg.VoiceChannel,
		direct:   cfg.DirectChannel,
		operator: cfg.OperatorRole,
	}, nil
}
