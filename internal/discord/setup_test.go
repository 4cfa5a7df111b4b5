package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/config"
)

const (
	testGuild = "g1"
	testBot   = "bot"
	testOwner = "owner"
)

func guildState(t *testing.T, botPerms int64, extra ...*discordgo.Channel) *discordgo.State {
	t.Helper()
	st := discordgo.NewState()
	channels := []*discordgo.Channel{
		{ID: "text", GuildID: testGuild, Type: discordgo.ChannelTypeGuildText},
		{ID: "log", GuildID: testGuild, Type: discordgo.ChannelTypeGuildText},
		{ID: "voice", GuildID: testGuild, Type: discordgo.ChannelTypeGuildVoice},
		{ID: "direct", GuildID: testGuild, Type: discordgo.ChannelTypeGuildVoice},
	}
	channels = append(channels, extra...)
	g := &discordgo.Guild{
		ID:      testGuild,
		OwnerID: testOwner,
		Roles: []*discordgo.Role{
			{ID: testGuild, Name: "@everyone"},
			{ID: "botrole", Permissions: botPerms},
			{ID: "ops", Name: "operators"},
		},
		Channels: channels,
		Members: []*discordgo.Member{
			{GuildID: testGuild, User: &discordgo.User{ID: testBot}, Roles: []string{"botrole"}},
		},
	}
	require.NoError(t, st.GuildAdd(g))
	return st
}

func fullPerms() int64 {
	return discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionManageMessages | discordgo.PermissionVoiceConnect |
		discordgo.PermissionVoiceSpeak | discordgo.PermissionVoiceMoveMembers
}

func testDiscordConfig() config.Discord {
	return config.Discord{
		TextChannel:   "text",
		LogChannel:    "log",
		VoiceChannel:  "voice",
		DirectChannel: "direct",
		OperatorRole:  "ops",
	}
}

func TestPickGuild(t *testing.T) {
	_, err := pickGuild(nil)
	assert.ErrorIs(t, err, ErrNoGuild)

	id, err := pickGuild([]*discordgo.Guild{{ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = pickGuild([]*discordgo.Guild{{ID: "a"}, {ID: "b"}})
	assert.ErrorIs(t, err, ErrMultipleGuilds)
}

func TestValidateSetup(t *testing.T) {
	st := guildState(t, fullPerms())
	ch, err := validateSetup(st, testGuild, testBot, testDiscordConfig())
	require.NoError(t, err)
	assert.Equal(t, "voice", ch.voice)
	assert.Equal(t, "direct", ch.direct)
	assert.Equal(t, "ops", ch.operator)
}

func TestValidateSetupAdministrator(t *testing.T) {
	st := guildState(t, discordgo.PermissionAdministrator)
	_, err := validateSetup(st, testGuild, testBot, testDiscordConfig())
	assert.NoError(t, err)
}

func TestValidateSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		perms  int64
		mutate func(*config.Discord)
		want   string
	}{
		{
			name:   "missing text channel",
			perms:  fullPerms(),
			mutate: func(c *config.Discord) { c.TextChannel = "nope" },
			want:   "Specified text_channel cannot be found",
		},
		{
			name:   "voice channel used as text",
			perms:  fullPerms(),
			mutate: func(c *config.Discord) { c.LogChannel = "voice" },
			want:   "Specified log_channel is a wrong type",
		},
		{
			name:   "text channel used as voice",
			perms:  fullPerms(),
			mutate: func(c *config.Discord) { c.VoiceChannel = "text" },
			want:   "Specified voice_channel is a wrong type",
		},
		{
			name:  "cannot manage messages",
			perms: fullPerms() &^ discordgo.PermissionManageMessages,
			want:  "Bot does not have a permission to manage messages in the text_channel",
		},
		{
			name:  "cannot speak",
			perms: fullPerms() &^ discordgo.PermissionVoiceSpeak,
			want:  "Bot does not have a permission to speak in the voice channel",
		},
		{
			name:  "cannot move members",
			perms: fullPerms() &^ discordgo.PermissionVoiceMoveMembers,
			want:  "Bot does not have a permission to move members, either grant it this permission or disable seamless stream switch feature",
		},
		{
			name:   "unknown operator role",
			perms:  fullPerms(),
			mutate: func(c *config.Discord) { c.OperatorRole = "nope" },
			want:   "Operator role specified cannot be found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDiscordConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := validateSetup(guildState(t, tt.perms), testGuild, testBot, cfg)
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestValidateSetupWithoutDirectChannel(t *testing.T) {
	cfg := testDiscordConfig()
	cfg.DirectChannel = ""
	st := guildState(t, fullPerms()&^discordgo.PermissionVoiceMoveMembers)
	ch, err := validateSetup(st, testGuild, testBot, cfg)
	require.NoError(t, err)
	assert.Empty(t, ch.direct)
}
