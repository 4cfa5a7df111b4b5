package discord

import (
	"github.com/bwmarrin/discordgo"
)

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if b.initialized.Load() {
		b.log.Info().Msg("Connection to Discord was restored")
		go b.reconnectVoice()
		return
	}

	if _, err := pickGuild(r.Guilds); err != nil {
		b.fail(err)
		return
	}
	b.log.Info().Str("user", r.User.Username).Str("id", r.User.ID).Msg("Connected to Discord")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.initialized.Load() {
		if b.channels != nil && g.ID != b.channels.guildID {
			b.fail(ErrMultipleGuilds)
		}
		return
	}

	if err := b.initialize(s, g.Guild); err != nil {
		b.fail(err)
		return
	}
	b.markInitialized()
	b.log.Info().Str("guild", g.Name).Msg("Initialization done")
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if !b.initialized.Load() || v.GuildID != b.channels.guildID {
		return
	}
	voice := b.channels.voice

	if v.UserID == s.State.User.ID {
		if v.ChannelID != voice {
			b.log.Warn().Msg("Client was disconnected from the voice channel")
			go b.reconnectVoice()
		}
		return
	}

	before := ""
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	switch {
	case before != voice && v.ChannelID == voice:
		b.addListener(b.ctx, v.UserID)
	case before == voice && v.ChannelID != voice:
		b.removeListener(v.UserID)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || !b.initialized.Load() {
		return
	}
	// any message proves the author is still around
	b.opts.Users.RefreshActivity(m.Author.ID)
	if m.ChannelID == b.channels.text {
		b.opts.Player.BumpProtectionCounter()
		b.opts.Player.ReprintStatus(b.ctx)
	}
}
