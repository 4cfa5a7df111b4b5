package discord

import "context"

// connectVoice joins the voice channel unless a connection is up or another
// attempt is running.
func (b *Bot) connectVoice(ctx context.Context) error {
	b.log.Info().Msg("Connecting to the voice channel")
	if !b.voiceMu.TryLock() {
		b.log.Warn().Msg("Connecting to the voice channel still in progress")
		return nil
	}
	defer b.voiceMu.Unlock()

	if b.opts.Voice.Ready() {
		b.log.Warn().Msg("Client is still connected to the voice channel")
		return nil
	}
	if old := b.opts.Voice.Connection(); old != nil {
		_ = old.Disconnect()
		b.opts.Voice.Set(nil)
	}

	vc, err := b.opts.Session.ChannelVoiceJoin(b.channels.guildID, b.channels.voice, false, true)
	if err != nil {
		return err
	}
	b.opts.Voice.Set(vc)
	b.log.Info().Msg("Voice channel connection succeeded")
	return ctx.Err()
}

func (b *Bot) reconnectVoice() {
	if err := b.connectVoice(b.ctx); err != nil {
		b.log.Error().Err(err).Msg("Voice channel connection failed")
	}
}

func (b *Bot) disconnectVoice() {
	b.voiceMu.Lock()
	defer b.voiceMu.Unlock()
	if vc := b.opts.Voice.Connection(); vc != nil {
		if err := vc.Disconnect(); err != nil {
			b.log.Warn().Err(err).Msg("Failed to leave the voice channel")
		}
		b.opts.Voice.Set(nil)
	}
}
