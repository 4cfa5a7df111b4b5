package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() {
	c.Discord.Token = strings.TrimSpace(c.Discord.Token)
	c.Bot.InitialState = strings.ToLower(strings.TrimSpace(c.Bot.InitialState))
	c.Stream.PublicURL = strings.TrimRight(strings.TrimSpace(c.Stream.PublicURL), "/")
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDiscord(); err != nil {
		return err
	}
	if err := c.validateBot(); err != nil {
		return err
	}
	return c.validateStream()
}

func (c *Config) validateDiscord() error {
	if c.Discord.Token == "" {
		return errors.New("discord.token is required. Set DISCORD_TOKEN or edit the config file")
	}
	required := []struct {
		key, value string
	}{
		{"discord.text_channel", c.Discord.TextChannel},
		{"discord.log_channel", c.Discord.LogChannel},
		{"discord.voice_channel", c.Discord.VoiceChannel},
		{"discord.operator_role", c.Discord.OperatorRole},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s must be set", r.key)
		}
	}
	return nil
}

func (c *Config) validateBot() error {
	b := c.Bot
	switch {
	case b.DatabasePath == "":
		return errors.New("ddmbot.database_path must be set")
	case b.StoragePath == "":
		return errors.New("ddmbot.storage_path must be set")
	case b.OpCreditCap < 1:
		return errors.New("ddmbot.op_credit_cap must be positive")
	case b.OpCreditRenew < 1:
		return errors.New("ddmbot.op_credit_renew must be positive")
	case b.SkipRatio <= 0 || b.SkipRatio > 1:
		return errors.New("ddmbot.skip_ratio must be in (0, 1]")
	case b.APSkipRatio <= 0 || b.APSkipRatio > 1:
		return errors.New("ddmbot.ap_skip_ratio must be in (0, 1]")
	case b.StreamEndTransition < 0:
		return errors.New("ddmbot.stream_end_transition must not be negative")
	case b.DefaultVolume < 0 || b.DefaultVolume > 200:
		return errors.New("ddmbot.default_volume must be between 0 and 200")
	case b.PCMPipeSize <= 0 || int64(b.PCMPipeSize) > 1<<31:
		return errors.New("ddmbot.pcm_pipe_size is invalid")
	case b.SongMaxDuration < 1:
		return errors.New("ddmbot.song_max_duration must be positive")
	case b.Cooldown < 0:
		return errors.New("ddmbot.cooldown must not be negative")
	case b.DJIdleTimeout < 1 || b.DJIdleGrace < 1:
		return errors.New("ddmbot.dj_idle_timeout and ddmbot.dj_idle_grace must be positive")
	}
	return nil
}

func (c *Config) validateStream() error {
	if c.Stream.Bind == "" {
		return errors.New("stream.bind must be set")
	}
	if c.Stream.Bitrate < 8 || c.Stream.Bitrate > 320 {
		return errors.New("stream.bitrate must be between 8 and 320")
	}
	if c.Stream.MetaInt < 1 {
		return errors.New("stream.metaint must be positive")
	}
	return nil
}
