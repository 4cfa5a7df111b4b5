package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddmbot/internal/config"
)

const sampleConfig = `
[discord]
token = "file-token"
text_channel = "100"
log_channel = "101"
voice_channel = "102"
operator_role = "200"

[ddmbot]
skip_ratio = 0.75
initial_state = "DJMode"
cooldown = 5

[stream]
public_url = "http://radio.example.org/"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Discord.Token)
	assert.Equal(t, "102", cfg.Discord.VoiceChannel)
	assert.Equal(t, 0.75, cfg.Bot.SkipRatio)
	assert.Equal(t, "djmode", cfg.Bot.InitialState)
	assert.Equal(t, "http://radio.example.org", cfg.Stream.PublicURL)

	def := config.Default()
	assert.Equal(t, def.Bot.OpCreditCap, cfg.Bot.OpCreditCap)
	assert.Equal(t, def.Stream.MetaInt, cfg.Stream.MetaInt)
	assert.Equal(t, "5s", cfg.CooldownPeriod().String())
	assert.Equal(t, "24h0m0s", cfg.CreditRenew().String())
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("DDMBOT_OP_CREDIT_CAP", "7")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, 7, cfg.Bot.OpCreditCap)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("DISCORD_TEXT_CHANNEL", "1")
	t.Setenv("DISCORD_LOG_CHANNEL", "2")
	t.Setenv("DISCORD_VOICE_CHANNEL", "3")
	t.Setenv("DISCORD_OPERATOR_ROLE", "4")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "3", cfg.Discord.VoiceChannel)
	assert.Equal(t, "stopped", cfg.Bot.InitialState)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Discord = config.Discord{
			Token: "t", TextChannel: "1", LogChannel: "2", VoiceChannel: "3", OperatorRole: "4",
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing token", func(c *config.Config) { c.Discord.Token = "" }, "discord.token"},
		{"missing voice channel", func(c *config.Config) { c.Discord.VoiceChannel = "" }, "discord.voice_channel"},
		{"skip ratio zero", func(c *config.Config) { c.Bot.SkipRatio = 0 }, "skip_ratio"},
		{"volume too loud", func(c *config.Config) { c.Bot.DefaultVolume = 250 }, "default_volume"},
		{"pipe size", func(c *config.Config) { c.Bot.PCMPipeSize = -1 }, "pcm_pipe_size"},
		{"bitrate", func(c *config.Config) { c.Stream.Bitrate = 1000 }, "stream.bitrate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
