package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when no config file is given on the command line.
const DefaultPath = "config.toml"

// Discord holds the connection settings and the channels the bot lives in.
type Discord struct {
	Token         string `toml:"token" env:"TOKEN"`
	TextChannel   string `toml:"text_channel" env:"TEXT_CHANNEL"`
	LogChannel    string `toml:"log_channel" env:"LOG_CHANNEL"`
	VoiceChannel  string `toml:"voice_channel" env:"VOICE_CHANNEL"`
	DirectChannel string `toml:"direct_channel" env:"DIRECT_CHANNEL"`
	OperatorRole  string `toml:"operator_role" env:"OPERATOR_ROLE"`
}

// Bot holds the player, playlist and credit settings.
type Bot struct {
	WelcomeMessage      string  `toml:"welcome_message" env:"WELCOME_MESSAGE"`
	DatabasePath        string  `toml:"database_path" env:"DATABASE_PATH"`
	StoragePath         string  `toml:"storage_path" env:"STORAGE_PATH"`
	OpCreditCap         int     `toml:"op_credit_cap" env:"OP_CREDIT_CAP"`
	OpCreditRenew       int     `toml:"op_credit_renew" env:"OP_CREDIT_RENEW"`
	SkipRatio           float64 `toml:"skip_ratio" env:"SKIP_RATIO"`
	StreamEndTransition int     `toml:"stream_end_transition" env:"STREAM_END_TRANSITION"`
	InitialState        string  `toml:"initial_state" env:"INITIAL_STATE"`
	DefaultVolume       int     `toml:"default_volume" env:"DEFAULT_VOLUME"`
	PCMPipeSize         int     `toml:"pcm_pipe_size" env:"PCM_PIPE_SIZE"`
	SongMaxDuration     int     `toml:"song_max_duration" env:"SONG_MAX_DURATION"`
	Cooldown            int     `toml:"cooldown" env:"COOLDOWN"`
	DJIdleTimeout       int     `toml:"dj_idle_timeout" env:"DJ_IDLE_TIMEOUT"`
	DJIdleGrace         int     `toml:"dj_idle_grace" env:"DJ_IDLE_GRACE"`
	APSkipRatio         float64 `toml:"ap_skip_ratio" env:"AP_SKIP_RATIO"`
	YouTubeProxy        string  `toml:"youtube_proxy" env:"YOUTUBE_PROXY"`
}

// Stream holds the direct stream HTTP server settings.
type Stream struct {
	Bind      string `toml:"bind" env:"BIND"`
	PublicURL string `toml:"public_url" env:"PUBLIC_URL"`
	Bitrate   int    `toml:"bitrate" env:"BITRATE"`
	MetaInt   int    `toml:"metaint" env:"METAINT"`
	Name      string `toml:"name" env:"NAME"`
}

// Log holds the log level and file retention.
type Log struct {
	Level         string `toml:"level" env:"LEVEL"`
	RetentionDays int    `toml:"retention_days" env:"RETENTION_DAYS"`
}

// Config is the complete runtime configuration.
//
// Sections:
//   - Discord: token, channels and the operator role
//   - Bot: player behaviour, credits and DJ queue timeouts
//   - Stream: direct stream server
//   - Log: level and retention of the log file
type Config struct {
	Discord Discord `toml:"discord" envPrefix:"DISCORD_"`
	Bot     Bot     `toml:"ddmbot" envPrefix:"DDMBOT_"`
	Stream  Stream  `toml:"stream" envPrefix:"STREAM_"`
	Log     Log     `toml:"log" envPrefix:"LOG_"`
}

// Default returns the configuration with every optional value filled in.
func Default() Config {
	return Config{
		Bot: Bot{
			WelcomeMessage: "Welcome! Join the voice channel to listen, or use {stream_url} " +
				"to listen directly. Use /help to see what I can do.",
			DatabasePath:    "ddmbot.db",
			StoragePath:     "datastore.json",
			OpCreditCap:     3,
			OpCreditRenew:   24,
			SkipRatio:       0.5,
			InitialState:    "stopped",
			DefaultVolume:   100,
			PCMPipeSize:     1 << 20,
			SongMaxDuration: 900,
			Cooldown:        15,
			DJIdleTimeout:   60,
			DJIdleGrace:     5,
			APSkipRatio:     0.5,
		},
		Stream: Stream{
			Bind:    ":8787",
			Bitrate: 128,
			MetaInt: 16000,
			Name:    "ddmbot",
		},
		Log: Log{
			Level:         "debug",
			RetentionDays: 7,
		},
	}
}

// Load reads the TOML file at path (a missing file is not an error), then
// applies .env and process environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreditRenew is the period after which every song gets one play credit back.
func (c *Config) CreditRenew() time.Duration {
	return time.Duration(c.Bot.OpCreditRenew) * time.Hour
}

// CooldownPeriod is how long the player waits for DJs before the automatic playlist starts.
func (c *Config) CooldownPeriod() time.Duration {
	return time.Duration(c.Bot.Cooldown) * time.Second
}

// StreamEndTransition returns zero when the automatic switch to DJ mode is disabled.
func (c *Config) StreamEndTransition() time.Duration {
	return time.Duration(c.Bot.StreamEndTransition) * time.Second
}

// SongMaxDuration is the longest song the player accepts.
func (c *Config) SongMaxDuration() time.Duration {
	return time.Duration(c.Bot.SongMaxDuration) * time.Second
}

// DJIdleTimeout is the inactivity after which a DJ gets warned.
func (c *Config) DJIdleTimeout() time.Duration {
	return time.Duration(c.Bot.DJIdleTimeout) * time.Minute
}

// DJIdleGrace is the time a warned DJ has to show activity.
func (c *Config) DJIdleGrace() time.Duration {
	return time.Duration(c.Bot.DJIdleGrace) * time.Minute
}
