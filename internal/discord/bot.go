// Package discord connects the music bot to a single Discord server: it
// validates the configured channels, keeps the voice connection alive,
// tracks listeners and dispatches slash commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"ddmbot/internal/command"
	"ddmbot/internal/config"
	"ddmbot/internal/database"
	"ddmbot/internal/logging"
	"ddmbot/internal/music/stream"
	"ddmbot/internal/music/users"
	"ddmbot/internal/storage"
	"ddmbot/pkg/cmd"
)

var (
	ErrRestartRequested  = errors.New("restart requested")
	ErrShutdownRequested = errors.New("shutdown requested")
)

// lifecycleDelay lets the command that asked for a restart or shutdown finish
// its reply first.
const lifecycleDelay = 3 * time.Second

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages

// ConnectionError wraps failures to reach Discord. They are worth retrying.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "discord connection failed: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// Player is what the bot needs from the player on top of the commands.
type Player interface {
	command.Player
	BumpProtectionCounter()
}

type Options struct {
	Config   *config.Config
	Session  *discordgo.Session
	DB       *database.DB
	Storage  *storage.Storage
	Users    *users.Manager
	Player   Player
	Voice    *stream.DiscordVoice
	Notifier *Notifier
	Resolver command.Resolver

	// Initialized, when set, is closed once the server is validated and the
	// voice channel joined.
	Initialized chan struct{}
}

type Bot struct {
	opts     Options
	registry *cmd.Registry
	deps     *command.Deps

	ctx    context.Context
	cancel context.CancelCauseFunc

	initMu      sync.Mutex
	initialized atomic.Bool
	initOnce    sync.Once
	channels    *channels
	voiceMu     sync.Mutex

	log zerolog.Logger
}

func New(opts Options) (*Bot, error) {
	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	b := &Bot{
		opts:     opts,
		registry: reg,
		log:      logging.Component("discord"),
	}
	b.deps = &command.Deps{
		Config:    opts.Config,
		DB:        opts.DB,
		Storage:   opts.Storage,
		Users:     opts.Users,
		Player:    opts.Player,
		Resolver:  opts.Resolver,
		Lifecycle: b,
		Whisperer: opts.Notifier,
		Registry:  reg,
	}
	return b, nil
}

// Run connects to Discord and blocks until ctx is done or the bot is asked
// to stop. Restart and shutdown requests are returned as ErrRestartRequested
// and ErrShutdownRequested.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	b.ctx, b.cancel = ctx, cancel

	s := b.opts.Session
	s.Identify.Intents = intents
	s.StateEnabled = true

	removers := []func(){
		s.AddHandler(b.onReady),
		s.AddHandler(b.onGuildCreate),
		s.AddHandler(b.onVoiceStateUpdate),
		s.AddHandler(b.onMessageCreate),
		s.AddHandler(b.onInteractionCreate),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := s.Open(); err != nil {
		return &ConnectionError{Err: err}
	}
	defer func() {
		b.disconnectVoice()
		if err := s.Close(); err != nil {
			b.log.Warn().Err(err).Msg("Failed to close Discord session")
		}
	}()

	<-ctx.Done()
	cause := context.Cause(ctx)
	if errors.Is(cause, context.Canceled) {
		return nil
	}
	b.log.Warn().Err(cause).Msg("Discord bot is stopping")
	return cause
}

func (b *Bot) markInitialized() {
	b.initialized.Store(true)
	if b.opts.Initialized != nil {
		b.initOnce.Do(func() { close(b.opts.Initialized) })
	}
}

// fail stops the bot with err.
func (b *Bot) fail(err error) {
	if b.cancel != nil {
		b.cancel(err)
	}
}

func (b *Bot) Restart() {
	b.log.Info().Msg("Restart requested")
	time.AfterFunc(lifecycleDelay, func() { b.fail(ErrRestartRequested) })
}

func (b *Bot) Shutdown() {
	b.log.Info().Msg("Shutdown requested")
	time.AfterFunc(lifecycleDelay, func() { b.fail(ErrShutdownRequested) })
}

// initialize runs once per bot run when the guild becomes available.
func (b *Bot) initialize(s *discordgo.Session, g *discordgo.Guild) error {
	ch, err := validateSetup(s.State, g.ID, s.State.User.ID, b.opts.Config.Discord)
	if err != nil {
		return err
	}
	b.channels = ch
	b.deps.GuildID = g.ID
	b.opts.Notifier.setGuild(g.ID)
	b.restoreVolume(g.ID)

	if err := b.registerCommands(b.ctx, g.ID); err != nil {
		b.log.Error().Err(err).Msg("Failed to register slash commands")
	}

	if err := b.connectVoice(b.ctx); err != nil {
		return fmt.Errorf("connect to the voice channel: %w", err)
	}

	for _, vs := range g.VoiceStates {
		if vs.ChannelID == ch.voice && vs.UserID != s.State.User.ID {
			b.addListener(b.ctx, vs.UserID)
		}
	}
	return nil
}

// addListener registers a user who joined the voice channel. Ignored users
// are skipped.
func (b *Bot) addListener(ctx context.Context, userID string) {
	created, err := b.opts.DB.InteractionCheck(ctx, userID)
	if errors.Is(err, database.ErrIgnoredUser) {
		return
	}
	if err != nil {
		b.log.Error().Err(err).Str("user", userID).Msg("Interaction check failed")
		return
	}
	if created {
		b.welcome(ctx, userID)
	}
	if err := b.opts.Users.AddListener(userID, false); err != nil && !errors.Is(err, users.ErrAlreadyListening) {
		b.log.Warn().Err(err).Str("user", userID).Msg("Failed to add listener")
	}
}

func (b *Bot) removeListener(userID string) {
	if err := b.opts.Users.RemoveListener(userID, false); err != nil {
		b.log.Warn().Str("user", userID).Msg("Tried to remove a user from listeners but the user was not listed")
	}
}

func (b *Bot) welcome(ctx context.Context, userID string) {
	text, err := command.WelcomeText(b.deps, userID)
	if err != nil {
		b.log.Warn().Err(err).Str("user", userID).Msg("Failed to build welcome message")
		return
	}
	if err := b.opts.Notifier.Whisper(ctx, userID, text); err != nil {
		b.log.Warn().Err(err).Str("user", userID).Msg("Failed to send welcome message")
	}
}

func (b *Bot) restoreVolume(guildID string) {
	percent, ok, err := b.opts.Storage.Volume(guildID)
	if err != nil {
		b.log.Warn().Err(err).Msg("Failed to load saved volume")
		return
	}
	if ok {
		b.opts.Player.SetVolume(float64(percent) / 100)
	}
}
