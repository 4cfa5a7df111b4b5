package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"ddmbot/internal/config"
	"ddmbot/internal/database"
	"ddmbot/internal/discord"
	"ddmbot/internal/music/directstream"
	"ddmbot/internal/music/parsers/ffmpeg"
	"ddmbot/internal/music/player"
	"ddmbot/internal/music/resolver"
	"ddmbot/internal/music/stream"
	"ddmbot/internal/music/users"
	"ddmbot/internal/storage"
	"ddmbot/pkg/jobmgr"
)

// shutdownGrace is how long background jobs get to stop after a run ends.
const shutdownGrace = 3 * time.Second

type job struct {
	name string
	run  func(ctx context.Context) error
}

// runOnce wires every component for a single bot run and blocks until the
// run ends. The database and the datastore are closed before it returns.
func runOnce(ctx context.Context, cfg *config.Config) (err error) {
	db, err := database.Open(ctx, database.Options{
		Path:            cfg.Bot.DatabasePath,
		CreditCap:       cfg.Bot.OpCreditCap,
		CreditRenew:     cfg.CreditRenew(),
		SongMaxDuration: cfg.SongMaxDuration(),
		APSkipRatio:     cfg.Bot.APSkipRatio,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("Failed to close the database")
		}
	}()

	store, err := storage.New(cfg.Bot.StoragePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	opus, err := stream.NewOpusEncoder()
	if err != nil {
		return err
	}

	notifier := discord.NewNotifier(session, cfg.Discord)
	res := resolver.New(cfg.Bot.YouTubeProxy)
	transcoder := ffmpeg.NewTranscoder(cfg.Bot.PCMPipeSize)
	voice := &stream.DiscordVoice{}

	um := users.New(users.Options{
		IdleTimeout: cfg.DJIdleTimeout(),
		IdleGrace:   cfg.DJIdleGrace(),
		Whisperer:   notifier,
	})

	var pl *player.Player

	direct := directstream.New(directstream.Options{
		Bind:    cfg.Stream.Bind,
		Name:    cfg.Stream.Name,
		MetaInt: cfg.Stream.MetaInt,
		Encoder: func(ctx context.Context) (directstream.Encoder, error) {
			enc, err := transcoder.StartEncoder(ctx, cfg.Stream.Bitrate)
			if err != nil {
				return nil, err
			}
			return enc, nil
		},
		Tokens:    store,
		Listeners: um,
		Mover:     notifier,
		Status:    func() directstream.Status { return streamStatus(pl.Snapshot(), um.DisplayInfo()) },
	})

	proc, err := stream.New(stream.Options{
		Volume:  float64(cfg.Bot.DefaultVolume) / 100,
		Voice:   voice,
		Direct:  direct,
		Encoder: opus,
		Next:    func() { pl.PlaybackEnded() },
	})
	if err != nil {
		return err
	}

	// the player posts nothing before the server is validated
	initialized := make(chan struct{})
	pl = player.New(player.Options{
		SkipRatio:           cfg.Bot.SkipRatio,
		Cooldown:            cfg.CooldownPeriod(),
		StreamEndTransition: cfg.StreamEndTransition(),
		InitialState:        cfg.Bot.InitialState,
		Users:               um,
		Library:             db,
		Extractor:           res,
		Decoder:             transcoder,
		PCM:                 proc,
		Meta:                direct,
		Notifier:            notifier,
		Ready:               initialized,
	})
	um.SetListener(pl)

	bot, err := discord.New(discord.Options{
		Config:      cfg,
		Session:     session,
		DB:          db,
		Storage:     store,
		Users:       um,
		Player:      pl,
		Voice:       voice,
		Notifier:    notifier,
		Resolver:    res,
		Initialized: initialized,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := jobmgr.NewManager(runCtx, func(status string) {
		log.Debug().Str("job", status).Msg("Job status changed")
	})
	for _, j := range []job{
		{"credits", db.RunCreditRenew},
		{"users", um.Run},
		{"player", pl.Run},
		{"pcm", proc.Run},
		{"direct-stream", direct.Run},
	} {
		if err := jobs.StartAsync(j.name, j.run); err != nil {
			return err
		}
	}
	defer func() {
		jobs.StopAll()
		if !jobs.Wait(shutdownGrace) {
			log.Warn().Msg("Some background jobs did not stop in time")
		}
	}()

	go func() {
		select {
		case jerr := <-jobs.Errors():
			log.Error().Err(jerr).Msg("Background job failed")
			cancel(jerr)
		case <-runCtx.Done():
		}
	}()

	err = bot.Run(runCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func streamStatus(s player.Snapshot, info users.Info) directstream.Status {
	title := s.Title
	if s.State == player.Streaming {
		title = s.StreamTitle
	}
	return directstream.Status{
		State:           s.State.String(),
		Title:           title,
		Listeners:       info.ListenerCount,
		DirectListeners: len(info.Direct),
	}
}
