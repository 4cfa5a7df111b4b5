// Command ddmbot runs the music bot until it is shut down. Restart requests
// and transient connection failures start a fresh run.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ddmbot/internal/config"
	"ddmbot/internal/discord"
	"ddmbot/internal/logging"
	"ddmbot/internal/version"
)

const (
	defaultLogFile = "ddmbot.log"
	retryDelay     = 60 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile, logFile string

	root := &cobra.Command{
		Use:           "ddmbot",
		Short:         version.AppDescription,
		Version:       version.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configFile, logFile)
		},
	}
	root.Flags().StringVarP(&configFile, "config-file", "c", config.DefaultPath, "configuration file to use")
	root.Flags().StringVarP(&logFile, "log-file", "l", defaultLogFile, "log file to write to")
	return root
}

func run(ctx context.Context, configFile, logFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	rotator := logging.Setup(logging.Options{
		Level:         cfg.Log.Level,
		File:          logFile,
		RetentionDays: cfg.Log.RetentionDays,
	})
	if rotator != nil {
		defer rotator.Close()
		go func() {
			if err := logging.RotateDaily(ctx, rotator); err != nil {
				log.Warn().Err(err).Msg("Log rotation stopped")
			}
		}()
	}

	lock := flock.New(cfg.Bot.DatabasePath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already using %s", cfg.Bot.DatabasePath)
	}
	defer lock.Unlock()

	log.Info().Str("version", version.AppVersion).Msgf("Starting %s", version.AppName)

	for {
		err := runOnce(ctx, cfg)
		switch {
		case errors.Is(err, discord.ErrRestartRequested):
			log.Info().Msg("Restarting the bot")
			continue
		case err == nil, errors.Is(err, discord.ErrShutdownRequested):
			log.Info().Msg("Bot was shut down")
			return nil
		case transient(err):
			log.Error().Err(err).Msg("Bot finished with an exception, retrying in 60 seconds")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
		default:
			log.WithLevel(zerolog.FatalLevel).Err(err).Msg("Bot finished with an unrecoverable error")
			return err
		}
	}
}

// transient reports whether err is worth another run.
func transient(err error) bool {
	var (
		connErr *discord.ConnectionError
		netErr  net.Error
	)
	return errors.As(err, &connErr) || errors.As(err, &netErr)
}
