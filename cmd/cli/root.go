package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ddmbot/internal/config"
	"ddmbot/internal/database"
	"ddmbot/internal/version"
)

type commandContext struct {
	configFile string
	dbPath     string
}

// withDB opens the database for the duration of fn. An explicit --database
// path skips loading the bot configuration.
func (c *commandContext) withDB(ctx context.Context, fn func(db *database.DB) error) error {
	cfg := config.Default()
	if c.dbPath == "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return err
		}
		cfg = *loaded
	} else {
		cfg.Bot.DatabasePath = c.dbPath
	}

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
	defer db.Close()
	return fn(db)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:           "ddmbot-cli",
		Short:         version.AppName + " database maintenance",
		Version:       version.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&ctx.configFile, "config-file", "c", config.DefaultPath, "Configuration file path")
	root.PersistentFlags().StringVar(&ctx.dbPath, "database", "", "Database path, overrides the configuration")

	root.AddCommand(newSongsCommand(ctx))
	root.AddCommand(newSongCommand(ctx))
	root.AddCommand(newUserCommand(ctx))
	root.AddCommand(newStatsCommand(ctx))
	return root
}
