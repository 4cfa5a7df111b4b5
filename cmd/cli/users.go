package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ddmbot/internal/database"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the ignore list",
	}
	cmd.AddCommand(newIgnoreCommand(ctx, "ignore", true))
	cmd.AddCommand(newIgnoreCommand(ctx, "unignore", false))
	return cmd
}

func newIgnoreCommand(ctx *commandContext, use string, ignore bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("%s a Discord user by ID", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return ctx.withDB(cmd.Context(), func(db *database.DB) error {
				if err := db.SetIgnored(cmd.Context(), args[0], ignore); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s was %sd\n", args[0], use)
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withDB(cmd.Context(), func(db *database.DB) error {
				st, err := db.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Songs", strconv.Itoa(st.Songs)},
					{"Blacklisted", strconv.Itoa(st.Blacklisted)},
					{"Failed", strconv.Itoa(st.Failed)},
					{"Duplicates", strconv.Itoa(st.Duplicates)},
					{"Users", strconv.Itoa(st.Users)},
					{"Ignored", strconv.Itoa(st.Ignored)},
					{"Playlists", strconv.Itoa(st.Playlists)},
					{"Playlist entries", strconv.Itoa(st.Links)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
