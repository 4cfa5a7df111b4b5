package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ddmbot/internal/database"
	"ddmbot/pkg/util"
)

func newSongsCommand(ctx *commandContext) *cobra.Command {
	var failed bool
	cmd := &cobra.Command{
		Use:   "songs",
		Short: "List songs in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withDB(cmd.Context(), func(db *database.DB) error {
				var (
					songs []*database.Song
					err   error
				)
				if failed {
					songs, err = db.FailedSongs(cmd.Context())
				} else {
					songs, err = db.AllSongs(cmd.Context())
				}
				if err != nil {
					return err
				}
				if len(songs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No songs found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Duration", "Credits", "Last played", "Flags"},
					songRows(songs),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "List only songs that failed to play")
	return cmd
}

func songRows(songs []*database.Song) [][]string {
	rows := make([][]string, 0, len(songs))
	for _, s := range songs {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Title,
			fmt.Sprintf("%d:%02d", s.Duration/60, s.Duration%60),
			strconv.Itoa(s.CreditCount),
			lastPlayed(s),
			songFlags(s),
		})
	}
	return rows
}

func lastPlayed(s *database.Song) string {
	if v := util.FormatDate(s.LastPlayed, "YYYY-MM-DD hh:mm"); v != "" {
		return v
	}
	return "never"
}

func songFlags(s *database.Song) string {
	var flags string
	if s.IsBlacklisted {
		flags += "B"
	}
	if s.HasFailed {
		flags += "F"
	}
	if s.DuplicateID != 0 {
		flags += fmt.Sprintf("D(%d)", s.DuplicateID)
	}
	return flags
}

func newSongCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Curate a single song",
	}
	cmd.AddCommand(newBlacklistCommand(ctx, "blacklist", true))
	cmd.AddCommand(newBlacklistCommand(ctx, "unblacklist", false))
	return cmd
}

func newBlacklistCommand(ctx *commandContext, use string, blacklist bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a song as %sed", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid song id %q", args[0])
			}
			return ctx.withDB(cmd.Context(), func(db *database.DB) error {
				song, err := db.SetBlacklisted(cmd.Context(), id, blacklist)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Song [%d] %s was %sed\n", song.ID, song.Title, use)
				return nil
			})
		},
	}
}
