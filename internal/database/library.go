package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Extractor resolves a song page URL into a directly playable media URL.
type Extractor interface {
	StreamURL(ctx context.Context, songURL string) (string, error)
}

// NextSong takes the head of the DJ's active playlist. Played songs move to
// the tail of repeating playlists and are removed from the others.
func (d *DB) NextSong(ctx context.Context, djID string, ex Extractor) (*SongContext, error) {
	var (
		song    *Song
		skipErr *SongSkipError
	)

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		song, skipErr = nil, nil

		p, err := d.activePlaylist(ctx, tx, djID)
		if err != nil {
			return err
		}

		var linkID, songID int64
		err = tx.QueryRowContext(ctx,
			"SELECT id, song_id FROM links WHERE playlist_id = ? ORDER BY position, id LIMIT 1", p.ID,
		).Scan(&linkID, &songID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlaylistEmpty
		}
		if err != nil {
			return fmt.Errorf("load playlist head: %w", err)
		}

		head, err := d.songQuery(ctx, tx, "id = ?", songID)
		if err != nil {
			return err
		}
		canonical, err := d.canonicalSong(ctx, tx, head)
		if err != nil {
			return err
		}

		switch {
		case canonical.IsBlacklisted:
			skipErr = &SongSkipError{SongID: canonical.ID, Title: canonical.Title, Reason: "is blacklisted"}
			return deleteLink(ctx, tx, linkID)
		case d.tooLong(canonical.Duration):
			skipErr = &SongSkipError{SongID: canonical.ID, Title: canonical.Title, Reason: "is too long"}
			return deleteLink(ctx, tx, linkID)
		case canonical.CreditCount <= 0:
			skipErr = &SongSkipError{SongID: canonical.ID, Title: canonical.Title, Reason: "was played too many times recently"}
			return moveLinkToTail(ctx, tx, p.ID, linkID)
		}

		song = canonical
		if p.Repeat {
			return moveLinkToTail(ctx, tx, p.ID, linkID)
		}
		return deleteLink(ctx, tx, linkID)
	})
	if err != nil {
		return nil, err
	}
	if skipErr != nil {
		return nil, skipErr
	}

	return d.prepare(ctx, djID, song, ex)
}

// AutoplaylistSong picks a random song eligible for the automatic playlist,
// or returns nil when there is none.
func (d *DB) AutoplaylistSong(ctx context.Context, ex Extractor) (*SongContext, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + songColumns + ` FROM songs
		WHERE is_blacklisted = 0
			AND has_failed = 0
			AND duplicate_id IS NULL
			AND credit_count > 0
			AND last_played <= ?
			AND (? <= 0 OR duration <= ?)
			AND (listener_count = 0 OR CAST(skip_vote_count AS REAL) / listener_count < ?)
		ORDER BY RANDOM()
		LIMIT 1`

	maxDuration := int(d.opts.SongMaxDuration.Seconds())
	lastPlayed := d.now().Add(-d.opts.CreditRenew).Unix()
	song, err := scanSong(d.db.QueryRowContext(ctx, query,
		lastPlayed, maxDuration, maxDuration, d.opts.APSkipRatio))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pick automatic playlist song: %w", err)
	}

	return d.prepare(ctx, "", song, ex)
}

// prepare extracts the media URL and keeps the failure flag in sync with the
// outcome.
func (d *DB) prepare(ctx context.Context, djID string, song *Song, ex Extractor) (*SongContext, error) {
	streamURL, err := ex.StreamURL(ctx, song.URL())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if _, flagErr := d.SetFailed(ctx, song.ID, true); flagErr != nil {
			d.log.Error().Err(flagErr).Int64("song", song.ID).Msg("failed to flag song")
		}
		return nil, &UnavailableSongError{SongID: song.ID, Title: song.Title, Err: err}
	}
	if song.HasFailed {
		if _, err := d.SetFailed(ctx, song.ID, false); err != nil {
			d.log.Error().Err(err).Int64("song", song.ID).Msg("failed to clear song failure flag")
		}
	}
	return NewSongContext(djID, song, streamURL), nil
}

// UpdateStats records a finished song: its play time, credit, audience and
// skip votes, plus the DJ's and listeners' counters.
func (d *DB) UpdateStats(ctx context.Context, sc *SongContext) error {
	listeners, votes := sc.statistics()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE songs SET
				last_played = ?,
				credit_count = MAX(credit_count - 1, 0),
				listener_count = listener_count + ?,
				skip_vote_count = skip_vote_count + ?
			WHERE id = ?`,
			d.unixNow(), len(listeners), votes, sc.SongID,
		); err != nil {
			return fmt.Errorf("update song stats: %w", err)
		}

		if sc.DJ != "" {
			if _, err := d.ensureUser(ctx, tx, sc.DJ); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE users SET play_count = play_count + 1 WHERE id = ?", sc.DJ); err != nil {
				return fmt.Errorf("update dj stats: %w", err)
			}
		}

		for _, id := range listeners {
			if _, err := d.ensureUser(ctx, tx, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE users SET listen_count = listen_count + 1 WHERE id = ?", id); err != nil {
				return fmt.Errorf("update listener stats: %w", err)
			}
		}
		return nil
	})
}

func deleteLink(ctx context.Context, tx *sql.Tx, linkID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM links WHERE id = ?", linkID); err != nil {
		return fmt.Errorf("remove playlist entry: %w", err)
	}
	return nil
}

func moveLinkToTail(ctx context.Context, tx *sql.Tx, playlistID, linkID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE links SET position = (SELECT COALESCE(MAX(position), 0) + 1 FROM links WHERE playlist_id = ?)
		WHERE id = ?`, playlistID, linkID,
	); err != nil {
		return fmt.Errorf("requeue playlist entry: %w", err)
	}
	return nil
}
