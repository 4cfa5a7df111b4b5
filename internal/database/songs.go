package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ddmbot/internal/music/sources"
)

const songColumns = "id, uuri, title, duration, is_blacklisted, has_failed, last_played, credit_count, listener_count, skip_vote_count, duplicate_id"

// maxDuplicateDepth bounds the walk along duplicate references.
const maxDuplicateDepth = 16

// Song is a playable item identified by its uuri.
type Song struct {
	ID            int64
	UURI          string
	Title         string
	Duration      int
	IsBlacklisted bool
	HasFailed     bool
	LastPlayed    time.Time
	CreditCount   int
	ListenerCount int
	SkipVoteCount int
	DuplicateID   int64
}

// URL returns the canonical link of the song.
func (s *Song) URL() string {
	u, err := sources.MakeURL(s.UURI)
	if err != nil {
		return ""
	}
	return u
}

// Track describes a song before it is stored.
type Track struct {
	UURI     string
	Title    string
	Duration int
}

// Stats summarises the library.
type Stats struct {
	Songs       int
	Blacklisted int
	Failed      int
	Duplicates  int
	Users       int
	Ignored     int
	Playlists   int
	Links       int
}

func scanSong(scanner interface{ Scan(dest ...any) error }) (*Song, error) {
	var (
		s           Song
		blacklisted int
		failed      int
		lastPlayed  int64
		duplicate   sql.NullInt64
	)
	if err := scanner.Scan(
		&s.ID,
		&s.UURI,
		&s.Title,
		&s.Duration,
		&blacklisted,
		&failed,
		&lastPlayed,
		&s.CreditCount,
		&s.ListenerCount,
		&s.SkipVoteCount,
		&duplicate,
	); err != nil {
		return nil, err
	}
	s.IsBlacklisted = blacklisted != 0
	s.HasFailed = failed != 0
	s.LastPlayed = time.Unix(lastPlayed, 0)
	s.DuplicateID = duplicate.Int64
	return &s, nil
}

func (d *DB) songQuery(ctx context.Context, q querier, where string, args ...any) (*Song, error) {
	row := q.QueryRowContext(ctx, "SELECT "+songColumns+" FROM songs WHERE "+where, args...)
	s, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load song: %w", err)
	}
	return s, nil
}

func (d *DB) listSongs(ctx context.Context, query string, args ...any) ([]*Song, error) {
	rows, err := d.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

// Song returns the song with the given id.
func (d *DB) Song(ctx context.Context, id int64) (*Song, error) {
	return d.songQuery(ensureContext(ctx), d.db, "id = ?", id)
}

// SongByUURI returns the song with the given uuri.
func (d *DB) SongByUURI(ctx context.Context, uuri string) (*Song, error) {
	return d.songQuery(ensureContext(ctx), d.db, "uuri = ?", uuri)
}

// EnsureSong returns the stored song for the track, inserting it first when
// unknown. New songs start with a full credit count.
func (d *DB) EnsureSong(ctx context.Context, track Track) (*Song, error) {
	var song *Song
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		song, err = d.ensureSong(ctx, tx, track)
		return err
	})
	return song, err
}

func (d *DB) ensureSong(ctx context.Context, q querier, track Track) (*Song, error) {
	if track.UURI == "" {
		return nil, ErrTrackWithoutIdentity
	}
	title := strings.TrimSpace(track.Title)
	if title == "" {
		title = track.UURI
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO songs (uuri, title, title_key, duration, last_played, credit_count)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(uuri) DO NOTHING`,
		track.UURI, title, titleKey(title), track.Duration, d.opts.CreditCap,
	); err != nil {
		return nil, fmt.Errorf("insert song: %w", err)
	}
	return d.songQuery(ctx, q, "uuri = ?", track.UURI)
}

// canonicalSong follows duplicate references until it reaches the canonical song.
func (d *DB) canonicalSong(ctx context.Context, q querier, s *Song) (*Song, error) {
	for depth := 0; s.DuplicateID != 0; depth++ {
		if depth >= maxDuplicateDepth {
			return nil, fmt.Errorf("duplicate chain of song %d is too deep", s.ID)
		}
		next, err := d.songQuery(ctx, q, "id = ?", s.DuplicateID)
		if err != nil {
			return nil, err
		}
		s = next
	}
	return s, nil
}

// SearchSongs finds songs whose folded title contains the folded query.
func (d *DB) SearchSongs(ctx context.Context, query string, limit int) ([]*Song, error) {
	key := titleKey(query)
	if key == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return d.listSongs(ctx,
		"SELECT "+songColumns+" FROM songs WHERE instr(title_key, ?) > 0 ORDER BY id LIMIT ?",
		key, limit)
}

// FailedSongs lists songs flagged after an extraction error.
func (d *DB) FailedSongs(ctx context.Context) ([]*Song, error) {
	return d.listSongs(ctx, "SELECT "+songColumns+" FROM songs WHERE has_failed = 1 ORDER BY id")
}

// AllSongs lists the whole library ordered by id.
func (d *DB) AllSongs(ctx context.Context) ([]*Song, error) {
	return d.listSongs(ctx, "SELECT "+songColumns+" FROM songs ORDER BY id")
}

func (d *DB) updateSong(ctx context.Context, id int64, query string, args ...any) (*Song, error) {
	res, err := d.execWithRetry(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update song %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrSongNotFound
	}
	return d.Song(ctx, id)
}

// SetBlacklisted blacklists or restores a song.
func (d *DB) SetBlacklisted(ctx context.Context, id int64, blacklisted bool) (*Song, error) {
	return d.updateSong(ctx, id, "UPDATE songs SET is_blacklisted = ? WHERE id = ?", boolToInt(blacklisted))
}

// SetFailed sets or clears the extraction failure flag.
func (d *DB) SetFailed(ctx context.Context, id int64, failed bool) (*Song, error) {
	return d.updateSong(ctx, id, "UPDATE songs SET has_failed = ? WHERE id = ?", boolToInt(failed))
}

// RenameSong changes the displayed title.
func (d *DB) RenameSong(ctx context.Context, id int64, title string) (*Song, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title cannot be empty")
	}
	return d.updateSong(ctx, id, "UPDATE songs SET title = ?, title_key = ? WHERE id = ?", title, titleKey(title))
}

// MergeSongs marks duplicate as a copy of canonical. Songs that pointed to
// duplicate are re-pointed to the canonical root.
func (d *DB) MergeSongs(ctx context.Context, duplicateID, canonicalID int64) (*Song, error) {
	if duplicateID == canonicalID {
		return nil, ErrMergeCycle
	}

	var root *Song
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		dup, err := d.songQuery(ctx, tx, "id = ?", duplicateID)
		if err != nil {
			return err
		}
		canonical, err := d.songQuery(ctx, tx, "id = ?", canonicalID)
		if err != nil {
			return err
		}
		root, err = d.canonicalSong(ctx, tx, canonical)
		if err != nil {
			return err
		}
		if root.ID == dup.ID {
			return ErrMergeCycle
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE songs SET duplicate_id = ? WHERE id = ? OR duplicate_id = ?",
			root.ID, dup.ID, dup.ID,
		); err != nil {
			return fmt.Errorf("merge songs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Info().Int64("duplicate", duplicateID).Int64("canonical", root.ID).Msg("songs merged")
	return root, nil
}

// Stats counts the stored entities.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	ctx = ensureContext(ctx)
	var s Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM songs),
			(SELECT COUNT(1) FROM songs WHERE is_blacklisted = 1),
			(SELECT COUNT(1) FROM songs WHERE has_failed = 1),
			(SELECT COUNT(1) FROM songs WHERE duplicate_id IS NOT NULL),
			(SELECT COUNT(1) FROM users),
			(SELECT COUNT(1) FROM users WHERE is_ignored = 1),
			(SELECT COUNT(1) FROM playlists),
			(SELECT COUNT(1) FROM links)`,
	).Scan(&s.Songs, &s.Blacklisted, &s.Failed, &s.Duplicates, &s.Users, &s.Ignored, &s.Playlists, &s.Links)
	if err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}
	return &s, nil
}
