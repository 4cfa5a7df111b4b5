package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
)

// DefaultPlaylistName is the playlist created implicitly on the first song add.
const DefaultPlaylistName = "default"

var playlistNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

// Playlist is a named, ordered list of songs owned by a user.
type Playlist struct {
	ID        int64
	UserID    string
	Name      string
	Repeat    bool
	SongCount int
}

// PlaylistItem is one entry of a playlist listing.
type PlaylistItem struct {
	SongID int64
	Title  string
}

// PlaylistPage is a window into a playlist.
type PlaylistPage struct {
	Playlist Playlist
	Total    int
	Items    []PlaylistItem
}

// AddResult reports the outcome of adding songs to a playlist.
type AddResult struct {
	Playlist string
	Created  bool
	Added    int
	Skipped  []string
}

// ValidPlaylistName reports whether name may be used for a playlist.
func ValidPlaylistName(name string) bool {
	return playlistNameRegex.MatchString(name)
}

func (d *DB) playlistByName(ctx context.Context, q querier, userID, name string) (*Playlist, error) {
	p := Playlist{UserID: userID, Name: name}
	var repeat int
	err := q.QueryRowContext(ctx,
		"SELECT id, repeat_songs FROM playlists WHERE user_id = ? AND name = ?", userID, name,
	).Scan(&p.ID, &repeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &PlaylistNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("load playlist: %w", err)
	}
	p.Repeat = repeat != 0
	return &p, nil
}

func (d *DB) activePlaylist(ctx context.Context, q querier, userID string) (*Playlist, error) {
	p := Playlist{UserID: userID}
	var repeat int
	err := q.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.repeat_songs
		FROM users u JOIN playlists p ON p.id = u.active_playlist_id
		WHERE u.id = ?`, userID,
	).Scan(&p.ID, &p.Name, &repeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActivePlaylist
	}
	if err != nil {
		return nil, fmt.Errorf("load active playlist: %w", err)
	}
	p.Repeat = repeat != 0
	return &p, nil
}

// resolvePlaylist returns the named playlist, or the active one when name is empty.
func (d *DB) resolvePlaylist(ctx context.Context, q querier, userID, name string) (*Playlist, error) {
	if name == "" {
		return d.activePlaylist(ctx, q, userID)
	}
	return d.playlistByName(ctx, q, userID, name)
}

func (d *DB) countLinks(ctx context.Context, q querier, playlistID int64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM links WHERE playlist_id = ?", playlistID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count playlist songs: %w", err)
	}
	return n, nil
}

// ActivePlaylist returns the playlist songs are played from.
func (d *DB) ActivePlaylist(ctx context.Context, userID string) (*Playlist, error) {
	ctx = ensureContext(ctx)
	p, err := d.activePlaylist(ctx, d.db, userID)
	if err != nil {
		return nil, err
	}
	if p.SongCount, err = d.countLinks(ctx, d.db, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePlaylist creates an empty playlist and makes it active.
func (d *DB) CreatePlaylist(ctx context.Context, userID, name string) (*Playlist, error) {
	if !ValidPlaylistName(name) {
		return nil, ErrInvalidPlaylistName
	}
	p := &Playlist{UserID: userID, Name: name, Repeat: true}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := d.playlistByName(ctx, tx, userID, name); err == nil {
			return &DuplicatePlaylistError{Name: name}
		}
		res, err := tx.ExecContext(ctx, "INSERT INTO playlists (user_id, name) VALUES (?, ?)", userID, name)
		if err != nil {
			return fmt.Errorf("insert playlist: %w", err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET active_playlist_id = ? WHERE id = ?", p.ID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ClearPlaylist removes every song from the playlist and returns its name.
func (d *DB) ClearPlaylist(ctx context.Context, userID, name string) (string, error) {
	var cleared string
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := d.resolvePlaylist(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		cleared = p.Name
		_, err = tx.ExecContext(ctx, "DELETE FROM links WHERE playlist_id = ?", p.ID)
		return err
	})
	return cleared, err
}

// ListPlaylists returns the user's playlists with their song counts.
func (d *DB) ListPlaylists(ctx context.Context, userID string) ([]Playlist, error) {
	rows, err := d.db.QueryContext(ensureContext(ctx), `
		SELECT p.id, p.name, p.repeat_songs, COUNT(l.id)
		FROM playlists p LEFT JOIN links l ON l.playlist_id = p.id
		WHERE p.user_id = ?
		GROUP BY p.id
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var out []Playlist
	for rows.Next() {
		p := Playlist{UserID: userID}
		var repeat int
		if err := rows.Scan(&p.ID, &p.Name, &repeat, &p.SongCount); err != nil {
			return nil, err
		}
		p.Repeat = repeat != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// ShowPlaylist returns up to limit songs starting at offset (zero based).
func (d *DB) ShowPlaylist(ctx context.Context, userID, name string, offset, limit int) (*PlaylistPage, error) {
	ctx = ensureContext(ctx)
	p, err := d.resolvePlaylist(ctx, d.db, userID, name)
	if err != nil {
		return nil, err
	}
	total, err := d.countLinks(ctx, d.db, p.ID)
	if err != nil {
		return nil, err
	}
	p.SongCount = total
	page := &PlaylistPage{Playlist: *p, Total: total}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT s.id, s.title
		FROM links l JOIN songs s ON s.id = l.song_id
		WHERE l.playlist_id = ?
		ORDER BY l.position, l.id
		LIMIT ? OFFSET ?`, p.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("show playlist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item PlaylistItem
		if err := rows.Scan(&item.SongID, &item.Title); err != nil {
			return nil, err
		}
		page.Items = append(page.Items, item)
	}
	return page, rows.Err()
}

// RemovePlaylist deletes the playlist together with its songs.
func (d *DB) RemovePlaylist(ctx context.Context, userID, name string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := d.playlistByName(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", p.ID)
		return err
	})
}

// SetRepeat changes whether played songs go to the tail or are removed.
func (d *DB) SetRepeat(ctx context.Context, userID, name string, repeat bool) (string, error) {
	var updated string
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := d.resolvePlaylist(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		updated = p.Name
		_, err = tx.ExecContext(ctx, "UPDATE playlists SET repeat_songs = ? WHERE id = ?", boolToInt(repeat), p.ID)
		return err
	})
	return updated, err
}

// SetActive switches the user's active playlist.
func (d *DB) SetActive(ctx context.Context, userID, name string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := d.playlistByName(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET active_playlist_id = ? WHERE id = ?", p.ID, userID)
		return err
	})
}

// ShufflePlaylist randomises the song order and returns the playlist name.
func (d *DB) ShufflePlaylist(ctx context.Context, userID, name string) (string, error) {
	var shuffled string
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		p, err := d.resolvePlaylist(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		shuffled = p.Name

		ids, err := linkIDs(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		for pos, id := range ids {
			if _, err := tx.ExecContext(ctx, "UPDATE links SET position = ? WHERE id = ?", pos+1, id); err != nil {
				return fmt.Errorf("reorder playlist: %w", err)
			}
		}
		return nil
	})
	return shuffled, err
}

func linkIDs(ctx context.Context, q querier, playlistID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM links WHERE playlist_id = ? ORDER BY position, id", playlistID)
	if err != nil {
		return nil, fmt.Errorf("list playlist links: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// playlistForAdd resolves the target playlist, creating the implicit default
// playlist when the user has none at all.
func (d *DB) playlistForAdd(ctx context.Context, tx *sql.Tx, userID, name string) (*Playlist, bool, error) {
	if name != "" {
		p, err := d.playlistByName(ctx, tx, userID, name)
		return p, false, err
	}

	p, err := d.activePlaylist(ctx, tx, userID)
	if !errors.Is(err, ErrNoActivePlaylist) {
		return p, false, err
	}

	var owned int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM playlists WHERE user_id = ?", userID).Scan(&owned); err != nil {
		return nil, false, err
	}
	if owned > 0 {
		return nil, false, ErrNoActivePlaylist
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO playlists (user_id, name, repeat_songs) VALUES (?, ?, 0)", userID, DefaultPlaylistName)
	if err != nil {
		return nil, false, fmt.Errorf("create default playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET active_playlist_id = ? WHERE id = ?", id, userID); err != nil {
		return nil, false, err
	}
	return &Playlist{ID: id, UserID: userID, Name: DefaultPlaylistName}, true, nil
}

// AddSongs stores the tracks and appends them to the playlist, or prepends
// them in the given order when front is set. Blacklisted and overlong songs
// are skipped.
func (d *DB) AddSongs(ctx context.Context, userID, name string, tracks []Track, front bool) (*AddResult, error) {
	result := &AddResult{}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		*result = AddResult{}
		if _, err := d.ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		p, created, err := d.playlistForAdd(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		result.Playlist = p.Name
		result.Created = created

		var songIDs []int64
		for _, track := range tracks {
			song, err := d.ensureSong(ctx, tx, track)
			if err != nil {
				return err
			}
			canonical, err := d.canonicalSong(ctx, tx, song)
			if err != nil {
				return err
			}
			if canonical.IsBlacklisted || d.tooLong(canonical.Duration) {
				result.Skipped = append(result.Skipped, song.Title)
				continue
			}
			songIDs = append(songIDs, song.ID)
		}

		var minPos, maxPos int64
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MIN(position), 1), COALESCE(MAX(position), 0) FROM links WHERE playlist_id = ?", p.ID,
		).Scan(&minPos, &maxPos); err != nil {
			return err
		}

		for i, songID := range songIDs {
			pos := maxPos + int64(i) + 1
			if front {
				pos = minPos - int64(len(songIDs)) + int64(i)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO links (playlist_id, song_id, position) VALUES (?, ?, ?)", p.ID, songID, pos,
			); err != nil {
				return fmt.Errorf("insert playlist entry: %w", err)
			}
		}
		result.Added = len(songIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *DB) tooLong(duration int) bool {
	limit := int(d.opts.SongMaxDuration.Seconds())
	return limit > 0 && duration > limit
}
