package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User holds the per-user counters.
type User struct {
	ID             string
	ActivePlaylist string
	PlaylistCount  int
	PlayCount      int
	ListenCount    int
	IsIgnored      bool
	CreatedAt      time.Time
}

// InteractionCheck registers the user on first contact. It reports whether
// the user was just created and fails with ErrIgnoredUser for ignored users.
func (d *DB) InteractionCheck(ctx context.Context, userID string) (bool, error) {
	var (
		created bool
		ignored int
	)
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if created, err = d.ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT is_ignored FROM users WHERE id = ?", userID).Scan(&ignored)
	})
	if err != nil {
		return false, fmt.Errorf("interaction check: %w", err)
	}
	if ignored != 0 {
		return created, ErrIgnoredUser
	}
	return created, nil
}

// SetIgnored adds or removes the user from the ignore list.
func (d *DB) SetIgnored(ctx context.Context, userID string, ignored bool) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE users SET is_ignored = ? WHERE id = ?", boolToInt(ignored), userID)
		return err
	})
}

// UserInfo returns the stored counters of a user.
func (d *DB) UserInfo(ctx context.Context, userID string) (*User, error) {
	var (
		u       = User{ID: userID}
		active  sql.NullString
		ignored int
		created int64
	)
	err := d.db.QueryRowContext(ensureContext(ctx), `
		SELECT p.name, u.play_count, u.listen_count, u.is_ignored, u.created_at,
			(SELECT COUNT(1) FROM playlists WHERE user_id = u.id)
		FROM users u LEFT JOIN playlists p ON p.id = u.active_playlist_id
		WHERE u.id = ?`, userID,
	).Scan(&active, &u.PlayCount, &u.ListenCount, &ignored, &created, &u.PlaylistCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u.ActivePlaylist = active.String
	u.IsIgnored = ignored != 0
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

// IgnoredUsers lists the ids of every ignored user.
func (d *DB) IgnoredUsers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ensureContext(ctx), "SELECT id FROM users WHERE is_ignored = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list ignored users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
