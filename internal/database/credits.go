package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ddmbot/internal/logging"
)

const creditCheckInterval = time.Hour

// EnsureCreditTimestamp records the current time as the last renewal when
// none is stored yet.
func (d *DB) EnsureCreditTimestamp(ctx context.Context) error {
	_, err := d.execWithRetry(ctx,
		"INSERT OR IGNORE INTO credit_timestamp (id, last) VALUES (1, ?)", d.unixNow())
	if err != nil {
		return fmt.Errorf("ensure credit timestamp: %w", err)
	}
	return nil
}

// RenewCredits gives every song one credit per elapsed renewal period, up to
// the cap. The stored timestamp advances by whole periods only so partial
// periods carry over. It returns the number of credits added.
func (d *DB) RenewCredits(ctx context.Context) (int, error) {
	renew := int64(d.opts.CreditRenew / time.Second)
	if renew <= 0 {
		return 0, nil
	}

	var added int
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var last int64
		if err := tx.QueryRowContext(ctx, "SELECT last FROM credit_timestamp WHERE id = 1").Scan(&last); err != nil {
			return fmt.Errorf("read credit timestamp: %w", err)
		}

		n := (d.unixNow() - last) / renew
		if n <= 0 {
			added = 0
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE credit_timestamp SET last = ? WHERE id = 1", last+n*renew,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE songs SET credit_count = MIN(credit_count + ?, ?)", n, d.opts.CreditCap,
		); err != nil {
			return err
		}
		added = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// RunCreditRenew checks for credit renewal immediately and then every hour
// until ctx is cancelled.
func (d *DB) RunCreditRenew(ctx context.Context) error {
	log := logging.Component("credits")

	if err := d.EnsureCreditTimestamp(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(creditCheckInterval)
	defer ticker.Stop()

	for {
		added, err := d.RenewCredits(ctx)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("credit renewal failed")
		case added > 0:
			log.Info().Int("credits", added).Msg("song credits renewed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
