package queue

import (
	"fmt"
	"time"
)

// Intent states. An intent never transitions back to registered; the row is
// kept with its fired timestamp for diagnostics.
const (
	IntentRegistered = "registered"
	IntentFired      = "fired"
)

// Intent is a deferred replay registration.
type Intent struct {
	Tag          string
	State        string
	RegisteredAt time.Time
	FiredAt      *time.Time
}

// RegisterIntent records a replay-when-online intent for the given tag.
// Re-registering an already pending tag refreshes its timestamp.
func (db *DB) RegisterIntent(tag string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT INTO replay_intents (tag, state, registered_at, fired_at)
			VALUES (?, ?, CURRENT_TIMESTAMP, NULL)
			ON CONFLICT(tag) DO UPDATE SET state = excluded.state, registered_at = excluded.registered_at, fired_at = NULL`,
			tag, IntentRegistered,
		)
		if err != nil {
			return fmt.Errorf("register intent %q: %w", tag, err)
		}
		return nil
	})
}

// PendingIntents returns intents awaiting a replay, oldest first.
func (db *DB) PendingIntents() ([]Intent, error) {
	rows, err := db.conn.Query(`
		SELECT tag, state, registered_at, fired_at
		FROM replay_intents WHERE state = ? ORDER BY registered_at ASC`, IntentRegistered)
	if err != nil {
		return nil, fmt.Errorf("query intents: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		var (
			in        Intent
			regAt     string
			firedAt   *string
		)
		if err := rows.Scan(&in.Tag, &in.State, &regAt, &firedAt); err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		t, err := parseTimestamp(regAt)
		if err != nil {
			return nil, fmt.Errorf("parse registered_at tag=%q: %w", in.Tag, err)
		}
		in.RegisteredAt = t
		if firedAt != nil && *firedAt != "" {
			ft, err := parseTimestamp(*firedAt)
			if err != nil {
				return nil, fmt.Errorf("parse fired_at tag=%q: %w", in.Tag, err)
			}
			in.FiredAt = &ft
		}
		intents = append(intents, in)
	}
	return intents, rows.Err()
}

// MarkIntentFired transitions an intent to fired once a replay has run.
func (db *DB) MarkIntentFired(tag string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			UPDATE replay_intents SET state = ?, fired_at = CURRENT_TIMESTAMP WHERE tag = ?`,
			IntentFired, tag,
		)
		if err != nil {
			return fmt.Errorf("mark intent fired %q: %w", tag, err)
		}
		return nil
	})
}
