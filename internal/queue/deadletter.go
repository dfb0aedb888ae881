package queue

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/shopsync/internal/models"
)

// DeadLetter is a queue item that exhausted its retry budget.
type DeadLetter struct {
	Item     models.QueuedItem
	FailedAt time.Time
}

// DeadLetters returns dead-lettered items, most recent failure first.
func (db *DB) DeadLetters(limit int) ([]DeadLetter, error) {
	rows, err := db.conn.Query(`
		SELECT id, key, category, kind, payload, timestamp, retry_count, last_error, failed_at
		FROM dead_letters ORDER BY failed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var (
			dl       DeadLetter
			category string
			kind     string
			payload  string
			failedAt string
		)
		if err := rows.Scan(&dl.Item.ID, &dl.Item.Key, &category, &kind, &payload,
			&dl.Item.Timestamp, &dl.Item.RetryCount, &dl.Item.LastError, &failedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.Item.Category = models.Category(category)
		dl.Item.Kind = models.Kind(kind)
		dl.Item.Payload = []byte(payload)
		t, err := parseTimestamp(failedAt)
		if err != nil {
			return nil, fmt.Errorf("parse failed_at id=%d: %w", dl.Item.ID, err)
		}
		dl.FailedAt = t
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

// DeadLetterCount returns the number of dead-lettered items.
func (db *DB) DeadLetterCount() (int64, error) {
	var count int64
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&count)
	return count, err
}

// RequeueDeadLetter moves a dead-lettered item back onto its queue with a
// reset retry counter. Returns false when no such item exists.
func (db *DB) RequeueDeadLetter(id int64) (bool, error) {
	requeued := false
	err := db.withWriteLock(func() error {
		var (
			key, category, kind, payload, lastError string
			timestamp                               int64
		)
		err := db.conn.QueryRow(`
			SELECT key, category, kind, payload, timestamp, last_error
			FROM dead_letters WHERE id = ?`, id).
			Scan(&key, &category, &kind, &payload, &timestamp, &lastError)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup dead letter %d: %w", id, err)
		}

		if _, err := db.conn.Exec(`
			INSERT INTO queue_items (key, category, kind, payload, timestamp, retry_count, last_error)
			VALUES (?, ?, ?, ?, ?, 0, ?)`,
			key, category, kind, payload, timestamp, lastError,
		); err != nil {
			return fmt.Errorf("requeue dead letter %d: %w", id, err)
		}
		if _, err := db.conn.Exec(`DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
			return fmt.Errorf("remove dead letter %d: %w", id, err)
		}
		requeued = true
		return nil
	})
	return requeued, err
}

// PurgeDeadLetters removes every dead-lettered item. Returns the number purged.
func (db *DB) PurgeDeadLetters() (int64, error) {
	var purged int64
	err := db.withWriteLock(func() error {
		res, err := db.conn.Exec(`DELETE FROM dead_letters`)
		if err != nil {
			return err
		}
		purged, _ = res.RowsAffected()
		return nil
	})
	return purged, err
}
