// Package queue implements the local durable store for sync-worthy actions:
// per-category FIFO queues backed by SQLite, a dead-letter collection for
// items past their retry budget, and replay-intent registrations.
package queue

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcus/shopsync/internal/models"
	_ "modernc.org/sqlite"
)

const dbFile = ".shopsync/queue.db"

// DB wraps the queue database connection
type DB struct {
	conn    *sql.DB
	baseDir string
	locker  *writeLocker
}

// Open opens the queue database and verifies the schema exists.
// A store that cannot be opened is reported to the caller, never hidden:
// dependents must check this error before queuing.
func Open(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("queue database not found: run 'shopsync init' first")
	}

	return open(baseDir, dbPath)
}

// Initialize creates the queue database and schema.
func Initialize(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}

	db, err := open(baseDir, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.conn.Exec(schema); err != nil {
		db.conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_meta`).Scan(&n); err == nil && n == 0 {
		db.conn.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, SchemaVersion)
	}

	return db, nil
}

func open(baseDir, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	// WAL lets the daemon read while a dispatcher process appends
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	return &DB{conn: conn, baseDir: baseDir, locker: newWriteLocker(baseDir)}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// BaseDir returns the base directory holding the queue database.
func (db *DB) BaseDir() string {
	return db.baseDir
}

// Conn returns the underlying *sql.DB connection for use in transactions.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// withWriteLock executes fn while holding an exclusive cross-process write
// lock. The underlying store serializes concurrent writers itself; the lock
// keeps multi-statement sequences (store, reschedule, dead-letter moves)
// atomic across processes.
func (db *DB) withWriteLock(fn func() error) error {
	if err := db.locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer db.locker.release()
	return fn()
}

// Store appends an item to its category's queue and assigns its ID.
func (db *DB) Store(item *models.QueuedItem) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`
			INSERT INTO queue_items (key, category, kind, payload, timestamp, retry_count, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.Key, string(item.Category), string(item.Kind), string(item.Payload),
			item.Timestamp, item.RetryCount, item.LastError,
		)
		if err != nil {
			return fmt.Errorf("store item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		item.ID = id
		return nil
	})
}

// All returns every pending item in a category in insertion order.
// Used for diagnostics and queue listings.
func (db *DB) All(category models.Category) ([]models.QueuedItem, error) {
	return db.queryItems(`
		SELECT id, key, category, kind, payload, timestamp, retry_count, next_attempt_at, last_error
		FROM queue_items WHERE category = ? ORDER BY id ASC`, string(category))
}

// Due returns up to limit items in a category that are eligible for replay
// at the given time, in insertion order. Items rescheduled with backoff are
// skipped until their next attempt time passes.
func (db *DB) Due(category models.Category, now time.Time, limit int) ([]models.QueuedItem, error) {
	return db.queryItems(`
		SELECT id, key, category, kind, payload, timestamp, retry_count, next_attempt_at, last_error
		FROM queue_items
		WHERE category = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY id ASC LIMIT ?`,
		string(category), now.UTC().Format("2006-01-02 15:04:05"), limit)
}

func (db *DB) queryItems(query string, args ...any) ([]models.QueuedItem, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []models.QueuedItem
	for rows.Next() {
		var (
			it       models.QueuedItem
			category string
			kind     string
			payload  string
			nextAt   sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Key, &category, &kind, &payload,
			&it.Timestamp, &it.RetryCount, &nextAt, &it.LastError); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Category = models.Category(category)
		it.Kind = models.Kind(kind)
		it.Payload = []byte(payload)
		if nextAt.Valid && nextAt.String != "" {
			t, err := parseTimestamp(nextAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse next_attempt_at id=%d: %w", it.ID, err)
			}
			it.NextAttemptAt = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Delete removes delivered items by ID.
func (db *DB) Delete(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return db.withWriteLock(func() error {
		for _, id := range ids {
			if _, err := db.conn.Exec(`DELETE FROM queue_items WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete item %d: %w", id, err)
			}
		}
		return nil
	})
}

// Reschedule records a failed delivery attempt: the retry counter is
// incremented and the item becomes due again at nextAttempt. When the new
// count exceeds maxRetries the item moves to the dead-letter collection
// instead. Returns true when the item was dead-lettered.
func (db *DB) Reschedule(item *models.QueuedItem, attemptErr string, nextAttempt time.Time, maxRetries int) (bool, error) {
	deadLettered := false
	err := db.withWriteLock(func() error {
		item.RetryCount++
		item.LastError = attemptErr

		if item.RetryCount > maxRetries {
			if _, err := db.conn.Exec(`
				INSERT OR IGNORE INTO dead_letters (key, category, kind, payload, timestamp, retry_count, last_error)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				item.Key, string(item.Category), string(item.Kind), string(item.Payload),
				item.Timestamp, item.RetryCount, item.LastError,
			); err != nil {
				return fmt.Errorf("dead-letter item %d: %w", item.ID, err)
			}
			if _, err := db.conn.Exec(`DELETE FROM queue_items WHERE id = ?`, item.ID); err != nil {
				return fmt.Errorf("remove dead-lettered item %d: %w", item.ID, err)
			}
			deadLettered = true
			return nil
		}

		_, err := db.conn.Exec(`
			UPDATE queue_items SET retry_count = ?, next_attempt_at = ?, last_error = ? WHERE id = ?`,
			item.RetryCount, nextAttempt.UTC().Format("2006-01-02 15:04:05"), item.LastError, item.ID,
		)
		if err != nil {
			return fmt.Errorf("reschedule item %d: %w", item.ID, err)
		}
		return nil
	})
	return deadLettered, err
}

// ClearAll empties every category. Diagnostics / manual reset only.
func (db *DB) ClearAll() error {
	return db.withWriteLock(func() error {
		if _, err := db.conn.Exec(`DELETE FROM queue_items`); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		return nil
	})
}

// Counts returns the pending item count per category.
func (db *DB) Counts() (map[models.Category]int64, error) {
	rows, err := db.conn.Query(`SELECT category, COUNT(*) FROM queue_items GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Category]int64)
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[models.Category(category)] = n
	}
	return counts, rows.Err()
}

// parseTimestamp tries common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
