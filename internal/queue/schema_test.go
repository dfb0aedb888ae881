package queue

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// The schema has to load under the cgo sqlite driver too, which backs ad-hoc
// inspection tooling against the queue file.
func TestSchemaLoads(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}
	// Idempotent
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("re-exec schema: %v", err)
	}

	for _, table := range []string{"queue_items", "dead_letters", "replay_intents", "schema_meta"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestSchemaEnforcesUniqueKeys(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}

	insert := `INSERT INTO queue_items (key, category, kind, payload, timestamp) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.Exec(insert, "k1", "cart-updates", "cart-update", "{}", 1); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, "k1", "cart-updates", "cart-update", "{}", 2); err == nil {
		t.Fatal("expected duplicate key insert to fail")
	}
}
