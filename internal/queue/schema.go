package queue

// SchemaVersion is the current queue database schema version
const SchemaVersion = 1

const schema = `
-- Pending sync items, one FIFO per category
CREATE TABLE IF NOT EXISTS queue_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL,
    kind TEXT NOT NULL,
    payload JSON NOT NULL DEFAULT '{}',
    timestamp INTEGER NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    next_attempt_at DATETIME,
    last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_queue_items_category ON queue_items(category, id);

-- Items that exhausted their retry budget, kept for inspection
CREATE TABLE IF NOT EXISTS dead_letters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL,
    kind TEXT NOT NULL,
    payload JSON NOT NULL DEFAULT '{}',
    timestamp INTEGER NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    failed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Deferred replay registrations consumed by the daemon
CREATE TABLE IF NOT EXISTS replay_intents (
    tag TEXT PRIMARY KEY,
    state TEXT NOT NULL DEFAULT 'registered',
    registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    fired_at DATETIME
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);
`
