package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	internal "github.com/bbrks/ocado-ha/internal"
)

// DB is the host-side store: run history, the raw-mail archive index, and an
// opaque copy of the last snapshot used for the unchanged comparison across
// restarts. The pipeline itself owns no persisted format.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  snapshotJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  outcome TEXT NOT NULL,
  durationMs REAL NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  messageId TEXT NOT NULL UNIQUE,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveSnapshot persists a completed cycle's snapshot as opaque JSON.
func (d *DB) SaveSnapshot(snap *internal.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`INSERT INTO snapshots (runId, snapshotJson) VALUES (?, ?)`, snap.RunID, string(blob))
	return err
}

// LoadLastSnapshot returns the most recently persisted snapshot, or nil when
// none exists.
func (d *DB) LoadLastSnapshot() (*internal.Snapshot, error) {
	var blob string
	err := d.conn.QueryRow(`SELECT snapshotJson FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap internal.Snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// InsertRun records one cycle in the run history.
func (d *DB) InsertRun(runID, outcome string, durationMs float64, stats internal.CycleStats) error {
	countsJSON, _ := json.Marshal(stats)
	_, err := d.conn.Exec(`INSERT INTO runs (runId, outcome, durationMs, countsJson) VALUES (?, ?, ?, ?)`,
		runID, outcome, durationMs, string(countsJSON))
	return err
}

// UpsertEmail indexes an archived raw message.
func (d *DB) UpsertEmail(messageID, subject, sender, receivedAt, hash, rawRef string) error {
	_, err := d.conn.Exec(`
INSERT INTO emails (messageId, subject, sender, receivedAt, hash, rawRef)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef
`, messageID, subject, sender, receivedAt, hash, rawRef)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
