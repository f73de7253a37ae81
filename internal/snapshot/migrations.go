package snapshot

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// The full record rides in a JSON payload column so every field survives a
// round trip; the scalar columns exist for operational queries against the
// file without rehydrating the corpus.
var migrations = []migration{
	{
		Version:     1,
		Description: "records: serialized retention corpus",
		SQL: `
CREATE TABLE records (
    id                TEXT PRIMARY KEY,
    device            TEXT NOT NULL,
    user              TEXT NOT NULL,
    group_id          TEXT,
    tier              TEXT NOT NULL CHECK (tier IN ('full', 'summary', 'tag', 'trace', 'archive')),
    category          TEXT NOT NULL,
    created_at        INTEGER NOT NULL,
    last_activated_at INTEGER NOT NULL,
    weight            REAL NOT NULL DEFAULT 0,
    deleted           INTEGER NOT NULL DEFAULT 0,
    frozen            INTEGER NOT NULL DEFAULT 0,
    sensitivity       INTEGER NOT NULL DEFAULT 0,
    payload           TEXT NOT NULL
);

CREATE INDEX idx_records_owner    ON records(device, user);
CREATE INDEX idx_records_tier     ON records(tier);
CREATE INDEX idx_records_category ON records(category);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
