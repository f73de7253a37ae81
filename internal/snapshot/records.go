package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/engramdb/engram/internal/store"
)

// Save replaces the snapshot contents with the current corpus, deleted
// records included, in a single transaction. A failure leaves the previous
// snapshot untouched.
func (db *DB) Save(st *store.Store) error {
	records := st.All()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records (id, device, user, group_id, tier, category,
			created_at, last_activated_at, weight, deleted, frozen, sensitivity, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		if _, err := stmt.Exec(
			rec.ID,
			rec.Owner.Device,
			rec.Owner.User,
			rec.Meta.GroupID,
			string(rec.Meta.Tier),
			string(rec.Meta.Category),
			rec.Meta.CreatedAt.UnixMilli(),
			rec.Meta.LastActivatedAt.UnixMilli(),
			rec.Meta.Factors.Total,
			boolInt(rec.Meta.Deleted),
			boolInt(rec.Meta.Frozen),
			rec.Meta.SensitivityLevel,
			string(payload),
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load rehydrates every snapshotted record into st. The store should be
// empty; records whose ids already exist are reported as errors.
func (db *DB) Load(st *store.Store) (int, error) {
	rows, err := db.Query("SELECT id, payload FROM records")
	if err != nil {
		return 0, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return loaded, fmt.Errorf("scan record: %w", err)
		}
		var rec store.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return loaded, fmt.Errorf("unmarshal record %s: %w", id, err)
		}
		if err := st.Put(&rec); err != nil {
			return loaded, fmt.Errorf("load record %s: %w", id, err)
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		return loaded, fmt.Errorf("iterate records: %w", err)
	}
	return loaded, nil
}

// Count returns the number of snapshotted records.
func (db *DB) Count() (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
