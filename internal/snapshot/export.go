package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// bundleVersion is bumped when the export envelope changes shape.
const bundleVersion = 1

// Bundle is the per-owner JSON export envelope. Records carry every field,
// so a bundle imported elsewhere reproduces the owner's corpus exactly.
type Bundle struct {
	Version    int             `json:"version"`
	Owner      store.Owner     `json:"owner"`
	ExportedAt time.Time       `json:"exported_at"`
	Records    []*store.Record `json:"records"`
}

// Export serializes every record for the owner, soft-deleted included.
func Export(st *store.Store, owner store.Owner) ([]byte, error) {
	if owner.Device == "" || owner.User == "" {
		return nil, fmt.Errorf("export: %w: incomplete owner %q", store.ErrInvalid, owner.Key())
	}
	b := Bundle{
		Version:    bundleVersion,
		Owner:      owner,
		ExportedAt: time.Now().UTC(),
		Records:    st.ByOwner(owner),
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", owner.Key(), err)
	}
	return data, nil
}

// Import merges a bundle into st. Records whose ids already exist are
// skipped, so importing the same bundle twice never duplicates anything.
// Returns the number of records added.
func Import(st *store.Store, data []byte) (int, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return 0, fmt.Errorf("import: parse bundle: %w", err)
	}
	if b.Version != bundleVersion {
		return 0, fmt.Errorf("import: unsupported bundle version %d", b.Version)
	}

	added := 0
	for _, rec := range b.Records {
		if rec == nil || rec.ID == "" {
			return added, fmt.Errorf("import: %w: bundle holds a record without an id", store.ErrInvalid)
		}
		if _, err := st.Get(rec.ID); err == nil {
			continue
		}
		if err := st.Put(rec); err != nil {
			return added, fmt.Errorf("import record %s: %w", rec.ID, err)
		}
		added++
	}
	return added, nil
}
