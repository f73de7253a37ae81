package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store is the shared in-memory corpus: records keyed by id plus secondary
// indices by owner, device, user, and group. One RWMutex guards the map and
// every index, so an index update is always atomic with the record write it
// belongs to. All reads hand out deep copies.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*Record
	byOwner  map[string]map[string]struct{}
	byDevice map[string]map[string]struct{}
	byUser   map[string]map[string]struct{}
	byGroup  map[string]map[string]struct{}

	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDFunc replaces the id factory (uuid v4 by default). Tests use this
// to get deterministic ids.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records:  make(map[string]*Record),
		byOwner:  make(map[string]map[string]struct{}),
		byDevice: make(map[string]map[string]struct{}),
		byUser:   make(map[string]map[string]struct{}),
		byGroup:  make(map[string]map[string]struct{}),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID mints a fresh record id.
func (s *Store) NewID() string { return s.newID() }

// Len returns the number of records held, soft-deleted included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Put inserts a record. The id must be unused and the enum fields valid.
func (s *Store) Put(r *Record) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if !r.Meta.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, r.Meta.Category)
	}
	if !r.Meta.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalid, r.Meta.Tier)
	}
	if r.Owner.Device == "" || r.Owner.User == "" {
		return fmt.Errorf("%w: incomplete owner %q", ErrInvalid, r.Owner.Key())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	cp := r.Clone()
	s.records[cp.ID] = cp
	s.index(cp)
	return nil
}

// Get returns a deep copy of the record, or ErrNotFound.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Update applies fn to a copy of the record under the write lock and
// commits the result, reindexing if owner or group moved. The whole
// read-modify-write is atomic; fn returning an error abandons the update.
// Returns a copy of the committed record.
func (s *Store) Update(id string, fn func(*Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := old.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.ID != id {
		return nil, fmt.Errorf("%w: update may not change id", ErrInvalid)
	}
	if !next.Meta.Category.Valid() || !next.Meta.Tier.Valid() {
		return nil, fmt.Errorf("%w: update left invalid enums on %s", ErrInvalid, id)
	}
	s.unindex(old)
	s.records[id] = next
	s.index(next)
	return next.Clone(), nil
}

// Remove hard-deletes the record from the map and every index.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.unindex(r)
	delete(s.records, id)
	return nil
}

// ByOwner returns copies of every record for the owner, soft-deleted
// included, ordered by creation time then id.
func (s *Store) ByOwner(o Owner) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byOwner[o.Key()])
}

// ByDevice returns copies of every record created on the device.
func (s *Store) ByDevice(device string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byDevice[device])
}

// ByUser returns copies of every record belonging to the user across devices.
func (s *Store) ByUser(user string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byUser[user])
}

// ByGroup returns copies of every record shared into the group.
func (s *Store) ByGroup(group string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byGroup[group])
}

// All returns copies of every record, ordered by creation time then id.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sortRecords(out)
	return out
}

// Owners returns every owner with at least one record, in key order.
func (s *Store) Owners() []Owner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.byOwner))
	for k, ids := range s.byOwner {
		if len(ids) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Owner, 0, len(keys))
	for _, k := range keys {
		o, err := ParseOwnerKey(k)
		if err != nil {
			continue
		}
		out = append(out, o)
	}
	return out
}

// collect resolves an id set to sorted record copies. Caller holds the lock.
func (s *Store) collect(ids map[string]struct{}) []*Record {
	out := make([]*Record, 0, len(ids))
	for id := range ids {
		if r, ok := s.records[id]; ok {
			out = append(out, r.Clone())
		}
	}
	sortRecords(out)
	return out
}

func sortRecords(rs []*Record) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Meta.CreatedAt.Equal(rs[j].Meta.CreatedAt) {
			return rs[i].Meta.CreatedAt.Before(rs[j].Meta.CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

// index and unindex maintain the secondary indices. Caller holds the
// write lock.
func (s *Store) index(r *Record) {
	addKey(s.byOwner, r.Owner.Key(), r.ID)
	addKey(s.byDevice, r.Owner.Device, r.ID)
	addKey(s.byUser, r.Owner.User, r.ID)
	if r.Meta.GroupID != "" {
		addKey(s.byGroup, r.Meta.GroupID, r.ID)
	}
}

func (s *Store) unindex(r *Record) {
	dropKey(s.byOwner, r.Owner.Key(), r.ID)
	dropKey(s.byDevice, r.Owner.Device, r.ID)
	dropKey(s.byUser, r.Owner.User, r.ID)
	if r.Meta.GroupID != "" {
		dropKey(s.byGroup, r.Meta.GroupID, r.ID)
	}
}

func addKey(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

func dropKey(idx map[string]map[string]struct{}, key, id string) {
	if set, ok := idx[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(idx, key)
		}
	}
}
