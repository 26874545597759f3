// Package dedup keeps the set of feed identifiers that were already posted.
//
// The set is persisted as a JSON array ordered from oldest to newest so that
// trimming to the retention cap keeps the most recently recorded identifiers.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/nDmitry/feedsky/internal/store"
)

// DefaultCap is the number of identifiers retained between runs.
const DefaultCap = 1000

type Set struct {
	ids   []string
	index map[string]struct{}
}

// New builds a set from ids in recording order. Repeated ids keep their first position.
func New(ids ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(ids))}

	for _, id := range ids {
		s.Record(id)
	}

	return s
}

// IsPosted reports whether id was recorded.
func (s *Set) IsPosted(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Record appends id unless it is already present. It reports whether the set changed.
func (s *Set) Record(id string) bool {
	if s.IsPosted(id) {
		return false
	}

	s.ids = append(s.ids, id)
	s.index[id] = struct{}{}

	return true
}

// Trim drops the oldest ids so that at most limit remain.
func (s *Set) Trim(limit int) {
	if limit < 0 || len(s.ids) <= limit {
		return
	}

	for _, id := range s.ids[:len(s.ids)-limit] {
		delete(s.index, id)
	}

	kept := make([]string, limit)
	copy(kept, s.ids[len(s.ids)-limit:])
	s.ids = kept
}

func (s *Set) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the ids, oldest first.
func (s *Set) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Load reads the persisted set. A missing or unparseable blob yields an empty set;
// a store failure also yields an empty set, together with a *entity.PersistenceError
// so that stricter callers can refuse to run without history.
func Load(ctx context.Context, st store.Store, key string, logger *slog.Logger) (*Set, error) {
	blob, err := st.Get(ctx, key)

	if errors.Is(err, store.ErrNotFound) {
		logger.Info("No dedup state found, starting fresh", "key", key)
		return New(), nil
	}

	if err != nil {
		logger.Error("Could not load dedup state, starting fresh", "key", key, "error", err)
		return New(), &entity.PersistenceError{Op: "load", Key: key, Err: err}
	}

	var ids []string

	if err := json.Unmarshal([]byte(blob), &ids); err != nil {
		logger.Warn("Dedup state is corrupt, starting fresh", "key", key, "error", err)
		return New(), nil
	}

	return New(ids...), nil
}

// Save overwrites the persisted set.
func Save(ctx context.Context, st store.Store, key string, s *Set) error {
	ids := s.ids

	if ids == nil {
		ids = []string{}
	}

	blob, err := json.Marshal(ids)

	if err != nil {
		return &entity.PersistenceError{Op: "encode", Key: key, Err: err}
	}

	if err := st.Put(ctx, key, string(blob)); err != nil {
		return &entity.PersistenceError{Op: "save", Key: key, Err: err}
	}

	return nil
}
