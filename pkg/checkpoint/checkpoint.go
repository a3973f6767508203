package checkpoint

import (
	"context"
	"fmt"
	"time"

	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/models"
	"eoscraper/pkg/storage"
)

// Store is the in-memory view of the checkpoint plus its durable backend.
// A Store is owned by one crawl session at a time and is not safe for
// concurrent use.
type Store struct {
	backend storage.Backend
	records models.Snapshot
	loaded  bool
	flushed time.Time
	logger  logger.Logger
}

// NewStore creates a store on top of backend. Call Load before use.
func NewStore(backend storage.Backend, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		backend: backend,
		records: models.Snapshot{},
		logger:  log,
	}
}

// Load replaces the in-memory state with the persisted snapshot. Absent
// state loads as empty.
func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	snap, err := s.backend.Load(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "checkpoint load", err)
	}
	if snap == nil {
		snap = models.Snapshot{}
	}
	s.records = snap
	s.loaded = true

	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"location": s.backend.Location(),
		"records":  len(snap),
	})

	return snap.Clone(), nil
}

// Contains checks if a record has already been harvested
func (s *Store) Contains(id models.RecordID) bool {
	_, exists := s.records[id]
	return exists
}

// Get returns the stored payload for id
func (s *Store) Get(id models.RecordID) (models.Record, bool) {
	rec, ok := s.records[id]
	return rec.Clone(), ok
}

// Merge adds the records of batch that are not stored yet and returns how
// many were added. Existing entries are never overwritten.
func (s *Store) Merge(batch models.Snapshot) int {
	added := 0
	for id, rec := range batch {
		if _, exists := s.records[id]; exists {
			s.logger.DebugWithFields("Record already in checkpoint, keeping stored payload", map[string]interface{}{
				"record_id": string(id),
			})
			continue
		}
		s.records[id] = rec.Clone()
		added++
	}
	return added
}

// Flush persists the entire current mapping, replacing the previous snapshot
func (s *Store) Flush(ctx context.Context) error {
	if !s.loaded {
		return errs.New(errs.ErrorTypeStorage, "checkpoint flush", "flush before load would discard the persisted snapshot")
	}

	start := time.Now()
	if err := s.backend.Save(ctx, s.records); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "checkpoint flush", err)
	}
	s.flushed = time.Now()

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"location": s.backend.Location(),
		"records":  len(s.records),
		"duration": time.Since(start),
	})
	return nil
}

// Len returns the number of harvested records
func (s *Store) Len() int {
	return len(s.records)
}

// Snapshot returns a copy of the current mapping
func (s *Store) Snapshot() models.Snapshot {
	return s.records.Clone()
}

// Location returns the backend location
func (s *Store) Location() string {
	return s.backend.Location()
}

// LastFlush returns the time of the last successful flush
func (s *Store) LastFlush() time.Time {
	return s.flushed
}

// Info returns a summary of the checkpoint for reporting
func (s *Store) Info() map[string]interface{} {
	info := map[string]interface{}{
		"location": s.backend.Location(),
		"records":  len(s.records),
	}
	if !s.flushed.IsZero() {
		info["last_flush"] = s.flushed
		info["age"] = time.Since(s.flushed)
	}
	return info
}

// Migrate copies the snapshot held by src into dst
func Migrate(ctx context.Context, src, dst storage.Backend) (int, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load source checkpoint: %w", err)
	}
	if err := dst.Save(ctx, snap); err != nil {
		return 0, fmt.Errorf("failed to save destination checkpoint: %w", err)
	}
	return len(snap), nil
}
