package storage

import (
	"context"
	"fmt"
	"strings"

	"eoscraper/pkg/models"
)

// Kind names a snapshot backend
type Kind string

const (
	KindJSON   Kind = "json"
	KindSQLite Kind = "sqlite"
)

// Backend persists and restores full snapshots
type Backend interface {
	// Load returns the last saved snapshot, or an empty one if none exists
	Load(ctx context.Context) (models.Snapshot, error)
	// Save atomically replaces the stored snapshot with snap
	Save(ctx context.Context, snap models.Snapshot) error
	// Location describes where the snapshot lives, for reporting
	Location() string
	Close() error
}

// ParseKind validates a backend name
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindJSON, "":
		return KindJSON, nil
	case KindSQLite:
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("unknown checkpoint backend: %s", s)
	}
}

// Open creates the backend of the given kind at path
func Open(kind Kind, path string) (Backend, error) {
	switch kind {
	case KindJSON, "":
		return NewJSONFile(path)
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %s", kind)
	}
}
