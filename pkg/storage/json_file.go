package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"eoscraper/pkg/models"
)

// JSONFile stores the snapshot as a single indented JSON object
type JSONFile struct {
	path string
}

// NewJSONFile creates a JSON snapshot backend, creating the parent directory
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}
	return &JSONFile{path: path}, nil
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (j *JSONFile) Load(ctx context.Context) (models.Snapshot, error) {
	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	snap := models.Snapshot{}
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", j.path, err)
	}
	return snap, nil
}

// Save writes the snapshot to disk atomically
func (j *JSONFile) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Create temporary file
	tempPath := j.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	if snap == nil {
		snap = models.Snapshot{}
	}
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	// Atomically replace the old snapshot
	if err := os.Rename(tempPath, j.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

func (j *JSONFile) Location() string {
	return j.path
}

func (j *JSONFile) Close() error {
	return nil
}
