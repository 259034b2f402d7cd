package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileRecorder writes each CycleRecord as its own cycle_<timestamp-ns>.json
// file under dir, the on-disk counterpart Reader scans. It exists so a round
// can be journaled without a Postgres connection, e.g. in local development.
type FileRecorder struct {
	dir string
	mu  sync.Mutex
}

// NewFileRecorder returns a recorder rooted at dir, creating it if needed.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}
	return &FileRecorder{dir: dir}, nil
}

func (f *FileRecorder) Record(_ context.Context, rec CycleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	name := fmt.Sprintf("cycle_%d.json", rec.Timestamp.UnixNano())
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("journal: write %s: %w", path, err)
	}
	return nil
}

var _ Recorder = (*FileRecorder)(nil)
