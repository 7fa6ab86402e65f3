package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stratagraph/strata/pkg/common"
)

const (
	snapshotVersion = 1
	snapshotFile    = "knowledge_graph.json"
)

// ErrSnapshotCorrupt marks a snapshot that exists but cannot be trusted:
// unparseable JSON, an unsupported version, or node/edge lists that fail
// integrity validation. A corrupt snapshot is never installed as active.
var ErrSnapshotCorrupt = errors.New("graph snapshot is corrupt")

// snapshot is the on-disk graph format, one file per project. The node and
// edge lists round-trip losslessly, including aliases, weights, metadata,
// provenance, and context.
type snapshot struct {
	Version   int            `json:"version"`
	ProjectID string         `json:"project_id"`
	SavedAt   time.Time      `json:"saved_at"`
	Nodes     []*common.Node `json:"nodes"`
	Edges     []*common.Edge `json:"edges"`
}

// writeSnapshot persists a snapshot atomically: the encoded bytes go to a
// temp file in the target directory, which is then renamed over the final
// path. Readers either see the previous snapshot or the new one.
func writeSnapshot(path string, snap *snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// readSnapshot loads and version-checks a snapshot file. A missing file is
// returned as the bare fs.ErrNotExist so callers can treat it as "no graph
// yet"; everything else unreadable is ErrSnapshotCorrupt.
func readSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrSnapshotCorrupt, snap.Version)
	}
	return &snap, nil
}
