package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirs creates the configured data directories. Called once at
// startup so later file opens never race directory creation.
func (p *PathsConfig) EnsureDirs() error {
	for _, dir := range []string{p.SnapshotsDir, p.StateDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SnapshotDir returns the dated snapshot directory for one run.
func (p *PathsConfig) SnapshotDir(date string) string {
	return filepath.Join(p.SnapshotsDir, date)
}
