package manifest

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// persistLocked writes a new MANIFEST-NNNNNN file and repoints CURRENT
// to it by writing a temporary file and renaming it over CURRENT.
// Callers must hold m.mu for writing.
func (m *Manifest) persistLocked() error {
	fileName := manifestFileName(m.nextNum)
	m.nextNum++

	serialized := make(map[int][]string, len(m.levels))
	for level, segs := range m.levels {
		rels := make([]string, len(segs))
		for i, seg := range segs {
			rel, err := filepath.Rel(m.dataDir, seg.Path())
			if err != nil {
				rel = filepath.Base(seg.Path())
			}
			rels[i] = rel
		}
		serialized[level] = rels
	}

	manifestPath := filepath.Join(m.dataDir, fileName)
	f, err := os.OpenFile(manifestPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", manifestPath, err)
	}
	if err := gob.NewEncoder(f).Encode(serialized); err != nil {
		f.Close()
		return fmt.Errorf("manifest: encode %s: %w", manifestPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("manifest: sync %s: %w", manifestPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("manifest: close %s: %w", manifestPath, err)
	}

	currentPath := filepath.Join(m.dataDir, currentFileName)
	tmpPath := currentPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(fileName), 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, currentPath); err != nil {
		return fmt.Errorf("manifest: rename %s: %w", currentPath, err)
	}
	return nil
}

func manifestFileName(n int) string {
	return fmt.Sprintf("%s%06d", manifestPrefix, n)
}
