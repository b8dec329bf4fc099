package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager handles file storage operations and duplicate detection
type Manager struct {
	outputDir string
	overwrite bool
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a storage manager rooted at outputDir, creating the
// directory if needed and indexing files already present.
func NewManager(outputDir string, overwrite bool) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		overwrite: overwrite,
		saved:     make(map[string]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

// scanExistingFiles indexes the output directory for duplicate detection
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			m.saved[entry.Name()] = true
		}
	}

	return nil
}

// Exists reports whether a file with this name has already been saved
func (m *Manager) Exists(filename string) bool {
	m.mu.RLock()
	known := m.saved[filename]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, filename)); err == nil {
		m.mu.Lock()
		m.saved[filename] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Overwrite reports whether existing files may be replaced
func (m *Manager) Overwrite() bool {
	return m.overwrite
}

// Save writes data to filename atomically and returns the bytes written.
//
// Data lands in a temp file in the target directory, is flushed and synced
// to disk, then renamed over the target. The temp file is removed on any
// failure, so a partial download never leaves a corrupt target behind.
func (m *Manager) Save(filename string, r io.Reader) (int64, error) {
	target := filepath.Join(m.outputDir, filename)

	tmp, err := os.CreateTemp(m.outputDir, filename+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write %s: %w", target, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to sync %s: %w", target, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close %s: %w", target, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace %s: %w", target, err)
	}

	m.mu.Lock()
	m.saved[filename] = true
	m.mu.Unlock()

	return written, nil
}

// Path returns the full path a filename resolves to
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// SavedCount returns the number of files known to the manager
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
