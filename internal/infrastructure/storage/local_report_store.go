package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalReportStore writes reports below a directory on the local disk.
type LocalReportStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalReportStore creates dir if needed
func NewLocalReportStore(dir string, logger *zap.Logger) (*LocalReportStore, error) {
	if dir == "" {
		return nil, errors.New("export directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalReportStore{dir: dir, logger: logger.Named("local_store")}, nil
}

// Put writes data to dir/key and returns the file path. Keys that would
// escape the directory are refused.
func (s *LocalReportStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if key == "" {
		return "", errors.New("report key is required")
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("report key %q escapes the export directory", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}

	s.logger.Info("report written", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}
