package agent

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists task artifacts and reports where they were stored.
type Sink interface {
	Save(taskID string, data []byte) (string, error)
}

// FileSink writes screenshots into a local directory, one PNG per task.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink rooted at dir. The directory is created lazily
// on first save.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Save writes the screenshot bytes to <dir>/<taskID>.png.
func (s *FileSink) Save(taskID string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(s.dir, taskID+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
