package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"intelaccel/internal/fsutil"
	"intelaccel/internal/logging"
)

// Writer appends run records to a JSONL history file
type Writer struct {
	logger *logging.Logger
}

// NewWriter creates a new history writer
func NewWriter(logger *logging.Logger) *Writer {
	return &Writer{
		logger: logger,
	}
}

// Write appends record as one JSON line to path, creating the file and
// its directory when needed
func (w *Writer) Write(record RunRecord, path string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	// #nosec G304 -- path comes from configuration
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer fsutil.CloseWithError(file.Close, w.logger, "run history")

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	return nil
}
