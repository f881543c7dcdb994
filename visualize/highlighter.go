package visualize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Highlighter delivers marks to a viewer.
type Highlighter interface {
	Highlight(ctx context.Context, queryID string, marks []Mark) error
}

// LogHighlighter writes marks to a logger. It is the default when no
// viewer is attached.
type LogHighlighter struct {
	logger *slog.Logger
}

var _ Highlighter = (*LogHighlighter)(nil)

// NewLogHighlighter creates a highlighter logging at info level.
func NewLogHighlighter(logger *slog.Logger) *LogHighlighter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHighlighter{logger: logger.With("component", "highlighter")}
}

func (h *LogHighlighter) Highlight(_ context.Context, queryID string, marks []Mark) error {
	for _, m := range marks {
		h.logger.Info("highlight", "query_id", queryID, "voxel_id", m.VoxelID,
			"risk", m.Risk, "rgb", fmt.Sprintf("%d,%d,%d", m.Color.R, m.Color.G, m.Color.B))
	}
	return nil
}

// Selection is the document a FileHighlighter writes.
type Selection struct {
	QueryID   string    `json:"query_id"`
	CreatedAt time.Time `json:"created_at"`
	Marks     []Mark    `json:"marks"`
}

// FileHighlighter writes the latest selection as JSON for a viewer plug-in
// that watches the file. Writes replace the file atomically.
type FileHighlighter struct {
	path string
	mu   sync.Mutex
}

var _ Highlighter = (*FileHighlighter)(nil)

// NewFileHighlighter creates a highlighter writing to path.
func NewFileHighlighter(path string) (*FileHighlighter, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileHighlighter{path: path}, nil
}

func (h *FileHighlighter) Highlight(ctx context.Context, queryID string, marks []Mark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Selection{
		QueryID:   queryID,
		CreatedAt: time.Now().UTC(),
		Marks:     marks,
	}, "", "  ")
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".selection-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), h.path)
}
