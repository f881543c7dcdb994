package visualize

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorFor(t *testing.T) {
	assert.Equal(t, Color{255, 0, 0}, ColorFor("High"))
	assert.Equal(t, Color{255, 255, 0}, ColorFor("Medium"))
	assert.Equal(t, Color{0, 255, 0}, ColorFor("Low"))
	assert.Equal(t, Color{100, 100, 100}, ColorFor(""))
	assert.Equal(t, Color{100, 100, 100}, ColorFor("Unknown"))
}

func TestMarks(t *testing.T) {
	snapshots := map[string]*core.Voxel{
		"v_M3_00001": storagetest.Voxel("v_M3_00001", "M3", 45, 80, "High"),
		"v_M3_00002": storagetest.Voxel("v_M3_00002", "M3", 30, 150, "Low"),
	}

	marks := Marks([]string{"v_M3_00002", "v_M3_00001", "v_M9_00001"}, snapshots)
	require.Len(t, marks, 3)

	assert.Equal(t, Mark{VoxelID: "v_M3_00002", Layer: "M3", Risk: "Low", Color: Green}, marks[0])
	assert.Equal(t, Mark{VoxelID: "v_M3_00001", Layer: "M3", Risk: "High", Color: Red}, marks[1])
	assert.Equal(t, Mark{VoxelID: "v_M9_00001", Color: Grey}, marks[2])
}

func TestFileHighlighter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer", "selection.json")
	h, err := NewFileHighlighter(path)
	require.NoError(t, err)

	marks := []Mark{{VoxelID: "v_M3_00001", Risk: "High", Color: Red}}
	require.NoError(t, h.Highlight(context.Background(), "q-1", marks))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var sel Selection
	require.NoError(t, json.Unmarshal(data, &sel))
	assert.Equal(t, "q-1", sel.QueryID)
	assert.Equal(t, marks, sel.Marks)
	assert.False(t, sel.CreatedAt.IsZero())

	// A second selection replaces the first
	require.NoError(t, h.Highlight(context.Background(), "q-2", nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &sel))
	assert.Equal(t, "q-2", sel.QueryID)
	assert.Empty(t, sel.Marks)
}

func TestNewFileHighlighter_RequiresPath(t *testing.T) {
	_, err := NewFileHighlighter("")
	assert.ErrorIs(t, err, ErrPathRequired)
}

type recordingHighlighter struct {
	mu    sync.Mutex
	calls map[string][]Mark
	err   error
}

func (r *recordingHighlighter) Highlight(_ context.Context, queryID string, marks []Mark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string][]Mark)
	}
	r.calls[queryID] = marks
	return r.err
}

func TestDispatcher(t *testing.T) {
	rec := &recordingHighlighter{}
	d, err := NewDispatcher(rec, WithPoolSize(4))
	require.NoError(t, err)

	d.Dispatch("q-1", []Mark{{VoxelID: "v_M3_00001"}})
	d.Dispatch("q-2", []Mark{{VoxelID: "v_M3_00002"}})
	d.Dispatch("q-3", nil)
	d.Release()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.calls, 2)
	assert.Equal(t, "v_M3_00002", rec.calls["q-2"][0].VoxelID)
}

func TestDispatcher_ErrorsAreAbsorbed(t *testing.T) {
	rec := &recordingHighlighter{err: errors.New("viewer offline")}
	d, err := NewDispatcher(rec)
	require.NoError(t, err)

	d.Dispatch("q-1", []Mark{{VoxelID: "v_M3_00001"}})
	d.Wait()
	d.Release()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.calls, 1)
}

func TestNewDispatcher_RequiresHighlighter(t *testing.T) {
	_, err := NewDispatcher(nil)
	assert.ErrorIs(t, err, ErrHighlighterRequired)
}
