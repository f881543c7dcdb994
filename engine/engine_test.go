package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/ai/mock"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
	"github.com/poiesic/stratum/storage/badger"
	"github.com/poiesic/stratum/storage/storagetest"
	"github.com/poiesic/stratum/visualize"
)

// testConfig admits every vector hit so the mock embedder's arbitrary
// similarities still produce candidates.
func testConfig() Config {
	cfg := DefaultConfig()
	for task, vp := range cfg.Vector {
		vp.Threshold = -1
		cfg.Vector[task] = vp
	}
	return cfg
}

type harness struct {
	engine *Engine
	gen    *mock.MockGenerator
}

type harnessOptions struct {
	voxels []*core.Voxel
	edges  []core.Neighbor
	wrap   func(storage.VoxelStore) storage.VoxelStore
	// wrapIndex decorates the vector index the engine searches.
	wrapIndex func(storage.VectorIndex) storage.VectorIndex
	config    func(*Config)
	opts      []Option
}

func newHarness(t *testing.T, gen *mock.MockGenerator, ho harnessOptions) *harness {
	t.Helper()
	ctx := context.Background()

	store, index, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	if ho.voxels == nil {
		ho.voxels, ho.edges = storagetest.Line()
	}
	emb := mock.NewMockEmbedder()
	require.NoError(t, storagetest.Seed(ctx, store, index, emb, ho.voxels, ho.edges))

	var s storage.VoxelStore = store
	if ho.wrap != nil {
		s = ho.wrap(store)
	}
	var idx storage.VectorIndex = index
	if ho.wrapIndex != nil {
		idx = ho.wrapIndex(index)
	}
	cfg := testConfig()
	if ho.config != nil {
		ho.config(&cfg)
	}

	opts := append([]Option{WithConfig(cfg)}, ho.opts...)
	e, err := New(s, idx, mock.NewMockProviderWithServices(emb, gen), opts...)
	require.NoError(t, err)
	return &harness{engine: e, gen: gen}
}

func answer(text string, ids ...string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf(`{"answer": %q, "voxel_ids": [%s]}`, text, strings.Join(quoted, ", "))
}

func entryIDs(c core.Context) []string {
	ids := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ID
	}
	return ids
}

func TestNew_RequiresDependencies(t *testing.T) {
	store, index, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	provider := mock.NewMockProvider()

	_, err = New(nil, index, provider)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = New(store, nil, provider)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = New(store, index, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	bad := DefaultConfig()
	delete(bad.Weights, core.TaskFiltering)
	_, err = New(store, index, provider, WithConfig(bad))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAsk_EmptyQuery(t *testing.T) {
	h := newHarness(t, mock.NewMockGenerator(), harnessOptions{})
	_, err := h.engine.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAsk_FilteringByMoistureInLayer(t *testing.T) {
	gen := mock.NewMockGenerator(answer("Three M3 voxels exceed 40% moisture.",
		"v_M3_00003", "v_M3_00001", "v_M3_00004"))
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)

	assert.Equal(t, core.TaskFiltering, res.Classification.Task)
	assert.False(t, res.Classification.LowConfidence)
	assert.Equal(t, []string{"v_M3_00003", "v_M3_00001", "v_M3_00004"}, entryIDs(res.Context))

	assert.Equal(t, core.TaskFiltering, res.Answer.TaskType)
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
	assert.ElementsMatch(t, []string{"v_M3_00001", "v_M3_00003", "v_M3_00004"}, res.Answer.CitedEntityIDs)
	assert.False(t, res.Answer.Degraded)
	assert.Empty(t, res.Conditions)
	assert.NotEmpty(t, res.QueryID)
	assert.Equal(t, []State{Received, Classified, Planned, Retrieved, Fused, Budgeted, Prompted, Generated, Validated, Delivered}, res.States)

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].User, "v_M3_00003")
	assert.NotContains(t, prompts[0].User, "v_M3_00002")
	assert.NotContains(t, prompts[0].User, "v_M1_00002")
}

func TestAsk_AmbiguousDefaultsToSummarization(t *testing.T) {
	gen := mock.NewMockGenerator(answer("The area is mostly sand with some wet clay."))
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Tell me about this area")
	require.NoError(t, err)

	assert.Equal(t, core.TaskSummarization, res.Classification.Task)
	assert.True(t, res.Classification.LowConfidence)
	assert.True(t, res.Has(core.ErrClassificationAmbiguous))
	assert.Equal(t, core.TaskSummarization, res.Answer.TaskType)
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
	assert.Len(t, res.Context.Entries, 10)
}

func TestAsk_HallucinationCorrected(t *testing.T) {
	gen := mock.NewMockGenerator(
		answer("v_M9_00001 is the wettest.", "v_M9_00001"),
		answer("v_M3_00003 is the wettest.", "v_M3_00003"),
	)
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)

	assert.Equal(t, core.StatusCorrected, res.Answer.ValidationStatus)
	assert.Equal(t, []string{"v_M3_00003"}, res.Answer.CitedEntityIDs)
	assert.True(t, res.Has(core.ErrHallucinationDetected))
	assert.Equal(t, 2, gen.CallCount())
	assert.Equal(t, []State{Received, Classified, Planned, Retrieved, Fused, Budgeted, Prompted,
		Generated, Validated, Retried, Generated, Validated, Delivered}, res.States)
}

func TestAsk_HallucinationRefused(t *testing.T) {
	gen := mock.NewMockGenerator(
		answer("v_M9_00001 is the wettest.", "v_M9_00001"),
		answer("v_M9_00002 is the wettest.", "v_M9_00002"),
	)
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)

	assert.Equal(t, core.StatusRefused, res.Answer.ValidationStatus)
	assert.Empty(t, res.Answer.CitedEntityIDs)
	assert.Zero(t, res.Answer.Confidence)
	assert.Equal(t, Refused, res.States[len(res.States)-1])
	assert.Equal(t, 2, gen.CallCount())
}

// stalledStore blocks attribute queries until release is closed, ignoring
// cancellation.
type stalledStore struct {
	storage.VoxelStore
	release chan struct{}
}

func (s *stalledStore) Query(ctx context.Context, spec core.ConstraintSpec) ([]storage.Match, error) {
	<-s.release
	return s.VoxelStore.Query(ctx, spec)
}

func TestAsk_GraphTimeoutDegradesToVector(t *testing.T) {
	release := make(chan struct{})
	gen := mock.NewMockGenerator(answer("Based on similar voxels only."))
	h := newHarness(t, gen, harnessOptions{
		wrap: func(s storage.VoxelStore) storage.VoxelStore {
			return &stalledStore{VoxelStore: s, release: release}
		},
		config: func(c *Config) { c.GraphTimeout = 50 * time.Millisecond },
	})

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer close(release)

	start := time.Now()
	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, res.Answer.Degraded)
	assert.True(t, res.Has(core.ErrRetrievalTimeout))
	// Vector-only: every voxel is a candidate, not just the M3 matches
	assert.Len(t, res.Context.Entries, 10)
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
}

// stalledIndex blocks searches until release is closed, ignoring
// cancellation.
type stalledIndex struct {
	storage.VectorIndex
	release chan struct{}
}

func (s *stalledIndex) Search(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]storage.Similarity, error) {
	<-s.release
	return s.VectorIndex.Search(ctx, vector, minSimilarity, limit)
}

// brokenIndex fails every search.
type brokenIndex struct {
	storage.VectorIndex
}

func (brokenIndex) Search(context.Context, []float32, float32, int) ([]storage.Similarity, error) {
	return nil, errors.New("index offline")
}

func TestAsk_VectorTimeoutDegradesToGraph(t *testing.T) {
	release := make(chan struct{})
	gen := mock.NewMockGenerator(answer("Three M3 voxels exceed 40% moisture.",
		"v_M3_00003", "v_M3_00001", "v_M3_00004"))
	h := newHarness(t, gen, harnessOptions{
		wrapIndex: func(idx storage.VectorIndex) storage.VectorIndex {
			return &stalledIndex{VectorIndex: idx, release: release}
		},
		config: func(c *Config) { c.VectorTimeout = 50 * time.Millisecond },
	})

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer close(release)

	start := time.Now()
	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, res.Answer.Degraded)
	assert.True(t, res.Has(core.ErrRetrievalTimeout))
	assert.Equal(t, []string{"v_M3_00003", "v_M3_00001", "v_M3_00004"}, entryIDs(res.Context))
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
}

func TestAsk_VectorFailureDegradesToGraph(t *testing.T) {
	gen := mock.NewMockGenerator(answer("Three M3 voxels exceed 40% moisture.",
		"v_M3_00003", "v_M3_00001", "v_M3_00004"))
	h := newHarness(t, gen, harnessOptions{
		wrapIndex: func(idx storage.VectorIndex) storage.VectorIndex {
			return brokenIndex{VectorIndex: idx}
		},
	})

	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)

	assert.True(t, res.Answer.Degraded)
	assert.False(t, res.Has(core.ErrRetrievalTimeout))
	require.Len(t, res.Conditions, 1)
	assert.Contains(t, res.Conditions[0].Error(), "index offline")
	assert.Equal(t, []string{"v_M3_00003", "v_M3_00001", "v_M3_00004"}, entryIDs(res.Context))
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
}

func TestAsk_ProximityIncludesReference(t *testing.T) {
	gen := mock.NewMockGenerator(answer(
		"v_M3_00002 is adjacent to v_M3_00003 on the west and v_M3_00004 on the east.",
		"v_M3_00002", "v_M3_00004"))
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Which voxels are within 1 hops of v_M3_00003?")
	require.NoError(t, err)

	assert.Equal(t, core.TaskProximity, res.Classification.Task)
	assert.ElementsMatch(t, []string{"v_M3_00002", "v_M3_00003", "v_M3_00004"}, entryIDs(res.Context))
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
	assert.Contains(t, res.Answer.CitedEntityIDs, "v_M3_00002")
	assert.Contains(t, res.Answer.CitedEntityIDs, "v_M3_00004")
	assert.Equal(t, 1, gen.CallCount())

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].User, "v_M3_00003")
}

func TestAsk_BroadReasoningTruncates(t *testing.T) {
	voxels := make([]*core.Voxel, 500)
	clay := make(map[string]bool)
	for i := range voxels {
		id := fmt.Sprintf("v_M2_%05d", i+1)
		moisture := float64(20 + i%50)
		voxels[i] = storagetest.Voxel(id, "M2", moisture, 100+float64(i%7)*20, "Medium")
		if moisture > 40 {
			clay[id] = true
		}
	}

	gen := mock.NewMockGenerator(answer("Clay holds water and loses strength."))
	h := newHarness(t, gen, harnessOptions{
		voxels: voxels,
		edges:  []core.Neighbor{},
		config: func(c *Config) {
			vp := c.Vector[core.TaskReasoning]
			vp.K = 500
			c.Vector[core.TaskReasoning] = vp
		},
	})

	query := "Explain why the clay is unstable"
	first, err := h.engine.Ask(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, core.TaskReasoning, first.Classification.Task)
	assert.Equal(t, 500, first.Context.Total)
	assert.Len(t, first.Context.Entries, 20)
	assert.True(t, first.Context.Truncated)
	assert.True(t, first.Has(core.ErrContextOverflow))

	// Clay matches come from both channels and outrank sand
	for _, e := range first.Context.Entries {
		assert.True(t, clay[e.ID], "%s is not clay", e.ID)
	}

	second, err := h.engine.Ask(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, entryIDs(first.Context), entryIDs(second.Context))
	assert.Equal(t, first.Context.Text, second.Context.Text)
}

func TestAsk_EmptyRetrievalSkipsGeneration(t *testing.T) {
	gen := mock.NewMockGenerator(answer("should not be used"))
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 90")
	require.NoError(t, err)

	assert.Equal(t, NoEvidenceText, res.Answer.AnswerText)
	assert.Empty(t, res.Answer.CitedEntityIDs)
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
	assert.True(t, res.Has(core.ErrRetrievalEmpty))
	assert.Zero(t, gen.CallCount())
	assert.Equal(t, []State{Received, Classified, Planned, Retrieved, Fused, Delivered}, res.States)
}

func TestAsk_GenerationFailure(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(context.Context, core.Prompt) (string, error) {
		return "", fmt.Errorf("%w: connection refused", ai.ErrUpstreamUnavailable)
	}
	h := newHarness(t, gen, harnessOptions{})

	res, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrGenerationFailure)
	assert.ErrorIs(t, err, ai.ErrUpstreamUnavailable)
}

func TestAsk_GenerationTimeout(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, _ core.Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	h := newHarness(t, gen, harnessOptions{
		config: func(c *Config) { c.GenerationTimeout = 50 * time.Millisecond },
	})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	_, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	assert.ErrorIs(t, err, core.ErrGenerationFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, gen.CallCount())
}

func TestAsk_QueryDeadlineAbandonsGeneration(t *testing.T) {
	release := make(chan struct{})
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(context.Context, core.Prompt) (string, error) {
		<-release
		return answer("too late"), nil
	}
	h := newHarness(t, gen, harnessOptions{
		config: func(c *Config) { c.QueryTimeout = 200 * time.Millisecond },
	})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer close(release)

	_, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	assert.ErrorIs(t, err, core.ErrDeadlineExceeded)
}

func TestAsk_CancelledContext(t *testing.T) {
	h := newHarness(t, mock.NewMockGenerator(answer("x")), harnessOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Ask(ctx, "Find voxels with moisture content above 40 in layer M3")
	assert.ErrorIs(t, err, core.ErrDeadlineExceeded)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk_Concurrent(t *testing.T) {
	gen := mock.NewMockGenerator(answer("ok"))
	h := newHarness(t, gen, harnessOptions{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	queries := []string{
		"Find voxels with moisture content above 40 in layer M3",
		"Tell me about this area",
		"What is the moisture of v_M1_00002?",
		"Which voxels are adjacent to v_M3_00002?",
	}

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.engine.Ask(context.Background(), queries[i%len(queries)])
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i := range results {
		require.NoError(t, errs[i])
		ids[results[i].QueryID] = true
		if i >= len(queries) {
			assert.Equal(t, results[i%len(queries)].Context.Text, results[i].Context.Text)
		}
	}
	assert.Len(t, ids, len(results))
}

type recordingMonitor struct {
	noopMonitor
	mu       sync.Mutex
	channels map[core.Source]error
	finished int
}

func (m *recordingMonitor) ChannelDone(_ string, source core.Source, _ int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channels == nil {
		m.channels = make(map[core.Source]error)
	}
	m.channels[source] = err
}

func (m *recordingMonitor) Finish(string, core.Answer, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
}

func TestAsk_Monitor(t *testing.T) {
	mon := &recordingMonitor{}
	h := newHarness(t, mock.NewMockGenerator(answer("ok")), harnessOptions{
		opts: []Option{WithMonitor(mon)},
	})

	_, err := h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)

	mon.mu.Lock()
	defer mon.mu.Unlock()
	assert.Equal(t, 1, mon.finished)
	require.Len(t, mon.channels, 2)
	assert.NoError(t, mon.channels[core.SourceGraph])
	assert.NoError(t, mon.channels[core.SourceVector])
}

type recordingHighlighter struct {
	mu    sync.Mutex
	marks []visualize.Mark
}

func (r *recordingHighlighter) Highlight(_ context.Context, _ string, marks []visualize.Mark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, marks...)
	return nil
}

func TestAsk_HighlightsCitedVoxels(t *testing.T) {
	rec := &recordingHighlighter{}
	d, err := visualize.NewDispatcher(rec)
	require.NoError(t, err)

	gen := mock.NewMockGenerator(answer("Two are high risk.", "v_M3_00003", "v_M3_00004"))
	h := newHarness(t, gen, harnessOptions{opts: []Option{WithDispatcher(d)}})

	_, err = h.engine.Ask(context.Background(), "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)
	d.Release()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.marks, 2)
	assert.Equal(t, visualize.Red, rec.marks[0].Color)
	assert.Equal(t, visualize.Yellow, rec.marks[1].Color)
}
