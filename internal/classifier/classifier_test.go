package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	calls   atomic.Int64
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls.Add(1)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			v = []float64{0.5, 0.5, 0.5}
		}
		out[i] = v
	}
	return out, nil
}

type fakeSource struct {
	mu      sync.Mutex
	texts   []string
	idx     []int
	classes []string
}

func (f *fakeSource) TrainingSet() ([]string, []int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts, f.idx, f.classes
}

func (f *fakeSource) set(texts []string, idx []int, classes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts, f.idx, f.classes = texts, idx, classes
}

// gatedEmbedder blocks its first Embed call until release is closed.
type gatedEmbedder struct {
	fakeEmbedder
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeEmbedder.Embed(ctx, texts)
}

func testTrainConfig() TrainConfig {
	return TrainConfig{
		LearningRate:    0.06,
		Epochs:          100,
		BatchSize:       4,
		ValidationSplit: 0.15,
		Patience:        50,
		Seed:            1,
	}
}

func newTestCoordinator(embedder *fakeEmbedder, source TrainingSource) (*Coordinator, *Loader) {
	loader := NewLoader(func(context.Context) (Embedder, error) {
		return embedder, nil
	}, zap.NewNop())
	coord := NewCoordinator(loader, source, CoordinatorConfig{
		Train:          testTrainConfig(),
		EmbedBatchSize: 2,
		EmbedWorkers:   2,
	}, zap.NewNop())
	return coord, loader
}

func TestBuildWithTwoLabelsHasTwoUnits(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"x": {1, 0, 0},
		"y": {0.9, 0.1, 0},
		"z": {0, 0, 1},
	}}
	source := &fakeSource{
		texts:   []string{"x", "y", "z"},
		idx:     []int{0, 0, 1},
		classes: []string{"a", "b"},
	}
	coord, _ := newTestCoordinator(embedder, source)

	result, err := coord.Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if result.Status != BuildTrained {
		t.Fatalf("expected trained status, got %s", result.Status)
	}
	if result.Units != 2 || coord.Units() != 2 {
		t.Fatalf("expected 2 output units, got %d/%d", result.Units, coord.Units())
	}
	if coord.State() != StateTrained {
		t.Fatalf("expected trained state, got %s", coord.State())
	}
}

func TestQueuedBuildReadsDatasetWhenItRuns(t *testing.T) {
	embedder := &gatedEmbedder{
		fakeEmbedder: fakeEmbedder{vectors: map[string][]float64{
			"x": {1, 0, 0},
			"y": {0, 1, 0},
			"z": {0, 0, 1},
		}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	source := &fakeSource{
		texts:   []string{"x", "y"},
		idx:     []int{0, 1},
		classes: []string{"a", "b"},
	}
	loader := NewLoader(func(context.Context) (Embedder, error) {
		return embedder, nil
	}, zap.NewNop())
	coord := NewCoordinator(loader, source, CoordinatorConfig{
		Train:          testTrainConfig(),
		EmbedBatchSize: 8,
		EmbedWorkers:   1,
	}, zap.NewNop())

	firstDone := make(chan error, 1)
	go func() {
		_, err := coord.Build(context.Background())
		firstDone <- err
	}()
	<-embedder.entered

	second := make(chan BuildResult, 1)
	go func() {
		result, err := coord.Build(context.Background())
		if err != nil {
			t.Errorf("second build failed: %v", err)
		}
		second <- result
	}()
	time.Sleep(20 * time.Millisecond)

	source.set([]string{"x", "y", "z"}, []int{0, 1, 2}, []string{"a", "b", "c"})
	close(embedder.release)

	if err := <-firstDone; err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	result := <-second
	if result.Units != 3 || coord.Units() != 3 {
		t.Fatalf("expected the queued build to train on 3 classes, got %d/%d", result.Units, coord.Units())
	}
}

func TestBuildWithFewerThanTwoClasses(t *testing.T) {
	loads := 0
	loader := NewLoader(func(context.Context) (Embedder, error) {
		loads++
		return &fakeEmbedder{}, nil
	}, zap.NewNop())
	source := &fakeSource{texts: []string{"x"}, idx: []int{0}, classes: []string{"a"}}
	coord := NewCoordinator(loader, source, CoordinatorConfig{Train: testTrainConfig()}, zap.NewNop())

	result, err := coord.Build(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != BuildNoClasses || result.Status.Message() != NoClassesMessage {
		t.Fatalf("expected no-classes result, got %+v", result)
	}
	if loads != 0 || coord.Units() != 0 || coord.State() != StateUntrained {
		t.Fatalf("expected no model construction, loads=%d units=%d state=%s", loads, coord.Units(), coord.State())
	}
}

func TestPredictMemoizesSameText(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"x": {1, 0, 0},
		"z": {0, 0, 1},
	}}
	coord, _ := newTestCoordinator(embedder, &fakeSource{
		texts:   []string{"x", "z"},
		idx:     []int{0, 1},
		classes: []string{"a", "b"},
	})

	if _, err := coord.Predict(context.Background(), "x"); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained before build, got %v", err)
	}

	if _, err := coord.Build(context.Background()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	first, err := coord.Predict(context.Background(), "hello")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	callsAfterFirst := embedder.calls.Load()

	second, err := coord.Predict(context.Background(), "hello")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if embedder.calls.Load() != callsAfterFirst || coord.Inferences() != 1 {
		t.Fatalf("expected memoized second call, inferences=%d", coord.Inferences())
	}
	if first != second {
		t.Fatalf("memoized prediction differs: %+v vs %+v", first, second)
	}

	if _, err := coord.Predict(context.Background(), "other"); err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if coord.Inferences() != 2 {
		t.Fatalf("expected a new inference for different text, got %d", coord.Inferences())
	}
}

func TestRebuildInvalidatesMemo(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{"x": {1, 0, 0}, "z": {0, 0, 1}}}
	coord, _ := newTestCoordinator(embedder, &fakeSource{
		texts:   []string{"x", "z"},
		idx:     []int{0, 1},
		classes: []string{"a", "b"},
	})

	_, _ = coord.Build(context.Background())
	_, _ = coord.Predict(context.Background(), "x")
	_, _ = coord.Build(context.Background())
	_, _ = coord.Predict(context.Background(), "x")

	if coord.Inferences() != 2 {
		t.Fatalf("expected inference after rebuild, got %d", coord.Inferences())
	}
}

func TestLoaderSingleFlight(t *testing.T) {
	var loads atomic.Int64
	release := make(chan struct{})
	loader := NewLoader(func(context.Context) (Embedder, error) {
		loads.Add(1)
		<-release
		return &fakeEmbedder{}, nil
	}, zap.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.Get(context.Background()); err != nil {
				errs <- err
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loads.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loads.Load())
	}
	if !loader.Loaded() {
		t.Fatalf("expected loader to report loaded")
	}
}

func TestLoaderRetriesAfterFailure(t *testing.T) {
	attempt := 0
	loader := NewLoader(func(context.Context) (Embedder, error) {
		attempt++
		if attempt == 1 {
			return nil, errors.New("download failed")
		}
		return &fakeEmbedder{}, nil
	}, zap.NewNop())

	if _, err := loader.Get(context.Background()); err == nil {
		t.Fatalf("expected first load to fail")
	}
	if loader.Loaded() {
		t.Fatalf("failed load must not be cached")
	}
	if _, err := loader.Get(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if loader.Attempts() != 2 {
		t.Fatalf("expected 2 attempts, got %d", loader.Attempts())
	}
}

func TestLoaderCancelledWaiterLeavesLoadRunning(t *testing.T) {
	release := make(chan struct{})
	loader := NewLoader(func(ctx context.Context) (Embedder, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &fakeEmbedder{}, nil
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := loader.Get(ctx)
		first <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled wait, got %v", err)
	}

	second := make(chan error, 1)
	go func() {
		_, err := loader.Get(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-second; err != nil {
		t.Fatalf("expected shared load to finish, got %v", err)
	}
	if loader.Attempts() != 1 {
		t.Fatalf("expected the second caller to join the first load, got %d attempts", loader.Attempts())
	}
}

func TestBuildPropagatesLoadFailure(t *testing.T) {
	loader := NewLoader(func(context.Context) (Embedder, error) {
		return nil, errors.New("offline")
	}, zap.NewNop())
	coord := NewCoordinator(loader, &fakeSource{
		texts:   []string{"x", "z"},
		idx:     []int{0, 1},
		classes: []string{"a", "b"},
	}, CoordinatorConfig{Train: testTrainConfig()}, zap.NewNop())

	if _, err := coord.Build(context.Background()); err == nil {
		t.Fatalf("expected load failure to propagate")
	}
	if coord.State() != StateUntrained {
		t.Fatalf("expected state to roll back, got %s", coord.State())
	}
}
