package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kapu/blockext-go/internal/util"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

var ErrNotTrained = errors.New("classifier not trained")

// NoClassesMessage is reported instead of a prediction when there is nothing
// to classify against.
const NoClassesMessage = "No classes inputted"

type State string

const (
	StateUntrained  State = "UNTRAINED"
	StateTraining   State = "TRAINING"
	StateTrained    State = "TRAINED"
	StateRetraining State = "RETRAINING"
)

func (s State) String() string {
	return string(s)
}

// TrainingSource provides a snapshot of the dataset, in class order.
type TrainingSource interface {
	TrainingSet() (texts []string, labelIdx []int, classes []string)
}

type BuildStatus string

const (
	BuildTrained      BuildStatus = "trained"
	BuildNoClasses    BuildStatus = "no_classes"
	BuildEmptyDataset BuildStatus = "empty_dataset"
)

// Message is the text surfaced to the user for a build that did not train.
func (s BuildStatus) Message() string {
	switch s {
	case BuildNoClasses:
		return NoClassesMessage
	case BuildEmptyDataset:
		return "No examples inputted"
	default:
		return ""
	}
}

type BuildResult struct {
	Status   BuildStatus
	Classes  []string
	Examples int
	Units    int
	Fit      FitResult
}

type Prediction struct {
	Text       string
	ClassIndex int
	Label      string
	Confidence float64
}

type CoordinatorConfig struct {
	Train          TrainConfig
	EmbedBatchSize int
	EmbedWorkers   int
}

type trainedModel struct {
	layer   *Dense
	classes []string
	version uint64
}

// Coordinator owns the classifier: it rebuilds it from the full dataset on
// request and serves memoized predictions from the latest build.
type Coordinator struct {
	loader *Loader
	source TrainingSource
	cfg    CoordinatorConfig
	logger *zap.Logger

	buildMu sync.Mutex

	mu      sync.RWMutex
	state   State
	model   *trainedModel
	version uint64

	memoMu sync.Mutex
	memo   *memoEntry

	inferences atomic.Int64
}

type memoEntry struct {
	version    uint64
	prediction Prediction
}

func NewCoordinator(loader *Loader, source TrainingSource, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = 1
	}
	return &Coordinator{
		loader: loader,
		source: source,
		cfg:    cfg,
		logger: util.OrNop(logger),
		state:  StateUntrained,
	}
}

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Classes returns the class order of the current model.
func (c *Coordinator) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.model == nil {
		return nil
	}
	return append([]string(nil), c.model.classes...)
}

// Units is the output width of the current model, 0 when untrained.
func (c *Coordinator) Units() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.model == nil {
		return 0
	}
	return c.model.layer.Units()
}

// Build retrains from scratch on a snapshot of the dataset. Fewer than two
// classes or no usable examples are reported in the result, not as errors.
// Builds run one at a time, each on the dataset as it stands when its turn
// comes.
func (c *Coordinator) Build(ctx context.Context) (BuildResult, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	texts, labelIdx, classes := c.source.TrainingSet()
	if len(classes) < 2 {
		c.logger.Info("Build skipped", zap.Int("classes", len(classes)))
		return BuildResult{Status: BuildNoClasses, Classes: classes}, nil
	}
	if len(texts) == 0 {
		c.logger.Info("Build skipped: no examples", zap.Int("classes", len(classes)))
		return BuildResult{Status: BuildEmptyDataset, Classes: classes}, nil
	}

	previous := c.beginBuild()

	result, model, err := c.train(ctx, texts, labelIdx, classes)
	if err != nil {
		c.setState(previous)
		return BuildResult{}, err
	}

	c.mu.Lock()
	c.version++
	model.version = c.version
	c.model = model
	c.state = StateTrained
	c.mu.Unlock()

	c.resetMemo()

	c.logger.Info("Classifier trained",
		zap.Strings("classes", classes),
		zap.Int("examples", len(texts)),
		zap.Int("epochs", result.Fit.Epochs),
		zap.Float64("train_loss", result.Fit.TrainLoss),
		zap.Float64("val_loss", result.Fit.ValLoss),
		zap.Bool("stopped_early", result.Fit.StoppedEarly),
	)
	return result, nil
}

func (c *Coordinator) beginBuild() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.state
	next := StateTraining
	if c.model != nil {
		next = StateRetraining
	}
	c.transitionLocked(next)
	return previous
}

func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(state)
}

func (c *Coordinator) transitionLocked(next State) {
	if c.state == next {
		return
	}
	c.logger.Info("Classifier state transition",
		zap.String("from", c.state.String()),
		zap.String("to", next.String()),
	)
	c.state = next
}

func (c *Coordinator) train(ctx context.Context, texts []string, labelIdx []int, classes []string) (BuildResult, *trainedModel, error) {
	embeddings, err := c.embedAll(ctx, texts)
	if err != nil {
		return BuildResult{}, nil, err
	}

	dim := len(embeddings[0])
	layer := NewDense(dim, len(classes))
	fit, err := layer.Fit(embeddings, OneHot(labelIdx, len(classes)), c.cfg.Train)
	if err != nil {
		return BuildResult{}, nil, fmt.Errorf("fit classifier: %w", err)
	}

	result := BuildResult{
		Status:   BuildTrained,
		Classes:  classes,
		Examples: len(texts),
		Units:    layer.Units(),
		Fit:      fit,
	}
	return result, &trainedModel{layer: layer, classes: classes}, nil
}

// embedAll embeds texts in batches on a bounded pool. Output order matches texts.
func (c *Coordinator) embedAll(ctx context.Context, texts []string) ([][]float64, error) {
	model, err := c.loader.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedding model: %w", err)
	}

	out := make([][]float64, len(texts))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(c.cfg.EmbedWorkers)
	for start := 0; start < len(texts); start += c.cfg.EmbedBatchSize {
		start := start
		end := min(start+c.cfg.EmbedBatchSize, len(texts))
		p.Go(func(ctx context.Context) error {
			vectors, err := model.Embed(ctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), end-start)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("embed training set: %w", err)
	}

	dim := len(out[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedder returned empty vectors")
	}
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has width %d, expected %d", i, len(v), dim)
		}
	}
	return out, nil
}

// Predict classifies text. The same text asked twice in a row against the
// same model is answered from the memo without running inference.
func (c *Coordinator) Predict(ctx context.Context, text string) (Prediction, error) {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()
	if model == nil {
		return Prediction{}, ErrNotTrained
	}

	c.memoMu.Lock()
	if c.memo != nil && c.memo.version == model.version && c.memo.prediction.Text == text {
		cached := c.memo.prediction
		c.memoMu.Unlock()
		return cached, nil
	}
	c.memoMu.Unlock()

	embedder, err := c.loader.Get(ctx)
	if err != nil {
		return Prediction{}, fmt.Errorf("load embedding model: %w", err)
	}

	c.inferences.Add(1)
	vectors, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return Prediction{}, fmt.Errorf("embed input: %w", err)
	}
	if len(vectors) != 1 {
		return Prediction{}, fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
	}

	scores, err := model.layer.Predict(vectors[0])
	if err != nil {
		return Prediction{}, fmt.Errorf("run classifier: %w", err)
	}

	idx := util.ArgMax(scores)
	prediction := Prediction{
		Text:       text,
		ClassIndex: idx,
		Label:      model.classes[idx],
		Confidence: scores[idx],
	}

	c.memoMu.Lock()
	c.memo = &memoEntry{version: model.version, prediction: prediction}
	c.memoMu.Unlock()

	c.logger.Debug("Text classified",
		zap.String("label", prediction.Label),
		zap.Float64("confidence", prediction.Confidence),
	)
	return prediction, nil
}

// LastPrediction returns the memoized result, if any.
func (c *Coordinator) LastPrediction() (Prediction, bool) {
	c.memoMu.Lock()
	defer c.memoMu.Unlock()
	if c.memo == nil {
		return Prediction{}, false
	}
	return c.memo.prediction, true
}

// Inferences counts embedding+inference runs performed by Predict.
func (c *Coordinator) Inferences() int64 {
	return c.inferences.Load()
}

// Reset drops the model and the memo.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.model = nil
	c.transitionLocked(StateUntrained)
	c.mu.Unlock()
	c.resetMemo()
}

func (c *Coordinator) resetMemo() {
	c.memoMu.Lock()
	c.memo = nil
	c.memoMu.Unlock()
}
