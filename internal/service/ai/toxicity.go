package ai

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/prompt"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

// ToxicityPrediction holds the probability pair for one label. Match is true
// when the positive probability clears the threshold.
type ToxicityPrediction struct {
	Label    string
	Positive float64
	Negative float64
	Match    bool
}

type toxicityResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// ToxicityClassifier scores text against a fixed label set through the
// language model. It must be loaded (a warmup call) before Classify is used.
type ToxicityClassifier struct {
	generator JSONGenerator
	labels    []string
	threshold float64
	cache     *ResultCache[[]ToxicityPrediction]
	loaded    atomic.Bool
	loadOnce  sync.Once
	logger    *zap.Logger
}

func NewToxicityClassifier(generator JSONGenerator, logger *zap.Logger) *ToxicityClassifier {
	return &ToxicityClassifier{
		generator: generator,
		labels:    constants.ToxicityConfig.Labels,
		threshold: constants.ToxicityConfig.Threshold,
		cache:     NewResultCache[[]ToxicityPrediction](10*time.Minute, nil),
		logger:    util.OrNop(logger),
	}
}

// Load runs a single warmup classification. Later calls are no-ops.
func (c *ToxicityClassifier) Load(ctx context.Context) {
	c.loadOnce.Do(func() {
		if _, err := c.classify(ctx, warmupText); err != nil {
			c.logger.Warn("Toxicity model failed to load", zap.Error(err))
			return
		}
		c.loaded.Store(true)
		c.logger.Info("Toxicity model loaded", zap.Strings("labels", c.labels))
	})
}

func (c *ToxicityClassifier) Loaded() bool {
	return c.loaded.Load()
}

func (c *ToxicityClassifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Classify returns one prediction per label, in label order.
func (c *ToxicityClassifier) Classify(ctx context.Context, text string) ([]ToxicityPrediction, error) {
	if !c.Loaded() {
		return nil, fmt.Errorf("toxicity model not loaded")
	}
	return c.classify(ctx, text)
}

func (c *ToxicityClassifier) classify(ctx context.Context, text string) ([]ToxicityPrediction, error) {
	key := util.Normalize(text)
	if cached, _, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	rendered, err := prompt.BuildToxicity(prompt.ToxicityVars{Text: text, Labels: c.labels})
	if err != nil {
		return nil, err
	}

	var resp toxicityResponse
	metadata, err := c.generator.GenerateJSON(ctx, rendered, PresetPrecise, &resp, nil)
	if err != nil {
		return nil, fmt.Errorf("toxicity classify: %w", err)
	}

	predictions := make([]ToxicityPrediction, len(c.labels))
	for i, label := range c.labels {
		positive := util.Clamp(resp.Scores[label], 0, 1)
		predictions[i] = ToxicityPrediction{
			Label:    label,
			Positive: positive,
			Negative: 1 - positive,
			Match:    positive > c.threshold,
		}
	}

	c.cache.Set(key, predictions, metadata)
	return predictions, nil
}

// Confidence reports the rounded percent probability of label (positive) or
// its complement. Unknown labels and an unloaded model yield 0.
func (c *ToxicityClassifier) Confidence(ctx context.Context, text, label string, positive bool) int {
	if !c.Loaded() || !slices.Contains(c.labels, label) {
		return 0
	}

	predictions, err := c.Classify(ctx, text)
	if err != nil {
		c.logger.Warn("Toxicity classification failed", zap.Error(err))
		return 0
	}

	for _, p := range predictions {
		if p.Label != label {
			continue
		}
		prob := p.Negative
		if positive {
			prob = p.Positive
		}
		return int(math.Round(prob * 100))
	}
	return 0
}
