package ai

import (
	"context"
	"fmt"
	"math"

	"github.com/kapu/blockext-go/internal/classifier"
	"github.com/kapu/blockext-go/internal/util"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const warmupText = "hello"

// GeminiEmbedder calls the Gemini embedding endpoint with a fixed output width.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
	logger *zap.Logger
}

func NewGeminiEmbedder(client *genai.Client, model string, dim int, logger *zap.Logger) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, dim: dim, logger: util.OrNop(logger)}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dim := int32(e.dim)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             "CLASSIFICATION",
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		if err := e.check(vec); err != nil {
			return nil, err
		}
		out[i] = normalize(vec)
	}

	e.logger.Debug("Gemini embeddings computed", zap.Int("texts", len(texts)))
	return out, nil
}

func (e *GeminiEmbedder) check(vec []float64) error {
	if len(vec) != e.dim {
		return fmt.Errorf("gemini embed: vector width %d, want %d", len(vec), e.dim)
	}
	return nil
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint with a fixed output width.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
	logger *zap.Logger
}

func NewOpenAIEmbedder(client *openai.Client, dim int, logger *zap.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: client,
		model:  openai.EmbeddingModelTextEmbedding3Small,
		dim:    dim,
		logger: util.OrNop(logger),
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      e.model,
		Dimensions: openai.Int(int64(e.dim)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", idx)
		}
		if len(item.Embedding) != e.dim {
			return nil, fmt.Errorf("openai embed: vector width %d, want %d", len(item.Embedding), e.dim)
		}
		out[idx] = normalize(append([]float64(nil), item.Embedding...))
	}

	e.logger.Debug("OpenAI embeddings computed", zap.Int("texts", len(texts)))
	return out, nil
}

// EmbedderLoader picks one embedding backend for the process lifetime. Vectors
// from different backends are not comparable, so there is no per-call fallback:
// Gemini is used when its warmup succeeds, OpenAI otherwise.
func EmbedderLoader(mm *ModelManager, embedModel string, dim int, logger *zap.Logger) classifier.LoadFunc {
	logger = util.OrNop(logger)
	return func(ctx context.Context) (classifier.Embedder, error) {
		var candidates []classifier.Embedder
		if g := mm.Gemini(); g != nil {
			candidates = append(candidates, NewGeminiEmbedder(g.Client(), embedModel, dim, logger))
		}
		if o := mm.OpenAI(); o != nil {
			candidates = append(candidates, NewOpenAIEmbedder(o.Client(), dim, logger))
		}
		return firstWorkingEmbedder(ctx, candidates, logger)
	}
}

func firstWorkingEmbedder(ctx context.Context, candidates []classifier.Embedder, logger *zap.Logger) (classifier.Embedder, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no embedding backend configured")
	}

	var lastErr error
	for _, candidate := range candidates {
		if _, err := candidate.Embed(ctx, []string{warmupText}); err != nil {
			logger.Warn("Embedding backend warmup failed",
				zap.String("backend", fmt.Sprintf("%T", candidate)),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		logger.Info("Embedding backend ready", zap.String("backend", fmt.Sprintf("%T", candidate)))
		return candidate, nil
	}
	return nil, fmt.Errorf("load embedding model: %w", lastErr)
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
