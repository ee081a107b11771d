package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/blockext-go/internal/util"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// JSONProvider is one LLM backend behind the model manager.
type JSONProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error)
	Ping(ctx context.Context) bool
}

type ProviderResult struct {
	Text  string
	Model string
}

const (
	pingTimeout = 5 * time.Second
	jsonOnly    = "You must respond with valid JSON only. Do not include any text outside the JSON object."
)

// resolveRequest picks the model and merged sampling config for one call.
func resolveRequest(defaultModel string, preset ModelPreset, opts *GenerateOptions) (string, ModelConfig, bool) {
	model := defaultModel
	cfg := PresetConfig(preset)
	jsonMode := false
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		cfg = cfg.merge(opts.Overrides)
		jsonMode = opts.JSONMode
	}
	return model, cfg, jsonMode
}

type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewGeminiProvider(client *genai.Client, defaultModel string, logger *zap.Logger) *GeminiProvider {
	return &GeminiProvider{client: client, defaultModel: defaultModel, logger: util.OrNop(logger)}
}

func (g *GeminiProvider) Name() string          { return "Gemini" }
func (g *GeminiProvider) Client() *genai.Client { return g.client }

func geminiConfig(cfg ModelConfig, jsonMode bool) *genai.GenerateContentConfig {
	topK := float32(cfg.TopK)
	out := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopP:            genai.Ptr(cfg.TopP),
		TopK:            &topK,
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
	}
	if jsonMode {
		out.ResponseMIMEType = "application/json"
	}
	return out
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error) {
	if g.client == nil {
		return ProviderResult{}, fmt.Errorf("gemini client not initialized")
	}
	model, cfg, jsonMode := resolveRequest(g.defaultModel, preset, opts)

	g.logger.Debug("Generating with Gemini",
		zap.String("model", model),
		zap.String("preset", string(preset)),
		zap.Bool("json_mode", jsonMode),
	)

	text, err := g.complete(ctx, model, prompt, geminiConfig(cfg, jsonMode))
	if err != nil {
		g.logger.Error("Gemini generation failed", zap.Error(err))
		return ProviderResult{}, err
	}
	if text == "" {
		return ProviderResult{}, fmt.Errorf("empty response from Gemini")
	}
	return ProviderResult{Text: text, Model: model}, nil
}

func (g *GeminiProvider) complete(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (g *GeminiProvider) Ping(ctx context.Context) bool {
	if g.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	text, err := g.complete(ctx, g.defaultModel, "ping", geminiConfig(ModelConfig{TopP: 1, TopK: 1, MaxOutputTokens: 10}, false))
	if err != nil {
		g.logger.Debug("Gemini ping failed", zap.Error(err))
		return false
	}
	return text != ""
}

type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	logger       *zap.Logger
}

// NewOpenAIProvider returns nil when apiKey is empty.
func NewOpenAIProvider(apiKey string, defaultModel string, logger *zap.Logger, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{client: &client, defaultModel: defaultModel, logger: util.OrNop(logger)}
}

func (o *OpenAIProvider) Name() string            { return "OpenAI" }
func (o *OpenAIProvider) Client() *openai.Client { return o.client }

func chatParams(model, prompt string, cfg ModelConfig, jsonMode bool) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if jsonMode {
		messages = append(messages, openai.SystemMessage(jsonOnly))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(cfg.MaxOutputTokens)),
	}
	// gpt-5 models reject sampling parameters.
	if !strings.HasPrefix(model, "gpt-5") {
		params.Temperature = openai.Float(float64(cfg.Temperature))
		params.TopP = openai.Float(float64(cfg.TopP))
	}
	return params
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error) {
	if o.client == nil {
		return ProviderResult{}, fmt.Errorf("OpenAI client not initialized")
	}
	model, cfg, jsonMode := resolveRequest(o.defaultModel, preset, opts)

	o.logger.Info("Fallback: Generating with OpenAI",
		zap.String("model", model),
		zap.String("preset", string(preset)),
	)

	resp, err := o.client.Chat.Completions.New(ctx, chatParams(model, prompt, cfg, jsonMode))
	if err != nil {
		o.logger.Error("OpenAI generation failed", zap.Error(err))
		return ProviderResult{}, err
	}
	if len(resp.Choices) == 0 {
		return ProviderResult{}, fmt.Errorf("no choices in OpenAI response")
	}

	o.logger.Info("OpenAI response received",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return ProviderResult{Text: resp.Choices[0].Message.Content, Model: model}, nil
}

func (o *OpenAIProvider) Ping(ctx context.Context) bool {
	if o.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, chatParams(string(openai.ChatModelGPT4oMini), "ping", ModelConfig{TopP: 1, MaxOutputTokens: 10}, false))
	if err != nil {
		o.logger.Debug("OpenAI ping failed", zap.Error(err))
		return false
	}
	return len(resp.Choices) > 0
}
