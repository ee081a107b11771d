package ai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/util"
	"github.com/kapu/blockext-go/pkg/errors"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = stderrors.New("ai: circuit open")

var (
	statusCodeRegex = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRegex = regexp.MustCompile(`"code":(\d{3})`)
	openaiCodeRegex = regexp.MustCompile(`^(\d{3})\s`)
)

// ModelManager routes JSON generation to the primary provider and falls back
// to the secondary one, guarded by a shared circuit breaker.
type ModelManager struct {
	gemini         *GeminiProvider
	openai         *OpenAIProvider
	primary        JSONProvider
	fallback       JSONProvider
	logger         *zap.Logger
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	GeminiAPIKey       string
	OpenAIAPIKey       string
	DefaultGeminiModel string
	DefaultOpenAIModel string
	EnableFallback     bool
}

func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	logger = util.OrNop(logger)

	defaultGemini := cfg.DefaultGeminiModel
	if defaultGemini == "" {
		defaultGemini = "gemini-2.5-flash"
	}

	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-5-mini"
	}

	var geminiProvider *GeminiProvider
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		geminiProvider = NewGeminiProvider(geminiClient, defaultGemini, logger)
	}

	openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, defaultOpenAI, logger)

	var primary, fallback JSONProvider
	switch {
	case geminiProvider != nil:
		primary = geminiProvider
		if cfg.EnableFallback && openaiProvider != nil {
			fallback = openaiProvider
			logger.Info("OpenAI fallback enabled", zap.String("model", defaultOpenAI))
		} else {
			logger.Info("OpenAI fallback disabled")
		}
	case openaiProvider != nil:
		primary = openaiProvider
		logger.Info("Gemini not configured, OpenAI is primary", zap.String("model", defaultOpenAI))
	default:
		return nil, errors.NewValidationError("no AI provider configured", "api_key", "")
	}

	mm := newModelManager(primary, fallback, logger)
	mm.gemini = geminiProvider
	mm.openai = openaiProvider
	return mm, nil
}

// NewModelManagerWithProviders wires pre-built providers. fallback may be nil.
func NewModelManagerWithProviders(primary, fallback JSONProvider, logger *zap.Logger) *ModelManager {
	return newModelManager(primary, fallback, util.OrNop(logger))
}

func newModelManager(primary, fallback JSONProvider, logger *zap.Logger) *ModelManager {
	mm := &ModelManager{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
	mm.circuitBreaker = util.NewCircuitBreaker(util.CircuitBreakerConfig{
		Name:                "ai",
		FailureThreshold:    constants.CircuitBreakerConfig.FailureThreshold,
		ResetTimeout:        constants.CircuitBreakerConfig.ResetTimeout,
		HealthCheckInterval: constants.CircuitBreakerConfig.HealthCheckInterval,
		HealthCheck:         mm.healthCheckPing,
	}, logger)
	return mm
}

// Gemini returns the Gemini provider, or nil when only OpenAI is configured.
func (mm *ModelManager) Gemini() *GeminiProvider {
	return mm.gemini
}

// OpenAI returns the OpenAI provider, or nil without an API key.
func (mm *ModelManager) OpenAI() *OpenAIProvider {
	return mm.openai
}

// GenerateJSON asks each configured provider in turn and decodes the first
// answer into dest. Only service-level failures (timeouts, 5xx, 429) count
// against the breaker.
func (mm *ModelManager) GenerateJSON(ctx context.Context, prompt string, preset ModelPreset, dest any, opts *GenerateOptions) (*GenerateMetadata, error) {
	if !mm.circuitBreaker.CanExecute() {
		return nil, mm.circuitOpenError()
	}

	options := GenerateOptions{JSONMode: true}
	if opts != nil {
		options = *opts
		options.JSONMode = true
	}

	var (
		failures    []error
		serviceDown bool
	)
	for i, provider := range mm.chain() {
		result, err := provider.Generate(ctx, prompt, preset, &options)
		if err == nil {
			mm.circuitBreaker.RecordSuccess()
			return mm.decodeJSON(result.Text, &GenerateMetadata{
				Provider:     provider.Name(),
				Model:        result.Model,
				UsedFallback: i > 0,
			}, dest)
		}
		mm.logger.Warn("Provider generation failed", zap.String("provider", provider.Name()), zap.Error(err))
		failures = append(failures, err)
		serviceDown = serviceDown || isServiceFailure(err)
	}

	if len(failures) == 0 {
		return nil, fmt.Errorf("model provider is not configured")
	}
	for _, err := range failures {
		mm.recordFailure(err)
	}

	last := failures[len(failures)-1]
	if serviceDown {
		return nil, errors.NewServiceError("AI service temporarily unavailable", "ai", "generate_json", last)
	}
	return nil, last
}

func (mm *ModelManager) chain() []JSONProvider {
	var providers []JSONProvider
	for _, p := range []JSONProvider{mm.primary, mm.fallback} {
		if p != nil {
			providers = append(providers, p)
		}
	}
	return providers
}

func (mm *ModelManager) circuitOpenError() error {
	status := mm.circuitBreaker.GetStatus()
	nextRetry := "unknown"
	if status.NextRetryTime != nil {
		nextRetry = util.FormatClock(*status.NextRetryTime, "15:04:05")
	}
	mm.logger.Error("AI service unavailable (Circuit OPEN)",
		zap.String("state", status.State.String()),
		zap.Int("failure_count", status.FailureCount),
		zap.String("next_retry", nextRetry),
	)
	return fmt.Errorf("%w: retry after %s", ErrCircuitOpen, nextRetry)
}

func (mm *ModelManager) decodeJSON(text string, metadata *GenerateMetadata, dest any) (*GenerateMetadata, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%s API returned empty response", metadata.Provider)
	}

	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		mm.logger.Error("Failed to unmarshal JSON response",
			zap.String("provider", metadata.Provider),
			zap.Error(err),
			zap.String("response_preview", util.TruncateString(cleaned, 200)),
		)
		return nil, fmt.Errorf("invalid JSON from %s: %w", metadata.Provider, err)
	}

	return metadata, nil
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```json"))
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	return cleaned
}

func (mm *ModelManager) recordFailure(err error) {
	if !isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
}

func (mm *ModelManager) healthCheckPing() bool {
	mm.logger.Info("Health Check: Testing AI services...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	primaryOK := mm.primary != nil && mm.primary.Ping(ctx)
	fallbackOK := mm.fallback != nil && mm.fallback.Ping(ctx)
	isHealthy := primaryOK || fallbackOK

	mm.logger.Info("Health Check: Result",
		zap.Bool("primary", primaryOK),
		zap.Bool("fallback", fallbackOK),
		zap.Bool("healthy", isHealthy),
	)

	return isHealthy
}

func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := statusOf(err); ok {
		return code == 429 || code >= 500
	}

	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "ETIMEDOUT") || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if isRateLimitError(err) {
		return true
	}

	if statusCodeRegex.MatchString(msg) {
		return true
	}

	if code, ok := providerStatusCode(msg); ok {
		return code >= 500 && code < 600
	}

	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := statusOf(err); ok {
		return code == 429
	}

	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") {
		return true
	}

	code, ok := providerStatusCode(msg)
	return ok && code == 429
}

// statusOf returns the HTTP status carried by an OpenAI SDK error.
func statusOf(err error) (int, bool) {
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// providerStatusCode extracts the HTTP status embedded in Gemini ("code":NNN)
// or OpenAI ("NNN ...") error strings.
func providerStatusCode(msg string) (int, bool) {
	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, err := strconv.Atoi(matches[1]); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

func (mm *ModelManager) GetCircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.GetStatus()
}

func (mm *ModelManager) ResetCircuit() {
	mm.circuitBreaker.Reset()
}
