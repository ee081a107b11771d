package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/prompt"
	"github.com/kapu/blockext-go/internal/util"
	"github.com/kapu/blockext-go/pkg/errors"
	"go.uber.org/zap"
)

// JSONGenerator is the slice of ModelManager the LLM-backed helpers need.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, preset ModelPreset, dest any, opts *GenerateOptions) (*GenerateMetadata, error)
}

type translateResponse struct {
	Result string `json:"result"`
}

// Translator asks the language model for a translation when the translate
// service is down.
type Translator struct {
	generator JSONGenerator
	logger    *zap.Logger
}

func NewTranslator(generator JSONGenerator, logger *zap.Logger) *Translator {
	return &Translator{generator: generator, logger: util.OrNop(logger)}
}

func (t *Translator) Translate(ctx context.Context, text, language string) (string, error) {
	if util.IsBlank(text) {
		return "", errors.NewValidationError("text is empty", "text", text)
	}
	if len([]rune(text)) > constants.AIInputLimits.MaxQueryLength {
		return "", errors.NewValidationError("text too long", "text", len([]rune(text)))
	}

	rendered, err := prompt.BuildTranslate(prompt.TranslateVars{Text: text, Language: language})
	if err != nil {
		return "", err
	}

	var resp translateResponse
	metadata, err := t.generator.GenerateJSON(ctx, rendered, PresetPrecise, &resp, nil)
	if err != nil {
		return "", fmt.Errorf("llm translate: %w", err)
	}

	result := strings.TrimSpace(resp.Result)
	if result == "" {
		return "", fmt.Errorf("llm translate: empty result from %s", metadata.Provider)
	}

	t.logger.Debug("LLM translation",
		zap.String("provider", metadata.Provider),
		zap.Bool("fallback", metadata.UsedFallback),
		zap.String("language", language),
	)
	return result, nil
}
