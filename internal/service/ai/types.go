package ai

// ModelPreset selects sampling parameters for a generation call.
type ModelPreset string

const (
	// PresetPrecise is deterministic output for scoring and translation.
	PresetPrecise  ModelPreset = "precise"
	PresetBalanced ModelPreset = "balanced"
)

// ModelConfig is the provider-neutral sampling configuration. TopK is only
// honoured by Gemini.
type ModelConfig struct {
	Temperature      float32
	TopP             float32
	TopK             int
	MaxOutputTokens  int
	ResponseMimeType string
}

// merge overlays the non-zero fields of o.
func (c ModelConfig) merge(o *ModelConfig) ModelConfig {
	if o == nil {
		return c
	}
	if o.Temperature > 0 {
		c.Temperature = o.Temperature
	}
	if o.TopP > 0 {
		c.TopP = o.TopP
	}
	if o.TopK > 0 {
		c.TopK = o.TopK
	}
	if o.MaxOutputTokens > 0 {
		c.MaxOutputTokens = o.MaxOutputTokens
	}
	return c
}

var presets = map[ModelPreset]ModelConfig{
	PresetPrecise:  {Temperature: 0, TopP: 0.9, TopK: 20, MaxOutputTokens: 512},
	PresetBalanced: {Temperature: 0.1, TopP: 0.95, TopK: 40, MaxOutputTokens: 1024},
}

// PresetConfig returns the sampling configuration for preset, falling back
// to PresetBalanced for unknown names.
func PresetConfig(preset ModelPreset) ModelConfig {
	if cfg, ok := presets[preset]; ok {
		return cfg
	}
	return presets[PresetBalanced]
}

// GenerateMetadata describes which provider answered.
type GenerateMetadata struct {
	Provider     string
	Model        string
	UsedFallback bool
}

type GenerateOptions struct {
	Model     string
	JSONMode  bool
	Overrides *ModelConfig
}
