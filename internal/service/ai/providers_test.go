package ai

import (
	"testing"

	"google.golang.org/genai"
)

func TestResolveRequest(t *testing.T) {
	model, cfg, jsonMode := resolveRequest("gemini-2.5-flash", PresetPrecise, nil)
	if model != "gemini-2.5-flash" || jsonMode || cfg != PresetConfig(PresetPrecise) {
		t.Fatalf("unexpected defaults %s %+v %v", model, cfg, jsonMode)
	}

	model, cfg, jsonMode = resolveRequest("gemini-2.5-flash", PresetPrecise, &GenerateOptions{
		Model:     "gemini-2.5-pro",
		JSONMode:  true,
		Overrides: &ModelConfig{MaxOutputTokens: 32},
	})
	if model != "gemini-2.5-pro" || !jsonMode || cfg.MaxOutputTokens != 32 {
		t.Fatalf("overrides not applied: %s %+v %v", model, cfg, jsonMode)
	}
}

func TestGeminiConfigJSONMode(t *testing.T) {
	cfg := geminiConfig(PresetConfig(PresetPrecise), true)
	if cfg.ResponseMIMEType != "application/json" || *cfg.TopK != 20 || cfg.MaxOutputTokens != 512 {
		t.Fatalf("unexpected gemini config %+v", cfg)
	}
	if geminiConfig(PresetConfig(PresetPrecise), false).ResponseMIMEType != "" {
		t.Fatalf("plain mode must not force a mime type")
	}
}

func TestChatParamsSampling(t *testing.T) {
	p := chatParams("gpt-5-mini", "hi", PresetConfig(PresetBalanced), true)
	if len(p.Messages) != 2 {
		t.Fatalf("json mode must prepend a system message")
	}
	if p.Temperature.Valid() || p.TopP.Valid() {
		t.Fatalf("gpt-5 models must not receive sampling parameters")
	}

	p = chatParams("gpt-4.1-mini", "hi", PresetConfig(PresetBalanced), false)
	if len(p.Messages) != 1 || !p.Temperature.Valid() || p.TopP.Value != 0.95 {
		t.Fatalf("expected sampling parameters for gpt-4.1")
	}
}

func TestResponseTextJoinsFirstCandidate(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []*genai.Part{{Text: `{"a":`}, nil, {Text: `1}`}}}},
		{Content: &genai.Content{Parts: []*genai.Part{{Text: "ignored"}}}},
	}}
	if got := responseText(resp); got != `{"a":1}` {
		t.Fatalf("unexpected text %q", got)
	}
	if responseText(nil) != "" || responseText(&genai.GenerateContentResponse{}) != "" {
		t.Fatalf("empty responses must yield empty text")
	}
}
