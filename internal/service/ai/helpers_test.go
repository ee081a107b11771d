package ai

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type fakeGenerator struct {
	mu      sync.Mutex
	payload string
	err     error
	prompts []string
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt string, _ ModelPreset, dest any, _ *GenerateOptions) (*GenerateMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if err := json.Unmarshal([]byte(f.payload), dest); err != nil {
		return nil, err
	}
	return &GenerateMetadata{Provider: "fake", Model: "fake-1"}, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
