package remote

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kapu/blockext-go/pkg/errors"
)

// lastSlot remembers only the most recent successful result.
type lastSlot[T any] struct {
	mu    sync.Mutex
	key   string
	value T
	ok    bool
}

func (s *lastSlot[T]) get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ok && s.key == key {
		return s.value, true
	}
	var zero T
	return zero, false
}

func (s *lastSlot[T]) set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key, s.value, s.ok = key, value, true
}

func (c *Client) doJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewAPIError("failed to decode response", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}
	return nil
}

