package classifier

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Embedder turns texts into fixed-width vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// LoadFunc produces the embedding model. It is slow and called at most once
// per successful load.
type LoadFunc func(ctx context.Context) (Embedder, error)

const loadKey = "embedder"

// Loader loads the embedding model lazily. Concurrent first callers share one
// in-flight load; a failed load is forgotten so the next call tries again.
type Loader struct {
	load     LoadFunc
	group    singleflight.Group
	mu       sync.RWMutex
	model    Embedder
	attempts atomic.Int64
	logger   *zap.Logger
}

func NewLoader(load LoadFunc, logger *zap.Logger) *Loader {
	return &Loader{load: load, logger: util.OrNop(logger)}
}

func (l *Loader) cached() Embedder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model
}

// Get returns the loaded model, joining an in-flight load if one exists.
// Cancelling ctx abandons the wait but not the shared load.
func (l *Loader) Get(ctx context.Context) (Embedder, error) {
	if model := l.cached(); model != nil {
		return model, nil
	}

	ch := l.group.DoChan(loadKey, func() (any, error) {
		if model := l.cached(); model != nil {
			return model, nil
		}
		return l.run(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Embedder), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) run(ctx context.Context) (Embedder, error) {
	attempt := l.attempts.Add(1)
	l.logger.Info("Loading embedding model", zap.Int64("attempt", attempt))

	model, err := l.load(ctx)
	if err != nil {
		l.logger.Warn("Embedding model load failed", zap.Error(err))
		return nil, err
	}

	l.mu.Lock()
	l.model = model
	l.mu.Unlock()

	l.logger.Info("Embedding model loaded")
	return model, nil
}

// Loaded reports whether the model is ready without triggering a load.
func (l *Loader) Loaded() bool {
	return l.cached() != nil
}

// Attempts counts load invocations.
func (l *Loader) Attempts() int64 {
	return l.attempts.Load()
}
