package sampling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("sampling loop already running")

// FrameSource is the host's pull-based sensor accessor. A nil frame with a nil
// error means no frame is available yet.
type FrameSource interface {
	GetFrame(ctx context.Context, format string, width, height int) (*domain.Frame, error)
}

type State string

const (
	StateIdle     State = "IDLE"
	StateSampling State = "SAMPLING"
	StateStopped  State = "STOPPED"
)

type Config struct {
	Format       string
	Width        int
	Height       int
	DelayDivisor int
	MinDelay     time.Duration
	Clock        util.Clock
}

// Loop repeatedly pulls the latest frame and sleeps for a fraction of the time
// the pull took, so its rate follows the actual frame cost.
type Loop struct {
	source FrameSource
	cfg    Config
	logger *zap.Logger

	frame  atomic.Pointer[domain.Frame]
	state  atomic.Value
	cycles atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLoop(source FrameSource, cfg Config, logger *zap.Logger) *Loop {
	if cfg.DelayDivisor <= 0 {
		cfg.DelayDivisor = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = util.SystemClock
	}
	l := &Loop{
		source: source,
		cfg:    cfg,
		logger: util.OrNop(logger),
	}
	l.state.Store(StateIdle)
	return l
}

// Start launches the loop on its own goroutine. It runs until ctx is done or
// Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	l.logger.Info("Sampling loop started",
		zap.Int("width", l.cfg.Width),
		zap.Int("height", l.cfg.Height),
	)

	go l.run(loopCtx, l.done)
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.running = false
	l.mu.Unlock()

	cancel()
	<-done
	l.logger.Info("Sampling loop stopped", zap.Uint64("cycles", l.cycles.Load()))
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.state.Store(StateStopped)

	for {
		delay := l.step(ctx)

		l.state.Store(StateIdle)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// step samples one frame and returns how long to wait before the next one.
func (l *Loop) step(ctx context.Context) time.Duration {
	l.state.Store(StateSampling)
	start := l.cfg.Clock.Now()

	frame, err := l.source.GetFrame(ctx, l.cfg.Format, l.cfg.Width, l.cfg.Height)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Debug("Frame unavailable", zap.Error(err))
		}
		frame = nil
	}
	l.frame.Store(frame)
	l.cycles.Add(1)

	elapsed := l.cfg.Clock.Now().Sub(start)
	delay := elapsed / time.Duration(l.cfg.DelayDivisor)
	if delay < l.cfg.MinDelay {
		delay = l.cfg.MinDelay
	}
	return delay
}

// Frame returns the latest sampled frame, or nil when none is available.
func (l *Loop) Frame() *domain.Frame {
	return l.frame.Load()
}

func (l *Loop) State() State {
	return l.state.Load().(State)
}

func (l *Loop) Cycles() uint64 {
	return l.cycles.Load()
}
