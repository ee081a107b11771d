package playback

import (
	"context"
	"sync"

	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

// Player is a decoded, playable sound owned by the audio engine. OnStop
// callbacks fire once when playback ends or Stop is called.
type Player interface {
	ID() string
	Play() error
	Stop()
	OnStop(func())
}

// Manager tracks playing sounds so a stop-all signal can cancel them.
type Manager struct {
	mu     sync.Mutex
	active map[string]Player
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		active: make(map[string]Player),
		logger: util.OrNop(logger),
	}
}

// Play registers player, starts it and blocks until it stops or ctx is done.
// The player removes itself from the active set when it stops.
func (m *Manager) Play(ctx context.Context, player Player) error {
	done := make(chan struct{})
	var once sync.Once

	player.OnStop(func() {
		m.deregister(player.ID())
		once.Do(func() { close(done) })
	})
	m.register(player)

	if err := player.Play(); err != nil {
		m.deregister(player.ID())
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) register(player Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[player.ID()] = player
}

func (m *Manager) deregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

// StopAll stops every active player. It iterates a snapshot, so stop
// callbacks may deregister players while it runs.
func (m *Manager) StopAll() {
	m.mu.Lock()
	snapshot := make([]Player, 0, len(m.active))
	for _, p := range m.active {
		snapshot = append(snapshot, p)
	}
	m.mu.Unlock()

	if len(snapshot) > 0 {
		m.logger.Info("Stopping all speech", zap.Int("players", len(snapshot)))
	}
	for _, p := range snapshot {
		p.Stop()
	}
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
