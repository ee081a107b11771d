package host

import (
	"context"
	"sync"

	"github.com/kapu/blockext-go/internal/events"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

// SoundAPI is the part of the host API that owns decoded sounds.
type SoundAPI interface {
	DecodeSound(ctx context.Context, audio []byte) (string, error)
	PlaySound(ctx context.Context, soundID string, volume, playbackRate float64) error
	StopSound(ctx context.Context, soundID string) error
}

// Audio hands out sound players and routes the host's stop notifications
// back to them.
type Audio struct {
	api     SoundAPI
	mu      sync.Mutex
	players map[string]*SoundPlayer
	logger  *zap.Logger
}

func NewAudio(api SoundAPI, logger *zap.Logger) *Audio {
	return &Audio{
		api:     api,
		players: make(map[string]*SoundPlayer),
		logger:  util.OrNop(logger),
	}
}

// DecodeSoundPlayer uploads audio and returns a player for it.
func (a *Audio) DecodeSoundPlayer(ctx context.Context, audio []byte, volume, playbackRate float64) (*SoundPlayer, error) {
	id, err := a.api.DecodeSound(ctx, audio)
	if err != nil {
		return nil, err
	}

	player := &SoundPlayer{
		id:           id,
		audio:        a,
		volume:       volume,
		playbackRate: playbackRate,
	}

	a.mu.Lock()
	a.players[id] = player
	a.mu.Unlock()

	return player, nil
}

// Attach subscribes to SoundStopped events on bus.
func (a *Audio) Attach(bus *events.Bus) (func(), error) {
	return events.On(bus, func(_ context.Context, ev events.SoundStopped) {
		a.HandleSoundStopped(ev)
	})
}

func (a *Audio) HandleSoundStopped(ev events.SoundStopped) {
	a.mu.Lock()
	player, ok := a.players[ev.SoundID]
	a.mu.Unlock()
	if !ok {
		return
	}
	player.markStopped()
}

func (a *Audio) forget(id string) {
	a.mu.Lock()
	delete(a.players, id)
	a.mu.Unlock()
}

// Pending counts players that have not stopped yet.
func (a *Audio) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.players)
}

// SoundPlayer is one decoded host sound.
type SoundPlayer struct {
	id           string
	audio        *Audio
	volume       float64
	playbackRate float64

	mu        sync.Mutex
	stopped   bool
	callbacks []func()
}

func (p *SoundPlayer) ID() string {
	return p.id
}

func (p *SoundPlayer) Play() error {
	return p.audio.api.PlaySound(context.Background(), p.id, p.volume, p.playbackRate)
}

// Stop asks the host to stop and fires the stop callbacks without waiting
// for the host's notification.
func (p *SoundPlayer) Stop() {
	if err := p.audio.api.StopSound(context.Background(), p.id); err != nil {
		p.audio.logger.Warn("Failed to stop sound", zap.String("sound_id", p.id), zap.Error(err))
	}
	p.markStopped()
}

func (p *SoundPlayer) OnStop(callback func()) {
	p.mu.Lock()
	if !p.stopped {
		p.callbacks = append(p.callbacks, callback)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	callback()
}

func (p *SoundPlayer) markStopped() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	p.audio.forget(p.id)
	for _, cb := range callbacks {
		cb()
	}
}
