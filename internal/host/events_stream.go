package host

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kapu/blockext-go/internal/events"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

const (
	handshakeTimeout = 10 * time.Second
	stopWaitTimeout  = 5 * time.Second
)

type EventCallback func(event events.Event)

type StateCallback func(state WebSocketState)

// EventStream follows the host's lifecycle websocket. A single supervisor
// goroutine owns the connection: it reads until the socket drops, then
// redials up to maxAttempts times before giving up in WSStateFailed.
type EventStream struct {
	url         string
	maxAttempts int
	delay       time.Duration
	dialer      websocket.Dialer
	logger      *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	state   WebSocketState
	running bool

	listenersMu    sync.RWMutex
	nextID         int
	eventListeners map[int]EventCallback
	stateListeners map[int]StateCallback

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEventStream(url string, maxAttempts int, delay time.Duration, logger *zap.Logger) *EventStream {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout
	return &EventStream{
		url:            url,
		maxAttempts:    maxAttempts,
		delay:          delay,
		dialer:         dialer,
		logger:         util.OrNop(logger),
		state:          WSStateDisconnected,
		eventListeners: make(map[int]EventCallback),
		stateListeners: make(map[int]StateCallback),
		stop:           make(chan struct{}),
	}
}

// Connect dials once. On success, or on failure with retries left, the
// supervisor keeps the stream alive in the background until ctx ends or
// Disconnect is called. The first dial error is always returned.
func (s *EventStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Host event stream already running")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.setState(WSStateConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		s.logger.Error("Failed to connect host event stream", zap.Error(err))
		if s.maxAttempts <= 0 {
			s.finish(WSStateFailed)
			return err
		}
	}

	s.wg.Add(1)
	go s.supervise(ctx, conn)
	return err
}

func (s *EventStream) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setState(WSStateConnected)
	s.logger.Info("Host event stream connected", zap.String("url", s.url))
	return conn, nil
}

func (s *EventStream) supervise(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("Host event stream supervisor stopped")
	}()

	for {
		if conn != nil {
			err := s.read(ctx, conn)
			if s.stopped(ctx) {
				return
			}
			s.logger.Warn("Host event stream dropped", zap.Error(err))
			s.setState(WSStateDisconnected)
		}

		conn = s.redial(ctx)
		if conn == nil {
			return
		}
	}
}

// read pumps messages until the connection fails. Cancelling ctx closes the
// socket so the blocked read returns.
func (s *EventStream) read(ctx context.Context, conn *websocket.Conn) error {
	release := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer release()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(data)
	}
}

func (s *EventStream) redial(ctx context.Context) *websocket.Conn {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.setState(WSStateReconnecting)
		s.logger.Info("Reconnecting host event stream",
			zap.Int("attempt", attempt),
			zap.Int("max", s.maxAttempts),
			zap.Duration("delay", s.delay),
		)

		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		}

		conn, err := s.dial(ctx)
		if err == nil {
			return conn
		}
		s.logger.Warn("Reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	s.logger.Error("Max reconnect attempts reached", zap.Int("attempts", s.maxAttempts))
	s.finish(WSStateFailed)
	return nil
}

func (s *EventStream) stopped(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *EventStream) finish(state WebSocketState) {
	s.mu.Lock()
	s.running = false
	s.conn = nil
	s.mu.Unlock()
	s.setState(state)
}

func (s *EventStream) handleMessage(data []byte) {
	event, err := events.Decode(data)
	if err != nil {
		s.logger.Warn("Failed to decode lifecycle event",
			zap.Error(err),
			zap.String("data", util.TruncateString(string(data), 200)),
		)
		return
	}

	s.logger.Debug("Lifecycle event received", zap.String("event", event.Name().String()))

	s.listenersMu.RLock()
	callbacks := make([]EventCallback, 0, len(s.eventListeners))
	for _, cb := range s.eventListeners {
		callbacks = append(callbacks, cb)
	}
	s.listenersMu.RUnlock()

	for _, cb := range callbacks {
		cb(event)
	}
}

// OnEvent registers callback and returns its unsubscribe function.
func (s *EventStream) OnEvent(callback EventCallback) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextID++
	id := s.nextID
	s.eventListeners[id] = callback
	return func() {
		s.listenersMu.Lock()
		delete(s.eventListeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *EventStream) OnStateChange(callback StateCallback) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextID++
	id := s.nextID
	s.stateListeners[id] = callback
	return func() {
		s.listenersMu.Lock()
		delete(s.stateListeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *EventStream) RemoveAllListeners() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	clear(s.eventListeners)
	clear(s.stateListeners)
}

func (s *EventStream) setState(next WebSocketState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev == next {
		return
	}

	s.logger.Info("Host event stream state changed",
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
	)

	s.listenersMu.RLock()
	callbacks := make([]StateCallback, 0, len(s.stateListeners))
	for _, cb := range s.stateListeners {
		callbacks = append(callbacks, cb)
	}
	s.listenersMu.RUnlock()

	for _, cb := range callbacks {
		cb(next)
	}
}

func (s *EventStream) State() WebSocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *EventStream) IsConnected() bool {
	return s.State() == WSStateConnected
}

// Disconnect stops the supervisor and closes the socket. It waits briefly
// for the reader to exit.
func (s *EventStream) Disconnect() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopWaitTimeout):
		s.logger.Warn("Timeout waiting for host event stream to stop")
	}

	s.finish(WSStateDisconnected)
	if closeErr != nil {
		s.logger.Error("Failed to close host event stream", zap.Error(closeErr))
		return closeErr
	}
	s.logger.Info("Host event stream disconnected")
	return nil
}
