package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/mockingbird/internal/decode"
)

const (
	defaultHeartbeat = 30 * time.Second
	writeTimeout     = 5 * time.Second
)

type Config struct {
	URL               string
	UserID            string
	HeartbeatInterval time.Duration
	Reconnect         ReconnectPolicy
}

// Callback receives the attempt identifier extracted from every analysis
// message, plus the result identifier when the payload carries one.
// Callbacks must not assume delivery order across messages.
type Callback func(attemptID, resultID string)

type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Manager owns the push-channel connection. Disconnection is deferred
// while an interview is flagged in progress, so late-arriving results
// between questions are not lost.
type Manager struct {
	cfg    Config
	dialer *websocket.Dialer

	mu                sync.Mutex
	state             State
	conn              *websocket.Conn
	cancel            context.CancelFunc
	subs              map[int]Callback
	nextSub           int
	inProgress        bool
	disconnectPending bool
}

func NewManager(cfg Config) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect = DefaultReconnectPolicy()
	}
	return &Manager{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		subs:   make(map[int]Callback),
	}
}

// Subscribe registers a callback and returns its removal function.
// Callbacks may be added and removed regardless of connection state.
func (m *Manager) Subscribe(fn Callback) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Connect starts the connection loop. Calling Connect while connected or
// connecting is a no-op; a manager that previously gave up may be
// connected again.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnected || m.state == StateConnecting {
		return
	}

	m.state = StateConnecting
	m.disconnectPending = false
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
}

// SetInterviewInProgress marks whether an interview is running. Clearing
// the flag releases any deferred disconnect.
func (m *Manager) SetInterviewInProgress(inProgress bool) {
	m.mu.Lock()
	m.inProgress = inProgress
	fire := !inProgress && m.disconnectPending
	if fire {
		m.disconnectPending = false
	}
	m.mu.Unlock()

	if fire {
		m.ForceDisconnect()
	}
}

// Disconnect tears the connection down, unless an interview is in
// progress, in which case teardown is deferred until the flag clears.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.inProgress {
		m.disconnectPending = true
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.ForceDisconnect()
}

// ForceDisconnect tears the connection down immediately.
func (m *Manager) ForceDisconnect() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
	m.disconnectPending = false
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InterviewInProgress reports the deferred-disconnect flag.
func (m *Manager) InterviewInProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgress
}

func (m *Manager) run(ctx context.Context) {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
		if err != nil {
			attempt++
			if attempt > m.cfg.Reconnect.MaxAttempts {
				log.Printf("push channel: giving up after %d attempts: %v", attempt-1, err)
				m.setState(StateGaveUp)
				return
			}
			delay := m.cfg.Reconnect.Delay(attempt)
			log.Printf("push channel connect failed (attempt %d, retry in %s): %v", attempt, delay, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			_ = conn.Close()
			return
		}
		m.conn = conn
		m.state = StateConnected
		m.mu.Unlock()
		attempt = 0

		if err := m.subscribeTopics(conn); err != nil {
			log.Printf("push channel subscribe failed: %v", err)
		} else {
			m.readUntilError(ctx, conn)
		}

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		m.setState(StateConnecting)
		attempt++
		if attempt > m.cfg.Reconnect.MaxAttempts {
			log.Printf("push channel: giving up after %d reconnect attempts", attempt-1)
			m.setState(StateGaveUp)
			return
		}
		delay := m.cfg.Reconnect.Delay(attempt)
		log.Printf("push channel dropped, reconnecting in %s", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Manager) subscribeTopics(conn *websocket.Conn) error {
	for _, topic := range Topics(m.cfg.UserID) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": topic}); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// readUntilError blocks reading messages until the transport fails or the
// context is cancelled. Heartbeat pings detect silent failures: a missed
// pong lets the read deadline expire and tears the connection down.
func (m *Manager) readUntilError(ctx context.Context, conn *websocket.Conn) {
	deadline := 2*m.cfg.HeartbeatInterval + writeTimeout
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("push channel read: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		m.handleMessage(data)
	}
}

func (m *Manager) handleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("push channel: undecodable message: %v", err)
		return
	}

	payload := []byte(env.Payload)
	if len(payload) == 0 {
		// Some backends deliver the payload at the top level.
		payload = data
	}

	switch category(env.Topic) {
	case topicTranscript:
		log.Printf("transcript result received on %s", env.Topic)
	case topicAnalysis, topicPTAnalysis:
		attemptID, ok := decode.AttemptID(payload)
		if !ok {
			log.Printf("push channel: no attempt id in message on %s: %s", env.Topic, payload)
			return
		}
		resultID, _ := decode.ResultID(payload)
		m.deliver(attemptID, resultID)
	default:
		log.Printf("push channel: message on unrecognized topic %q", env.Topic)
	}
}

// category returns the last topic segment.
func category(topic string) string {
	if i := strings.LastIndex(topic, "."); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// deliver fans an attempt identifier out to every registered callback.
// One panicking consumer must not break delivery to the others.
func (m *Manager) deliver(attemptID, resultID string) {
	m.mu.Lock()
	callbacks := make([]Callback, 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("notification callback panic: %v", r)
				}
			}()
			fn(attemptID, resultID)
		}()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
