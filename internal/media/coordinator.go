package media

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sjawhar/mockingbird/internal/decode"
)

// RetrySeparator splits a base session id from its retry suffix. Retried
// attempts share one gateway session, so the suffix is stripped before
// any call that reaches the provider or the backend.
const RetrySeparator = "#"

// NormalizeSessionID strips the retry suffix from a session identifier.
func NormalizeSessionID(id string) string {
	if i := strings.Index(id, RetrySeparator); i >= 0 {
		return id[:i]
	}
	return id
}

// Coordinator owns the capture session. At most one session is active per
// coordinator: joining while one exists tears the previous one down
// first. It implements io.Writer so captured media frames can be piped
// straight into the published track.
type Coordinator struct {
	provider Provider
	backend  Backend

	mu          sync.Mutex
	phase       Phase
	sessionID   string
	ready       bool
	subscribers map[string]struct{}
}

func New(provider Provider, backend Backend) *Coordinator {
	return &Coordinator{
		provider:    provider,
		backend:     backend,
		subscribers: make(map[string]struct{}),
	}
}

// JoinSession establishes the capture session for the given identifier.
// There is no automatic retry: on failure the session is left not-ready
// and the caller must re-invoke.
func (c *Coordinator) JoinSession(ctx context.Context, id string) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseJoining:
		c.mu.Unlock()
		return ErrJoinInProgress
	case PhaseLeaving:
		c.mu.Unlock()
		return ErrLeaveInProgress
	}
	hadSession := c.phase == PhaseJoined
	c.phase = PhaseJoining
	c.ready = false
	c.mu.Unlock()

	if hadSession {
		c.teardown()
	}

	normalized := NormalizeSessionID(id)

	handlers := StreamHandlers{
		OnStreamAdded:   func(streamID string) { c.trackSubscriber(streamID, true) },
		OnStreamRemoved: func(streamID string) { c.trackSubscriber(streamID, false) },
	}

	token, err := c.backend.CreateMediaToken(ctx, normalized)
	if err != nil {
		c.failJoin()
		return fmt.Errorf("media token for session %s: %w", normalized, err)
	}

	if err := c.provider.Connect(ctx, normalized, token, handlers); err != nil {
		c.failJoin()
		return fmt.Errorf("connect session %s: %w", normalized, err)
	}

	if err := c.provider.Publish(ctx); err != nil {
		_ = c.provider.Disconnect()
		c.failJoin()
		return fmt.Errorf("publish session %s: %w", normalized, err)
	}

	c.mu.Lock()
	c.phase = PhaseJoined
	c.sessionID = normalized
	c.ready = true
	c.mu.Unlock()

	return nil
}

// LeaveSession tears down the active capture session. It is idempotent,
// never fails, and is also invoked on shutdown to avoid orphaned capture
// sessions on the gateway.
func (c *Coordinator) LeaveSession() {
	c.mu.Lock()
	if c.phase == PhaseIdle || c.phase == PhaseLeaving {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseLeaving
	c.mu.Unlock()

	c.teardown()

	c.mu.Lock()
	c.phase = PhaseIdle
	c.sessionID = ""
	c.ready = false
	c.subscribers = make(map[string]struct{})
	c.mu.Unlock()
}

// StartRecording asks the backend to begin persisting the capture for the
// active session.
func (c *Coordinator) StartRecording(ctx context.Context, interviewID string) (string, error) {
	c.mu.Lock()
	sessionID := c.sessionID
	joined := c.phase == PhaseJoined
	c.mu.Unlock()

	if !joined {
		return "", ErrNotJoined
	}
	return c.backend.StartRecording(ctx, sessionID, interviewID)
}

// StopRecording stops the server-side recording and extracts the result
// identifier from the response. Stop tolerates a delayed start
// confirmation: it only needs the recording id the caller holds. An
// unrecognized response shape is logged, not failed, so a successful stop
// is never reported as an error just because the id could not be found.
func (c *Coordinator) StopRecording(ctx context.Context, recordingID string) (string, error) {
	payload, err := c.backend.StopRecording(ctx, recordingID)
	if err != nil {
		return "", err
	}

	resultID, ok := decode.ResultID(payload)
	if !ok {
		log.Printf("stop recording %s: unrecognized response shape: %s", recordingID, payload)
		return "", nil
	}
	return resultID, nil
}

// Ready reports whether the capture session is connected and publishing.
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Phase returns the current join lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SessionID returns the normalized identifier of the active session.
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Subscribers returns the number of inbound media subscriptions.
func (c *Coordinator) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

// Write forwards captured media frames to the published track. Frames
// written while no session is ready are dropped.
func (c *Coordinator) Write(p []byte) (int, error) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()

	if !ready {
		return len(p), nil
	}
	return c.provider.Write(p)
}

func (c *Coordinator) failJoin() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.ready = false
	c.mu.Unlock()
}

func (c *Coordinator) teardown() {
	if err := c.provider.Disconnect(); err != nil {
		log.Printf("media disconnect: %v", err)
	}
}

func (c *Coordinator) trackSubscriber(streamID string, added bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if added {
		c.subscribers[streamID] = struct{}{}
	} else {
		delete(c.subscribers, streamID)
	}
}
