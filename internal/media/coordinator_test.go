package media

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type providerMock struct {
	mu          sync.Mutex
	connects    []string
	publishes   int
	disconnects int
	handlers    StreamHandlers
	written     [][]byte

	connectErr error
	publishErr error
	blockC     chan struct{}
}

func (p *providerMock) Connect(_ context.Context, sessionID, _ string, handlers StreamHandlers) error {
	if p.blockC != nil {
		<-p.blockC
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connectErr != nil {
		return p.connectErr
	}
	p.connects = append(p.connects, sessionID)
	p.handlers = handlers
	return nil
}

func (p *providerMock) Publish(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.publishes++
	return nil
}

func (p *providerMock) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return nil
}

func (p *providerMock) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

type backendMock struct {
	mu             sync.Mutex
	tokens         []string
	started        []string
	stopped        []string
	stopResponse   json.RawMessage
	tokenErr       error
	startErr       error
	stopErr        error
	startRecording string
}

func (b *backendMock) CreateMediaToken(_ context.Context, sessionID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokenErr != nil {
		return "", b.tokenErr
	}
	b.tokens = append(b.tokens, sessionID)
	return "token-" + sessionID, nil
}

func (b *backendMock) StartRecording(_ context.Context, sessionID, interviewID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return "", b.startErr
	}
	b.started = append(b.started, sessionID+"/"+interviewID)
	if b.startRecording != "" {
		return b.startRecording, nil
	}
	return "rec-1", nil
}

func (b *backendMock) StopRecording(_ context.Context, recordingID string) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopErr != nil {
		return nil, b.stopErr
	}
	b.stopped = append(b.stopped, recordingID)
	if b.stopResponse != nil {
		return b.stopResponse, nil
	}
	return json.RawMessage(`{"interviewUuid":"res-1"}`), nil
}

func TestJoinSessionNormalizesRetrySuffix(t *testing.T) {
	provider := &providerMock{}
	backend := &backendMock{}
	c := New(provider, backend)

	if err := c.JoinSession(context.Background(), "sess-1#retry2"); err != nil {
		t.Fatalf("JoinSession failed: %v", err)
	}

	if got := c.SessionID(); got != "sess-1" {
		t.Fatalf("expected normalized session id sess-1, got %q", got)
	}
	if len(backend.tokens) != 1 || backend.tokens[0] != "sess-1" {
		t.Fatalf("expected token request for sess-1, got %v", backend.tokens)
	}
	if !c.Ready() {
		t.Fatal("expected coordinator to be ready")
	}
	if c.Phase() != PhaseJoined {
		t.Fatalf("expected joined phase, got %s", c.Phase())
	}
}

func TestJoinWhileJoiningIsRejected(t *testing.T) {
	provider := &providerMock{blockC: make(chan struct{})}
	backend := &backendMock{}
	c := New(provider, backend)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.JoinSession(context.Background(), "sess-1") }()

	// Wait until the first join holds the joining phase.
	for c.Phase() != PhaseJoining {
		time.Sleep(time.Millisecond)
	}

	if err := c.JoinSession(context.Background(), "sess-2"); !errors.Is(err, ErrJoinInProgress) {
		t.Fatalf("expected ErrJoinInProgress, got %v", err)
	}

	close(provider.blockC)
	if err := <-firstDone; err != nil {
		t.Fatalf("first join failed: %v", err)
	}
}

func TestRejoinTearsDownPreviousSession(t *testing.T) {
	provider := &providerMock{}
	backend := &backendMock{}
	c := New(provider, backend)

	if err := c.JoinSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if err := c.JoinSession(context.Background(), "sess-2"); err != nil {
		t.Fatalf("second join failed: %v", err)
	}

	if provider.disconnects != 1 {
		t.Fatalf("expected previous session to be torn down once, got %d disconnects", provider.disconnects)
	}
	if got := c.SessionID(); got != "sess-2" {
		t.Fatalf("expected active session sess-2, got %q", got)
	}
}

func TestJoinFailureLeavesNotReady(t *testing.T) {
	provider := &providerMock{connectErr: errors.New("gateway refused")}
	backend := &backendMock{}
	c := New(provider, backend)

	if err := c.JoinSession(context.Background(), "sess-1"); err == nil {
		t.Fatal("expected join failure")
	}
	if c.Ready() {
		t.Fatal("expected not-ready after failure")
	}
	if c.Phase() != PhaseIdle {
		t.Fatalf("expected idle phase after failure, got %s", c.Phase())
	}

	// The caller may re-invoke; no guard state should linger.
	provider.connectErr = nil
	if err := c.JoinSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("retry join failed: %v", err)
	}
}

func TestPublishFailureDisconnects(t *testing.T) {
	provider := &providerMock{publishErr: errors.New("no track")}
	backend := &backendMock{}
	c := New(provider, backend)

	if err := c.JoinSession(context.Background(), "sess-1"); err == nil {
		t.Fatal("expected publish failure")
	}
	if provider.disconnects != 1 {
		t.Fatalf("expected disconnect after publish failure, got %d", provider.disconnects)
	}
}

func TestLeaveSessionIsIdempotent(t *testing.T) {
	provider := &providerMock{}
	backend := &backendMock{}
	c := New(provider, backend)

	if err := c.JoinSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	c.LeaveSession()
	c.LeaveSession()

	if provider.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", provider.disconnects)
	}
	if c.Ready() || c.SessionID() != "" || c.Phase() != PhaseIdle {
		t.Fatalf("expected cleared state, got ready=%v session=%q phase=%s", c.Ready(), c.SessionID(), c.Phase())
	}

	// Leaving without ever joining must also be safe.
	c2 := New(&providerMock{}, backend)
	c2.LeaveSession()
}

func TestSubscriberTracking(t *testing.T) {
	provider := &providerMock{}
	backend := &backendMock{}
	c := New(provider, backend)

	if err := c.JoinSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	provider.handlers.OnStreamAdded("remote-1")
	provider.handlers.OnStreamAdded("remote-2")
	provider.handlers.OnStreamRemoved("remote-1")

	if got := c.Subscribers(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
}

func TestStartRecordingRequiresJoinedSession(t *testing.T) {
	c := New(&providerMock{}, &backendMock{})
	if _, err := c.StartRecording(context.Background(), "iv-1"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}

func TestStopRecordingDecodesResultVariants(t *testing.T) {
	for _, body := range []string{
		`{"data":{"interviewUuid":"abc"}}`,
		`{"result":{"interviewUuid":"abc"}}`,
		`{"interviewUuid":"abc"}`,
	} {
		backend := &backendMock{stopResponse: json.RawMessage(body)}
		c := New(&providerMock{}, backend)
		id, err := c.StopRecording(context.Background(), "rec-1")
		if err != nil {
			t.Fatalf("StopRecording failed for %s: %v", body, err)
		}
		if id != "abc" {
			t.Fatalf("expected abc from %s, got %q", body, id)
		}
	}
}

func TestStopRecordingUnknownShapeIsNotAnError(t *testing.T) {
	backend := &backendMock{stopResponse: json.RawMessage(`{"status":"stopped"}`)}
	c := New(&providerMock{}, backend)
	id, err := c.StopRecording(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty result id, got %q", id)
	}
}

func TestWriteDropsFramesWhenNotReady(t *testing.T) {
	provider := &providerMock{}
	c := New(provider, &backendMock{})

	if n, err := c.Write([]byte("frame")); err != nil || n != 5 {
		t.Fatalf("expected dropped frame to succeed, got n=%d err=%v", n, err)
	}
	if len(provider.written) != 0 {
		t.Fatal("expected no frames forwarded while not ready")
	}

	if err := c.JoinSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := c.Write([]byte("frame")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(provider.written) != 1 {
		t.Fatalf("expected one forwarded frame, got %d", len(provider.written))
	}
}
