// Package media coordinates the live capture session: joining and leaving
// the remote media gateway, and starting/stopping the server-side
// recording keyed to that session.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// StreamHandlers receive inbound subscription events from the gateway.
type StreamHandlers struct {
	OnStreamAdded   func(streamID string)
	OnStreamRemoved func(streamID string)
}

// Provider is the remote media gateway. Write pushes captured media
// frames into the published track; it must tolerate being called while
// disconnected.
type Provider interface {
	io.Writer
	Connect(ctx context.Context, sessionID, token string, handlers StreamHandlers) error
	Publish(ctx context.Context) error
	Disconnect() error
}

// Backend issues media tokens and controls server-side recording.
type Backend interface {
	CreateMediaToken(ctx context.Context, sessionID string) (string, error)
	StartRecording(ctx context.Context, sessionID, interviewID string) (string, error)
	StopRecording(ctx context.Context, recordingID string) (json.RawMessage, error)
}

// Phase is the coordinator's join lifecycle. Illegal concurrent joins are
// unrepresentable: a join is only accepted from idle or joined.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseJoined
	PhaseLeaving
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	case PhaseLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

var (
	ErrJoinInProgress  = errors.New("media session join already in progress")
	ErrLeaveInProgress = errors.New("media session leave in progress")
	ErrNotJoined       = errors.New("no active media session")
)
