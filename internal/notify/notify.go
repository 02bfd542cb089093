// Package notify maintains the push channel that delivers asynchronous
// analysis results. One manager (and one physical connection) is shared
// by the whole process; consumers register callbacks independently of the
// connection's own lifecycle.
package notify

import (
	"math"
	"time"
)

// State is the connection lifecycle visible to consumers.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// ReconnectPolicy bounds reconnection after transport drops. Attempts
// reset on every successful connect, so the ceiling only applies to
// consecutive failures.
type ReconnectPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultReconnectPolicy returns 10 attempts, 1s initial delay,
// 2x multiplier, 30s max delay.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:  10,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// Delay returns the backoff delay for the given attempt number (1-indexed).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Topic categories, keyed by the authenticated user.
const (
	topicAnalysis   = "analysis"
	topicTranscript = "transcript"
	topicPTAnalysis = "pt-analysis"
)

// Topics returns the per-user topics the manager subscribes to.
func Topics(userID string) []string {
	return []string{
		"user." + userID + "." + topicAnalysis,
		"user." + userID + "." + topicTranscript,
		"user." + userID + "." + topicPTAnalysis,
	}
}
