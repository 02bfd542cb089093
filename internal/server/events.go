package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionStartedEvent struct {
	Event
	SessionID   string `json:"session_id"`
	InterviewID string `json:"interview_id"`
}

type StepChangedEvent struct {
	Event
	SessionID     string `json:"session_id"`
	Step          string `json:"step"`
	QuestionIndex int    `json:"question_index"`
	Remaining     int    `json:"remaining"`
}

type RecordingStartedEvent struct {
	Event
	SessionID   string `json:"session_id"`
	RecordingID string `json:"recording_id"`
}

type ResultAttachedEvent struct {
	Event
	SessionID string `json:"session_id"`
	AttemptID string `json:"attempt_id"`
	ResultID  string `json:"result_id"`
}

type SessionCompletedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	ResultID  string  `json:"result_id"`
	Duration  float64 `json:"duration"`
}

type PushStateChangedEvent struct {
	Event
	State string `json:"state"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
