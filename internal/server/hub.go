package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastSessionStarted(sessionID, interviewID string) {
	h.broadcastEvent(SessionStartedEvent{
		Event:       newEvent("session_started", time.Now().UTC()),
		SessionID:   sessionID,
		InterviewID: interviewID,
	})
}

func (h *Hub) BroadcastStepChanged(sessionID, step string, questionIndex, remaining int) {
	h.broadcastEvent(StepChangedEvent{
		Event:         newEvent("step_changed", time.Now().UTC()),
		SessionID:     sessionID,
		Step:          step,
		QuestionIndex: questionIndex,
		Remaining:     remaining,
	})
}

func (h *Hub) BroadcastRecordingStarted(sessionID, recordingID string) {
	h.broadcastEvent(RecordingStartedEvent{
		Event:       newEvent("recording_started", time.Now().UTC()),
		SessionID:   sessionID,
		RecordingID: recordingID,
	})
}

func (h *Hub) BroadcastResultAttached(sessionID, attemptID, resultID string) {
	h.broadcastEvent(ResultAttachedEvent{
		Event:     newEvent("result_attached", time.Now().UTC()),
		SessionID: sessionID,
		AttemptID: attemptID,
		ResultID:  resultID,
	})
}

func (h *Hub) BroadcastSessionCompleted(sessionID, resultID string, duration time.Duration) {
	h.broadcastEvent(SessionCompletedEvent{
		Event:     newEvent("session_completed", time.Now().UTC()),
		SessionID: sessionID,
		ResultID:  resultID,
		Duration:  duration.Seconds(),
	})
}

func (h *Hub) BroadcastPushStateChanged(state string) {
	h.broadcastEvent(PushStateChangedEvent{
		Event: newEvent("push_state_changed", time.Now().UTC()),
		State: state,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
