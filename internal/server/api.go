package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/sjawhar/mockingbird/internal/storage"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type SessionStore interface {
	GetSessionsByDate(date string) ([]storage.Session, error)
	GetSession(id string) (storage.Session, error)
	GetAnswers(sessionID string) ([]storage.Answer, error)
	GetDates() ([]string, error)
}

// Status is the live view of the session machine exposed on /api/status.
type Status struct {
	SessionID     string `json:"session_id"`
	Step          string `json:"step"`
	QuestionIndex int    `json:"question_index"`
	QuestionCount int    `json:"question_count"`
	Remaining     int    `json:"remaining"`
	MediaPhase    string `json:"media_phase"`
	PushState     string `json:"push_state"`
}

type ControlHooks struct {
	Status   func() Status
	Advance  func() error
	Warnings func() []string
}

func registerAPIRoutes(mux *http.ServeMux, store SessionStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		sessions, err := store.GetSessionsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sessionData, err := store.GetSession(sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get session: %v", err))
			return
		}

		answers, err := store.GetAnswers(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session answers: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"session": sessionData,
			"answers": answers,
		})
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/advance", func(w http.ResponseWriter, r *http.Request) {
		if controls.Advance == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "advance not available")
			return
		}
		if err := controls.Advance(); err != nil {
			writeJSONError(w, http.StatusConflict, fmt.Sprintf("advance: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var status Status
		if controls.Status != nil {
			status = controls.Status()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status, "warnings": warnings})
	})
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
