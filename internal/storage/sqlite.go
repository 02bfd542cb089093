// Package storage keeps the local session journal: which interviews were
// run, which answers were recorded, and which analysis results they
// resolved to. The journal backs post-interview results browsing.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Session struct {
	ID          string     `json:"id"`
	InterviewID string     `json:"interview_id"`
	UserName    string     `json:"user_name"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Status      string     `json:"status"`
	ResultID    string     `json:"result_id"`
}

type Answer struct {
	SessionID     string    `json:"session_id"`
	QuestionID    string    `json:"question_id"`
	QuestionIndex int       `json:"question_index"`
	Prompt        string    `json:"prompt"`
	RecordingID   string    `json:"recording_id"`
	AttemptID     string    `json:"attempt_id"`
	ResultID      string    `json:"result_id"`
	AnsweredAt    time.Time `json:"answered_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "mockingbird.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			interview_id TEXT NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			result_id TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			question_index INTEGER NOT NULL,
			prompt TEXT NOT NULL DEFAULT '',
			recording_id TEXT NOT NULL DEFAULT '',
			attempt_id TEXT NOT NULL DEFAULT '',
			result_id TEXT NOT NULL DEFAULT '',
			answered_at TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create answers table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_answers_session_id ON answers(session_id, question_index)"); err != nil {
		return fmt.Errorf("create answers index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_answers_attempt_id ON answers(attempt_id)"); err != nil {
		return fmt.Errorf("create answers attempt index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(id, interviewID, userName string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions(id, interview_id, user_name, started_at, status) VALUES(?, ?, ?, ?, ?)`,
		id,
		interviewID,
		userName,
		startedAt.UTC().Format(time.RFC3339Nano),
		StatusActive,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(id string, endedAt time.Time, resultID string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, status = ?, result_id = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		StatusCompleted,
		resultID,
		id,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) RecordAnswer(a Answer) error {
	_, err := s.db.Exec(
		`INSERT INTO answers(session_id, question_id, question_index, prompt, recording_id, attempt_id, result_id, answered_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID,
		a.QuestionID,
		a.QuestionIndex,
		a.Prompt,
		a.RecordingID,
		a.AttemptID,
		a.ResultID,
		a.AnsweredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record answer for session %s: %w", a.SessionID, err)
	}
	return nil
}

// AttachResult associates an analysis result with the answer it belongs
// to, matched by attempt identifier. sql.ErrNoRows is returned when no
// recorded answer carries that attempt id.
func (s *SQLiteStore) AttachResult(attemptID, resultID string) error {
	res, err := s.db.Exec(
		`UPDATE answers SET result_id = ? WHERE attempt_id = ?`,
		resultID,
		attemptID,
	)
	if err != nil {
		return fmt.Errorf("attach result for attempt %s: %w", attemptID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach result rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT id, interview_id, user_name, started_at, ended_at, status, result_id FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("query session %s: %w", id, err)
	}
	return sess, nil
}

func (s *SQLiteStore) GetSessionsByDate(date string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, interview_id, user_name, started_at, ended_at, status, result_id
		 FROM sessions
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanSessions(rows)
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM sessions ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetAnswers(sessionID string) ([]Answer, error) {
	rows, err := s.db.Query(
		`SELECT session_id, question_id, question_index, prompt, recording_id, attempt_id, result_id, answered_at
		 FROM answers
		 WHERE session_id = ?
		 ORDER BY question_index ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query answers for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	answers := make([]Answer, 0, 16)
	for rows.Next() {
		var a Answer
		var answeredAt string
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.QuestionIndex, &a.Prompt, &a.RecordingID, &a.AttemptID, &a.ResultID, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan answer for session %s: %w", sessionID, err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, answeredAt)
		if err != nil {
			return nil, fmt.Errorf("parse answered_at for session %s: %w", sessionID, err)
		}
		a.AnsweredAt = parsed

		answers = append(answers, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer rows for session %s: %w", sessionID, err)
	}

	return answers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&sess.ID, &sess.InterviewID, &sess.UserName, &startedAt, &endedAt, &sess.Status, &sess.ResultID); err != nil {
		return Session{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	sess.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &parsedEnd
	}

	return sess, nil
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	sessions := make([]Session, 0, 16)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions rows: %w", err)
	}

	return sessions, nil
}
