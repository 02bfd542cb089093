// Package session orchestrates a single mock-interview run: it owns the
// interview state machine and sequences the media session, the backend
// recordings, the countdown timer, result notifications and the local
// journal around it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/mockingbird/internal/interview"
	"github.com/sjawhar/mockingbird/internal/media"
	"github.com/sjawhar/mockingbird/internal/storage"
	"github.com/sjawhar/mockingbird/internal/timer"
)

type Config struct {
	SessionID   string
	InterviewID string
	UserName    string

	// Budget is the per-question answer budget in seconds.
	Budget int

	// TickInterval defaults to one second. Tests shorten it.
	TickInterval time.Duration
}

type Deps struct {
	Source   QuestionSource
	Media    Media
	Notifier Notifier
	Journal  Journal
	Archive  CaptureArchive
	Hub      EventBroadcaster
	Exporter Exporter
}

type Manager struct {
	cfg      Config
	source   QuestionSource
	media    Media
	notifier Notifier
	journal  Journal
	archive  CaptureArchive
	hub      EventBroadcaster
	exporter Exporter
	timer    *timer.Coordinator
	unsub    func()

	mu        sync.Mutex
	state     interview.State
	startedAt time.Time
	advancing bool
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	cfg.SessionID = media.NormalizeSessionID(strings.TrimSpace(cfg.SessionID))
	cfg.InterviewID = strings.TrimSpace(cfg.InterviewID)
	if cfg.SessionID == "" {
		return nil, ErrSessionRequired
	}
	if cfg.InterviewID == "" {
		return nil, ErrInterviewRequired
	}
	if deps.Source == nil || deps.Media == nil {
		return nil, errors.New("question source and media coordinator are required")
	}

	m := &Manager{
		cfg:      cfg,
		source:   deps.Source,
		media:    deps.Media,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		archive:  deps.Archive,
		hub:      deps.Hub,
		exporter: deps.Exporter,
		state:    interview.NewState(cfg.Budget),
	}
	m.timer = timer.New(cfg.TickInterval, m.onTick)

	if m.notifier != nil {
		m.unsub = m.notifier.Subscribe(m.onResult)
	}

	return m, nil
}

// Start opens the journal entry, connects the push channel, joins the
// media session and loads the question list. On success the interview sits
// at the first question, ready for StartAnswer. A completed manager may be
// started again and runs the same interview from the top.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Step != interview.StepLoading && m.state.Step != interview.StepComplete {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.startedAt = time.Now().UTC()
	startedAt := m.startedAt
	m.mu.Unlock()

	if m.journal != nil {
		if err := m.journal.CreateSession(m.cfg.SessionID, m.cfg.InterviewID, m.cfg.UserName, startedAt); err != nil {
			return fmt.Errorf("create journal entry: %w", err)
		}
	}

	if m.notifier != nil {
		m.notifier.SetInterviewInProgress(true)
		m.notifier.Connect()
	}

	if err := m.media.JoinSession(ctx, m.cfg.SessionID); err != nil {
		return fmt.Errorf("join media session: %w", err)
	}

	questions, err := m.source.FetchQuestions(ctx, m.cfg.InterviewID)
	if err != nil {
		m.media.LeaveSession()
		return fmt.Errorf("fetch questions: %w", err)
	}

	m.dispatch(interview.StartInterview(questions))

	if m.hub != nil {
		m.hub.BroadcastSessionStarted(m.cfg.SessionID, m.cfg.InterviewID)
	}
	m.broadcastStep()

	return nil
}

// StartAnswer begins the current question's answer: it asks the backend to
// record, opens the local capture, and activates the countdown.
func (m *Manager) StartAnswer(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Step != interview.StepPreparing {
		m.mu.Unlock()
		return ErrNotReady
	}
	index := m.state.Index
	m.state = interview.Reduce(m.state, interview.StartRecordingWait())
	m.mu.Unlock()
	m.broadcastStep()

	recordingID, err := m.media.StartRecording(ctx, m.cfg.InterviewID)
	if err != nil {
		// Back to preparing so the caller can retry.
		m.dispatch(interview.SetQuestionIndex(index))
		m.broadcastStep()
		return fmt.Errorf("start recording: %w", err)
	}

	if m.archive != nil {
		if err := m.archive.StartAnswer(recordingID); err != nil {
			log.Printf("open capture for recording %s: %v", recordingID, err)
		}
	}

	m.mu.Lock()
	m.state = interview.Reduce(m.state, interview.SetRecordingID(recordingID))
	m.state = interview.Reduce(m.state, interview.StartAnswering())
	m.mu.Unlock()

	m.timer.SetActive(true)

	if m.hub != nil {
		m.hub.BroadcastRecordingStarted(m.cfg.SessionID, recordingID)
	}
	m.broadcastStep()

	return nil
}

// Advance closes the current answer and moves to the next question, or
// completes the interview on the last one. It runs the stop side effects
// exactly once no matter whether the countdown, a result notification or
// the operator triggered it.
func (m *Manager) Advance(ctx context.Context) error {
	m.mu.Lock()
	if m.advancing || m.state.Step != interview.StepAnswering {
		m.mu.Unlock()
		return ErrNoAnswerInProgress
	}
	m.advancing = true
	recordingID := m.state.RecordingID
	question, _ := m.state.Current()
	index := m.state.Index
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.advancing = false
		m.mu.Unlock()
	}()

	m.timer.SetActive(false)

	resultID := ""
	if recordingID != "" {
		id, err := m.media.StopRecording(ctx, recordingID)
		if err != nil {
			log.Printf("stop recording %s: %v", recordingID, err)
		} else {
			resultID = id
		}
	}

	if m.archive != nil {
		if _, err := m.archive.EndAnswer(); err != nil {
			log.Printf("close capture for recording %s: %v", recordingID, err)
		}
	}

	if m.journal != nil && recordingID != "" {
		// The recording id doubles as the attempt id: result
		// notifications are keyed by it.
		answer := storage.Answer{
			SessionID:     m.cfg.SessionID,
			QuestionID:    question.ID,
			QuestionIndex: index,
			Prompt:        question.Prompt,
			RecordingID:   recordingID,
			AttemptID:     recordingID,
			ResultID:      resultID,
			AnsweredAt:    time.Now().UTC(),
		}
		if err := m.journal.RecordAnswer(answer); err != nil {
			log.Printf("record answer for question %s: %v", question.ID, err)
		}
	}

	m.mu.Lock()
	if resultID != "" {
		m.state = interview.Reduce(m.state, interview.SetResultID(resultID))
	}
	m.state = interview.Reduce(m.state, interview.NextQuestion())
	complete := m.state.Step == interview.StepComplete
	m.mu.Unlock()
	m.broadcastStep()

	if complete {
		m.finish()
		return nil
	}

	m.mu.Lock()
	m.advancing = false
	m.mu.Unlock()

	// Flow straight into the next answer; a failure leaves the
	// interview at preparing, retryable via StartAnswer.
	if err := m.StartAnswer(ctx); err != nil {
		log.Printf("start next answer: %v", err)
	}
	return nil
}

// AddQuestions appends follow-up questions without disturbing progress.
func (m *Manager) AddQuestions(questions []interview.Question) {
	m.dispatch(interview.AddQuestions(questions))
	m.broadcastStep()
}

// JumpToQuestion moves directly to the question at index. The current
// answer must be closed first.
func (m *Manager) JumpToQuestion(index int) error {
	m.mu.Lock()
	if m.state.Step == interview.StepAnswering || m.state.Step == interview.StepWaitingRecording {
		m.mu.Unlock()
		return ErrAnswerInProgress
	}
	m.state = interview.Reduce(m.state, interview.SetQuestionIndex(index))
	m.mu.Unlock()
	m.broadcastStep()
	return nil
}

// Snapshot returns a copy of the interview state.
func (m *Manager) Snapshot() interview.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.Questions = append([]interview.Question(nil), s.Questions...)
	return s
}

// SessionID returns the normalized session identifier.
func (m *Manager) SessionID() string {
	return m.cfg.SessionID
}

// Close releases the notification subscription and stops the countdown.
// It does not end a running interview.
func (m *Manager) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.timer.Stop()
}

func (m *Manager) onTick() {
	m.mu.Lock()
	if m.state.Step != interview.StepAnswering {
		m.mu.Unlock()
		return
	}
	if m.state.Remaining > 1 {
		m.state = interview.Reduce(m.state, interview.Tick())
		m.mu.Unlock()
		m.broadcastStep()
		return
	}
	m.mu.Unlock()

	// Budget exhausted: the final tick means the same thing as an
	// explicit advance, side effects included.
	if err := m.Advance(context.Background()); err != nil && !errors.Is(err, ErrNoAnswerInProgress) {
		log.Printf("advance on expiry: %v", err)
	}
}

func (m *Manager) onResult(attemptID, resultID string) {
	m.mu.Lock()
	current := m.state.Step == interview.StepAnswering && m.state.RecordingID == attemptID
	m.mu.Unlock()

	// Analysis finishing the current attempt ends the answer early. The
	// advancing guard makes this a no-op when the countdown got there
	// first. Advancing also records the answer, so the attach below finds
	// its attempt row.
	if current {
		if err := m.Advance(context.Background()); err != nil && !errors.Is(err, ErrNoAnswerInProgress) {
			log.Printf("advance on result: %v", err)
		}
	}

	if m.journal != nil && resultID != "" {
		if err := m.journal.AttachResult(attemptID, resultID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Printf("result for unknown attempt %s", attemptID)
			} else {
				log.Printf("attach result for attempt %s: %v", attemptID, err)
			}
		}
	}

	if m.hub != nil {
		m.hub.BroadcastResultAttached(m.cfg.SessionID, attemptID, resultID)
	}
}

func (m *Manager) finish() {
	m.timer.Stop()

	m.mu.Lock()
	resultID := m.state.ResultID
	startedAt := m.startedAt
	m.mu.Unlock()

	endedAt := time.Now().UTC()
	if m.journal != nil {
		if err := m.journal.EndSession(m.cfg.SessionID, endedAt, resultID); err != nil {
			log.Printf("end journal entry: %v", err)
		}
	}

	if m.hub != nil {
		m.hub.BroadcastSessionCompleted(m.cfg.SessionID, resultID, endedAt.Sub(startedAt))
	}

	if m.notifier != nil {
		m.notifier.SetInterviewInProgress(false)
		m.notifier.Disconnect()
	}

	m.media.LeaveSession()
	m.export()
}

func (m *Manager) export() {
	if m.exporter == nil || m.journal == nil {
		return
	}

	sess, err := m.journal.GetSession(m.cfg.SessionID)
	if err != nil {
		log.Printf("load session for export: %v", err)
		return
	}
	answers, err := m.journal.GetAnswers(m.cfg.SessionID)
	if err != nil {
		log.Printf("load answers for export: %v", err)
		return
	}
	if err := m.exporter.Export(sess, answers); err != nil {
		log.Printf("export session %s: %v", m.cfg.SessionID, err)
	}
}

func (m *Manager) dispatch(a interview.Action) {
	m.mu.Lock()
	m.state = interview.Reduce(m.state, a)
	m.mu.Unlock()
}

func (m *Manager) broadcastStep() {
	if m.hub == nil {
		return
	}
	m.mu.Lock()
	step := m.state.Step.String()
	index := m.state.Index
	remaining := m.state.Remaining
	m.mu.Unlock()
	m.hub.BroadcastStepChanged(m.cfg.SessionID, step, index, remaining)
}
