package session

import (
	"context"
	"time"

	"github.com/sjawhar/mockingbird/internal/interview"
	"github.com/sjawhar/mockingbird/internal/notify"
	"github.com/sjawhar/mockingbird/internal/storage"
)

type QuestionSource interface {
	FetchQuestions(ctx context.Context, interviewID string) ([]interview.Question, error)
}

type Media interface {
	JoinSession(ctx context.Context, id string) error
	LeaveSession()
	StartRecording(ctx context.Context, interviewID string) (string, error)
	StopRecording(ctx context.Context, recordingID string) (string, error)
}

type Notifier interface {
	Subscribe(fn notify.Callback) func()
	Connect()
	Disconnect()
	SetInterviewInProgress(inProgress bool)
	State() notify.State
}

type Journal interface {
	CreateSession(id, interviewID, userName string, startedAt time.Time) error
	EndSession(id string, endedAt time.Time, resultID string) error
	RecordAnswer(a storage.Answer) error
	AttachResult(attemptID, resultID string) error
	GetSession(id string) (storage.Session, error)
	GetAnswers(sessionID string) ([]storage.Answer, error)
}

type CaptureArchive interface {
	StartAnswer(recordingID string) error
	EndAnswer() (string, error)
}

type EventBroadcaster interface {
	BroadcastSessionStarted(sessionID, interviewID string)
	BroadcastStepChanged(sessionID, step string, questionIndex, remaining int)
	BroadcastRecordingStarted(sessionID, recordingID string)
	BroadcastResultAttached(sessionID, attemptID, resultID string)
	BroadcastSessionCompleted(sessionID, resultID string, duration time.Duration)
}

type Exporter interface {
	Export(sess storage.Session, answers []storage.Answer) error
}
