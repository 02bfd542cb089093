package interview

// ActionKind enumerates every transition the reducer understands.
type ActionKind int

const (
	actionNone ActionKind = iota
	actionStartInterview
	actionLoadQuestions
	actionAddQuestions
	actionStartRecordingWait
	actionStartAnswering
	actionNextQuestion
	actionTick
	actionSetRecordingID
	actionSetResultID
	actionSetQuestionIndex
)

// Action is a value handed to Reduce. Build actions with the constructors
// below; the zero Action is a no-op.
type Action struct {
	kind      ActionKind
	questions []Question
	id        string
	index     int
}

func StartInterview(questions []Question) Action {
	return Action{kind: actionStartInterview, questions: questions}
}

// LoadQuestions has the same effect as StartInterview.
func LoadQuestions(questions []Question) Action {
	return Action{kind: actionLoadQuestions, questions: questions}
}

// AddQuestions appends a batch without resetting progress.
func AddQuestions(questions []Question) Action {
	return Action{kind: actionAddQuestions, questions: questions}
}

func StartRecordingWait() Action { return Action{kind: actionStartRecordingWait} }

func StartAnswering() Action { return Action{kind: actionStartAnswering} }

func NextQuestion() Action { return Action{kind: actionNextQuestion} }

func Tick() Action { return Action{kind: actionTick} }

func SetRecordingID(id string) Action {
	return Action{kind: actionSetRecordingID, id: id}
}

func SetResultID(id string) Action {
	return Action{kind: actionSetResultID, id: id}
}

// SetQuestionIndex jumps to an arbitrary question, resetting step, timer
// and recording id the same way NextQuestion does.
func SetQuestionIndex(index int) Action {
	return Action{kind: actionSetQuestionIndex, index: index}
}

// Reduce is the single transition function over interview state. It is
// total: every action on every state produces a valid next state, and
// actions that make no sense for the current state fall through unchanged.
// Expiry is owned here, not by the timer: a tick with one second (or less)
// remaining advances exactly like NextQuestion, so the timer never needs
// to branch on remaining time.
func Reduce(s State, a Action) State {
	if s.Budget <= 0 {
		s.Budget = DefaultBudget
	}

	switch a.kind {
	case actionStartInterview, actionLoadQuestions:
		s.Questions = append([]Question(nil), a.questions...)
		s.Index = 0
		s.Step = StepPreparing
		s.Remaining = s.Budget
		s.RecordingID = ""
		return s

	case actionAddQuestions:
		s.Questions = append(s.Questions, a.questions...)
		return s

	case actionStartRecordingWait:
		if s.Step == StepComplete {
			return s
		}
		s.Step = StepWaitingRecording
		return s

	case actionStartAnswering:
		if s.Step == StepComplete {
			return s
		}
		s.Step = StepAnswering
		return s

	case actionNextQuestion:
		return advance(s)

	case actionTick:
		if s.Step == StepComplete {
			return s
		}
		if s.Remaining > 1 {
			s.Remaining--
			return s
		}
		return advance(s)

	case actionSetRecordingID:
		s.RecordingID = a.id
		return s

	case actionSetResultID:
		s.ResultID = a.id
		return s

	case actionSetQuestionIndex:
		if s.Step == StepComplete || a.index < 0 || a.index >= len(s.Questions) {
			return s
		}
		s.Index = a.index
		s.Step = StepPreparing
		s.Remaining = s.Budget
		s.RecordingID = ""
		return s

	default:
		return s
	}
}

// advance moves to the next question, or to the terminal complete step
// when the current question is the last one. The recording id is cleared
// on every question transition; the index never changes once complete.
func advance(s State) State {
	if s.Step == StepComplete || len(s.Questions) == 0 {
		return s
	}
	s.RecordingID = ""
	if s.lastIndex() {
		s.Step = StepComplete
		return s
	}
	s.Index++
	s.Step = StepPreparing
	s.Remaining = s.Budget
	return s
}
