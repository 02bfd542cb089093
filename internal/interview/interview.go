package interview

// Step is the phase of a single interview session's question/answer lifecycle.
type Step int

const (
	StepLoading Step = iota
	StepPreparing
	StepWaitingRecording
	StepAnswering
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepLoading:
		return "loading"
	case StepPreparing:
		return "preparing"
	case StepWaitingRecording:
		return "waiting_recording"
	case StepAnswering:
		return "answering"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// QuestionKind distinguishes primary questions from follow-ups.
type QuestionKind string

const (
	KindMain   QuestionKind = "main"
	KindFollow QuestionKind = "follow"
)

// Question is immutable once loaded. Order within a session is significant
// and fixed; whole new batches may be appended but never reordered.
type Question struct {
	ID          string       `json:"id"`
	Prompt      string       `json:"prompt"`
	Kind        QuestionKind `json:"kind"`
	ParentID    string       `json:"parent_id,omitempty"`
	FollowIndex int          `json:"follow_index,omitempty"`
}

// DefaultBudget is the per-question answer budget in seconds.
const DefaultBudget = 60

// State holds the authoritative interview progress. It is only ever
// modified through Reduce; all fields are value types so copies are cheap
// and safe to hand out.
type State struct {
	Step        Step
	Questions   []Question
	Index       int
	Remaining   int
	Budget      int
	RecordingID string
	ResultID    string
}

// NewState returns the initial state before any questions are loaded.
func NewState(budget int) State {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return State{Step: StepLoading, Budget: budget, Remaining: budget}
}

// Current returns the question at the current index, or false when no
// questions are loaded.
func (s State) Current() (Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.Index], true
}

func (s State) lastIndex() bool {
	return s.Index >= len(s.Questions)-1
}
