package interview

import "testing"

func twoQuestions() []Question {
	return []Question{
		{ID: "q1", Prompt: "Tell me about yourself.", Kind: KindMain},
		{ID: "q2", Prompt: "Why this company?", Kind: KindMain},
	}
}

func TestStartInterviewResetsState(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, StartAnswering())
	s = Reduce(s, SetRecordingID("rec-1"))
	s = Reduce(s, NextQuestion())

	s = Reduce(s, StartInterview(twoQuestions()))

	if s.Step != StepPreparing {
		t.Fatalf("expected step preparing, got %s", s.Step)
	}
	if s.Index != 0 {
		t.Fatalf("expected index 0, got %d", s.Index)
	}
	if s.Remaining != 60 {
		t.Fatalf("expected remaining 60, got %d", s.Remaining)
	}
	if s.RecordingID != "" {
		t.Fatalf("expected recording id cleared, got %q", s.RecordingID)
	}
}

func TestStartInterviewResetsTerminalState(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, NextQuestion())
	s = Reduce(s, NextQuestion())
	if s.Step != StepComplete {
		t.Fatalf("expected complete, got %s", s.Step)
	}

	s = Reduce(s, StartInterview(twoQuestions()))
	if s.Step != StepPreparing || s.Index != 0 {
		t.Fatalf("expected fresh preparing state, got step=%s index=%d", s.Step, s.Index)
	}
}

func TestFullQuestionFlow(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	if s.Step != StepPreparing || s.Index != 0 || s.Remaining != 60 {
		t.Fatalf("unexpected initial state: step=%s index=%d remaining=%d", s.Step, s.Index, s.Remaining)
	}

	s = Reduce(s, StartAnswering())
	if s.Step != StepAnswering {
		t.Fatalf("expected answering, got %s", s.Step)
	}

	for i := 0; i < 59; i++ {
		s = Reduce(s, Tick())
	}
	if s.Remaining != 1 {
		t.Fatalf("expected remaining 1 after 59 ticks, got %d", s.Remaining)
	}

	s = Reduce(s, Tick())
	if s.Index != 1 {
		t.Fatalf("expected auto-advance to index 1, got %d", s.Index)
	}
	if s.Step != StepPreparing {
		t.Fatalf("expected preparing after auto-advance, got %s", s.Step)
	}
	if s.Remaining != 60 {
		t.Fatalf("expected remaining reset to 60, got %d", s.Remaining)
	}
}

func TestTickAtOneEqualsNextQuestion(t *testing.T) {
	base := NewState(60)
	base = Reduce(base, StartInterview(twoQuestions()))
	base = Reduce(base, StartAnswering())
	base = Reduce(base, SetRecordingID("rec-1"))
	base.Remaining = 1

	ticked := Reduce(base, Tick())
	advanced := Reduce(base, NextQuestion())

	if ticked.Index != advanced.Index || ticked.Step != advanced.Step ||
		ticked.Remaining != advanced.Remaining || ticked.RecordingID != advanced.RecordingID {
		t.Fatalf("tick at remaining=1 diverged from nextQuestion: %+v vs %+v", ticked, advanced)
	}
}

func TestNextQuestionAtLastIndexCompletes(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, SetQuestionIndex(1))
	s = Reduce(s, SetRecordingID("rec-2"))

	s = Reduce(s, NextQuestion())
	if s.Step != StepComplete {
		t.Fatalf("expected complete, got %s", s.Step)
	}
	if s.Index != 1 {
		t.Fatalf("expected index unchanged at 1, got %d", s.Index)
	}
	if s.RecordingID != "" {
		t.Fatalf("expected recording id cleared on completion, got %q", s.RecordingID)
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, NextQuestion())
	s = Reduce(s, NextQuestion())

	for _, a := range []Action{NextQuestion(), Tick(), SetQuestionIndex(0), StartAnswering(), StartRecordingWait()} {
		next := Reduce(s, a)
		if next.Step != StepComplete || next.Index != s.Index {
			t.Fatalf("expected terminal state to hold, got step=%s index=%d", next.Step, next.Index)
		}
	}
}

func TestIndexNeverExceedsBounds(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))

	actions := []Action{
		StartAnswering(), NextQuestion(), Tick(), Tick(), NextQuestion(),
		NextQuestion(), Tick(), SetQuestionIndex(5), SetQuestionIndex(-1),
	}
	for _, a := range actions {
		s = Reduce(s, a)
		if s.Index < 0 || s.Index > len(s.Questions)-1 {
			t.Fatalf("index %d out of bounds for %d questions", s.Index, len(s.Questions))
		}
		if s.Remaining < 0 {
			t.Fatalf("remaining went negative: %d", s.Remaining)
		}
	}
}

func TestIndexNeverDecreasesExceptExplicitJump(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, NextQuestion())
	if s.Index != 1 {
		t.Fatalf("expected index 1, got %d", s.Index)
	}

	for _, a := range []Action{Tick(), StartAnswering(), SetRecordingID("r"), AddQuestions(twoQuestions())} {
		next := Reduce(s, a)
		if next.Index < s.Index {
			t.Fatalf("index decreased from %d to %d without explicit jump", s.Index, next.Index)
		}
		s = next
	}

	s = Reduce(s, SetQuestionIndex(0))
	if s.Index != 0 {
		t.Fatalf("expected explicit jump back to 0, got %d", s.Index)
	}
	if s.Step != StepPreparing || s.Remaining != 60 || s.RecordingID != "" {
		t.Fatalf("expected jump to reset step/timer/recording, got %+v", s)
	}
}

func TestAddQuestionsKeepsProgress(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, StartAnswering())
	s = Reduce(s, Tick())

	s = Reduce(s, AddQuestions([]Question{{ID: "q3", Kind: KindFollow, ParentID: "q1", FollowIndex: 1}}))

	if len(s.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(s.Questions))
	}
	if s.Step != StepAnswering || s.Index != 0 || s.Remaining != 59 {
		t.Fatalf("expected progress preserved, got step=%s index=%d remaining=%d", s.Step, s.Index, s.Remaining)
	}

	// With an appended batch, the former last question no longer completes.
	s = Reduce(s, NextQuestion())
	s = Reduce(s, NextQuestion())
	if s.Step == StepComplete {
		t.Fatal("expected appended questions to extend the session")
	}
	s = Reduce(s, NextQuestion())
	if s.Step != StepComplete {
		t.Fatalf("expected complete after final question, got %s", s.Step)
	}
}

func TestZeroActionIsNoOp(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	next := Reduce(s, Action{})
	if next.Step != s.Step || next.Index != s.Index || next.Remaining != s.Remaining {
		t.Fatalf("expected zero action to be a no-op, got %+v", next)
	}
}

func TestResultIDSurvivesTransitions(t *testing.T) {
	s := NewState(60)
	s = Reduce(s, StartInterview(twoQuestions()))
	s = Reduce(s, SetResultID("result-1"))
	s = Reduce(s, NextQuestion())
	s = Reduce(s, NextQuestion())
	if s.ResultID != "result-1" {
		t.Fatalf("expected result id preserved, got %q", s.ResultID)
	}
}

func TestCurrentQuestion(t *testing.T) {
	s := NewState(60)
	if _, ok := s.Current(); ok {
		t.Fatal("expected no current question before load")
	}
	s = Reduce(s, StartInterview(twoQuestions()))
	q, ok := s.Current()
	if !ok || q.ID != "q1" {
		t.Fatalf("expected current question q1, got %+v ok=%v", q, ok)
	}
}
