package decode

import "testing"

func TestResultIDVariants(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"data":{"interviewUuid":"abc"}}`),
		[]byte(`{"result":{"interviewUuid":"abc"}}`),
		[]byte(`{"interviewUuid":"abc"}`),
	}
	for _, p := range payloads {
		id, ok := ResultID(p)
		if !ok {
			t.Fatalf("expected result id from %s", p)
		}
		if id != "abc" {
			t.Fatalf("expected abc from %s, got %q", p, id)
		}
	}
}

func TestResultIDUnknownShape(t *testing.T) {
	if id, ok := ResultID([]byte(`{"something":"else"}`)); ok {
		t.Fatalf("expected no match, got %q", id)
	}
	if _, ok := ResultID([]byte(`not json`)); ok {
		t.Fatal("expected no match for invalid payload")
	}
}

func TestAttemptIDVariants(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{`{"ptAnswerAttemptUuid":"x"}`, "x"},
		{`{"answerAttemptId":"x"}`, "x"},
		{`{"answerAttemptUuid":"y"}`, "y"},
		{`{"attemptId":"z"}`, "z"},
	}
	for _, tc := range cases {
		id, ok := AttemptID([]byte(tc.payload))
		if !ok || id != tc.want {
			t.Fatalf("payload %s: expected %q, got %q ok=%v", tc.payload, tc.want, id, ok)
		}
	}
}

func TestAttemptIDPrefersPTField(t *testing.T) {
	payload := []byte(`{"answerAttemptId":"legacy","ptAnswerAttemptUuid":"pt"}`)
	id, ok := AttemptID(payload)
	if !ok || id != "pt" {
		t.Fatalf("expected pt field to win, got %q ok=%v", id, ok)
	}
}

func TestEmptyValuesFallThrough(t *testing.T) {
	payload := []byte(`{"ptAnswerAttemptUuid":"","answerAttemptId":"x"}`)
	id, ok := AttemptID(payload)
	if !ok || id != "x" {
		t.Fatalf("expected empty field to fall through, got %q ok=%v", id, ok)
	}
}

func TestRecordingIDVariants(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{`{"data":{"recordingId":"r1"}}`, "r1"},
		{`{"recordingId":"r2"}`, "r2"},
		{`{"recordingUuid":"r3"}`, "r3"},
		{`{"id":"r4"}`, "r4"},
	}
	for _, tc := range cases {
		id, ok := RecordingID([]byte(tc.payload))
		if !ok || id != tc.want {
			t.Fatalf("payload %s: expected %q, got %q ok=%v", tc.payload, tc.want, id, ok)
		}
	}
}
