// Package decode extracts identifiers from backend payloads whose field
// naming varies by endpoint and message category. Each extractor tries a
// fixed, ordered list of candidate paths; the first non-empty match wins.
// The lists are the contract with the backend — changing their order
// changes which variant is preferred.
package decode

import "github.com/tidwall/gjson"

// attemptIDPaths covers the analysis-completion message variants. The
// PT-specific field comes first because PT messages also carry a legacy
// answerAttemptId that refers to a different record.
var attemptIDPaths = []string{
	"ptAnswerAttemptUuid",
	"answerAttemptId",
	"answerAttemptUuid",
	"attemptId",
}

// resultIDPaths covers the stop-recording response variants.
var resultIDPaths = []string{
	"data.interviewUuid",
	"result.interviewUuid",
	"interviewUuid",
}

// recordingIDPaths covers the start-recording response variants.
var recordingIDPaths = []string{
	"data.recordingId",
	"recordingId",
	"recordingUuid",
	"id",
}

// AttemptID extracts the answer-attempt identifier from a push message.
func AttemptID(payload []byte) (string, bool) {
	return first(payload, attemptIDPaths)
}

// ResultID extracts the interview result identifier from a stop-recording
// response.
func ResultID(payload []byte) (string, bool) {
	return first(payload, resultIDPaths)
}

// RecordingID extracts the recording identifier from a start-recording
// response.
func RecordingID(payload []byte) (string, bool) {
	return first(payload, recordingIDPaths)
}

func first(payload []byte, paths []string) (string, bool) {
	for _, path := range paths {
		if v := gjson.GetBytes(payload, path); v.Exists() {
			if s := v.String(); s != "" {
				return s, true
			}
		}
	}
	return "", false
}
