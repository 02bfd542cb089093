// Package backend is the REST client for the interview platform: question
// batches, media access tokens, and recording start/stop.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sjawhar/mockingbird/internal/auth"
	"github.com/sjawhar/mockingbird/internal/decode"
	"github.com/sjawhar/mockingbird/internal/interview"
)

const maxErrorBody = 512

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *auth.Credentials
}

func New(baseURL string, creds *auth.Credentials) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		creds:      creds,
	}
}

// FetchQuestions loads the ordered question batch for an interview.
func (c *Client) FetchQuestions(ctx context.Context, interviewID string) ([]interview.Question, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/interviews/"+interviewID+"/questions", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	var payload struct {
		Questions []interview.Question `json:"questions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return payload.Questions, nil
}

// CreateMediaToken requests a short-lived access token for a capture
// session. A conflict response means the session already exists by that
// id, which the media gateway treats as success and still issues a token.
func (c *Client) CreateMediaToken(ctx context.Context, sessionID string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{"sessionId": sessionID})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/media/sessions", reqBody)
	if err != nil && status != http.StatusConflict {
		return "", fmt.Errorf("create media token: %w", err)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("create media token: empty token for session %s", sessionID)
	}
	return payload.Token, nil
}

// StartRecording asks the backend to begin persisting the capture for a
// session and returns the issued recording identifier.
func (c *Client) StartRecording(ctx context.Context, sessionID, interviewID string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"sessionId":   sessionID,
		"interviewId": interviewID,
	})
	if err != nil {
		return "", fmt.Errorf("encode start recording request: %w", err)
	}

	body, _, err := c.do(ctx, http.MethodPost, "/recordings", reqBody)
	if err != nil {
		return "", fmt.Errorf("start recording: %w", err)
	}

	id, ok := decode.RecordingID(body)
	if !ok {
		return "", fmt.Errorf("start recording: no recording id in response %s", snippet(body))
	}
	return id, nil
}

// StopRecording asks the backend to stop persisting a recording. The raw
// response is returned so the caller can decode the result identifier,
// whose field name varies by response variant.
func (c *Client) StopRecording(ctx context.Context, recordingID string) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/recordings/"+recordingID+"/stop", nil)
	if err != nil {
		return nil, fmt.Errorf("stop recording %s: %w", recordingID, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.creds != nil {
		token, err := c.creds.Token()
		if err != nil {
			return nil, 0, fmt.Errorf("credential: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return respBody, resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet(respBody))
	}
	return respBody, resp.StatusCode, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
