// Package examapi is the HTTP client for the exam content & scoring
// collaborator.
package examapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/proctorly/examroom/internal/model"
)

// APIError is a structured error reported by the collaborator.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to the collaborator's REST surface.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New creates a client for the given base URL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the session token used on authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// Join creates a proctoring session for the exam and returns its token.
func (c *Client) Join(ctx context.Context, examID string) (model.JoinResult, error) {
	var out model.JoinResult
	err := c.do(ctx, http.MethodPost, "/api/v1/exams/"+examID+"/join", nil, &out)
	return out, err
}

// Paper fetches the exam metadata and question sequence. The correct
// options never appear in the payload.
func (c *Client) Paper(ctx context.Context, examID string) (model.ExamPaper, error) {
	var out model.ExamPaper
	err := c.do(ctx, http.MethodGet, "/api/v1/exams/"+examID+"/paper", nil, &out)
	return out, err
}

// Submit sends the complete answer map for scoring.
func (c *Client) Submit(ctx context.Context, examID string, answers model.AnswerMap) (model.SubmitResult, error) {
	var out model.SubmitResult
	err := c.do(ctx, http.MethodPost, "/api/v1/exams/"+examID+"/submit", model.SubmitRequest{Answers: answers}, &out)
	return out, err
}

// ProctorURL builds the WebSocket URL of the proctoring channel for this
// session.
func (c *Client) ProctorURL(examID string) string {
	ws := c.base
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/ws/v1/exams/" + examID + "/proctor?token=" + c.token
}

// envelope matches the collaborator's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: "request failed"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}
