package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/handler"
	"github.com/proctorly/examroom/internal/logger"
	"github.com/proctorly/examroom/internal/model"
	"github.com/proctorly/examroom/internal/protocol"
	"github.com/proctorly/examroom/internal/repository"
	"github.com/proctorly/examroom/internal/response"
	"github.com/proctorly/examroom/internal/router"
	"github.com/proctorly/examroom/internal/service"
	"github.com/proctorly/examroom/internal/validator"
)

type fakeExams struct {
	exam      *repository.ExamRow
	questions []repository.QuestionRow
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*repository.ExamRow, error) {
	if f.exam == nil || f.exam.ID != id {
		return nil, pgx.ErrNoRows
	}
	return f.exam, nil
}

func (f *fakeExams) GetQuestions(_ context.Context, _ uuid.UUID) ([]repository.QuestionRow, error) {
	return f.questions, nil
}

type fakeStore struct {
	mu        sync.Mutex
	status    map[string]string
	warnings  map[string]int
	cooldowns map[string]time.Time
	streaks   map[string]int
	results   map[string][]byte
	queued    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		status:    make(map[string]string),
		warnings:  make(map[string]int),
		cooldowns: make(map[string]time.Time),
		streaks:   make(map[string]int),
		results:   make(map[string][]byte),
	}
}

func (s *fakeStore) SetStatus(_ context.Context, id, status string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = status
	return nil
}

func (s *fakeStore) Status(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id], nil
}

func (s *fakeStore) IncrWarnings(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings[id]++
	return s.warnings[id], nil
}

func (s *fakeStore) TryCooldown(_ context.Context, id, kind string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id + ":" + kind
	if until, ok := s.cooldowns[key]; ok && time.Now().Before(until) {
		return false, nil
	}
	s.cooldowns[key] = time.Now().Add(window)
	return true, nil
}

func (s *fakeStore) BumpNoiseStreak(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[id]++
	return s.streaks[id], nil
}

func (s *fakeStore) ResetNoiseStreak(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streaks, id)
	return nil
}

func (s *fakeStore) SetResult(_ context.Context, id string, payload []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = payload
	return nil
}

func (s *fakeStore) Result(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[id], nil
}

func (s *fakeStore) QueueViolation(_ context.Context, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued++
	return nil
}

type testServer struct {
	srv    *httptest.Server
	examID uuid.UUID
	store  *fakeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:           "release",
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		MaxWarnings:       6,
		ViolationCooldown: time.Nanosecond, // every violation counts in tests
		AudioThreshold:    0.35,
		NoiseStreak:       2,
		DashboardURL:      "/dashboard",
	}

	examID := uuid.New()
	exams := &fakeExams{
		exam: &repository.ExamRow{ID: examID, Name: "Sample", DurationMinutes: 30, PassPercentage: 40},
		questions: []repository.QuestionRow{
			{ID: uuid.New(), QuestionText: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectOption: 1, Marks: 1, Position: 1},
			{ID: uuid.New(), QuestionText: "Q2", Options: []string{"a", "b"}, CorrectOption: 0, Marks: 1, Position: 2},
		},
	}
	store := newFakeStore()

	log := logger.Discard()
	tokens := service.NewTokenService(cfg)
	examService := service.NewExamService(cfg, exams, store, tokens, log)
	proctorService := service.NewProctorService(cfg, store, log)

	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(examService),
		Proctor: handler.NewProctorHandler(proctorService, log, nil),
	}
	r := router.SetupRouter(tokens, handlers, cfg)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, examID: examID, store: store}
}

func (ts *testServer) join(t *testing.T) model.JoinResult {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/api/v1/exams/"+ts.examID.String()+"/join", "application/json", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join status = %d", resp.StatusCode)
	}
	var env struct {
		Data model.JoinResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	return env.Data
}

func (ts *testServer) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (ts *testServer) dialProctor(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(ts.srv.URL, "http://", "ws://", 1) +
		"/ws/v1/exams/" + ts.examID.String() + "/proctor?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial proctor: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func errCode(t *testing.T, body []byte) response.ErrCode {
	t.Helper()
	var env struct {
		Error *response.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		t.Fatalf("no error body in %s", body)
	}
	return env.Error.Code
}

func TestJoinPaperSubmitFlow(t *testing.T) {
	ts := newTestServer(t)
	join := ts.join(t)

	resp, body := ts.request(t, http.MethodGet, "/api/v1/exams/"+ts.examID.String()+"/paper", join.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("paper status = %d: %s", resp.StatusCode, body)
	}
	var paperEnv struct {
		Data model.ExamPaper `json:"data"`
	}
	if err := json.Unmarshal(body, &paperEnv); err != nil {
		t.Fatalf("decode paper: %v", err)
	}
	if len(paperEnv.Data.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(paperEnv.Data.Questions))
	}
	// Raw payload must not leak scoring fields.
	if bytes.Contains(body, []byte("correct_option")) || bytes.Contains(body, []byte("marks")) {
		t.Fatalf("paper leaks scoring fields: %s", body)
	}

	answers := model.AnswerMap{
		paperEnv.Data.Questions[0].ID.String(): 1,
		paperEnv.Data.Questions[1].ID.String(): 1,
	}
	resp, body = ts.request(t, http.MethodPost, "/api/v1/exams/"+ts.examID.String()+"/submit", join.Token, model.SubmitRequest{Answers: answers})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d: %s", resp.StatusCode, body)
	}
	var resultEnv struct {
		Data model.SubmitResult `json:"data"`
	}
	if err := json.Unmarshal(body, &resultEnv); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if resultEnv.Data.ObtainedMarks != 1 || resultEnv.Data.TotalMarks != 2 || resultEnv.Data.Percentage != 50 {
		t.Fatalf("result = %+v", resultEnv.Data)
	}
	if resultEnv.Data.ResultStatus != service.ResultPassed {
		t.Fatalf("result status = %q", resultEnv.Data.ResultStatus)
	}

	// A second submission replays the recorded result without re-scoring.
	resp, body = ts.request(t, http.MethodPost, "/api/v1/exams/"+ts.examID.String()+"/submit", join.Token, model.SubmitRequest{Answers: model.AnswerMap{}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resubmit status = %d: %s", resp.StatusCode, body)
	}
	var repeatEnv struct {
		Data model.SubmitResult `json:"data"`
	}
	if err := json.Unmarshal(body, &repeatEnv); err != nil {
		t.Fatalf("decode repeat result: %v", err)
	}
	if repeatEnv.Data != resultEnv.Data {
		t.Fatalf("repeat result = %+v, want %+v", repeatEnv.Data, resultEnv.Data)
	}
}

func TestSubmitRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.request(t, http.MethodPost, "/api/v1/exams/"+ts.examID.String()+"/submit", "", model.SubmitRequest{Answers: model.AnswerMap{}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if code := errCode(t, body); code != response.ErrTokenRequired {
		t.Fatalf("code = %s", code)
	}
}

func TestTokenBoundToExam(t *testing.T) {
	ts := newTestServer(t)
	join := ts.join(t)

	other := uuid.New().String()
	resp, body := ts.request(t, http.MethodGet, "/api/v1/exams/"+other+"/paper", join.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if code := errCode(t, body); code != response.ErrSessionMismatch {
		t.Fatalf("code = %s", code)
	}
}

func TestProctorStreamEscalatesToTermination(t *testing.T) {
	ts := newTestServer(t)
	join := ts.join(t)
	conn := ts.dialProctor(t, join.Token)

	// Five violations warn, the sixth terminates.
	for i := 1; i <= 6; i++ {
		if err := conn.WriteJSON(protocol.NewSampleRequest(model.EventSample(model.ViolationTabSwitch))); err != nil {
			t.Fatalf("write violation %d: %v", i, err)
		}
		var ev protocol.EventEnvelope
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if i < 6 {
			if ev.Event != protocol.EventWarning || ev.Count != i {
				t.Fatalf("event %d = %+v, want warning count %d", i, ev, i)
			}
		} else {
			if ev.Event != protocol.EventTerminated {
				t.Fatalf("event 6 = %+v, want exam_terminated", ev)
			}
			if ev.Reason != "Max warnings exceeded. Exam Terminated." {
				t.Fatalf("reason = %q", ev.Reason)
			}
		}
	}

	// The server closes the stream after termination.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("stream still open after termination")
	}

	// And the terminated session cannot submit.
	resp, body := ts.request(t, http.MethodPost, "/api/v1/exams/"+ts.examID.String()+"/submit", join.Token, model.SubmitRequest{Answers: model.AnswerMap{}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("submit status = %d: %s", resp.StatusCode, body)
	}
	if code := errCode(t, body); code != response.ErrSessionTerminated {
		t.Fatalf("code = %s", code)
	}
}

func TestProctorStreamPersistsPeriodicSamples(t *testing.T) {
	ts := newTestServer(t)
	join := ts.join(t)
	conn := ts.dialProctor(t, join.Token)

	for i := 0; i < 3; i++ {
		if err := conn.WriteJSON(protocol.NewSampleRequest(model.PeriodicSample("data:image/jpeg;base64,x", 0.1))); err != nil {
			t.Fatalf("write sample %d: %v", i, err)
		}
	}
	if err := conn.WriteJSON(protocol.SessionEndedRequest{Action: protocol.ActionSessionEnded}); err != nil {
		t.Fatalf("write session_ended: %v", err)
	}

	// session_ended closes the stream server-side.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("stream still open after session_ended")
	}

	ts.store.mu.Lock()
	queued := ts.store.queued
	warnings := ts.store.warnings[join.Session.ID.String()]
	ts.store.mu.Unlock()
	if queued != 3 {
		t.Fatalf("queued = %d, want 3", queued)
	}
	if warnings != 0 {
		t.Fatalf("quiet frames produced %d warnings", warnings)
	}
}

func TestWSAuthRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	wsURL := strings.Replace(ts.srv.URL, "http://", "ws://", 1) +
		"/ws/v1/exams/" + ts.examID.String() + "/proctor"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial succeeded without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
}
