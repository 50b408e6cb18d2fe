package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"classroom-rollcall-go/app"
	"classroom-rollcall-go/bank"
	"classroom-rollcall-go/generator"
	"classroom-rollcall-go/models"
	"classroom-rollcall-go/session"
	"classroom-rollcall-go/ws"
)

type syncScheduler struct{}

func (syncScheduler) Repeat(_ time.Duration, fn func() bool) {
	for fn() {
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, int, models.Difficulty) ([]bank.Draft, error) {
	return nil, errors.New("upstream unavailable")
}

type testServer struct {
	router    *gin.Engine
	classroom *app.Classroom
	hub       *ws.Hub
}

func newTestServer(t *testing.T, gen generator.Generator) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub(zerolog.Nop())
	engine := session.NewEngine(session.Options{Steps: 3, Scheduler: syncScheduler{}, Notifier: hub})
	classroom := app.New(models.NewState(), app.Options{
		Engine:    engine,
		Generator: gen,
		Now:       func() time.Time { return time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC) },
		Log:       zerolog.Nop(),
	})

	router := gin.New()
	RegisterRoutes(router, NewAPIHandler(classroom, zerolog.Nop()), NewWSHandler(hub, classroom, zerolog.Nop()))
	t.Cleanup(hub.Close)
	return &testServer{router: router, classroom: classroom, hub: hub}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if _, ok := body.(string); !ok && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(path, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile("file", filename)
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func (s *testServer) activeClassID() string {
	return s.classroom.Summary().ActiveClass.ID
}

func TestPing(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodGet, "/api/ping", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Pong!") {
		t.Errorf("unexpected ping response %d %s", w.Code, w.Body.String())
	}
}

func TestClassRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(http.MethodPost, "/api/classes", gin.H{"name": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/classes/"+s.activeClassID(), nil); w.Code != http.StatusConflict {
		t.Errorf("last class: expected 409, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/classes/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown class: expected 404, got %d", w.Code)
	}

	w := s.do(http.MethodPost, "/api/classes", gin.H{"name": "2B", "activate": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", w.Code, w.Body.String())
	}
	var created models.ClassGroup
	decode(t, w, &created)
	if s.activeClassID() != created.ID {
		t.Error("expected the new class to be active")
	}

	if w := s.do(http.MethodPut, "/api/classes/missing/active", nil); w.Code != http.StatusNotFound {
		t.Errorf("activate unknown: expected 404, got %d", w.Code)
	}

	w = s.do(http.MethodGet, "/api/classes", nil)
	var classes []models.ClassGroup
	decode(t, w, &classes)
	if len(classes) != 2 {
		t.Errorf("expected 2 classes, got %d", len(classes))
	}

	if w := s.do(http.MethodDelete, "/api/classes/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
}

func TestAddClassActivatesByDefault(t *testing.T) {
	s := newTestServer(t, nil)
	first := s.activeClassID()

	w := s.do(http.MethodPost, "/api/classes", gin.H{"name": "Second"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	var second models.ClassGroup
	decode(t, w, &second)
	if got := s.activeClassID(); got != second.ID {
		t.Errorf("expected %s to be active, got %s", second.ID, got)
	}

	w = s.do(http.MethodPost, "/api/classes", gin.H{"name": "Third", "activate": false})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", w.Code)
	}
	if got := s.activeClassID(); got != second.ID {
		t.Errorf("activate=false must keep %s active, got %s", second.ID, got)
	}
	if first == second.ID {
		t.Error("expected a fresh class id")
	}
}

func TestStudentRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	classID := s.activeClassID()

	w := s.do(http.MethodPost, "/api/classes/"+classID+"/students", gin.H{"name": "Ann"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", w.Code)
	}
	var ann models.Student
	decode(t, w, &ann)

	if w := s.do(http.MethodPost, "/api/classes/missing/students", gin.H{"name": "Bob"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown class: expected 404, got %d", w.Code)
	}
	if w := s.do(http.MethodPut, "/api/students/"+ann.ID, gin.H{"name": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty rename: expected 400, got %d", w.Code)
	}
	if w := s.do(http.MethodPut, "/api/students/"+ann.ID, gin.H{"name": "Anna"}); w.Code != http.StatusOK {
		t.Errorf("rename: expected 200, got %d", w.Code)
	}

	w = s.do(http.MethodGet, "/api/classes/"+classID+"/students", nil)
	var students []models.Student
	decode(t, w, &students)
	if len(students) != 1 || students[0].Name != "Anna" {
		t.Errorf("unexpected roster %+v", students)
	}

	if w := s.do(http.MethodDelete, "/api/students/"+ann.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/students/"+ann.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("delete again: expected 404, got %d", w.Code)
	}
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(http.MethodPost, "/api/session/draw", nil); w.Code != http.StatusConflict {
		t.Errorf("empty roster: expected 409, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/session/score", gin.H{"points": 1}); w.Code != http.StatusConflict {
		t.Errorf("score while idle: expected 409, got %d", w.Code)
	}

	s.classroom.AddStudent("", "Ann")
	w := s.do(http.MethodPost, "/api/session/draw", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("draw: expected 202, got %d", w.Code)
	}
	var snap session.Snapshot
	decode(t, w, &snap)
	if snap.Phase != session.Revealed || snap.Student == nil || snap.Student.Name != "Ann" {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if w := s.do(http.MethodPost, "/api/session/draw", nil); w.Code != http.StatusConflict {
		t.Errorf("draw while revealed: expected 409, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/session/score", gin.H{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing points: expected 400, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/session/score", gin.H{"points": 5}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid points: expected 400, got %d", w.Code)
	}

	w = s.do(http.MethodPost, "/api/session/score", gin.H{"points": -1})
	if w.Code != http.StatusOK {
		t.Fatalf("score: expected 200, got %d", w.Code)
	}
	var res app.ScoreResult
	decode(t, w, &res)
	if res.Student.Score != -1 || res.Feedback.Kind != "failure" {
		t.Errorf("unexpected score result %+v", res)
	}

	w = s.do(http.MethodGet, "/api/session", nil)
	decode(t, w, &snap)
	if snap.Phase != session.Idle {
		t.Errorf("expected idle, got %s", snap.Phase)
	}
}

func TestImportStudents(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.upload("/api/import/students", "roster.txt", []byte("Ann\n\nBob\n"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("text import: expected 200, got %d %s", w.Code, w.Body.String())
	}
	var out struct {
		ImportedCount int `json:"importedCount"`
	}
	decode(t, w, &out)
	if out.ImportedCount != 2 {
		t.Errorf("expected 2 imported, got %d", out.ImportedCount)
	}

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "姓名")
	f.SetCellValue("Sheet1", "A2", "Cy")
	var xlsx bytes.Buffer
	if err := f.Write(&xlsx); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f.Close()

	w = s.upload("/api/import/students", "roster.xlsx", xlsx.Bytes(), map[string]string{"classId": s.activeClassID()})
	if w.Code != http.StatusOK {
		t.Fatalf("excel import: expected 200, got %d %s", w.Code, w.Body.String())
	}
	decode(t, w, &out)
	if out.ImportedCount != 1 {
		t.Errorf("expected 1 imported, got %d", out.ImportedCount)
	}

	if w := s.upload("/api/import/students", "roster.pdf", []byte("x"), nil); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported type: expected 400, got %d", w.Code)
	}
	if w := s.upload("/api/import/students", "broken.xlsx", []byte("not a zip"), nil); w.Code != http.StatusBadRequest {
		t.Errorf("broken workbook: expected 400, got %d", w.Code)
	}
	if w := s.upload("/api/import/students", "roster.txt", []byte("Dee"), map[string]string{"classId": "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown class: expected 404, got %d", w.Code)
	}
}

func TestQuestionRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/import/questions", "Q1,easy,Math\nQ2\nQ3,困难")
	if w.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d", w.Code)
	}
	w = s.upload("/api/import/questions", "bank.txt", []byte("Q4,中等"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("file import: expected 200, got %d", w.Code)
	}

	if w := s.do(http.MethodPost, "/api/questions", gin.H{"content": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty content: expected 400, got %d", w.Code)
	}
	w = s.do(http.MethodPost, "/api/questions", gin.H{"content": "Q5", "difficulty": "hard"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", w.Code)
	}
	var q models.Question
	decode(t, w, &q)
	if q.Difficulty != models.Hard {
		t.Errorf("expected hard, got %s", q.Difficulty)
	}

	if w := s.do(http.MethodDelete, "/api/questions/"+q.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}

	var questions []models.Question
	decode(t, s.do(http.MethodGet, "/api/questions", nil), &questions)
	if len(questions) != 4 {
		t.Errorf("expected 4 questions, got %d", len(questions))
	}

	w = s.do(http.MethodGet, "/api/import/questions/template", nil)
	if w.Code != http.StatusOK || w.Body.String() != bank.ImportTemplate {
		t.Errorf("unexpected template response %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("unexpected disposition %q", cd)
	}
}

func TestGenerateRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	var status struct {
		Available bool `json:"available"`
	}
	decode(t, s.do(http.MethodGet, "/api/questions/generate/status", nil), &status)
	if status.Available {
		t.Error("expected the generator to be unavailable")
	}
	if w := s.do(http.MethodPost, "/api/questions/generate", gin.H{"topic": "fractions", "count": 3}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("not configured: expected 503, got %d", w.Code)
	}

	s = newTestServer(t, failingGenerator{})
	if w := s.do(http.MethodPost, "/api/questions/generate", gin.H{"topic": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty topic: expected 400, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/questions/generate", gin.H{"topic": "fractions", "count": 3}); w.Code != http.StatusBadGateway {
		t.Errorf("generator failure: expected 502, got %d", w.Code)
	}
}

func TestRankingsAndExport(t *testing.T) {
	s := newTestServer(t, nil)
	classID := s.activeClassID()
	s.classroom.ImportStudents("", "Ann\nBob\nCy")

	if w := s.do(http.MethodGet, "/api/classes/"+classID+"/rankings?limit=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/classes/missing/rankings", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown class: expected 404, got %d", w.Code)
	}

	w := s.do(http.MethodGet, "/api/classes/"+classID+"/rankings?limit=2", nil)
	var out struct {
		Rankings []models.Student `json:"rankings"`
	}
	decode(t, w, &out)
	if len(out.Rankings) != 2 {
		t.Errorf("expected 2 ranked students, got %d", len(out.Rankings))
	}

	w = s.do(http.MethodGet, "/api/classes/"+classID+"/rankings.xlsx", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType {
		t.Errorf("workbook: unexpected response %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = s.do(http.MethodGet, "/api/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "classroom_data_2024-09-01.json") {
		t.Errorf("unexpected disposition %q", cd)
	}
	var exported models.AppState
	decode(t, w, &exported)
	if len(exported.Students) != 3 {
		t.Errorf("expected 3 exported students, got %d", len(exported.Students))
	}
}

func TestWebSocketStreamsCues(t *testing.T) {
	s := newTestServer(t, nil)
	s.classroom.AddStudent("", "Ann")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %q err=%v", msg.Type, err)
	}

	// The client is registered right after the snapshot is written.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.classroom.Draw(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != string(session.EventTick) {
		t.Errorf("expected a tick cue, got %q err=%v", msg.Type, err)
	}
}
