package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duckchat/duckchat/internal/agent"
	"github.com/duckchat/duckchat/internal/config"
	"github.com/duckchat/duckchat/internal/schema"
)

func testConfig() config.Config {
	return config.Config{
		Profile: config.ProfileTest,
		Service: config.ServiceConfig{Name: "duckchat"},
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %v", body)
	}
}

func TestRootBanner(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "duckchat API") {
		t.Fatalf("body = %q", recorder.Body.String())
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{
		Readiness: func(context.Context) error { return errors.New("database missing") },
	})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestCombineReadinessChecksStopsAtFirstFailure(t *testing.T) {
	calls := 0
	failing := func(context.Context) error { calls++; return errors.New("nope") }
	never := func(context.Context) error { calls++; return nil }

	err := CombineReadinessChecks(nil, failing, never)(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

type fakeRunner struct {
	result agent.Result
	err    error
	asked  string
}

func (f *fakeRunner) Run(_ context.Context, question string) (agent.Result, error) {
	f.asked = question
	if f.err != nil {
		return agent.Result{}, f.err
	}
	return f.result, nil
}

type fakeSchemaSource struct {
	snapshot    schema.Snapshot
	err         error
	invalidated bool
}

func (f *fakeSchemaSource) Snapshot(context.Context) (schema.Snapshot, error) {
	if f.err != nil {
		return schema.Snapshot{}, f.err
	}
	return f.snapshot, nil
}

func (f *fakeSchemaSource) Invalidate() { f.invalidated = true }

func TestChatReturnsWorkflowResult(t *testing.T) {
	runner := &fakeRunner{result: agent.Result{
		AnswerText: "There were 42 noise complaints.",
		SQL:        "SELECT COUNT(*) FROM nyc_311 LIMIT 1000",
		Columns:    []string{"count"},
		Rows:       []map[string]any{{"count": float64(42)}},
	}}
	handler := NewHandler(testConfig(), Dependencies{Runner: runner})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"question": "how many noise complaints?"}`))
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if runner.asked != "how many noise complaints?" {
		t.Fatalf("question = %q", runner.asked)
	}

	var body chatResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AnswerText == nil || *body.AnswerText != "There were 42 noise complaints." {
		t.Fatalf("answer_text = %v", body.AnswerText)
	}
	if body.SQL == nil || *body.SQL != "SELECT COUNT(*) FROM nyc_311 LIMIT 1000" {
		t.Fatalf("sql = %v", body.SQL)
	}
	if body.Error != nil {
		t.Fatalf("error = %v", *body.Error)
	}
	if len(body.Rows) != 1 {
		t.Fatalf("rows = %v", body.Rows)
	}
}

func TestChatErrorRunStillReturns200(t *testing.T) {
	runner := &fakeRunner{result: agent.Result{
		AnswerText: "Error: Maximum repair attempts (2) reached. Last error: Forbidden keyword found: DROP",
		Columns:    []string{},
		Rows:       []map[string]any{},
		Err:        "Maximum repair attempts (2) reached. Last error: Forbidden keyword found: DROP",
	}}
	handler := NewHandler(testConfig(), Dependencies{Runner: runner})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"question": "drop the table"}`))
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var body chatResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.SQL != nil {
		t.Fatalf("sql = %v, want null", *body.SQL)
	}
	if body.Error == nil || !strings.Contains(*body.Error, "Maximum repair attempts") {
		t.Fatalf("error = %v", body.Error)
	}
	if body.Columns == nil || body.Rows == nil {
		t.Fatal("columns and rows must be arrays, not null")
	}
}

func TestChatSchemaFailureIs503(t *testing.T) {
	runner := &fakeRunner{err: errors.New("load schema snapshot: table does not exist")}
	handler := NewHandler(testConfig(), Dependencies{Runner: runner})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"question": "anything"}`))
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Runner: &fakeRunner{}})

	for _, payload := range []string{`{"question": "  "}`, `{}`} {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(payload))
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("payload %s: status = %d", payload, recorder.Code)
		}
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Runner: &fakeRunner{}})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"question": `))
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	source := &fakeSchemaSource{snapshot: schema.Snapshot{
		Table:     "nyc_311",
		TotalRows: 12,
		Columns:   []schema.Column{{Name: "complaint_type", Type: "VARCHAR"}},
	}}
	handler := NewHandler(testConfig(), Dependencies{Schema: source})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/schema", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var snapshot schema.Snapshot
	if err := json.Unmarshal(recorder.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snapshot.Table != "nyc_311" || snapshot.TotalRows != 12 {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestSchemaRefreshInvalidatesCache(t *testing.T) {
	source := &fakeSchemaSource{snapshot: schema.Snapshot{Table: "nyc_311"}}
	handler := NewHandler(testConfig(), Dependencies{Schema: source})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/schema/refresh", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !source.invalidated {
		t.Fatal("cache not invalidated")
	}
}

func TestSchemaFailureIs503(t *testing.T) {
	source := &fakeSchemaSource{err: errors.New("introspection failed")}
	handler := NewHandler(testConfig(), Dependencies{Schema: source})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/schema", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", recorder.Code)
	}
}
