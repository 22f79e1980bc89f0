package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

var errTestBackendDown = errors.New("backend down")

func TestAnswerErrorStateSkipsBackend(t *testing.T) {
	backend := &fakeLLM{}
	state := &WorkflowState{
		Question:  "test",
		LastError: errRepairBudgetExhausted(errForbiddenKeyword("DROP")),
	}

	Answerer{LLM: backend}.Answer(context.Background(), state)

	want := "Error: Maximum repair attempts (2) reached. Last error: Forbidden keyword found: DROP"
	if state.FinalAnswer != want {
		t.Fatalf("FinalAnswer = %q, want %q", state.FinalAnswer, want)
	}
	if len(backend.calls) != 0 {
		t.Fatal("error answers must not call the backend")
	}
}

func TestAnswerSynthesizesFromResults(t *testing.T) {
	backend := &fakeLLM{replies: []scriptedReply{
		{content: `{"answer": "There were 42 noise complaints."}`},
	}}
	state := &WorkflowState{
		Question:      "how many noise complaints?",
		ValidatedSQL:  "SELECT COUNT(*) AS total FROM nyc_311 LIMIT 1000",
		ResultColumns: []string{"total"},
		ResultRows:    []map[string]any{{"total": int64(42)}},
	}

	Answerer{LLM: backend}.Answer(context.Background(), state)

	if state.FinalAnswer != "There were 42 noise complaints." {
		t.Fatalf("FinalAnswer = %q", state.FinalAnswer)
	}
	if len(backend.prompts) != 1 || !strings.Contains(backend.prompts[0], `"total": 42`) {
		t.Fatalf("prompt missing sample rows: %v", backend.prompts)
	}
}

func TestAnswerCapsSampleRows(t *testing.T) {
	backend := &fakeLLM{replies: []scriptedReply{
		{content: `{"answer": "Lots of rows."}`},
	}}
	rows := make([]map[string]any, 120)
	for i := range rows {
		rows[i] = map[string]any{"id": int64(i)}
	}
	state := &WorkflowState{
		Question:      "list everything",
		ResultColumns: []string{"id"},
		ResultRows:    rows,
	}

	Answerer{LLM: backend}.Answer(context.Background(), state)

	prompt := backend.prompts[0]
	if !strings.Contains(prompt, `"id": 49`) {
		t.Fatalf("prompt missing row 49: %q", prompt)
	}
	if strings.Contains(prompt, `"id": 50`) {
		t.Fatal("prompt must contain at most 50 sample rows")
	}
}

func TestAnswerEmptyAnswerFallback(t *testing.T) {
	backend := &fakeLLM{replies: []scriptedReply{{content: `{"answer": ""}`}}}
	state := &WorkflowState{
		Question:      "test",
		ResultColumns: []string{"total"},
		ResultRows:    []map[string]any{{"total": int64(1)}},
	}

	Answerer{LLM: backend}.Answer(context.Background(), state)

	if state.FinalAnswer != "Unable to generate answer." {
		t.Fatalf("FinalAnswer = %q", state.FinalAnswer)
	}
}

func TestAnswerBackendFailureWithNoRows(t *testing.T) {
	backend := &fakeLLM{replies: []scriptedReply{{err: errTestBackendDown}}}
	state := &WorkflowState{
		Question:      "test",
		ResultColumns: []string{"total"},
		ResultRows:    []map[string]any{},
	}

	Answerer{LLM: backend}.Answer(context.Background(), state)

	want := "Query executed but returned no results. Error generating answer: backend down"
	if state.FinalAnswer != want {
		t.Fatalf("FinalAnswer = %q, want %q", state.FinalAnswer, want)
	}
}
