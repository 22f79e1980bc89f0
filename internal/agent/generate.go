package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duckchat/duckchat/internal/llm"
	"github.com/duckchat/duckchat/internal/observability"
)

// Generator proposes a candidate query from the question and schema snapshot
// with one backend call. Writes CandidateSQL/CandidateExplanation/
// CandidateConfidence, or LastError on failure; never touches RepairCount.
type Generator struct {
	LLM         llm.Client
	Temperature float64
}

type generationResponse struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

func (g Generator) Generate(ctx context.Context, state *WorkflowState) {
	schemaJSON, err := json.MarshalIndent(state.Schema, "", "  ")
	if err != nil {
		state.CandidateSQL = ""
		state.LastError = errGenerationFailed(err)
		return
	}

	systemPrompt := fmt.Sprintf(`You are a SQL generator for a DuckDB database with one table %q.

Your task:
1. You will receive the table schema and a natural-language question.
2. You must output a single SQL query as JSON.

Constraints:
- Use only table %q.
- Use only columns that exist in the provided schema.
- Use only SELECT or WITH queries (CTEs).
- Always include a LIMIT clause of at most %d.
- Never perform DDL/DML (no INSERT/UPDATE/DELETE/ALTER/DROP/etc.).
- Use proper SQL syntax for DuckDB.
- For aggregations, use appropriate GROUP BY clauses.
- For date comparisons, use proper timestamp functions.
- When filtering on calculated columns, handle NULL values appropriately.

Output format (JSON):
{
  "sql": "SELECT ...",
  "explanation": "Brief explanation of what the query does",
  "confidence": 0.0-1.0
}`, state.Schema.Table, state.Schema.Table, maxRowLimit)

	userPrompt := fmt.Sprintf("Schema:\n%s\n\nQuestion: %s\n\nGenerate a SQL query to answer this question. Return only valid JSON.",
		string(schemaJSON), state.Question)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	start := time.Now()
	raw, err := g.LLM.CompleteJSON(ctx, messages, g.Temperature)
	observability.ObserveLLMRequest("generate", time.Since(start))
	if err != nil {
		state.CandidateSQL = ""
		state.LastError = errGenerationFailed(err)
		return
	}

	var parsed generationResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		state.CandidateSQL = ""
		state.LastError = errGenerationFailed(fmt.Errorf("parse generation response: %w", err))
		return
	}

	state.CandidateSQL = parsed.SQL
	state.CandidateExplanation = parsed.Explanation
	state.CandidateConfidence = parsed.Confidence
}

// Repairer proposes a corrected candidate from the previous one and its
// error. It consumes one unit of the repair budget up front, so a failed
// backend call still counts as an attempt.
type Repairer struct {
	LLM         llm.Client
	Temperature float64
}

type repairResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

func (r Repairer) Repair(ctx context.Context, state *WorkflowState) {
	state.RepairCount++
	observability.IncrementRepairAttempt()

	previousSQL := state.CandidateSQL
	previousError := ""
	if state.LastError != nil {
		previousError = state.LastError.Message
	}

	schemaJSON, err := json.MarshalIndent(state.Schema, "", "  ")
	if err != nil {
		state.LastError = errRepairFailed(err)
		return
	}

	systemPrompt := fmt.Sprintf(`You are a SQL repair assistant for DuckDB.

Your task:
1. You receive a schema, a natural-language question, a previous invalid SQL query, and an error message.
2. You must output a corrected SQL query that fixes the error.

Constraints (same as SQL generation):
- Use only table %q.
- Use only columns that exist in the provided schema.
- Use only SELECT or WITH queries.
- Always include a LIMIT clause of at most %d.
- Never perform DDL/DML.
- Fix the specific error mentioned.

Output format (JSON):
{
  "sql": "SELECT ...",
  "explanation": "What was fixed and why"
}`, state.Schema.Table, maxRowLimit)

	userPrompt := fmt.Sprintf("Schema:\n%s\n\nQuestion: %s\n\nPrevious SQL (had error):\n%s\n\nError: %s\n\nGenerate a corrected SQL query. Return only valid JSON.",
		string(schemaJSON), state.Question, previousSQL, previousError)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	start := time.Now()
	raw, err := r.LLM.CompleteJSON(ctx, messages, r.Temperature)
	observability.ObserveLLMRequest("repair", time.Since(start))
	if err != nil {
		// Previous candidate stays in place; the attempt is still consumed.
		state.LastError = errRepairFailed(err)
		return
	}

	var parsed repairResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		state.LastError = errRepairFailed(fmt.Errorf("parse repair response: %w", err))
		return
	}

	state.CandidateSQL = parsed.SQL
	state.CandidateExplanation = parsed.Explanation
	// The next validation pass re-evaluates the fresh candidate.
	state.LastError = nil
}
