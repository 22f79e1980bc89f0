package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/duckchat/duckchat/internal/llm"
	"github.com/duckchat/duckchat/internal/observability"
)

// Answerer synthesizes the final answer. If the run carries an error it
// skips the backend entirely; on backend failure it falls back to a
// deterministic summary that cannot itself fail.
type Answerer struct {
	LLM         llm.Client
	Temperature float64
}

type answerResponse struct {
	Answer string `json:"answer"`
}

func (a Answerer) Answer(ctx context.Context, state *WorkflowState) {
	if state.LastError != nil {
		state.FinalAnswer = "Error: " + state.LastError.Message
		return
	}

	sampleRows := state.ResultRows
	if len(sampleRows) > maxSampleRows {
		sampleRows = sampleRows[:maxSampleRows]
	}
	sampleJSON, err := json.MarshalIndent(sampleRows, "", "  ")
	if err != nil {
		state.FinalAnswer = a.fallback(state, err)
		return
	}

	systemPrompt := `You are a data analyst assistant.

Your task:
1. You receive a user's question, the SQL query used to answer it, and the resulting table.
2. You must provide a clear, concise answer in 2-4 sentences.

Guidelines:
- Describe the answer using only information from the result table.
- Do not invent counts or values not present in the results.
- If the result is a single scalar/row, state it explicitly.
- If there are many rows, summarize the key patterns (top groups, trends, percentages).
- Use specific numbers from the results.
- Be conversational but precise.

Output format (JSON):
{
  "answer": "Your answer here..."
}`

	userPrompt := fmt.Sprintf("Question: %s\n\nSQL Query:\n%s\n\nResult Table:\nColumns: %s\nTotal Rows: %d\n\nSample Rows (first %d):\n%s\n\nGenerate a clear answer to the question based on these results. Return only valid JSON.",
		state.Question,
		state.ValidatedSQL,
		strings.Join(state.ResultColumns, ", "),
		len(state.ResultRows),
		len(sampleRows),
		string(sampleJSON),
	)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	start := time.Now()
	raw, err := a.LLM.CompleteJSON(ctx, messages, a.Temperature)
	observability.ObserveLLMRequest("answer", time.Since(start))
	if err != nil {
		state.FinalAnswer = a.fallback(state, err)
		return
	}

	var parsed answerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		state.FinalAnswer = a.fallback(state, err)
		return
	}
	if parsed.Answer == "" {
		state.FinalAnswer = "Unable to generate answer."
		return
	}
	state.FinalAnswer = parsed.Answer
}

func (a Answerer) fallback(state *WorkflowState, cause error) string {
	if len(state.ResultRows) > 0 {
		return fmt.Sprintf("Query executed successfully and returned %d rows. Columns: %s",
			len(state.ResultRows), strings.Join(state.ResultColumns, ", "))
	}
	return fmt.Sprintf("Query executed but returned no results. Error generating answer: %v", cause)
}
