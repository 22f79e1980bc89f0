// Package agent implements the question-to-answer workflow: SQL generation,
// lexical validation, bounded repair, execution, and answer synthesis,
// sequenced by an explicit state machine over one shared workflow record.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duckchat/duckchat/internal/llm"
	"github.com/duckchat/duckchat/internal/observability"
	"github.com/duckchat/duckchat/internal/schema"
	"github.com/duckchat/duckchat/internal/store"
)

const answerTemperature = 0.3

// Orchestrator owns the node dispatch for one run at a time. It is safe for
// concurrent use: every Run gets its own WorkflowState and the collaborators
// it holds are themselves concurrency-safe.
type Orchestrator struct {
	Schema      schema.Provider
	LLM         llm.Client
	Store       store.RowStore
	Logger      *slog.Logger
	Table       string
	Temperature float64
}

// Result is what the caller reads after a run; the workflow state itself is
// discarded.
type Result struct {
	AnswerText string
	SQL        string
	Columns    []string
	Rows       []map[string]any
	Err        string
}

// Run executes the workflow for one question. Every in-run failure is
// absorbed into the final answer; the only returned error is a failure to
// obtain the schema snapshot, which aborts before any state exists.
func (o *Orchestrator) Run(ctx context.Context, question string) (Result, error) {
	snapshot, err := o.Schema.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load schema snapshot: %w", err)
	}

	state := &WorkflowState{
		RunID:    uuid.NewString(),
		Question: question,
		Schema:   snapshot,
	}

	logger := o.logger().With(slog.String("run_id", state.RunID))
	logger.Info("workflow started", slog.String("question", truncateForLog(question)))

	generator := Generator{LLM: o.LLM, Temperature: o.Temperature}
	validator := Validator{Table: o.Table}
	repairer := Repairer{LLM: o.LLM, Temperature: o.Temperature}
	executor := Executor{Store: o.Store}
	answerer := Answerer{LLM: o.LLM, Temperature: answerTemperature}

	start := time.Now()
	current := nodeInit
	for current != nodeDone {
		next := current
		switch current {
		case nodeInit:
			next = nodeGenerating

		case nodeGenerating:
			generator.Generate(ctx, state)
			next = nodeValidating

		case nodeValidating:
			// Every pass starts from a clean slate for the fields it owns.
			state.ValidatedSQL = ""
			previous := state.LastError
			state.LastError = nil

			if state.CandidateSQL == "" && previous != nil {
				// A failed generation/repair call left no fresh candidate;
				// keep the call failure instead of masking it as an
				// empty-query rejection.
				state.LastError = previous
			} else if validated, wfErr := validator.Validate(state.CandidateSQL); wfErr != nil {
				state.LastError = wfErr
			} else {
				state.ValidatedSQL = validated
			}

			next = nextAfterValidation(state)
			if next == nodeAnswering {
				state.LastError = errRepairBudgetExhausted(state.LastError)
			}
			if next == nodeRepairing {
				logger.Info("routing to repair",
					slog.Int("attempt", state.RepairCount+1),
					slog.String("error", state.LastError.Message),
				)
			}

		case nodeRepairing:
			repairer.Repair(ctx, state)
			next = nodeValidating

		case nodeExecuting:
			executor.Execute(ctx, state)
			if state.LastError != nil {
				logger.Warn("query execution failed", slog.String("error", state.LastError.Message))
			} else {
				logger.Info("query executed",
					slog.Int("columns", len(state.ResultColumns)),
					slog.Int("rows", len(state.ResultRows)),
				)
			}
			next = nodeAnswering

		case nodeAnswering:
			answerer.Answer(ctx, state)
			next = nodeDone
		}

		logger.Debug("workflow transition",
			slog.String("from", current.String()),
			slog.String("to", next.String()),
		)
		current = next
	}

	outcome := "success"
	if state.LastError != nil {
		outcome = "error"
	}
	observability.ObserveWorkflowRun(outcome, time.Since(start))
	logger.Info("workflow finished",
		slog.String("outcome", outcome),
		slog.Int("repair_count", state.RepairCount),
		slog.String("duration", time.Since(start).String()),
	)

	result := Result{
		AnswerText: state.FinalAnswer,
		SQL:        state.ValidatedSQL,
		Columns:    state.ResultColumns,
		Rows:       state.ResultRows,
	}
	if result.Columns == nil {
		result.Columns = []string{}
	}
	if result.Rows == nil {
		result.Rows = []map[string]any{}
	}
	if state.LastError != nil {
		result.Err = state.LastError.Message
	}
	return result, nil
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func truncateForLog(value string) string {
	const limit = 120
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
