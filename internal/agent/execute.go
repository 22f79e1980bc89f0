package agent

import (
	"context"
	"time"

	"github.com/duckchat/duckchat/internal/observability"
	"github.com/duckchat/duckchat/internal/store"
)

// Executor runs the validated query against the row store. An execution
// failure is terminal for the run: no retry, no return to generation.
type Executor struct {
	Store store.RowStore
}

func (e Executor) Execute(ctx context.Context, state *WorkflowState) {
	start := time.Now()
	columns, rows, err := e.Store.Query(ctx, state.ValidatedSQL)
	observability.ObserveQueryDuration(time.Since(start))
	if err != nil {
		state.LastError = errExecutionFailed(err)
		state.ResultColumns = nil
		state.ResultRows = nil
		return
	}
	state.ResultColumns = columns
	state.ResultRows = rows
	state.LastError = nil
}
