package agent

import "fmt"

// ErrorKind classifies workflow errors. Errors are recorded in the shared
// state and absorbed into the final answer; they never cross a node boundary
// as a Go error.
type ErrorKind string

const (
	ErrEmptyQuery            ErrorKind = "empty_query"
	ErrDisallowedStatement   ErrorKind = "disallowed_statement"
	ErrForbiddenKeyword      ErrorKind = "forbidden_keyword"
	ErrInvalidTableReference ErrorKind = "invalid_table_reference"
	ErrLimitExceeded         ErrorKind = "limit_exceeded"
	ErrGenerationFailed      ErrorKind = "generation_failed"
	ErrRepairFailed          ErrorKind = "repair_failed"
	ErrExecutionFailed       ErrorKind = "execution_failed"
	ErrRepairBudgetExhausted ErrorKind = "repair_budget_exhausted"
)

// WorkflowError is the typed error threaded through WorkflowState.LastError.
// Message is user-visible: it ends up in the final answer prefixed "Error: ".
type WorkflowError struct {
	Kind    ErrorKind
	Message string
}

func (e *WorkflowError) Error() string {
	return e.Message
}

func errEmptyQuery() *WorkflowError {
	return &WorkflowError{Kind: ErrEmptyQuery, Message: "SQL query is empty"}
}

func errDisallowedStatement() *WorkflowError {
	return &WorkflowError{Kind: ErrDisallowedStatement, Message: "SQL must start with SELECT or WITH"}
}

func errForbiddenKeyword(keyword string) *WorkflowError {
	return &WorkflowError{Kind: ErrForbiddenKeyword, Message: "Forbidden keyword found: " + keyword}
}

func errInvalidTableReference(name, table string) *WorkflowError {
	return &WorkflowError{
		Kind:    ErrInvalidTableReference,
		Message: fmt.Sprintf("Invalid table reference: %s. Only '%s' and CTEs are allowed.", name, table),
	}
}

func errLimitExceeded(limit int) *WorkflowError {
	return &WorkflowError{
		Kind:    ErrLimitExceeded,
		Message: fmt.Sprintf("LIMIT value %d exceeds maximum of %d", limit, maxRowLimit),
	}
}

func errGenerationFailed(cause error) *WorkflowError {
	return &WorkflowError{Kind: ErrGenerationFailed, Message: "SQL generation failed: " + cause.Error()}
}

func errRepairFailed(cause error) *WorkflowError {
	return &WorkflowError{Kind: ErrRepairFailed, Message: "SQL repair failed: " + cause.Error()}
}

func errExecutionFailed(cause error) *WorkflowError {
	return &WorkflowError{Kind: ErrExecutionFailed, Message: "SQL execution failed: " + cause.Error()}
}

func errRepairBudgetExhausted(last *WorkflowError) *WorkflowError {
	detail := "unknown error"
	if last != nil {
		detail = last.Message
	}
	return &WorkflowError{
		Kind:    ErrRepairBudgetExhausted,
		Message: fmt.Sprintf("Maximum repair attempts (%d) reached. Last error: %s", maxRepairAttempts, detail),
	}
}
