package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type chatRequest struct {
	Question string `json:"question"`
}

// chatResponse mirrors the public chat contract: nullable answer/sql/error,
// columns and rows always present as arrays.
type chatResponse struct {
	AnswerText *string          `json:"answer_text"`
	SQL        *string          `json:"sql"`
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	Error      *string          `json:"error"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Runner == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false)
		return
	}

	var request chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false)
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false)
		return
	}

	result, err := deps.Runner.Run(r.Context(), request.Question)
	if err != nil {
		// Schema load failed before the workflow started.
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", err.Error(), true)
		return
	}

	response := chatResponse{
		AnswerText: optionalString(result.AnswerText),
		SQL:        optionalString(result.SQL),
		Columns:    result.Columns,
		Rows:       result.Rows,
		Error:      optionalString(result.Err),
	}
	if response.Columns == nil {
		response.Columns = []string{}
	}
	if response.Rows == nil {
		response.Rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, response)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
