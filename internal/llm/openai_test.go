package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestCompleteJSONParsesFencedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Fatalf("authorization = %q", got)
		}
		var req struct {
			Model       string    `json:"model"`
			Messages    []Message `json:"messages"`
			Temperature float64   `json:"temperature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Temperature != 0.1 {
			t.Fatalf("temperature = %v", req.Temperature)
		}
		_, _ = w.Write([]byte(completionBody("```json\n{\"sql\": \"SELECT 1\"}\n```")))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL + "/v1", APIKey: "key-1"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	raw, err := client.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.1)
	if err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	var parsed struct {
		SQL string `json:"sql"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if parsed.SQL != "SELECT 1" {
		t.Fatalf("sql = %q", parsed.SQL)
	}
}

func TestCompleteJSONRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "key-1"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.CompleteJSON(context.Background(), nil, 0.1); err == nil {
		t.Fatal("expected error for non-2xx status")
	} else if !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("error = %v", err)
	}
}

func TestCompleteJSONRejectsMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody("this is not json")))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "key-1"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.CompleteJSON(context.Background(), nil, 0.1); err == nil {
		t.Fatal("expected error for malformed JSON content")
	}
}

func TestNewOpenAIClientRequiresCredentials(t *testing.T) {
	if _, err := NewOpenAIClient(Config{BaseURL: "", APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(Config{BaseURL: "http://x", APIKey: ""}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestStripMarkdownFence(t *testing.T) {
	if got := stripMarkdownFence("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Fatalf("stripMarkdownFence() = %q", got)
	}
	if got := stripMarkdownFence(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("stripMarkdownFence() = %q", got)
	}
}
