package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	client := New("test-api-key", "https://api.test.com", "test-model", 0.7, 1000)

	if client.apiKey != "test-api-key" {
		t.Errorf("Expected apiKey 'test-api-key', got '%s'", client.apiKey)
	}
	if client.baseURL != "https://api.test.com" {
		t.Errorf("Expected baseURL 'https://api.test.com', got '%s'", client.baseURL)
	}
	if client.model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", client.model)
	}
	if client.temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %f", client.temperature)
	}
	if client.maxTokens != 1000 {
		t.Errorf("Expected maxTokens 1000, got %d", client.maxTokens)
	}
}

func TestNew_TrimTrailingSlash(t *testing.T) {
	client := New("key", "https://api.test.com/", "model", 0.7, 1000)

	if client.baseURL != "https://api.test.com" {
		t.Errorf("Expected baseURL without trailing slash, got '%s'", client.baseURL)
	}
}

// textCompletion builds a plain-text API response body
func textCompletion(content string) chatResponse {
	return chatResponse{
		ID:      "test-id",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "test-model",
		Choices: []struct {
			Index        int     `json:"index"`
			Message      Message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		}{
			{
				Index:        0,
				Message:      Message{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
	}
}

func TestClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request
		if r.Method != "POST" {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header, got %s", r.Header.Get("Authorization"))
		}

		var reqBody chatRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if reqBody.Model != "test-model" {
			t.Errorf("Expected model 'test-model', got '%s'", reqBody.Model)
		}
		if len(reqBody.Messages) != 1 {
			t.Errorf("Expected 1 message, got %d", len(reqBody.Messages))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textCompletion("Hello! How can I help you?"))
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	resp, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "Hello! How can I help you?" {
		t.Errorf("Expected response content, got '%s'", resp.Content)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("Expected no tool calls, got %d", len(resp.ToolCalls))
	}
}

func TestClient_Chat_WithTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody chatRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if len(reqBody.Tools) != 1 {
			t.Errorf("Expected 1 tool in request, got %d", len(reqBody.Tools))
		}
		if reqBody.Tools[0].Function.Name != "read_text_file" {
			t.Errorf("Expected tool read_text_file, got %s", reqBody.Tools[0].Function.Name)
		}

		resp := textCompletion("")
		resp.Choices[0].Message.ToolCalls = []ToolCall{
			{
				ID:   "call-1",
				Type: "function",
				Function: FunctionCall{
					Name:      "read_text_file",
					Arguments: `{"filename":"notes.txt"}`,
				},
			},
		}
		resp.Choices[0].FinishReason = "tool_calls"

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	tools := []Tool{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        "read_text_file",
				Description: "read a file",
				Parameters:  map[string]interface{}{"type": "object"},
			},
		},
	}

	resp, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "read notes.txt"}}, tools)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Function.Name != "read_text_file" {
		t.Errorf("Expected read_text_file call, got %s", resp.ToolCalls[0].Function.Name)
	}
}

func TestClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err == nil {
		t.Fatal("Expected error for non-200 status")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", apiErr.StatusCode)
	}
}

func TestClient_Chat_ContentFiltered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := textCompletion("")
		resp.Choices[0].FinishReason = "content_filter"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if !errors.Is(err, ErrContentFiltered) {
		t.Errorf("Expected ErrContentFiltered, got %v", err)
	}
}

func TestClient_Chat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	if err == nil {
		t.Fatal("Expected error for empty choices")
	}
}

func TestClient_Chat_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textCompletion("too late"))
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, []Message{{Role: "user", Content: "Hello"}}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestChatWithRetry_Succeeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textCompletion("ok"))
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	resp, err := client.ChatWithRetry(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil, 3)
	if err != nil {
		t.Fatalf("ChatWithRetry failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Expected 'ok', got %q", resp.Content)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestChatWithRetry_DoesNotRetryContentFilter(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		resp := textCompletion("")
		resp.Choices[0].FinishReason = "content_filter"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model", 0.7, 1000)

	_, err := client.ChatWithRetry(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil, 3)
	if !errors.Is(err, ErrContentFiltered) {
		t.Errorf("Expected ErrContentFiltered, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Content filter should not be retried, got %d attempts", attempts)
	}
}
