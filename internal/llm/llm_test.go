package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"diet-agent/internal/config"
)

func TestGroqClient(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Unexpected auth header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"llama-test","choices":[{"message":{"content":"{\"meals\":{}}"}}],"usage":{"prompt_tokens":120,"completion_tokens":80,"total_tokens":200}}`))
	}))
	defer srv.Close()

	c := newGroqClient("key", "llama-3.3-70b-versatile", srv.URL)
	resp, err := c.GenerateContent(context.Background(), "plan my day")
	if err != nil {
		t.Fatalf("GenerateContent failed: %v", err)
	}
	if resp.Content != `{"meals":{}}` {
		t.Errorf("Unexpected content %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 80 || resp.Usage.Model != "llama-test" {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
	if got["model"] != "llama-3.3-70b-versatile" {
		t.Errorf("Expected the configured model in the request, got %v", got["model"])
	}

	t.Run("ErrorStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()
		_, err := newGroqClient("key", "m", srv.URL).GenerateContent(context.Background(), "x")
		if err == nil || !strings.Contains(err.Error(), "status=429") {
			t.Errorf("Expected a status error, got %v", err)
		}
	})

	t.Run("NoChoices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()
		if _, err := newGroqClient("key", "m", srv.URL).GenerateContent(context.Background(), "x"); err == nil {
			t.Error("Expected an error for an empty response")
		}
	})
}

func TestOllamaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["format"] != "json" || req["stream"] != false {
			t.Errorf("Expected non-streaming JSON mode, got %v", req)
		}
		w.Write([]byte(`{"response":"{\"meals\":{}}","prompt_eval_count":30,"eval_count":12}`))
	}))
	defer srv.Close()

	resp, err := newOllamaClient(srv.URL, "llama3.1").GenerateContent(context.Background(), "plan")
	if err != nil {
		t.Fatalf("GenerateContent failed: %v", err)
	}
	if resp.Usage.TotalTokens != 42 || resp.Usage.Model != "llama3.1" {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := newOllamaClient(srv.URL, "m").GenerateContent(ctx, "x"); err == nil {
			t.Error("Expected an error for a cancelled context")
		}
	})
}

func TestGeminiClient_Live(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	ctx := context.Background()
	c, err := NewGeminiClient(ctx, &config.Config{GeminiAPIKey: key, GeminiModel: "gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}
	defer c.Close()

	resp, err := c.GenerateContent(ctx, `Return {"ok": true} as JSON.`)
	if err != nil {
		t.Fatalf("GenerateContent failed: %v", err)
	}
	if !strings.Contains(resp.Content, "ok") || resp.Usage.Model == "" {
		t.Errorf("Unexpected response %+v", resp)
	}
}
