package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
)

type completionRequest struct {
	Model       string   `json:"model"`
	User        string   `json:"user"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newCompletionServer(t *testing.T, content string, got *completionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		if content == "" {
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
			return
		}
		resp := map[string]any{
			"id":     "c1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var got completionRequest
	srv := newCompletionServer(t, "sounds fun", &got)

	persona := NewPersona(nil, "", conf.DefaultPromptsConfig(), "Tess", "UBOT", nil)
	g := NewOpenAIGenerator(conf.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 100}, persona)

	reply, err := g.Generate(context.Background(), repo.ReplyRequest{
		SessionID:    "C1",
		PriorHistory: "U1(human): hi",
		Current:      "anyone up for lunch?",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reply != "sounds fun" {
		t.Errorf("reply = %q", reply)
	}
	if got.Model != "gpt-4o-mini" || got.User != "C1" {
		t.Errorf("Unexpected request: %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("Expected explicit zero temperature, got %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("Unexpected messages: %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[0].Content, "You are Tess") {
		t.Errorf("System prompt missing persona: %q", got.Messages[0].Content)
	}
	user := got.Messages[1].Content
	if !strings.Contains(user, "U1(human): hi") || !strings.Contains(user, "anyone up for lunch?") {
		t.Errorf("User prompt missing history or message: %q", user)
	}
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := newCompletionServer(t, "", nil)
	persona := NewPersona(nil, "", nil, "Tess", "UBOT", nil)
	g := NewOpenAIGenerator(conf.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, persona)

	if _, err := g.Generate(context.Background(), repo.ReplyRequest{SessionID: "C1", Current: "hi"}); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestOpenAIGenerator_NonZeroTemperature(t *testing.T) {
	var got completionRequest
	srv := newCompletionServer(t, "ok", &got)
	persona := NewPersona(nil, "", nil, "Tess", "UBOT", nil)
	g := NewOpenAIGenerator(conf.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m", Temperature: 0.5}, persona)

	if _, err := g.Generate(context.Background(), repo.ReplyRequest{SessionID: "C1", Current: "hi"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got.Temperature == nil || *got.Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", got.Temperature)
	}
}
