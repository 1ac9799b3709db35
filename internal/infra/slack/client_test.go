package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestPostMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer xoxb-test" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "xoxb-test", "")
	if err := c.PostMessage(context.Background(), "C1", " hi there "); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if got["channel"] != "C1" || got["text"] != "hi there" {
		t.Errorf("Unexpected payload: %v", got)
	}
}

func TestPostMessage_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.Client(), srv.URL, "xoxb-test", "").PostMessage(context.Background(), "C1", "hi")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("Expected channel_not_found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPostMessage_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.Client(), srv.URL, "xoxb-test", "").PostMessage(context.Background(), "C1", "hi"); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestPostMessage_Validation(t *testing.T) {
	c := NewClient(nil, "", "xoxb-test", "")
	if err := c.PostMessage(context.Background(), "", "hi"); err == nil {
		t.Error("Expected error for empty channel")
	}
	if err := c.PostMessage(context.Background(), "C1", "  "); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestAuthTestAndSocketURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth.test":
			_, _ = w.Write([]byte(`{"ok":true,"team_id":"T1","user_id":"UBOT","bot_id":"B1"}`))
		case "/apps.connections.open":
			if r.Header.Get("Authorization") != "Bearer xapp-test" {
				_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"url":"wss://example.test/link"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "xoxb-test", "xapp-test")
	id, err := c.AuthTest(context.Background())
	if err != nil {
		t.Fatalf("AuthTest failed: %v", err)
	}
	if id.UserID != "UBOT" || id.BotID != "B1" || id.TeamID != "T1" {
		t.Errorf("Unexpected identity: %+v", id)
	}
	url, err := c.OpenSocketURL(context.Background())
	if err != nil {
		t.Fatalf("OpenSocketURL failed: %v", err)
	}
	if url != "wss://example.test/link" {
		t.Errorf("url = %q", url)
	}
}
