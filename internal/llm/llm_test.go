package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestClaudeClientGenerate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"[{\"sectionId\":"},{"type":"text","text":"\"a\"}]"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/", System: "be terse"})
	defer c.Close()

	reply, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != `[{"sectionId":"a"}]` {
		t.Errorf("expected text blocks joined, got %q", reply)
	}
	if got.System != "be terse" || got.Model != defaultClaudeModel {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello" || got.Messages[0].Role != "user" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestClaudeClientStatusErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error":{"type":"x","message":"nope"}}`))
			}))
			defer srv.Close()

			_, err := NewClaudeClient(Options{APIKey: "k", BaseURL: srv.URL}).Generate(context.Background(), "p")
			if err == nil {
				t.Fatal("expected error")
			}
			var re *RetryableError
			if errors.As(err, &re) != tc.wantRetryable {
				t.Errorf("retryable = %v, want %v (err: %v)", !tc.wantRetryable, tc.wantRetryable, err)
			}
			if tc.wantRetryable && re.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, re.StatusCode)
			}
		})
	}
}

func TestClaudeClientEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	if _, err := NewClaudeClient(Options{APIKey: "k", BaseURL: srv.URL}).Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestOpenAIClientGenerate(t *testing.T) {
	var roles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		for _, m := range req.Messages {
			roles = append(roles, m.Role)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[]"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL + "/v1", System: "sys", Model: "local-model"})
	reply, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "[]" {
		t.Errorf("unexpected reply %q", reply)
	}
	if len(roles) != 2 || roles[0] != "system" || roles[1] != "user" {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestOpenAIClientRateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL + "/v1"}).Generate(context.Background(), "p")
	var re *RetryableError
	if !errors.As(err, &re) || re.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected RetryableError(429), got %v", err)
	}
}

func TestNewReasoner(t *testing.T) {
	if _, err := NewReasoner(Options{Provider: ProviderAnthropic}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewReasoner(Options{Provider: "ollama", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	r, err := NewReasoner(Options{Provider: ProviderOpenAI, APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.(*OpenAIClient); !ok {
		t.Errorf("expected *OpenAIClient, got %T", r)
	}
	r, err = NewReasoner(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.(*ClaudeClient); !ok {
		t.Errorf("expected anthropic as default, got %T", r)
	}
}

func TestMeteredRecordsLatency(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	calls := 0
	inner := ReasonerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if prompt == "fail" {
			return "", errors.New("boom")
		}
		return "ok:" + prompt, nil
	})
	m := NewMetered(inner, stats, "test-model", discard)

	reply, err := m.Generate(context.Background(), "x")
	if err != nil || reply != "ok:x" {
		t.Fatalf("unexpected result %q, %v", reply, err)
	}
	if _, err := m.Generate(context.Background(), "fail"); err == nil {
		t.Fatal("expected error to pass through")
	}

	snap := m.Stats().Snapshot()
	if calls != 2 || snap.Count != 2 || snap.Errors != 1 {
		t.Errorf("calls=%d snapshot=%+v", calls, snap)
	}
}
