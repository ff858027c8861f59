package openai

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

	domain "github.com/payflowhq/invoice-audit/internal/domain/ai"
)

func newTestClient(t *testing.T, baseURL, model string) *Client {
	t.Helper()
	return NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL + "/v1",
		Model:       model,
		Temperature: 0.1,
		MaxTokens:   100,
		Timeout:     5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestCompleteReturnsAssistantContent(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(`[{"invoice_id":"a.pdf"}]`))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, "gpt-4o-mini")
	content, err := c.Complete(context.Background(), "system rules", "user payload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != `[{"invoice_id":"a.pdf"}]` {
		t.Fatalf("unexpected content %q", content)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Messages[0].Content != "system rules" || got.Messages[1].Content != "user payload" {
		t.Fatalf("prompt contents not forwarded: %+v", got.Messages)
	}
}

func TestCompleteTokenFieldPerModel(t *testing.T) {
	cases := []struct {
		model     string
		wantField string
		skipField string
	}{
		{"gpt-4o-mini", "max_tokens", "max_completion_tokens"},
		{"o3-mini", "max_completion_tokens", "max_tokens"},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			var body map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode request: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(completionResponse("[]"))
			}))
			t.Cleanup(srv.Close)

			c := newTestClient(t, srv.URL, tc.model)
			if _, err := c.Complete(context.Background(), "s", "u"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := body[tc.wantField]; !ok {
				t.Fatalf("request missing %q: %v", tc.wantField, body)
			}
			if _, ok := body[tc.skipField]; ok {
				t.Fatalf("request must not carry %q for %s: %v", tc.skipField, tc.model, body)
			}
		})
	}
}

func TestCompleteMapsQuotaErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit reached", "type": "requests"},
		})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, "gpt-4o-mini")
	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestCompleteMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "upstream exploded", "type": "server_error"},
		})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, "gpt-4o-mini")
	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("server error must not map to quota: %v", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "cmpl-1", "object": "chat.completion", "choices": []any{}})
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, "gpt-4o-mini")
	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
