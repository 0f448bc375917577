package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain json", `{"block_type": "heading"}`, "heading", false},
		{"fenced json", "```json\n{\"block_type\": \"caption\"}\n```", "caption", false},
		{"bare fence", "```\n{\"block_type\": \"list_item\"}\n```", "list_item", false},
		{"unknown type rejected", `{"block_type": "banner"}`, "", true},
		{"missing field rejected", `{"type": "heading"}`, "", true},
		{"not json", "probably a heading", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseClassification(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDisabledService(t *testing.T) {
	var s *Service
	if s.Enabled() {
		t.Fatal("nil service reports enabled")
	}

	got, err := s.CorrectText(context.Background(), "original")
	if err != nil || got != "original" {
		t.Errorf("CorrectText = %q, %v; want passthrough", got, err)
	}

	answer, err := s.ClassifyBlock(context.Background(), "some text")
	if err != nil || answer != "" {
		t.Errorf("ClassifyBlock = %q, %v; want no opinion", answer, err)
	}
}

func TestNewWithoutKey(t *testing.T) {
	if s := New(Config{}, nil); s.Enabled() {
		t.Error("service without API key should be disabled")
	}
}

// chatServer fakes the chat completions endpoint, always answering with
// the given message content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestCorrectText(t *testing.T) {
	srv := chatServer(t, "The horse ran across the field.")
	defer srv.Close()

	s := New(Config{APIKey: "test", BaseURL: srv.URL, RequestsPerMinute: 10000}, nil)
	got, err := s.CorrectText(context.Background(), "The h0rse ran acr0ss the fie1d.")
	if err != nil {
		t.Fatalf("CorrectText: %v", err)
	}
	if got != "The horse ran across the field." {
		t.Errorf("got %q", got)
	}
}

func TestClassifyBlock(t *testing.T) {
	t.Run("valid answer", func(t *testing.T) {
		srv := chatServer(t, `{"block_type": "caption"}`)
		defer srv.Close()

		s := New(Config{APIKey: "test", BaseURL: srv.URL, RequestsPerMinute: 10000}, nil)
		got, err := s.ClassifyBlock(context.Background(), "Figure 1: a horse")
		if err != nil {
			t.Fatalf("ClassifyBlock: %v", err)
		}
		if got != "caption" {
			t.Errorf("got %q, want caption", got)
		}
	})

	t.Run("garbage answer is no opinion", func(t *testing.T) {
		srv := chatServer(t, "I think this might be a caption?")
		defer srv.Close()

		s := New(Config{APIKey: "test", BaseURL: srv.URL, RequestsPerMinute: 10000}, nil)
		got, err := s.ClassifyBlock(context.Background(), "Figure 1: a horse")
		if err != nil {
			t.Fatalf("ClassifyBlock: %v", err)
		}
		if got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestRateLimitRejection(t *testing.T) {
	srv := chatServer(t, "unused")
	defer srv.Close()

	s := New(Config{APIKey: "test", BaseURL: srv.URL, RequestsPerMinute: 1}, nil)
	s.limiter.Backoff()

	if _, err := s.CorrectText(context.Background(), "text"); err != ErrRateLimited {
		t.Errorf("CorrectText error = %v, want ErrRateLimited", err)
	}
	if _, err := s.ClassifyBlock(context.Background(), "text"); err != ErrRateLimited {
		t.Errorf("ClassifyBlock error = %v, want ErrRateLimited", err)
	}
}
