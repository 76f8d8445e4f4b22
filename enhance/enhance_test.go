package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply string, status int, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEnhance(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, "  Hello, world.  ", http.StatusOK, &req)
	e, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", LanguageHint: "en"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	out, err := e.Enhance(context.Background(), "hello world", "")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if out != "Hello, world." {
		t.Errorf("Enhance = %q", out)
	}
	if req.Model != defaultModel {
		t.Errorf("model = %q, want %q", req.Model, defaultModel)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "hello world" {
		t.Fatalf("messages = %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "language code: en") {
		t.Errorf("system prompt missing language hint: %q", req.Messages[0].Content)
	}
}

func TestOpenAIEmptyInput(t *testing.T) {
	e, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if _, err := e.Enhance(context.Background(), "   ", "en"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAI(Config{}); err == nil {
		t.Fatal("NewOpenAI without key succeeded")
	}
}

func TestApplyFallsBack(t *testing.T) {
	srv := chatServer(t, "", http.StatusTooManyRequests, nil)
	e, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	tests := []struct {
		name string
		e    Enhancer
		want string
	}{
		{"nil enhancer", nil, "Original text."},
		{"http error", e, "Original text."},
		{"enhancer error", Func(func(context.Context, string, string) (string, error) {
			return "", errors.New("boom")
		}), "Original text."},
		{"success", Func(func(_ context.Context, text, _ string) (string, error) {
			return strings.ToUpper(text), nil
		}), "ORIGINAL TEXT."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Apply(context.Background(), tt.e, "Original text.", "en", time.Second, nil); got != tt.want {
				t.Errorf("Apply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, text, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if got := Apply(context.Background(), slow, "keep me", "", 10*time.Millisecond, nil); got != "keep me" {
		t.Errorf("Apply = %q, want original text", got)
	}
}
