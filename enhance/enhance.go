// Package enhance rewrites a finished transcript with an LLM. Enhancement
// is optional; callers fall back to the unenhanced text on any failure.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"murmur/log"
	"murmur/observe"
)

var ErrEmptyInput = errors.New("empty input text")

type Enhancer interface {
	Enhance(ctx context.Context, text, language string) (string, error)
}

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You clean up dictated text. Fix grammar, punctuation and obvious speech recognition errors.
Keep the speaker's wording, language and meaning. Do not add content, answer questions or explain.
Keep line breaks and numbered lists. Reply with the corrected text only.`

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// LanguageHint is used when Enhance gets no language.
	LanguageHint string
}

// OpenAI talks to any OpenAI compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	hint   string
}

// NewOpenAI builds the enhancer. An empty APIKey falls back to
// OPENAI_API_KEY.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("enhance: OPENAI_API_KEY is not set")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		hint:   cfg.LanguageHint,
	}, nil
}

func (o *OpenAI) Enhance(ctx context.Context, text, language string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if language == "" {
		language = o.hint
	}
	prompt := systemPrompt
	if language != "" {
		prompt += "\nThe text is in language code: " + language + "."
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("chat completion: empty reply")
	}
	return out, nil
}

// Apply enhances text with e, bounded by timeout. Any failure, including a
// nil enhancer, returns text unchanged.
func Apply(ctx context.Context, e Enhancer, text, language string, timeout time.Duration, m *observe.Metrics) string {
	if e == nil || strings.TrimSpace(text) == "" {
		return text
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := e.Enhance(ctx, text, language)
	if m != nil {
		m.RecordEnhancement(ctx, err)
	}
	if err != nil {
		log.Warnf("enhance failed, keeping original text: %v", err)
		return text
	}
	if strings.TrimSpace(out) == "" {
		return text
	}
	log.Infof("enhance: %d -> %d chars in %dms", len(text), len(out), time.Since(start).Milliseconds())
	return out
}

// Func adapts a function to Enhancer.
type Func func(ctx context.Context, text, language string) (string, error)

func (f Func) Enhance(ctx context.Context, text, language string) (string, error) {
	return f(ctx, text, language)
}
