// Package ai provides the optional AI enhancement service: text correction
// for low-confidence OCR output and block-type classification. Every call
// is best effort; rejection by the rate limiter or any upstream error means
// the caller keeps its heuristic result.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pagecast/pagecast/internal/ratelimit"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// ErrRateLimited is returned when the local token bucket rejects a call.
// Callers treat it like any other soft failure and skip the enhancement.
var ErrRateLimited = fmt.Errorf("ai: local rate limit exceeded")

// Config holds the AI service configuration.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string // optional, for tests
	RequestsPerMinute int
	MaxRetries        int
	Timeout           time.Duration
}

// Service calls a chat-completion model for correction and classification.
type Service struct {
	client  openai.Client
	model   string
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New creates the service. A missing API key yields a disabled service;
// construction never fails.
func New(cfg Config, logger *slog.Logger) *Service {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		logger:  logger.With("component", "ai"),
	}
}

// Enabled reports whether the service can be called. A nil *Service is a
// valid disabled service.
func (s *Service) Enabled() bool { return s != nil }

const correctionSystemPrompt = `You correct OCR transcription errors in book text.
Fix misrecognized characters, broken words and spacing. Preserve the meaning,
wording and reading level exactly. Return only the corrected text.`

// CorrectText asks the model to fix OCR artifacts in text. On any failure
// the original text is returned along with the error.
func (s *Service) CorrectText(ctx context.Context, text string) (string, error) {
	if !s.Enabled() {
		return text, nil
	}
	if !s.limiter.TryConsume() {
		return text, ErrRateLimited
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(correctionSystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return text, fmt.Errorf("correction request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return text, fmt.Errorf("correction request: empty response")
	}

	corrected := strings.TrimSpace(resp.Choices[0].Message.Content)
	if corrected == "" {
		return text, nil
	}
	return corrected, nil
}

const classifySystemPrompt = `You label blocks of text extracted from a book page.
Answer with JSON: {"block_type": "<type>"} where <type> is one of
heading, paragraph, list_item, caption, glossary_term, footnote, sidebar.
Answer with JSON only.`

// ClassifyBlock asks the model for the block type of text. An empty answer
// means "no opinion".
func (s *Service) ClassifyBlock(ctx context.Context, text string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if !s.limiter.TryConsume() {
		return "", ErrRateLimited
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("classification request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classification request: empty response")
	}

	blockType, err := parseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		s.logger.Debug("unusable classification answer", "error", err)
		return "", nil
	}
	return blockType, nil
}

// LimiterStats exposes the rate limiter state for status reporting.
func (s *Service) LimiterStats() ratelimit.Status {
	if s == nil {
		return ratelimit.Status{}
	}
	return s.limiter.Stats()
}
