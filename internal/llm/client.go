// Package llm connects pragma's Completer and Classifier interfaces to hosted
// language models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/tsawler/pragma"
	"github.com/tsawler/pragma/internal/config"
)

// New returns the Completer for cfg.Type. Gemini is reached through its
// OpenAI-compatible endpoint. SDK-level retries are disabled; callers
// decide how failures are retried.
func New(cfg config.ProviderConfig, httpClient *http.Client) (pragma.Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Type, config.ErrMissingAPIKey)
	}
	switch cfg.Type {
	case config.ProviderAnthropic, "":
		return NewAnthropic(cfg, httpClient), nil
	case config.ProviderOpenAI, config.ProviderGemini:
		return NewOpenAI(cfg, httpClient), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Type)
}

type anthropicClient struct {
	msgs        *anthropicsdk.MessageService
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropic returns a Completer backed by the Anthropic Messages API.
func NewAnthropic(cfg config.ProviderConfig, httpClient *http.Client) pragma.Completer {
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, anthropicopt.WithHTTPClient(httpClient))
	}
	client := anthropicsdk.NewClient(opts...)
	return &anthropicClient{
		msgs:        &client.Messages,
		model:       cfg.Model,
		maxTokens:   maxTokens(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropicsdk.MessageParam{{
			Role:    anthropicsdk.MessageParamRoleUser,
			Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(prompt)},
		}},
		Temperature: param.NewOpt(c.temperature),
	}
	if s := strings.TrimSpace(system); s != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: s}}
	}

	msg, err := c.msgs.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, ""), nil
}

type openAIClient struct {
	completions *openai.ChatCompletionService
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAI returns a Completer backed by an OpenAI-compatible chat
// completions endpoint.
func NewOpenAI(cfg config.ProviderConfig, httpClient *http.Client) pragma.Completer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &openAIClient{
		completions: &client.Chat.Completions,
		model:       cfg.Model,
		maxTokens:   maxTokens(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

var errNoChoices = errors.New("response has no choices")

func (c *openAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if s := strings.TrimSpace(system); s != "" {
		messages = append(messages, openai.SystemMessage(s))
	}
	messages = append(messages, openai.UserMessage(prompt))

	completion, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
		Messages:            messages,
		Temperature:         openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", errNoChoices)
	}
	return completion.Choices[0].Message.Content, nil
}

func maxTokens(n int) int {
	if n <= 0 {
		return config.DefaultMaxTokens
	}
	return n
}
