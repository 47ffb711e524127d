package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/pragma"
	"github.com/tsawler/pragma/internal/config"
)

func anthropicServer(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.Contains(t, body, "system")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"content":     []map[string]any{{"type": "text", "text": reply}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		msgs, _ := body["messages"].([]any)
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-test",
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

func TestAnthropicComplete(t *testing.T) {
	srv := anthropicServer(t, `["LITERAL"]`, http.StatusOK)
	c := NewAnthropic(config.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test"}, srv.Client())

	got, err := c.Complete(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `["LITERAL"]`, got)
}

func TestAnthropicError(t *testing.T) {
	srv := anthropicServer(t, "", http.StatusInternalServerError)
	c := NewAnthropic(config.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test"}, srv.Client())

	_, err := c.Complete(context.Background(), "system", "prompt")
	assert.ErrorContains(t, err, "anthropic")
}

func TestOpenAIComplete(t *testing.T) {
	srv := openAIServer(t, `["IDIOMATIC"]`)
	c := NewOpenAI(config.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-test"}, srv.Client())

	got, err := c.Complete(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `["IDIOMATIC"]`, got)
}

func TestNew(t *testing.T) {
	_, err := New(config.ProviderConfig{Type: config.ProviderOpenAI}, nil)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)

	_, err = New(config.ProviderConfig{Type: "cohere", APIKey: "k"}, nil)
	assert.ErrorContains(t, err, "unknown provider")

	c, err := New(config.ProviderConfig{Type: config.ProviderGemini, APIKey: "k", Model: "gemini-2.5-flash"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &openAIClient{}, c)

	c, err = New(config.ProviderConfig{Type: config.ProviderAnthropic, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &anthropicClient{}, c)
}

func TestClassificationPrompt(t *testing.T) {
	p := ClassificationPrompt(pragma.ClassificationRequest{
		Lemma:     "break",
		Sentences: []string{"Break a leg!", "She broke the glass."},
	})
	assert.Contains(t, p, "Target verb: break")
	assert.Contains(t, p, "Allowed tags: LITERAL, IDIOMATIC")
	assert.Contains(t, p, "0. Break a leg!\n1. She broke the glass.\n")
	assert.Contains(t, p, "Return exactly 2 tags")
}

func TestClassifierThroughValidator(t *testing.T) {
	srv := openAIServer(t, "```json\n[{\"index\": 1, \"tag\": \"literal\"}, {\"index\": 0, \"tag\": \"idiomatic\"}]\n```")
	completer := NewOpenAI(config.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-test"}, srv.Client())

	v := pragma.NewBatchValidator(NewClassifier(completer), pragma.DefaultBatchConfig(), zerolog.Nop())
	res := v.TagChunk(context.Background(), "break", []string{"Break a leg!", "She broke the glass."})

	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"IDIOMATIC", "LITERAL"}, res.Tags)
}
