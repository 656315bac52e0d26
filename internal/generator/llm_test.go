package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expertassist/internal/config"
	"expertassist/pkg/logger"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, content string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(raw, gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAISummarizer(t *testing.T) {
	var body map[string]any
	srv := openAIServer(t, "  Summary of Call Regarding: visas  ", &body)
	s := NewOpenAISummarizer("sk-test", "gpt-4o-mini", openaiopt.WithBaseURL(srv.URL+"/v1/"), openaiopt.WithMaxRetries(0))

	out, err := s.Summarize(context.Background(), "[AI Assistant]: hi", "visas")
	require.NoError(t, err)
	assert.Equal(t, "Summary of Call Regarding: visas", out)
	assert.Equal(t, "gpt-4o-mini", body["model"])
}

func TestOpenAISummarizer_EmptyOutputIsError(t *testing.T) {
	srv := openAIServer(t, "   ", nil)
	s := NewOpenAISummarizer("sk-test", "gpt-4o-mini", openaiopt.WithBaseURL(srv.URL+"/v1/"), openaiopt.WithMaxRetries(0))

	_, err := s.Summarize(context.Background(), "t", "g")
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func anthropicServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-3-5-haiku-latest",
			"content":       []map[string]any{{"type": "text", "text": text}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicSummarizer(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, "Summary of Call Regarding: taxes")
	s := NewAnthropicSummarizer("key", "claude-3-5-haiku-latest", anthropicopt.WithBaseURL(srv.URL), anthropicopt.WithMaxRetries(0))

	out, err := s.Summarize(context.Background(), "transcript", "taxes")
	require.NoError(t, err)
	assert.Equal(t, "Summary of Call Regarding: taxes", out)
}

func TestAnthropicSummarizer_Errors(t *testing.T) {
	empty := anthropicServer(t, http.StatusOK, "")
	s := NewAnthropicSummarizer("key", "m", anthropicopt.WithBaseURL(empty.URL), anthropicopt.WithMaxRetries(0))
	_, err := s.Summarize(context.Background(), "t", "g")
	assert.ErrorIs(t, err, ErrEmptyOutput)

	bad := anthropicServer(t, http.StatusBadRequest, "")
	s = NewAnthropicSummarizer("key", "m", anthropicopt.WithBaseURL(bad.URL), anthropicopt.WithMaxRetries(0))
	_, err = s.Summarize(context.Background(), "t", "g")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyOutput)
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string, string) (string, error) {
	return "", errors.New("upstream down")
}

func TestFallbackSummarizer(t *testing.T) {
	f := FallbackSummarizer{Primary: failingSummarizer{}, Secondary: TemplateSummarizer{}, Log: logger.Nop()}
	out, err := f.Summarize(context.Background(), "t", "goal")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary of Call Regarding: goal")

	_, err = FallbackSummarizer{Primary: failingSummarizer{}}.Summarize(context.Background(), "t", "g")
	assert.Error(t, err)
}

func TestNewSummarizer_Selection(t *testing.T) {
	_, ok := NewSummarizer(config.SummarizerConfig{Provider: "template"}, logger.Nop()).(TemplateSummarizer)
	assert.True(t, ok)

	_, ok = NewSummarizer(config.SummarizerConfig{Provider: "openai"}, logger.Nop()).(TemplateSummarizer)
	assert.True(t, ok, "missing key should degrade to template")

	fb, ok := NewSummarizer(config.SummarizerConfig{Provider: "anthropic", AnthropicAPIKey: "k", AnthropicModel: "m"}, logger.Nop()).(FallbackSummarizer)
	require.True(t, ok)
	_, ok = fb.Primary.(*AnthropicSummarizer)
	assert.True(t, ok)
}
