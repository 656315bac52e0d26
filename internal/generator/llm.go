package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"expertassist/internal/config"
	"expertassist/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
)

const summaryInstructions = `You summarize phone calls placed by an assistant to a professional on a client's behalf.
Write plain text with three parts: a first line "Summary of Call Regarding: <goal>", a "Key Information Gathered:" list, and an "Action Items:" list.
End with one sentence on when and how the expert prefers follow-up. Do not invent facts absent from the transcript.`

const summaryMaxTokens = 600

func summaryPrompt(transcript, goal string) string {
	return fmt.Sprintf("Goal of the call: %s\n\nTranscript:\n%s", strings.TrimSpace(goal), transcript)
}

// OpenAISummarizer summarizes with the OpenAI chat completions API.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

func NewOpenAISummarizer(apiKey, model string, opts ...openaiopt.RequestOption) *OpenAISummarizer {
	opts = append([]openaiopt.RequestOption{openaiopt.WithAPIKey(apiKey)}, opts...)
	return &OpenAISummarizer{client: openai.NewClient(opts...), model: model}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript, goal string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summaryInstructions),
			openai.UserMessage(summaryPrompt(transcript, goal)),
		},
		MaxTokens:   openai.Int(summaryMaxTokens),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("openai summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyOutput
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// AnthropicSummarizer summarizes with the Anthropic messages API.
type AnthropicSummarizer struct {
	client anthropic.Client
	model  string
}

func NewAnthropicSummarizer(apiKey, model string, opts ...anthropicopt.RequestOption) *AnthropicSummarizer {
	opts = append([]anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}, opts...)
	return &AnthropicSummarizer{client: anthropic.NewClient(opts...), model: model}
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, transcript, goal string) (string, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: summaryMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: summaryInstructions}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(summaryPrompt(transcript, goal))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic summarize: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// NewSummarizer picks the configured summarizer. Hosted providers fall back
// to the template on failure, and are skipped entirely without an API key.
func NewSummarizer(cfg config.SummarizerConfig, log *slog.Logger) Summarizer {
	log = logger.Or(log)
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			return FallbackSummarizer{Primary: NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel), Secondary: TemplateSummarizer{}, Log: log}
		}
		log.Warn("OPENAI_API_KEY missing; using template summarizer")
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			return FallbackSummarizer{Primary: NewAnthropicSummarizer(cfg.AnthropicAPIKey, cfg.AnthropicModel), Secondary: TemplateSummarizer{}, Log: log}
		}
		log.Warn("ANTHROPIC_API_KEY missing; using template summarizer")
	}
	return TemplateSummarizer{}
}

// FallbackSummarizer retries with a secondary summarizer when the primary
// fails, so a hosted model outage does not fail completed calls.
type FallbackSummarizer struct {
	Primary   Summarizer
	Secondary Summarizer
	Log       *slog.Logger
}

func (f FallbackSummarizer) Summarize(ctx context.Context, transcript, goal string) (string, error) {
	out, err := f.Primary.Summarize(ctx, transcript, goal)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return out, err
	}
	logger.Or(f.Log).Warn("primary summarizer failed; using fallback", "err", err)
	return f.Secondary.Summarize(ctx, transcript, goal)
}
