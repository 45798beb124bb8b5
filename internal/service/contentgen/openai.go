package contentgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/models"
)

const systemPrompt = "You are an expert social media content creator. Always respond with valid JSON only."

// OpenAIGenerator calls any OpenAI-compatible chat completion endpoint
// (OpenAI, Groq, Together, OpenRouter — selected by base URL).
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func NewOpenAIGenerator(opts OpenAIOptions, logger *zap.Logger) *OpenAIGenerator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, items []models.NewsItem) (*Content, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no news items to generate from", ErrProvider)
	}

	prompt := buildPrompt(items)

	apiCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})

	g.logger.Info("llm call finished",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("success", err == nil))

	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrProvider)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, fmt.Errorf("%w: completion stopped by content filter", ErrUnsafeContent)
	}

	content, err := ParseContent(choice.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	return content, nil
}

// classifyAPIError maps transport/API failures onto the stage taxonomy.
// Policy rejections (400 with a content-policy code) must surface as
// ErrUnsafeContent so the orchestrator does not retry them.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 400 {
			if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "content") {
				return fmt.Errorf("%w: %v", ErrUnsafeContent, apiErr)
			}
			if strings.Contains(strings.ToLower(apiErr.Message), "content management policy") ||
				strings.Contains(strings.ToLower(apiErr.Message), "safety") {
				return fmt.Errorf("%w: %v", ErrUnsafeContent, apiErr)
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

func buildPrompt(items []models.NewsItem) string {
	if len(items) == 1 {
		return singlePrompt(items[0])
	}
	return bulletinPrompt(items)
}

func singlePrompt(item models.NewsItem) string {
	return fmt.Sprintf(`Given this news article, create engaging short-form vertical video content:

Title: %s
Description: %s
Source URL: %s

Respond with a JSON object:
{
  "hook": "a compelling 1-2 line hook (max 100 characters)",
  "script": "a complete narration script for a vertical video, conversational and TTS-friendly",
  "segments": ["short on-screen text line", "..."],
  "caption": "a platform-agnostic caption (100-150 characters)",
  "hashtags": ["tag1", "tag2", "..."],
  "title": "a catchy video title (max 100 characters)"
}

Requirements:
- Segments are 1-2 lines each, max 10 words, in narration order.
- Include 10-15 relevant hashtags without the # prefix.
- Keep the tone professional but engaging.
- Avoid content that might violate platform policies.

Return ONLY valid JSON, no additional text.`, item.Title, item.Summary, item.URL)
}

func bulletinPrompt(items []models.NewsItem) string {
	var headlines strings.Builder
	for i, item := range items {
		fmt.Fprintf(&headlines, "%d. %s\n", i+1, item.Title)
	}

	return fmt.Sprintf(`Rewrite these %d news headlines into catchy video hooks (MAX 8 words each).
Make them punchy, dramatic, and clear. No hashtags. No emojis.

Current headlines:
%s
Respond with a JSON object:
{
  "hook": "one umbrella hook for the bulletin (max 60 characters)",
  "script": "a one-sentence intro for the bulletin",
  "segments": ["rewritten headline 1", "rewritten headline 2", "..."],
  "caption": "a caption summarizing the bulletin (100-150 characters)",
  "hashtags": ["tag1", "tag2", "..."],
  "title": "a catchy bulletin title (max 100 characters)"
}

The segments array must contain exactly %d rewritten headlines in the original order.
Return ONLY valid JSON, no additional text.`, len(items), headlines.String(), len(items))
}

// ParseContent decodes the model's JSON reply, tolerating markdown code
// fences around the object.
func ParseContent(raw string) (*Content, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	// Some models wrap the JSON in prose despite instructions; cut to the
	// outermost object.
	if start := strings.Index(raw, "{"); start > 0 {
		raw = raw[start:]
	}
	if end := strings.LastIndex(raw, "}"); end >= 0 && end < len(raw)-1 {
		raw = raw[:end+1]
	}

	var content Content
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("decode content JSON: %w", err)
	}
	if content.Script == "" && len(content.Segments) == 0 {
		return nil, fmt.Errorf("content JSON missing script and segments")
	}

	return &content, nil
}
