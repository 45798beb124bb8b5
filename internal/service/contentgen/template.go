package contentgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelcast/reelcast/internal/models"
)

// TemplateGenerator produces deterministic content straight from the
// headlines, with no LLM involved. Used when no API key is configured and as
// a predictable generator in tests.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator { return &TemplateGenerator{} }

func (g *TemplateGenerator) Generate(_ context.Context, items []models.NewsItem) (*Content, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no news items to generate from", ErrProvider)
	}

	segments := make([]string, len(items))
	for i, item := range items {
		segments[i] = item.Title
	}

	first := items[0]
	caption := first.Title
	if len(caption) > 150 {
		caption = caption[:150]
	}

	script := first.Title
	if first.Summary != "" {
		script = script + ". " + first.Summary
	}
	if len(items) > 1 {
		script = fmt.Sprintf("Top %d stories you need to know right now.", len(items))
	}

	return &Content{
		Hook:     "Breaking: " + truncateWords(first.Title, 8),
		Script:   script,
		Caption:  caption,
		Hashtags: []string{"news", "breakingnews", "trending", "shorts"},
		Title:    truncateWords(first.Title, 12),
		Segments: segments,
	}, nil
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
