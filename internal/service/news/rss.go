package news

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/reelcast/reelcast/internal/models"
)

// itemsPerFeed bounds how much a single feed can contribute.
const itemsPerFeed = 10

// RSSProvider fetches from a fixed set of RSS/Atom feeds.
type RSSProvider struct {
	feedURLs []string
	parser   *gofeed.Parser
}

func NewRSSProvider(feedURLs []string) *RSSProvider {
	return &RSSProvider{
		feedURLs: feedURLs,
		parser:   gofeed.NewParser(),
	}
}

func (p *RSSProvider) Name() string { return "rss" }

// Fetch parses every configured feed. Individual feed failures are tolerated;
// the provider errors only when no feed could be parsed at all.
func (p *RSSProvider) Fetch(ctx context.Context, _ string, _ int) ([]models.NewsItem, error) {
	var items []models.NewsItem
	var lastErr error
	parsed := 0

	for _, feedURL := range p.feedURLs {
		feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			lastErr = err
			continue
		}
		parsed++

		source := feed.Title
		if source == "" {
			source = "RSS Feed"
		}

		for i, entry := range feed.Items {
			if i >= itemsPerFeed {
				break
			}
			if entry.Title == "" || entry.Link == "" {
				continue
			}

			published := time.Now().UTC()
			if entry.PublishedParsed != nil {
				published = *entry.PublishedParsed
			} else if entry.UpdatedParsed != nil {
				published = *entry.UpdatedParsed
			}

			items = append(items, models.NewsItem{
				ExternalID:  entry.Link,
				Source:      source,
				Title:       entry.Title,
				Summary:     entry.Description,
				URL:         entry.Link,
				PublishedAt: published,
			})
		}
	}

	if len(p.feedURLs) > 0 && parsed == 0 {
		return nil, fmt.Errorf("%w: rss: %v", ErrSourceUnavailable, lastErr)
	}

	return items, nil
}
