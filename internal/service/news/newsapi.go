package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/reelcast/reelcast/internal/models"
)

const newsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPIProvider fetches from NewsAPI.org.
type NewsAPIProvider struct {
	apiKey string
	client *http.Client
}

func NewNewsAPIProvider(apiKey string) *NewsAPIProvider {
	return &NewsAPIProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *NewsAPIProvider) Name() string { return "newsapi" }

func (p *NewsAPIProvider) Fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	params := url.Values{
		"q":        {query},
		"sortBy":   {"popularity"},
		"pageSize": {fmt.Sprintf("%d", limit)},
		"language": {"en"},
		"apiKey":   {p.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, newsAPIEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: newsapi: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: newsapi", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: newsapi returned %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var payload struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: newsapi decode: %v", ErrSourceUnavailable, err)
	}

	var items []models.NewsItem
	for _, a := range payload.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		items = append(items, models.NewsItem{
			ExternalID:  a.URL,
			Source:      orUnknown(a.Source.Name),
			Title:       a.Title,
			Summary:     a.Description,
			URL:         a.URL,
			PublishedAt: parseTimestamp(a.PublishedAt),
		})
	}

	return items, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// parseTimestamp tries the formats the upstream APIs are known to emit and
// falls back to now rather than dropping the item.
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		time.RFC1123,
		time.RFC1123Z,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
