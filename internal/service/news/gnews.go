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

const gnewsEndpoint = "https://gnews.io/api/v4/search"

// GNewsProvider fetches from the GNews API.
type GNewsProvider struct {
	apiKey string
	client *http.Client
}

func NewGNewsProvider(apiKey string) *GNewsProvider {
	return &GNewsProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *GNewsProvider) Name() string { return "gnews" }

func (p *GNewsProvider) Fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error) {
	params := url.Values{
		"q":      {query},
		"token":  {p.apiKey},
		"lang":   {"en"},
		"max":    {fmt.Sprintf("%d", limit)},
		"sortby": {"popularity"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gnewsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: gnews: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		// GNews signals exhausted quota with 403.
		return nil, fmt.Errorf("%w: gnews", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gnews returned %d", ErrSourceUnavailable, resp.StatusCode)
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
		return nil, fmt.Errorf("%w: gnews decode: %v", ErrSourceUnavailable, err)
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
