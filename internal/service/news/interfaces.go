package news

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/models"
)

var (
	// ErrSourceUnavailable means no provider could be reached at all.
	ErrSourceUnavailable = errors.New("news source unavailable")
	// ErrRateLimited means the upstream throttled us; the caller may retry.
	ErrRateLimited = errors.New("news source rate limited")
)

// Source is the capability the pipeline consumes: an ordered sequence of
// ranked candidates, best first.
type Source interface {
	FetchCandidates(ctx context.Context, limit int) ([]models.NewsItem, error)
}

// Provider is a single upstream (NewsAPI, GNews, an RSS feed set). Providers
// are queried in registration order; that order doubles as source priority
// for ranking ties.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string, limit int) ([]models.NewsItem, error)
}

// Aggregate merges multiple providers, dedups and ranks the result.
type Aggregate struct {
	providers []Provider
	query     string
	maxAge    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAggregate(providers []Provider, query string, maxAge time.Duration, logger *zap.Logger) *Aggregate {
	return &Aggregate{
		providers: providers,
		query:     query,
		maxAge:    maxAge,
		logger:    logger,
		now:       time.Now,
	}
}

// FetchCandidates queries every provider, dedups by (source, external id),
// drops items older than maxAge, and returns the top candidates by score.
// An empty result is not an error: absence of news is a valid outcome.
// ErrSourceUnavailable is returned only when every provider failed;
// ErrRateLimited wins over ErrSourceUnavailable so the caller retries.
func (a *Aggregate) FetchCandidates(ctx context.Context, limit int) ([]models.NewsItem, error) {
	var all []models.NewsItem
	var failed int
	rateLimited := false

	for _, p := range a.providers {
		items, err := p.Fetch(ctx, a.query, limit)
		if err != nil {
			failed++
			if errors.Is(err, ErrRateLimited) {
				rateLimited = true
			}
			a.logger.Warn("news provider failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		all = append(all, items...)
	}

	if len(a.providers) > 0 && failed == len(a.providers) {
		if rateLimited {
			return nil, ErrRateLimited
		}
		return nil, ErrSourceUnavailable
	}

	all = dedup(all)
	all = a.filterByAge(all)
	ranked := Rank(all, a.now())

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	a.logger.Info("news candidates assembled",
		zap.Int("total", len(all)),
		zap.Int("returned", len(ranked)))

	return ranked, nil
}

func dedup(items []models.NewsItem) []models.NewsItem {
	type key struct{ source, id string }
	seen := make(map[key]bool, len(items))
	out := items[:0]
	for _, item := range items {
		k := key{item.Source, item.ExternalID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return out
}

func (a *Aggregate) filterByAge(items []models.NewsItem) []models.NewsItem {
	if a.maxAge <= 0 {
		return items
	}
	cutoff := a.now().Add(-a.maxAge)
	out := items[:0]
	for _, item := range items {
		if item.PublishedAt.After(cutoff) {
			out = append(out, item)
		}
	}
	return out
}
