package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reelcast/reelcast/internal/models"
)

func TestScorePrefersFreshCredibleItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fresh := models.NewsItem{
		Source:      "BBC News",
		Title:       "Markets rally as central banks hold rates steady",
		Summary:     "A summary long enough to count as a real description of the story.",
		PublishedAt: now.Add(-1 * time.Hour),
	}
	stale := models.NewsItem{
		Source:      "BBC News",
		Title:       "Markets rally as central banks hold rates steady",
		Summary:     "A summary long enough to count as a real description of the story.",
		PublishedAt: now.Add(-11 * time.Hour),
	}
	obscure := fresh
	obscure.Source = "Some Blog"

	assert.Greater(t, Score(fresh, now), Score(stale, now))
	assert.Greater(t, Score(fresh, now), Score(obscure, now))
}

func TestRankIsStableOnTies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-2 * time.Hour)

	// Identical scoring inputs; only the external id differs.
	items := []models.NewsItem{
		{ExternalID: "a", Source: "Reuters", Title: "Tie headline with a reasonable length", PublishedAt: published},
		{ExternalID: "b", Source: "Reuters", Title: "Tie headline with a reasonable length", PublishedAt: published},
		{ExternalID: "c", Source: "Reuters", Title: "Tie headline with a reasonable length", PublishedAt: published},
	}

	ranked := Rank(items, now)
	assert.Equal(t, "a", ranked[0].ExternalID)
	assert.Equal(t, "b", ranked[1].ExternalID)
	assert.Equal(t, "c", ranked[2].ExternalID)
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	items := []models.NewsItem{
		{ExternalID: "old", Source: "Unknown", Title: "short", PublishedAt: now.Add(-11 * time.Hour)},
		{ExternalID: "best", Source: "Reuters", Title: "A headline of comfortable middle length here", Summary: "A summary long enough to count as a real description of it all.", PublishedAt: now.Add(-30 * time.Minute)},
	}

	ranked := Rank(items, now)
	assert.Equal(t, "best", ranked[0].ExternalID)
	assert.Equal(t, "old", ranked[1].ExternalID)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	items := []models.NewsItem{{ExternalID: "x", Score: 1.5, PublishedAt: now}}

	_ = Rank(items, now)
	assert.Equal(t, 1.5, items[0].Score)
}
