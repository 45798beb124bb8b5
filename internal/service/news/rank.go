package news

import (
	"sort"
	"strings"
	"time"

	"github.com/reelcast/reelcast/internal/models"
)

// recencyHorizon bounds the recency bonus: an item this old scores zero on
// the age axis.
const recencyHorizon = 12 * time.Hour

var credibleSources = []string{"BBC", "CNN", "REUTERS", "THE GUARDIAN", "ASSOCIATED PRESS", "AP"}

// Score combines recency with the provider-supplied relevance signal and a
// couple of quality heuristics carried over from editorial tuning.
func Score(item models.NewsItem, now time.Time) float64 {
	score := item.Score // provider-supplied relevance signal

	age := now.Sub(item.PublishedAt)
	if age >= 0 && age <= recencyHorizon {
		score += 10.0 * (1 - float64(age)/float64(recencyHorizon))
	}

	upper := strings.ToUpper(item.Source)
	for _, cred := range credibleSources {
		if strings.Contains(upper, cred) {
			score += 5.0
			break
		}
	}

	if n := len(item.Title); n >= 30 && n <= 100 {
		score += 2.0
	}
	if len(item.Summary) > 50 {
		score += 2.0
	}

	return score
}

// Rank sorts items by score, best first. The sort is stable, so items with
// equal scores keep their fetch order; providers are queried in priority
// order, which makes fetch order the deterministic tie-break.
func Rank(items []models.NewsItem, now time.Time) []models.NewsItem {
	scored := make([]models.NewsItem, len(items))
	copy(scored, items)
	for i := range scored {
		scored[i].Score = Score(scored[i], now)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}
