package models

import (
	"time"
)

// NewsItem is a fetched news article. Rows are immutable after insert and are
// never deleted; they double as the audit trail of everything the pipeline has
// seen. Dedup key is (source, external_id).
type NewsItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"size:512;not null;uniqueIndex:idx_news_source_external,priority:2" json:"external_id"`
	Source      string    `gorm:"size:200;not null;uniqueIndex:idx_news_source_external,priority:1" json:"source"`
	Title       string    `gorm:"size:500;not null" json:"title"`
	Summary     string    `gorm:"type:text" json:"summary"`
	URL         string    `gorm:"size:1000" json:"url"`
	PublishedAt time.Time `gorm:"not null" json:"published_at"`
	FetchedAt   time.Time `gorm:"autoCreateTime" json:"fetched_at"`
	Score       float64   `gorm:"default:0" json:"score"`
	UsedInPost  bool      `gorm:"default:false;index" json:"used_in_post"`
	UsedAt      *time.Time `json:"used_at"`
}
