package models

import (
	"time"
)

// Post status values. Transitions move strictly forward
// (pending → media_ready → partially_published/published); failed is terminal
// and reachable from any non-terminal state.
const (
	PostStatusPending            = "pending"
	PostStatusMediaReady         = "media_ready"
	PostStatusPartiallyPublished = "partially_published"
	PostStatusPublished          = "published"
	PostStatusFailed             = "failed"
)

// Post is one generated video post. A standard post references a single
// NewsItem; a bulletin post references several.
type Post struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	Slot          string      `gorm:"size:100;index" json:"slot"`
	NewsItemIDs   StringArray `gorm:"type:text[]" json:"news_item_ids"`
	Bulletin      bool        `gorm:"default:false" json:"bulletin"`
	Script        string      `gorm:"type:text;not null" json:"script"`
	Caption       string      `gorm:"size:500" json:"caption"`
	Hashtags      StringArray `gorm:"type:text[]" json:"hashtags"`
	BackgroundRef string      `gorm:"size:1000" json:"background_ref"`
	AudioRef      string      `gorm:"size:1000" json:"audio_ref"`
	VideoPath     string      `gorm:"size:1000" json:"video_path"`
	Duration      float64     `json:"duration_seconds"`
	Status        string      `gorm:"size:50;default:'pending';index" json:"status"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	Attempts []PublishAttempt `gorm:"foreignKey:PostID" json:"attempts,omitempty"`
}

// StatusRank orders statuses for the monotonic-forward check. Failed is
// handled separately because it is reachable from anywhere.
func StatusRank(status string) int {
	switch status {
	case PostStatusPending:
		return 0
	case PostStatusMediaReady:
		return 1
	case PostStatusPartiallyPublished:
		return 2
	case PostStatusPublished:
		return 3
	default:
		return -1
	}
}
