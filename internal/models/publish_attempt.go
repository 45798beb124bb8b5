package models

import (
	"time"
)

// PublishAttempt outcomes.
const (
	AttemptOutcomeSuccess = "success"
	AttemptOutcomeError   = "error"
)

// PublishAttempt is one try at uploading a post to one platform. Attempts for
// a (post, platform) pair are ordered by AttemptNumber; a success row, once
// written, is never overwritten and the platform is never retried again for
// that post.
type PublishAttempt struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PostID        string    `gorm:"size:36;not null;index:idx_attempt_post_platform,priority:1" json:"post_id"`
	Platform      string    `gorm:"size:50;not null;index:idx_attempt_post_platform,priority:2" json:"platform"`
	AttemptNumber int       `gorm:"not null" json:"attempt_number"`
	Outcome       string    `gorm:"size:20;not null" json:"outcome"`
	ErrorKind     string    `gorm:"size:50" json:"error_kind"`
	ErrorMessage  string    `gorm:"type:text" json:"error_message"`
	RemoteID      string    `gorm:"size:255" json:"remote_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
