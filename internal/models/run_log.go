package models

import (
	"time"
)

// Run outcomes. "no_content" is a clean finish: the news stage produced zero
// candidates and no post was created.
const (
	RunOutcomePosted    = "posted"
	RunOutcomeNoContent = "no_content"
	RunOutcomeSkipped   = "skipped"
	RunOutcomeFailed    = "failed"
)

// RunLog records the outcome of every pipeline run, including empty and
// failed ones.
type RunLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slot       string    `gorm:"size:100;not null;index" json:"slot"`
	Outcome    string    `gorm:"size:50;not null" json:"outcome"`
	PostID     string    `gorm:"size:36" json:"post_id"`
	Error      string    `gorm:"type:text" json:"error"`
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
