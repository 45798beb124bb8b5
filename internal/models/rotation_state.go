package models

import (
	"time"
)

// RotationState tracks which asset a pool handed out last, plus a bounded
// ring of recent selections so small pools do not repeat rapidly. One row per
// pool, mutated only by the asset rotator.
type RotationState struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	PoolName  string      `gorm:"size:100;not null;uniqueIndex" json:"pool_name"`
	LastAsset string      `gorm:"size:1000" json:"last_asset"`
	Recent    StringArray `gorm:"type:text[]" json:"recent"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
