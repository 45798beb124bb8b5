package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelcast/reelcast/internal/models"
)

// ErrStoreWrite wraps persistence failures so the orchestrator can apply its
// high-cap finalize retry to them.
var ErrStoreWrite = errors.New("store write failed")

// RecordStore is the gorm-backed persistence layer for the pipeline. All
// multi-row updates that must be seen together go through a transaction.
type RecordStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecordStore(db *gorm.DB, logger *zap.Logger) *RecordStore {
	return &RecordStore{db: db, logger: logger}
}

// SaveNewsItems inserts fetched items, silently skipping rows that collide on
// (source, external_id). Existing rows are never modified.
func (s *RecordStore) SaveNewsItems(ctx context.Context, items []models.NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&items).Error
	if err != nil {
		return fmt.Errorf("%w: save news items: %v", ErrStoreWrite, err)
	}

	return nil
}

// MarkNewsUsed flags the items consumed by a post so later runs skip them.
func (s *RecordStore) MarkNewsUsed(ctx context.Context, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}

	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&models.NewsItem{}).
		Where("external_id IN ?", externalIDs).
		Updates(map[string]any{"used_in_post": true, "used_at": &now}).Error
	if err != nil {
		return fmt.Errorf("%w: mark news used: %v", ErrStoreWrite, err)
	}

	return nil
}

func (s *RecordStore) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("%w: create post: %v", ErrStoreWrite, err)
	}
	return nil
}

// UpdatePostStatus enforces the monotonic status order: a post may only move
// forward, except the jump to failed which is allowed from any non-terminal
// state and is itself terminal.
func (s *RecordStore) UpdatePostStatus(ctx context.Context, postID, newStatus string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&post, "id = ?", postID).Error; err != nil {
			return fmt.Errorf("%w: load post %s: %v", ErrStoreWrite, postID, err)
		}

		if err := validateTransition(post.Status, newStatus); err != nil {
			return err
		}

		if err := tx.Model(&post).Update("status", newStatus).Error; err != nil {
			return fmt.Errorf("%w: update post status: %v", ErrStoreWrite, err)
		}
		return nil
	})
}

func validateTransition(current, next string) error {
	if current == next {
		return nil
	}
	if current == models.PostStatusFailed {
		return fmt.Errorf("post status is terminal (failed), cannot move to %s", next)
	}
	if next == models.PostStatusFailed {
		return nil
	}
	if models.StatusRank(next) < 0 {
		return fmt.Errorf("unknown post status %q", next)
	}
	if models.StatusRank(next) <= models.StatusRank(current) {
		return fmt.Errorf("post status cannot move backwards: %s -> %s", current, next)
	}
	return nil
}

// AppendPublishAttempt writes one attempt row. Attempt numbers are assigned
// here from the current per-platform count; a recorded success freezes the
// (post, platform) pair.
func (s *RecordStore) AppendPublishAttempt(ctx context.Context, attempt *models.PublishAttempt) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendAttemptTx(tx, attempt)
	})
}

func appendAttemptTx(tx *gorm.DB, attempt *models.PublishAttempt) error {
	var prior []models.PublishAttempt
	if err := tx.Where("post_id = ? AND platform = ?", attempt.PostID, attempt.Platform).
		Order("attempt_number ASC").
		Find(&prior).Error; err != nil {
		return fmt.Errorf("%w: load prior attempts: %v", ErrStoreWrite, err)
	}

	for _, a := range prior {
		if a.Outcome == models.AttemptOutcomeSuccess {
			return fmt.Errorf("platform %s already succeeded for post %s", attempt.Platform, attempt.PostID)
		}
	}

	attempt.AttemptNumber = len(prior) + 1
	if err := tx.Create(attempt).Error; err != nil {
		return fmt.Errorf("%w: append publish attempt: %v", ErrStoreWrite, err)
	}
	return nil
}

// FinalizePost writes the post row and all publish attempts from the run in
// one transaction, so a crash can never leave attempts without their post or
// vice versa. The pipeline holds the post in memory until this point; a run
// that dies earlier leaves no record. If the row already exists the status
// change is validated against the monotonic order.
func (s *RecordStore) FinalizePost(ctx context.Context, post *models.Post, attempts []models.PublishAttempt) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&existing, "id = ?", post.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(post).Error; err != nil {
				return fmt.Errorf("%w: create post: %v", ErrStoreWrite, err)
			}
		case err != nil:
			return fmt.Errorf("%w: load post %s: %v", ErrStoreWrite, post.ID, err)
		default:
			if err := validateTransition(existing.Status, post.Status); err != nil {
				return err
			}
			if err := tx.Model(&existing).Update("status", post.Status).Error; err != nil {
				return fmt.Errorf("%w: finalize post status: %v", ErrStoreWrite, err)
			}
		}

		for i := range attempts {
			attempts[i].PostID = post.ID
			if err := appendAttemptTx(tx, &attempts[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindRecentPost returns the newest successfully published (fully or
// partially) post inside the window, or nil. The scheduler's restart debounce.
func (s *RecordStore) FindRecentPost(ctx context.Context, window time.Duration) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{models.PostStatusPublished, models.PostStatusPartiallyPublished}).
		Where("created_at > ?", time.Now().Add(-window)).
		Order("created_at DESC").
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent post: %w", err)
	}
	return &post, nil
}

func (s *RecordStore) RecordRun(ctx context.Context, run *models.RunLog) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		// A lost run log is not worth failing the run over.
		s.logger.Error("Failed to record run", zap.String("slot", run.Slot), zap.Error(err))
		return fmt.Errorf("%w: record run: %v", ErrStoreWrite, err)
	}
	return nil
}

// ListPosts returns recent posts with their attempts, newest first.
func (s *RecordStore) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Preload("Attempts").
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListAttempts returns every publish attempt for one post, ordered by
// platform then attempt number.
func (s *RecordStore) ListAttempts(ctx context.Context, postID string) ([]models.PublishAttempt, error) {
	var attempts []models.PublishAttempt
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("platform ASC, attempt_number ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// loadRotationState and saveRotationState back the asset rotator.

func (s *RecordStore) loadRotationState(ctx context.Context, poolName string) (*models.RotationState, error) {
	var state models.RotationState
	err := s.db.WithContext(ctx).Where("pool_name = ?", poolName).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.RotationState{PoolName: poolName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rotation state: %w", err)
	}
	return &state, nil
}

func (s *RecordStore) saveRotationState(ctx context.Context, state *models.RotationState) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pool_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_asset", "recent", "updated_at"}),
		}).
		Create(state).Error
	if err != nil {
		return fmt.Errorf("%w: save rotation state: %v", ErrStoreWrite, err)
	}
	return nil
}
