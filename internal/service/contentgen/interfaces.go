package contentgen

import (
	"context"
	"errors"

	"github.com/reelcast/reelcast/internal/models"
)

var (
	// ErrProvider covers quota, timeout and transport failures; retryable.
	ErrProvider = errors.New("content provider error")
	// ErrUnsafeContent is a provider-side content-policy rejection. Never
	// retried with the same input; the run aborts instead of trying to
	// "fix" rejected content automatically.
	ErrUnsafeContent = errors.New("content rejected by provider policy")
)

// Content is the generated package for one post: narration script, platform
// caption, hashtags and the on-screen text segments the renderer paces.
type Content struct {
	Hook     string   `json:"hook"`
	Script   string   `json:"script"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
	Title    string   `json:"title"`
	Segments []string `json:"segments"`
}

// Generator turns one news item (standard mode) or several (bulletin mode)
// into a Content package.
type Generator interface {
	Generate(ctx context.Context, items []models.NewsItem) (*Content, error)
}
