package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelcast/reelcast/internal/service/media"
)

var (
	// ErrAuthExpired means the platform credential needs operator attention;
	// retrying the same call cannot help.
	ErrAuthExpired = errors.New("platform credentials expired")
	// ErrTransient covers rate limits, 5xx responses and transport failures.
	// The only publish error worth retrying.
	ErrTransient = errors.New("transient platform error")
)

// PlatformRejectedError is a definitive rejection of this specific content
// (policy, format, duration). Never retried.
type PlatformRejectedError struct {
	Platform string
	Reason   string
}

func (e *PlatformRejectedError) Error() string {
	return fmt.Sprintf("%s rejected content: %s", e.Platform, e.Reason)
}

// Publisher uploads one rendered artifact to a single platform and returns
// the platform-side id of the created post.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, artifact *media.Artifact, caption string, hashtags []string) (string, error)
}
