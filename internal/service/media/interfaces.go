package media

import (
	"context"
	"errors"
)

// ErrRender covers encode/subprocess failures. The orchestrator retries a
// render exactly once with a fresh asset selection before giving up.
var ErrRender = errors.New("media render error")

// Job describes one render: the selected assets plus the text to burn in.
type Job struct {
	PostID     string
	Background string
	Audio      string
	Hook       string
	Segments   []string
}

// Artifact is a finished video file.
type Artifact struct {
	Path     string
	Duration float64
}

type Renderer interface {
	Render(ctx context.Context, job Job) (*Artifact, error)
}
