package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/models"
	"github.com/reelcast/reelcast/internal/service/contentgen"
	"github.com/reelcast/reelcast/internal/service/media"
	"github.com/reelcast/reelcast/internal/service/news"
	"github.com/reelcast/reelcast/internal/service/publisher"
	"github.com/reelcast/reelcast/pkg/retry"
)

// Asset pool names the pipeline draws from.
const (
	PoolBackgrounds = "backgrounds"
	PoolAudio       = "audio"
)

// RunStore is the slice of RecordStore the pipeline needs. Narrowed so the
// orchestrator tests can run against an in-memory fake.
type RunStore interface {
	SaveNewsItems(ctx context.Context, items []models.NewsItem) error
	MarkNewsUsed(ctx context.Context, externalIDs []string) error
	FinalizePost(ctx context.Context, post *models.Post, attempts []models.PublishAttempt) error
	RecordRun(ctx context.Context, run *models.RunLog) error
}

// AssetSelector is the rotator as the pipeline sees it.
type AssetSelector interface {
	Select(ctx context.Context, poolName string) (string, error)
}

// RunMetrics receives run and publish outcomes. Implemented by the
// prometheus collector; nil disables metric recording.
type RunMetrics interface {
	RunCompleted(outcome string)
	PublishAttempted(platform string, success bool)
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Slot       string
	Outcome    string
	PostID     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type PipelineOptions struct {
	FetchLimit     int
	BulletinSize   int
	TargetDuration float64
	StageRetry     retry.Policy
	PublishRetry   retry.Policy
	FinalizeRetry  retry.Policy
}

// Pipeline runs one slot end to end: fetch news, generate content, render the
// video, publish everywhere, persist the outcome. Stage results stay in
// memory until the finalize transaction.
type Pipeline struct {
	source     news.Source
	generator  contentgen.Generator
	renderer   media.Renderer
	publishers []publisher.Publisher
	assets     AssetSelector
	store      RunStore
	metrics    RunMetrics
	opts       PipelineOptions
	logger     *zap.Logger
}

func NewPipeline(
	source news.Source,
	generator contentgen.Generator,
	renderer media.Renderer,
	publishers []publisher.Publisher,
	assets AssetSelector,
	store RunStore,
	metrics RunMetrics,
	opts PipelineOptions,
	logger *zap.Logger,
) *Pipeline {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 20
	}
	if opts.TargetDuration <= 0 {
		opts.TargetDuration = 20
	}
	return &Pipeline{
		source:     source,
		generator:  generator,
		renderer:   renderer,
		publishers: publishers,
		assets:     assets,
		store:      store,
		metrics:    metrics,
		opts:       opts,
		logger:     logger,
	}
}

// Run executes the full pipeline for one slot. The returned result is also
// persisted as a RunLog row; the error inside it is informational, a failed
// run must not take the process down.
func (p *Pipeline) Run(ctx context.Context, slot string) RunResult {
	result := RunResult{Slot: slot, StartedAt: time.Now()}
	log := p.logger.With(zap.String("slot", slot))

	log.Info("pipeline run starting")

	outcome, postID, err := p.run(ctx, slot, log)
	result.Outcome = outcome
	result.PostID = postID
	result.Err = err
	result.FinishedAt = time.Now()

	p.record(ctx, result, log)
	return result
}

func (p *Pipeline) run(ctx context.Context, slot string, log *zap.Logger) (outcome, postID string, err error) {
	// Fetching
	candidates, err := p.fetch(ctx, log)
	if err != nil {
		return models.RunOutcomeFailed, "", fmt.Errorf("fetching: %w", err)
	}
	if len(candidates) == 0 {
		log.Info("no news candidates, finishing clean")
		return models.RunOutcomeNoContent, "", nil
	}

	if err := p.store.SaveNewsItems(ctx, candidates); err != nil {
		// Audit rows; not worth failing the run.
		log.Warn("failed to save news items", zap.Error(err))
	}

	chosen := candidates
	bulletin := p.opts.BulletinSize > 1
	if bulletin {
		if len(chosen) > p.opts.BulletinSize {
			chosen = chosen[:p.opts.BulletinSize]
		}
	} else {
		chosen = chosen[:1]
	}

	// Generating
	content, err := p.generate(ctx, chosen, log)
	if err != nil {
		return models.RunOutcomeFailed, "", fmt.Errorf("generating: %w", err)
	}

	post := &models.Post{
		ID:          uuid.NewString(),
		Slot:        slot,
		NewsItemIDs: externalIDs(chosen),
		Bulletin:    bulletin,
		Script:      content.Script,
		Caption:     content.Caption,
		Hashtags:    models.StringArray(content.Hashtags),
		Duration:    p.opts.TargetDuration,
		Status:      models.PostStatusPending,
	}

	// Rendering
	artifact, err := p.render(ctx, post, content, log)
	if err != nil {
		post.Status = models.PostStatusFailed
		if finErr := p.finalize(ctx, post, nil, log); finErr != nil {
			log.Error("failed to record failed post", zap.Error(finErr))
		}
		return models.RunOutcomeFailed, post.ID, fmt.Errorf("rendering: %w", err)
	}
	post.VideoPath = artifact.Path
	post.Duration = artifact.Duration
	post.Status = models.PostStatusMediaReady

	// Publishing
	attempts := p.publishAll(ctx, artifact, content, log)
	post.Status = rollupStatus(post.Status, p.publishers, attempts)

	// Finalizing
	if err := p.finalize(ctx, post, attempts, log); err != nil {
		return models.RunOutcomeFailed, post.ID, fmt.Errorf("finalizing: %w", err)
	}

	if err := p.store.MarkNewsUsed(ctx, externalIDs(chosen)); err != nil {
		log.Warn("failed to mark news items used", zap.Error(err))
	}

	if post.Status == models.PostStatusFailed {
		return models.RunOutcomeFailed, post.ID, errors.New("all platforms failed to publish")
	}

	log.Info("pipeline run finished",
		zap.String("post_id", post.ID),
		zap.String("status", post.Status))
	return models.RunOutcomePosted, post.ID, nil
}

func (p *Pipeline) fetch(ctx context.Context, log *zap.Logger) ([]models.NewsItem, error) {
	var candidates []models.NewsItem
	err := retry.Do(ctx, p.opts.StageRetry,
		func(err error) bool { return errors.Is(err, news.ErrRateLimited) },
		func() error {
			var err error
			candidates, err = p.source.FetchCandidates(ctx, p.opts.FetchLimit)
			return err
		})
	if err != nil {
		return nil, err
	}

	log.Info("news candidates fetched", zap.Int("count", len(candidates)))
	return candidates, nil
}

func (p *Pipeline) generate(ctx context.Context, items []models.NewsItem, log *zap.Logger) (*contentgen.Content, error) {
	var content *contentgen.Content
	err := retry.Do(ctx, p.opts.StageRetry,
		func(err error) bool { return errors.Is(err, contentgen.ErrProvider) },
		func() error {
			var err error
			content, err = p.generator.Generate(ctx, items)
			return err
		})
	if err != nil {
		return nil, err
	}

	log.Info("content generated",
		zap.Int("segments", len(content.Segments)),
		zap.Int("hashtags", len(content.Hashtags)))
	return content, nil
}

// render selects assets and renders. A render failure gets exactly one more
// chance with a fresh asset selection; a corrupt asset should not burn the
// whole run.
func (p *Pipeline) render(ctx context.Context, post *models.Post, content *contentgen.Content, log *zap.Logger) (*media.Artifact, error) {
	for attempt := 1; ; attempt++ {
		background, err := p.assets.Select(ctx, PoolBackgrounds)
		if err != nil {
			return nil, err
		}
		audio, err := p.assets.Select(ctx, PoolAudio)
		if err != nil {
			return nil, err
		}
		post.BackgroundRef = background
		post.AudioRef = audio

		artifact, err := p.renderer.Render(ctx, media.Job{
			PostID:     post.ID,
			Background: background,
			Audio:      audio,
			Hook:       content.Hook,
			Segments:   content.Segments,
		})
		if err == nil {
			return artifact, nil
		}
		if attempt >= 2 || !errors.Is(err, media.ErrRender) {
			return nil, err
		}

		log.Warn("render failed, retrying with fresh assets", zap.Error(err))
	}
}

// publishAll dispatches one goroutine per platform and joins before rollup.
// Every try becomes an attempt row; only transient errors are retried.
func (p *Pipeline) publishAll(ctx context.Context, artifact *media.Artifact, content *contentgen.Content, log *zap.Logger) []models.PublishAttempt {
	var (
		mu       sync.Mutex
		attempts []models.PublishAttempt
		wg       sync.WaitGroup
	)

	for _, pub := range p.publishers {
		wg.Add(1)
		go func(pub publisher.Publisher) {
			defer wg.Done()

			tries := 0
			err := retry.Do(ctx, p.opts.PublishRetry,
				func(err error) bool { return errors.Is(err, publisher.ErrTransient) },
				func() error {
					tries++
					remoteID, err := pub.Publish(ctx, artifact, content.Caption, content.Hashtags)

					attempt := models.PublishAttempt{
						Platform:      pub.Name(),
						AttemptNumber: tries,
					}
					if err != nil {
						attempt.Outcome = models.AttemptOutcomeError
						attempt.ErrorKind = publishErrorKind(err)
						attempt.ErrorMessage = err.Error()
					} else {
						attempt.Outcome = models.AttemptOutcomeSuccess
						attempt.RemoteID = remoteID
					}

					mu.Lock()
					attempts = append(attempts, attempt)
					mu.Unlock()

					if p.metrics != nil {
						p.metrics.PublishAttempted(pub.Name(), err == nil)
					}
					return err
				})

			if err != nil {
				log.Error("publish failed",
					zap.String("platform", pub.Name()),
					zap.Int("tries", tries),
					zap.Error(err))
			} else {
				log.Info("publish succeeded",
					zap.String("platform", pub.Name()),
					zap.Int("tries", tries))
			}
		}(pub)
	}

	wg.Wait()
	return attempts
}

func (p *Pipeline) finalize(ctx context.Context, post *models.Post, attempts []models.PublishAttempt, log *zap.Logger) error {
	err := retry.Do(ctx, p.opts.FinalizeRetry,
		func(err error) bool { return errors.Is(err, ErrStoreWrite) },
		func() error {
			return p.store.FinalizePost(ctx, post, attempts)
		})
	if err != nil {
		// A rendered, possibly published post with no record: the one
		// failure mode worth being loud about.
		log.Error("finalize failed after all retries",
			zap.String("post_id", post.ID),
			zap.Error(err))
		return err
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, result RunResult, log *zap.Logger) {
	run := &models.RunLog{
		Slot:       result.Slot,
		Outcome:    result.Outcome,
		PostID:     result.PostID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if result.Err != nil {
		run.Error = result.Err.Error()
	}

	if err := p.store.RecordRun(ctx, run); err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
	if p.metrics != nil {
		p.metrics.RunCompleted(result.Outcome)
	}

	log.Info("run recorded",
		zap.String("outcome", result.Outcome),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
		zap.Error(result.Err))
}

// rollupStatus derives the post status from the latest attempt per platform:
// published iff every platform succeeded, failed iff none did, otherwise
// partially published. With no platforms enabled the post stays media_ready.
func rollupStatus(current string, publishers []publisher.Publisher, attempts []models.PublishAttempt) string {
	if len(publishers) == 0 {
		return current
	}

	latest := make(map[string]models.PublishAttempt, len(publishers))
	for _, a := range attempts {
		if prev, ok := latest[a.Platform]; !ok || a.AttemptNumber > prev.AttemptNumber {
			latest[a.Platform] = a
		}
	}

	succeeded := 0
	for _, pub := range publishers {
		if a, ok := latest[pub.Name()]; ok && a.Outcome == models.AttemptOutcomeSuccess {
			succeeded++
		}
	}

	switch succeeded {
	case len(publishers):
		return models.PostStatusPublished
	case 0:
		return models.PostStatusFailed
	default:
		return models.PostStatusPartiallyPublished
	}
}

func publishErrorKind(err error) string {
	var rejected *publisher.PlatformRejectedError
	switch {
	case errors.Is(err, publisher.ErrAuthExpired):
		return "auth_expired"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, publisher.ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func externalIDs(items []models.NewsItem) models.StringArray {
	ids := make(models.StringArray, len(items))
	for i, item := range items {
		ids[i] = item.ExternalID
	}
	return ids
}
