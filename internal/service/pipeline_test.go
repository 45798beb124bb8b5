package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/models"
	"github.com/reelcast/reelcast/internal/service/contentgen"
	"github.com/reelcast/reelcast/internal/service/media"
	"github.com/reelcast/reelcast/internal/service/news"
	"github.com/reelcast/reelcast/internal/service/publisher"
	"github.com/reelcast/reelcast/pkg/retry"
)

// --- fakes ---

type fakeSource struct {
	items []models.NewsItem
	errs  []error
	calls int
}

func (f *fakeSource) FetchCandidates(_ context.Context, _ int) ([]models.NewsItem, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.items, nil
}

type fakeGenerator struct {
	content *contentgen.Content
	errs    []error
	calls   int
}

func (f *fakeGenerator) Generate(_ context.Context, _ []models.NewsItem) (*contentgen.Content, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.content, nil
}

type fakeRenderer struct {
	failures int
	calls    int
	jobs     []media.Job
}

func (f *fakeRenderer) Render(_ context.Context, job media.Job) (*media.Artifact, error) {
	f.calls++
	f.jobs = append(f.jobs, job)
	if f.calls <= f.failures {
		return nil, fmt.Errorf("%w: encode blew up", media.ErrRender)
	}
	return &media.Artifact{Path: "/tmp/out.mp4", Duration: 20}, nil
}

type fakePublisher struct {
	name  string
	errs  []error
	calls int
	mu    sync.Mutex
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(_ context.Context, _ *media.Artifact, _ string, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.name + "-remote-1", nil
}

type fakeAssets struct {
	selections int
}

func (f *fakeAssets) Select(_ context.Context, poolName string) (string, error) {
	f.selections++
	return fmt.Sprintf("/assets/%s/%d", poolName, f.selections), nil
}

type fakeStore struct {
	mu            sync.Mutex
	savedNews     []models.NewsItem
	usedIDs       []string
	finalized     *models.Post
	attempts      []models.PublishAttempt
	runs          []models.RunLog
	finalizeFails int
	finalizeCalls int
}

func (f *fakeStore) SaveNewsItems(_ context.Context, items []models.NewsItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedNews = append(f.savedNews, items...)
	return nil
}

func (f *fakeStore) MarkNewsUsed(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usedIDs = append(f.usedIDs, ids...)
	return nil
}

func (f *fakeStore) FinalizePost(_ context.Context, post *models.Post, attempts []models.PublishAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls++
	if f.finalizeCalls <= f.finalizeFails {
		return fmt.Errorf("%w: connection reset", ErrStoreWrite)
	}
	f.finalized = post
	f.attempts = attempts
	return nil
}

func (f *fakeStore) RecordRun(_ context.Context, run *models.RunLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

// --- helpers ---

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
	}
}

func testContent() *contentgen.Content {
	return &contentgen.Content{
		Hook:     "Big news",
		Script:   "Here is what happened today.",
		Caption:  "What happened today",
		Hashtags: []string{"news"},
		Segments: []string{"one", "two"},
	}
}

func testItems(n int) []models.NewsItem {
	items := make([]models.NewsItem, n)
	for i := range items {
		items[i] = models.NewsItem{
			ExternalID: fmt.Sprintf("ext-%d", i),
			Source:     "Reuters",
			Title:      fmt.Sprintf("Headline %d", i),
		}
	}
	return items
}

func newTestPipeline(src *fakeSource, gen *fakeGenerator, rend *fakeRenderer, pubs []publisher.Publisher, store *fakeStore, opts PipelineOptions) (*Pipeline, *fakeAssets) {
	assets := &fakeAssets{}
	if opts.StageRetry.MaxAttempts == 0 {
		opts.StageRetry = fastPolicy(3)
	}
	if opts.PublishRetry.MaxAttempts == 0 {
		opts.PublishRetry = fastPolicy(3)
	}
	if opts.FinalizeRetry.MaxAttempts == 0 {
		opts.FinalizeRetry = fastPolicy(5)
	}
	return NewPipeline(src, gen, rend, pubs, assets, store, nil, opts, zap.NewNop()), assets
}

// --- tests ---

func TestPipelineHappyPath(t *testing.T) {
	store := &fakeStore{}
	pubs := []publisher.Publisher{
		&fakePublisher{name: "youtube"},
		&fakePublisher{name: "instagram"},
	}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(3)},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		pubs, store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	assert.NoError(t, result.Err)
	require.NotNil(t, store.finalized)
	assert.Equal(t, models.PostStatusPublished, store.finalized.Status)
	assert.Len(t, store.attempts, 2)
	assert.Equal(t, []string{"ext-0"}, store.usedIDs)
	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunOutcomePosted, store.runs[0].Outcome)
}

func TestPipelineNoContentIsCleanFinish(t *testing.T) {
	store := &fakeStore{}
	p, _ := newTestPipeline(
		&fakeSource{items: nil},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		nil, store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomeNoContent, result.Outcome)
	assert.NoError(t, result.Err)
	assert.Nil(t, store.finalized)
	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunOutcomeNoContent, store.runs[0].Outcome)
}

func TestPipelineBulletinTakesTopN(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{content: testContent()}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(10)},
		gen,
		&fakeRenderer{},
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{BulletinSize: 5})

	result := p.Run(context.Background(), "bulletin")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	require.NotNil(t, store.finalized)
	assert.True(t, store.finalized.Bulletin)
	assert.Len(t, store.finalized.NewsItemIDs, 5)
	assert.Len(t, store.usedIDs, 5)
}

func TestPipelineUnsafeContentNotRetried(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{
		content: testContent(),
		errs:    []error{fmt.Errorf("%w: policy", contentgen.ErrUnsafeContent)},
	}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		gen,
		&fakeRenderer{},
		nil, store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, contentgen.ErrUnsafeContent)
	assert.Equal(t, 1, gen.calls)
	assert.Nil(t, store.finalized)
}

func TestPipelineProviderErrorRetried(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{
		content: testContent(),
		errs:    []error{fmt.Errorf("%w: 503", contentgen.ErrProvider), nil},
	}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		gen,
		&fakeRenderer{},
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	assert.Equal(t, 2, gen.calls)
}

func TestPipelineRenderRetriedOnceWithFreshAssets(t *testing.T) {
	store := &fakeStore{}
	rend := &fakeRenderer{failures: 1}
	p, assets := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		rend,
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	assert.Equal(t, 2, rend.calls)
	// Two selections (background + audio) per render attempt.
	assert.Equal(t, 4, assets.selections)
	require.Len(t, rend.jobs, 2)
	assert.NotEqual(t, rend.jobs[0].Background, rend.jobs[1].Background)
}

func TestPipelineRenderFailsTwiceRecordsFailedPost(t *testing.T) {
	store := &fakeStore{}
	rend := &fakeRenderer{failures: 2}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		rend,
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, media.ErrRender)
	assert.Equal(t, 2, rend.calls)
	require.NotNil(t, store.finalized)
	assert.Equal(t, models.PostStatusFailed, store.finalized.Status)
	assert.Empty(t, store.attempts)
}

func TestPipelinePartialPublish(t *testing.T) {
	store := &fakeStore{}
	good := &fakePublisher{name: "youtube"}
	bad := &fakePublisher{
		name: "instagram",
		errs: []error{&publisher.PlatformRejectedError{Platform: "instagram", Reason: "too long"}},
	}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		[]publisher.Publisher{good, bad},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	require.NotNil(t, store.finalized)
	assert.Equal(t, models.PostStatusPartiallyPublished, store.finalized.Status)

	// A definitive rejection gets no second try; the successful platform is
	// never touched again either.
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
	assert.Len(t, store.attempts, 2)
}

func TestPipelineTransientPublishRetried(t *testing.T) {
	store := &fakeStore{}
	flaky := &fakePublisher{
		name: "facebook",
		errs: []error{fmt.Errorf("%w: 503", publisher.ErrTransient), nil},
	}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		[]publisher.Publisher{flaky},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	assert.Equal(t, 2, flaky.calls)
	require.Len(t, store.attempts, 2)
	assert.Equal(t, models.AttemptOutcomeError, store.attempts[0].Outcome)
	assert.Equal(t, "transient", store.attempts[0].ErrorKind)
	assert.Equal(t, models.AttemptOutcomeSuccess, store.attempts[1].Outcome)
	assert.Equal(t, models.PostStatusPublished, store.finalized.Status)
}

func TestPipelineAllPlatformsFail(t *testing.T) {
	store := &fakeStore{}
	dead := &fakePublisher{
		name: "youtube",
		errs: []error{fmt.Errorf("%w: 401", publisher.ErrAuthExpired)},
	}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		[]publisher.Publisher{dead},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomeFailed, result.Outcome)
	assert.Equal(t, 1, dead.calls)
	require.NotNil(t, store.finalized)
	// The rendered artifact and the attempt trail are still persisted.
	assert.Equal(t, models.PostStatusFailed, store.finalized.Status)
	assert.NotEmpty(t, store.finalized.VideoPath)
	require.Len(t, store.attempts, 1)
	assert.Equal(t, "auth_expired", store.attempts[0].ErrorKind)
}

func TestPipelineFinalizeRetriesStoreWrites(t *testing.T) {
	store := &fakeStore{finalizeFails: 2}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	assert.Equal(t, 3, store.finalizeCalls)
	require.NotNil(t, store.finalized)
}

func TestPipelineFinalizeExhaustionIsFatalForTheRun(t *testing.T) {
	store := &fakeStore{finalizeFails: 100}
	p, _ := newTestPipeline(
		&fakeSource{items: testItems(1)},
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{FinalizeRetry: fastPolicy(4)})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrStoreWrite)
	assert.Equal(t, 4, store.finalizeCalls)
}

func TestRollupStatusTruthTable(t *testing.T) {
	pubs := []publisher.Publisher{
		&fakePublisher{name: "a"},
		&fakePublisher{name: "b"},
	}
	success := func(platform string, n int) models.PublishAttempt {
		return models.PublishAttempt{Platform: platform, AttemptNumber: n, Outcome: models.AttemptOutcomeSuccess}
	}
	failure := func(platform string, n int) models.PublishAttempt {
		return models.PublishAttempt{Platform: platform, AttemptNumber: n, Outcome: models.AttemptOutcomeError}
	}

	assert.Equal(t, models.PostStatusPublished,
		rollupStatus(models.PostStatusMediaReady, pubs, []models.PublishAttempt{success("a", 1), success("b", 1)}))
	assert.Equal(t, models.PostStatusPartiallyPublished,
		rollupStatus(models.PostStatusMediaReady, pubs, []models.PublishAttempt{success("a", 1), failure("b", 1)}))
	assert.Equal(t, models.PostStatusFailed,
		rollupStatus(models.PostStatusMediaReady, pubs, []models.PublishAttempt{failure("a", 1), failure("b", 1)}))

	// The latest attempt per platform decides: an early failure followed by
	// a successful retry counts as success.
	assert.Equal(t, models.PostStatusPublished,
		rollupStatus(models.PostStatusMediaReady, pubs, []models.PublishAttempt{failure("a", 1), success("a", 2), success("b", 1)}))

	// No platforms enabled leaves the post at media_ready.
	assert.Equal(t, models.PostStatusMediaReady,
		rollupStatus(models.PostStatusMediaReady, nil, nil))
}

func TestPipelineRateLimitedFetchRetried(t *testing.T) {
	store := &fakeStore{}
	src := &fakeSource{
		items: testItems(1),
		errs:  []error{fmt.Errorf("%w: newsapi", news.ErrRateLimited), nil},
	}
	p, _ := newTestPipeline(
		src,
		&fakeGenerator{content: testContent()},
		&fakeRenderer{},
		[]publisher.Publisher{&fakePublisher{name: "youtube"}},
		store, PipelineOptions{})

	result := p.Run(context.Background(), "morning")

	assert.Equal(t, models.RunOutcomePosted, result.Outcome)
	assert.Equal(t, 2, src.calls)
}
