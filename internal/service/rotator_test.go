package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/models"
)

type memoryRotationStore struct {
	states map[string]*models.RotationState
}

func newMemoryRotationStore() *memoryRotationStore {
	return &memoryRotationStore{states: make(map[string]*models.RotationState)}
}

func (m *memoryRotationStore) loadRotationState(_ context.Context, poolName string) (*models.RotationState, error) {
	if s, ok := m.states[poolName]; ok {
		cp := *s
		cp.Recent = append([]string(nil), s.Recent...)
		return &cp, nil
	}
	return &models.RotationState{PoolName: poolName}, nil
}

func (m *memoryRotationStore) saveRotationState(_ context.Context, state *models.RotationState) error {
	m.states[state.PoolName] = state
	return nil
}

func makePool(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	return dir
}

func TestRotatorNeverRepeatsImmediately(t *testing.T) {
	dir := makePool(t, "a.mp3", "b.mp3", "c.mp3")
	r := NewRotator(map[string]string{"audio": dir}, 2, newMemoryRotationStore(), zap.NewNop())

	var last string
	for i := 0; i < 20; i++ {
		path, err := r.Select(context.Background(), "audio")
		require.NoError(t, err)
		assert.NotEqual(t, last, path, "selection %d repeated the previous asset", i)
		last = path
	}
}

func TestRotatorPoolOfOne(t *testing.T) {
	dir := makePool(t, "only.mp3")
	r := NewRotator(map[string]string{"audio": dir}, 3, newMemoryRotationStore(), zap.NewNop())

	for i := 0; i < 3; i++ {
		path, err := r.Select(context.Background(), "audio")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "only.mp3"), path)
	}
}

func TestRotatorPoolOfTwoAlternates(t *testing.T) {
	// Ring size exceeds the pool; exclusion degrades to last-asset-only, so
	// the two assets must strictly alternate.
	dir := makePool(t, "a.mp4", "b.mp4")
	r := NewRotator(map[string]string{"backgrounds": dir}, 3, newMemoryRotationStore(), zap.NewNop())

	first, err := r.Select(context.Background(), "backgrounds")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		next, err := r.Select(context.Background(), "backgrounds")
		require.NoError(t, err)
		assert.NotEqual(t, first, next)
		first = next
	}
}

func TestRotatorExclusionSurvivesRestart(t *testing.T) {
	dir := makePool(t, "a.mp3", "b.mp3")
	store := newMemoryRotationStore()

	r1 := NewRotator(map[string]string{"audio": dir}, 3, store, zap.NewNop())
	first, err := r1.Select(context.Background(), "audio")
	require.NoError(t, err)

	// Fresh rotator over the same store simulates a process restart.
	r2 := NewRotator(map[string]string{"audio": dir}, 3, store, zap.NewNop())
	second, err := r2.Select(context.Background(), "audio")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRotatorEmptyPool(t *testing.T) {
	dir := t.TempDir()
	r := NewRotator(map[string]string{"audio": dir}, 3, newMemoryRotationStore(), zap.NewNop())

	_, err := r.Select(context.Background(), "audio")
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestRotatorUnknownPool(t *testing.T) {
	r := NewRotator(map[string]string{}, 3, newMemoryRotationStore(), zap.NewNop())

	_, err := r.Select(context.Background(), "nope")
	assert.Error(t, err)
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, validateTransition(models.PostStatusPending, models.PostStatusMediaReady))
	assert.NoError(t, validateTransition(models.PostStatusMediaReady, models.PostStatusPublished))
	assert.NoError(t, validateTransition(models.PostStatusMediaReady, models.PostStatusPartiallyPublished))
	assert.NoError(t, validateTransition(models.PostStatusPending, models.PostStatusFailed))
	assert.NoError(t, validateTransition(models.PostStatusPublished, models.PostStatusPublished))

	assert.Error(t, validateTransition(models.PostStatusPublished, models.PostStatusPending))
	assert.Error(t, validateTransition(models.PostStatusMediaReady, models.PostStatusPending))
	assert.Error(t, validateTransition(models.PostStatusFailed, models.PostStatusPublished))
	assert.Error(t, validateTransition(models.PostStatusPending, "bogus"))
}
