package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/models"
)

// ErrEmptyPool means an asset pool directory has no eligible files.
var ErrEmptyPool = errors.New("asset pool is empty")

type rotationStore interface {
	loadRotationState(ctx context.Context, poolName string) (*models.RotationState, error)
	saveRotationState(ctx context.Context, state *models.RotationState) error
}

// Rotator selects assets from named pool directories without immediately
// repeating recent picks. The exclusion ring survives restarts because the
// state is persisted with each selection. Single writer: Select holds a mutex
// for the full load-pick-save cycle.
type Rotator struct {
	pools    map[string]string
	ringSize int
	store    rotationStore
	logger   *zap.Logger

	mu sync.Mutex
}

func NewRotator(pools map[string]string, ringSize int, store rotationStore, logger *zap.Logger) *Rotator {
	return &Rotator{
		pools:    pools,
		ringSize: ringSize,
		store:    store,
		logger:   logger,
	}
}

// Select picks one asset from the pool and returns its full path.
func (r *Rotator) Select(ctx context.Context, poolName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, ok := r.pools[poolName]
	if !ok {
		return "", fmt.Errorf("unknown asset pool %q", poolName)
	}

	files, err := listAssets(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: %s (%s)", ErrEmptyPool, poolName, dir)
	}

	state, err := r.store.loadRotationState(ctx, poolName)
	if err != nil {
		return "", err
	}

	chosen := pickExcludingRecent(files, state.Recent, state.LastAsset)

	state.LastAsset = chosen
	state.Recent = appendBounded(state.Recent, chosen, r.ringSize)
	if err := r.store.saveRotationState(ctx, state); err != nil {
		return "", err
	}

	r.logger.Debug("asset selected",
		zap.String("pool", poolName),
		zap.String("asset", chosen))

	return filepath.Join(dir, chosen), nil
}

// pickExcludingRecent draws uniformly from files minus the recent ring. When
// the ring covers too much of the pool, it degrades to excluding only the
// last pick; a pool of one always returns its sole member.
func pickExcludingRecent(files, recent []string, lastAsset string) string {
	if len(files) == 1 {
		return files[0]
	}

	candidates := exclude(files, recent)
	if len(candidates) == 0 {
		candidates = exclude(files, []string{lastAsset})
	}
	if len(candidates) == 0 {
		candidates = files
	}

	return candidates[rand.Intn(len(candidates))]
}

func exclude(files, excluded []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		skip := false
		for _, e := range excluded {
			if f == e {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

func appendBounded(ring []string, item string, size int) []string {
	ring = append(exclude(ring, []string{item}), item)
	if size > 0 && len(ring) > size {
		ring = ring[len(ring)-size:]
	}
	return ring
}

func listAssets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read asset pool %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}
