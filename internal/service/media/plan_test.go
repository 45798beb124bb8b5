package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAudioLoopsShortTrack(t *testing.T) {
	plan := PlanAudio(8, 20)
	assert.Equal(t, 3, plan.Loops)
	assert.Equal(t, 20.0, plan.TrimTo)
}

func TestPlanAudioTrimsLongTrack(t *testing.T) {
	plan := PlanAudio(35, 20)
	assert.Equal(t, 1, plan.Loops)
	assert.Equal(t, 20.0, plan.TrimTo)
}

func TestPlanAudioExactFit(t *testing.T) {
	plan := PlanAudio(20, 20)
	assert.Equal(t, 1, plan.Loops)
	assert.Equal(t, 20.0, plan.TrimTo)
}

func TestPlanAudioHandlesUnknownDuration(t *testing.T) {
	plan := PlanAudio(0, 20)
	assert.Equal(t, 1, plan.Loops)
	assert.Equal(t, 20.0, plan.TrimTo)
}

func TestPlanSegmentsEvenPacing(t *testing.T) {
	segs := PlanSegments([]string{"a", "b", "c", "d"}, 20)
	require.Len(t, segs, 4)

	for i, s := range segs {
		assert.InDelta(t, float64(i)*5, s.Start, 1e-9)
		assert.InDelta(t, float64(i+1)*5, s.End, 1e-9)
	}
}

func TestPlanSegmentsTileFullDuration(t *testing.T) {
	segs := PlanSegments([]string{"a", "b", "c"}, 20)
	require.Len(t, segs, 3)

	assert.Equal(t, 0.0, segs[0].Start)
	for i := 1; i < len(segs); i++ {
		assert.Equal(t, segs[i-1].End, segs[i].Start)
	}
	assert.Equal(t, 20.0, segs[len(segs)-1].End)
}

func TestPlanSegmentsEmpty(t *testing.T) {
	assert.Nil(t, PlanSegments(nil, 20))
	assert.Nil(t, PlanSegments([]string{"a"}, 0))
}
