package media

import "math"

// AudioPlan says how to fit an audio asset to the target duration: loop it
// whole-number times if it is shorter, then trim the result to the target.
type AudioPlan struct {
	// Loops is the total number of playthroughs (1 = play once, no looping).
	Loops  int
	TrimTo float64
}

// PlanAudio fits an audio file of the given duration to target seconds.
// An 8s track against a 20s target loops 3 times and trims to 20s; a 35s
// track plays once and trims to 20s.
func PlanAudio(audioDuration, target float64) AudioPlan {
	if audioDuration <= 0 || target <= 0 {
		return AudioPlan{Loops: 1, TrimTo: target}
	}
	if audioDuration >= target {
		return AudioPlan{Loops: 1, TrimTo: target}
	}
	return AudioPlan{
		Loops:  int(math.Ceil(target / audioDuration)),
		TrimTo: target,
	}
}

// TextSegment is one on-screen line with its display window in seconds.
type TextSegment struct {
	Text  string
	Start float64
	End   float64
}

// PlanSegments splits the total duration evenly across the text segments, in
// order. The last segment absorbs any floating-point remainder so the windows
// tile the full duration exactly.
func PlanSegments(segments []string, total float64) []TextSegment {
	if len(segments) == 0 || total <= 0 {
		return nil
	}

	per := total / float64(len(segments))
	out := make([]TextSegment, len(segments))
	for i, text := range segments {
		out[i] = TextSegment{
			Text:  text,
			Start: float64(i) * per,
			End:   float64(i+1) * per,
		}
	}
	out[len(out)-1].End = total

	return out
}
