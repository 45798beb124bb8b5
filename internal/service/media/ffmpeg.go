package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/pkg/util"
)

// FFmpegRenderer assembles the vertical video with ffmpeg subprocesses: a
// background (still image or looping clip), the audio asset fitted to the
// target duration, and the text segments burned in with drawtext.
type FFmpegRenderer struct {
	ffmpegPath  string
	ffprobePath string
	outputDir   string
	target      float64
	width       int
	height      int
	fps         int
	logger      *zap.Logger
}

type FFmpegOptions struct {
	FFmpegPath     string
	FFprobePath    string
	OutputDir      string
	TargetDuration float64
	Width          int
	Height         int
	FPS            int
}

func NewFFmpegRenderer(opts FFmpegOptions, logger *zap.Logger) *FFmpegRenderer {
	return &FFmpegRenderer{
		ffmpegPath:  opts.FFmpegPath,
		ffprobePath: opts.FFprobePath,
		outputDir:   opts.OutputDir,
		target:      opts.TargetDuration,
		width:       opts.Width,
		height:      opts.Height,
		fps:         opts.FPS,
		logger:      logger,
	}
}

func (r *FFmpegRenderer) Render(ctx context.Context, job Job) (*Artifact, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrRender, err)
	}

	audioDuration, err := r.probeDuration(ctx, job.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: probe audio: %v", ErrRender, err)
	}
	plan := PlanAudio(audioDuration, r.target)
	segments := PlanSegments(job.Segments, r.target)

	outPath := filepath.Join(r.outputDir,
		fmt.Sprintf("%s_%s.mp4", util.SanitizeFilename(job.PostID), time.Now().Format("20060102_150405")))

	args := r.buildArgs(job, plan, segments, outPath)

	r.logger.Info("rendering video",
		zap.String("post_id", job.PostID),
		zap.String("background", filepath.Base(job.Background)),
		zap.String("audio", filepath.Base(job.Audio)),
		zap.Int("audio_loops", plan.Loops),
		zap.Int("segments", len(segments)))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrRender, err, tail(stderr.String(), 400))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("%w: output file missing or empty", ErrRender)
	}

	return &Artifact{Path: outPath, Duration: r.target}, nil
}

func (r *FFmpegRenderer) buildArgs(job Job, plan AudioPlan, segments []TextSegment, outPath string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	if isImage(job.Background) {
		args = append(args, "-loop", "1", "-i", job.Background)
	} else {
		// Loop the clip indefinitely; -t below trims the output.
		args = append(args, "-stream_loop", "-1", "-i", job.Background)
	}

	if plan.Loops > 1 {
		args = append(args, "-stream_loop", strconv.Itoa(plan.Loops-1))
	}
	args = append(args, "-i", job.Audio)

	args = append(args,
		"-t", formatSeconds(plan.TrimTo),
		"-vf", r.videoFilter(job.Hook, segments),
		"-r", strconv.Itoa(r.fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	)

	return args
}

// videoFilter scales/crops to the vertical frame and layers the hook at the
// top with the timed segment text centered below it.
func (r *FFmpegRenderer) videoFilter(hook string, segments []TextSegment) string {
	var filters []string

	filters = append(filters, fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		r.width, r.height, r.width, r.height))

	if hook != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=white:borderw=3:bordercolor=black:x=(w-text_w)/2:y=h*0.12",
			escapeDrawText(hook), r.height/24))
	}

	for _, seg := range segments {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=white:borderw=3:bordercolor=black:x=(w-text_w)/2:y=(h-text_h)/2:enable='between(t,%s,%s)'",
			escapeDrawText(seg.Text), r.height/20, formatSeconds(seg.Start), formatSeconds(seg.End)))
	}

	return strings.Join(filters, ",")
}

func (r *FFmpegRenderer) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

// escapeDrawText escapes the characters drawtext treats specially inside a
// single-quoted text value.
func escapeDrawText(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(s)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
