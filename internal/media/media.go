// Package media wraps the ffmpeg tools used to derive thumbnails and
// durations from video files.
package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ad-tracker/upload-scheduler-go/internal/config"
)

// Inspector extracts derived media data from a local file.
type Inspector interface {
	// Thumbnail writes a JPEG still of videoPath to outPath.
	Thumbnail(ctx context.Context, videoPath, outPath string) error

	// Duration returns the playing time of videoPath.
	Duration(ctx context.Context, videoPath string) (time.Duration, error)
}

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	width       int
}

// NewFFmpeg creates an FFmpeg inspector from config.
func NewFFmpeg(cfg config.MediaConfig) *FFmpeg {
	f := &FFmpeg{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		width:       cfg.ThumbnailWidth,
	}
	if f.ffmpegPath == "" {
		f.ffmpegPath = "ffmpeg"
	}
	if f.ffprobePath == "" {
		f.ffprobePath = "ffprobe"
	}
	if f.width <= 0 {
		f.width = 320
	}
	return f
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.ffprobePath)
	return err == nil
}

func (f *FFmpeg) Thumbnail(ctx context.Context, videoPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-v", "error",
		"-ss", "1",
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", f.width),
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (f *FFmpeg) Duration(ctx context.Context, videoPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseSeconds(string(out))
}

// ParseSeconds parses ffprobe's fractional seconds output.
func ParseSeconds(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("parse duration %q: out of range", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatDuration renders d as m:ss, or h:mm:ss from one hour up. Fractions
// of a second are rounded.
func FormatDuration(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
