package timelapse

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Job describes one encoder invocation over a directory of staged frames.
type Job struct {
	// FramePattern is a printf-style path such as /cache/run/frame_%04d.jpg.
	FramePattern    string
	InputFrameRate  int
	OutputFrameRate int
	Codec           string
	PixelFormat     string
	OutputPath      string
}

// Encoder turns staged frames into a single video file. A nil error is the
// only success signal.
type Encoder interface {
	Encode(ctx context.Context, job Job) error
}

// ExitError reports a non-zero return code from the encoder process.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("encoder exited with code %d", e.Code)
	}
	return fmt.Sprintf("encoder exited with code %d: %s", e.Code, e.Output)
}

// FFmpeg runs the ffmpeg command line tool.
type FFmpeg struct {
	Binary string
	log    zerolog.Logger
}

func NewFFmpeg(binary string, logger zerolog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		Binary: binary,
		log:    logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// Args builds the ffmpeg argument list for job.
func (f *FFmpeg) Args(job Job) []string {
	return []string{
		"-nostdin",
		"-framerate", strconv.Itoa(job.InputFrameRate),
		"-i", job.FramePattern,
		"-c:v", job.Codec,
		"-r", strconv.Itoa(job.OutputFrameRate),
		"-pix_fmt", job.PixelFormat,
		"-y", job.OutputPath,
	}
}

func (f *FFmpeg) Encode(ctx context.Context, job Job) error {
	args := f.Args(job)
	f.log.Debug().Strs("args", args).Msg("starting encoder")

	//nolint:gosec // G204: binary comes from local configuration
	cmd := exec.CommandContext(ctx, f.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return &ExitError{Code: exitErr.ExitCode(), Output: tail(string(output), 2048)}
		}
		return fmt.Errorf("run %s: %w", f.Binary, err)
	}
	return nil
}

// tail keeps at most the last n bytes of s without splitting a UTF-8
// sequence; ffmpeg puts the useful error at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
