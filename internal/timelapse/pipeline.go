// Package timelapse compiles an ordered photo list into a single video.
//
// A run stages every photo into a fresh scratch directory under sequential,
// zero-padded frame names (JPEG or PNG, one format per run), hands the directory to an Encoder, and removes the
// scratch directory whatever the outcome. Progress is reported as an integer
// percentage: staging covers 0-50, and 100 is reported only on success.
//
// Callers must not start a second run while one is in flight; the pipeline
// does not guard against it.
package timelapse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/filesystem"
	"github.com/dentaltracker/dentaltracker/internal/media/sniffer"
)

const (
	// FramePattern is the printf pattern JPEG frames are staged under.
	FramePattern = framePrefix + ".jpg"

	framePrefix  = "frame_%04d"
	stagingShare = 50
)

var (
	ErrNoPhotos          = errors.New("no photos to encode")
	ErrUnsupportedImage  = errors.New("photo is not a JPEG or PNG image")
	ErrMixedImageTypes   = errors.New("photos mix image formats")
	ErrMissingOutputFile = errors.New("encoder reported success but wrote no output")
)

// Formats ffmpeg's image2 demuxer reads, by staged extension.
var frameExts = map[sniffer.MediaType]string{
	sniffer.TypeJPEG: ".jpg",
	sniffer.TypePNG:  ".png",
}

// FrameName returns the staged JPEG file name for frame index i.
func FrameName(i int) string {
	return frameName(i, ".jpg")
}

func frameName(i int, ext string) string {
	return fmt.Sprintf(framePrefix, i) + ext
}

// OutputName returns the video file name for a run started at t.
func OutputName(t time.Time) string {
	return "timelapse_" + t.Format(filesystem.CaptureTimeLayout) + ".mp4"
}

type Options struct {
	// ScratchRoot holds one staging directory per run.
	ScratchRoot string
	// OutputDir receives finished videos.
	OutputDir       string
	InputFrameRate  int
	OutputFrameRate int
	Codec           string
	PixelFormat     string

	Now      func() time.Time
	NewRunID func() string
}

func (o Options) withDefaults() Options {
	if o.InputFrameRate <= 0 {
		o.InputFrameRate = 2
	}
	if o.OutputFrameRate <= 0 {
		o.OutputFrameRate = 30
	}
	if o.Codec == "" {
		o.Codec = "libx264"
	}
	if o.PixelFormat == "" {
		o.PixelFormat = "yuv420p"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewRunID == nil {
		o.NewRunID = uuid.NewString
	}
	return o
}

type Pipeline struct {
	opts    Options
	encoder Encoder
	log     zerolog.Logger
}

func NewPipeline(opts Options, encoder Encoder, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		opts:    opts.withDefaults(),
		encoder: encoder,
		log:     logger.With().Str("component", "timelapse").Logger(),
	}
}

// Start launches a run over photos, in the order given, and returns without
// waiting. Cancelling ctx aborts staging or kills the encoder; the run then
// resolves as Failed. An empty list resolves as Failed before Start returns.
func (p *Pipeline) Start(ctx context.Context, photos []database.PhotoRecord) *Run {
	run := newRun(p.opts.NewRunID(), len(photos)+2)

	if len(photos) == 0 {
		p.log.Warn().Str("run_id", run.ID).Msg("timelapse requested with no photos")
		run.finish(Result{State: StateFailed, Err: ErrNoPhotos})
		return run
	}

	go p.execute(ctx, run, slices.Clone(photos))
	return run
}

// Create runs the pipeline to completion on the calling goroutine's behalf.
// onProgress, when non-nil, is invoked on the caller's goroutine for every
// progress tick before Create returns the terminal result.
func (p *Pipeline) Create(ctx context.Context, photos []database.PhotoRecord, onProgress func(int)) Result {
	run := p.Start(ctx, photos)
	for pct := range run.Progress() {
		if onProgress != nil {
			onProgress(pct)
		}
	}
	<-run.Done()
	return run.Result()
}

func (p *Pipeline) execute(ctx context.Context, run *Run, photos []database.PhotoRecord) {
	log := p.log.With().Str("run_id", run.ID).Int("frames", len(photos)).Logger()
	scratch := filepath.Join(p.opts.ScratchRoot, run.ID)

	res := p.process(ctx, run, photos, scratch, log)

	if err := os.RemoveAll(scratch); err != nil {
		log.Warn().Err(err).Str("scratch", scratch).Msg("failed to remove staged frames")
	}

	if res.State == StateSucceeded {
		log.Info().Str("output", res.OutputPath).Msg("timelapse created")
	} else {
		log.Error().Err(res.Err).Msg("timelapse failed")
	}
	run.finish(res)
}

func (p *Pipeline) process(ctx context.Context, run *Run, photos []database.PhotoRecord, scratch string, log zerolog.Logger) Result {
	run.setState(StateStaging)

	if err := os.MkdirAll(scratch, 0o750); err != nil {
		return failed(fmt.Errorf("create scratch dir: %w", err))
	}

	total := len(photos)
	var ext string
	for i, photo := range photos {
		if err := ctx.Err(); err != nil {
			return failed(err)
		}
		staged, err := stageFrame(photo, scratch, i, ext)
		if err != nil {
			return failed(fmt.Errorf("stage frame %d (photo %d): %w", i, photo.ID, err))
		}
		ext = staged
		run.report(i * stagingShare / total)
	}
	run.report(stagingShare)
	log.Debug().Str("scratch", scratch).Str("ext", ext).Msg("frames staged")

	run.setState(StateEncoding)

	if err := os.MkdirAll(p.opts.OutputDir, 0o750); err != nil {
		return failed(fmt.Errorf("create output dir: %w", err))
	}

	output := filepath.Join(p.opts.OutputDir, OutputName(p.opts.Now()))
	job := Job{
		FramePattern:    filepath.Join(scratch, framePrefix+ext),
		InputFrameRate:  p.opts.InputFrameRate,
		OutputFrameRate: p.opts.OutputFrameRate,
		Codec:           p.opts.Codec,
		PixelFormat:     p.opts.PixelFormat,
		OutputPath:      output,
	}

	if err := p.encoder.Encode(ctx, job); err != nil {
		discardOutput(output, log)
		return failed(fmt.Errorf("encode: %w", err))
	}
	if !filesystem.FileExists(output) {
		return failed(ErrMissingOutputFile)
	}

	run.report(100)
	return Result{State: StateSucceeded, OutputPath: output}
}

// stageFrame copies photo into scratch as frame i and returns the extension
// it was staged under. want is the extension set by earlier frames, empty for
// the first one.
func stageFrame(photo database.PhotoRecord, scratch string, i int, want string) (string, error) {
	kind, err := sniffer.DetectFile(photo.FilePath)
	if err != nil && !errors.Is(err, sniffer.ErrUnknownType) {
		return "", err
	}
	ext, ok := frameExts[kind.Type]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, photo.FilePath)
	}
	if want != "" && ext != want {
		return "", fmt.Errorf("%w: %s is %s, earlier frames are %s", ErrMixedImageTypes, photo.FilePath, kind.Type, want)
	}
	return ext, filesystem.CopyFile(photo.FilePath, filepath.Join(scratch, frameName(i, ext)))
}

func discardOutput(path string, log zerolog.Logger) {
	if err := filesystem.DeleteFile(path); err != nil {
		log.Warn().Err(err).Str("output", path).Msg("failed to remove partial output")
	}
}

func failed(err error) Result {
	return Result{State: StateFailed, Err: err}
}
