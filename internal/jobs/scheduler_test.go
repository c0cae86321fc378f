package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/timelapse"
	"github.com/dentaltracker/dentaltracker/internal/tracker"
	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

type writeEncoder struct{ fail bool }

func (w writeEncoder) Encode(_ context.Context, job timelapse.Job) error {
	if w.fail {
		return &timelapse.ExitError{Code: 1}
	}
	return os.WriteFile(job.OutputPath, []byte("mp4"), 0o600)
}

type pipelineRebuilder struct {
	pipeline *timelapse.Pipeline
	photos   []database.PhotoRecord
	err      error
	calls    int
}

func (p *pipelineRebuilder) CreateTimelapse(ctx context.Context) (*timelapse.Run, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.pipeline.Start(ctx, p.photos), nil
}

func newRebuilder(t *testing.T, enc timelapse.Encoder) *pipelineRebuilder {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	require.NoError(t, os.WriteFile(src, []byte{0xff, 0xd8, 0xff, 0xe0}, 0o600))
	return &pipelineRebuilder{
		pipeline: timelapse.NewPipeline(timelapse.Options{
			ScratchRoot: filepath.Join(root, "frames"),
			OutputDir:   filepath.Join(root, "movies"),
		}, enc, zerolog.Nop()),
		photos: []database.PhotoRecord{{ID: 1, FilePath: src, CapturedAt: time.Now()}},
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler("not a cron line", newRebuilder(t, writeEncoder{}), nil, zerolog.Nop())
	require.Error(t, s.Start())
}

func TestStartSchedulesNextRun(t *testing.T) {
	s := NewScheduler("0 0 9 * * 0", newRebuilder(t, writeEncoder{}), nil, zerolog.Nop())
	assert.True(t, s.Next().IsZero())

	require.NoError(t, s.Start())
	defer s.Stop()

	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.True(t, next.After(time.Now()))
}

func TestDescriptorSpec(t *testing.T) {
	s := NewScheduler("@weekly", newRebuilder(t, writeEncoder{}), nil, zerolog.Nop())
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}

func TestRunOncePublishesOnSuccess(t *testing.T) {
	var published []string
	publish := func(_ context.Context, path string) error {
		published = append(published, path)
		return nil
	}

	s := NewScheduler("@daily", newRebuilder(t, writeEncoder{}), publish, zerolog.Nop())
	res := s.RunOnce(context.Background())

	require.True(t, res.Succeeded(), "unexpected failure: %v", res.Err)
	assert.Equal(t, []string{res.OutputPath}, published)
}

func TestRunOnceSkipsPublishOnFailure(t *testing.T) {
	called := false
	publish := func(context.Context, string) error {
		called = true
		return nil
	}

	s := NewScheduler("@daily", newRebuilder(t, writeEncoder{fail: true}), publish, zerolog.Nop())
	res := s.RunOnce(context.Background())

	assert.Equal(t, timelapse.StateFailed, res.State)
	assert.False(t, called)
}

func TestRunOnceStartErrors(t *testing.T) {
	for _, startErr := range []error{tracker.ErrBusy, timelapse.ErrNoPhotos, errors.New("database is locked")} {
		rb := newRebuilder(t, writeEncoder{})
		rb.err = startErr

		res := NewScheduler("@daily", rb, nil, zerolog.Nop()).RunOnce(context.Background())
		assert.Equal(t, timelapse.StateFailed, res.State)
		assert.ErrorIs(t, res.Err, startErr)
		assert.Equal(t, 1, rb.calls)
	}
}

func TestRunOnceWithTracker(t *testing.T) {
	rb := newRebuilder(t, writeEncoder{})
	tr := tracker.New(trackerPhotos{rb}, 0, zerolog.Nop())
	defer tr.Close()

	res := NewScheduler("@daily", tr, nil, zerolog.Nop()).RunOnce(context.Background())
	require.True(t, res.Succeeded())

	tr.Wait()
	assert.Equal(t, res.OutputPath, tr.State().LastTimelapse)
}

// trackerPhotos adapts the rebuilder into the photo use case the tracker drives.
type trackerPhotos struct{ rb *pipelineRebuilder }

func (trackerPhotos) Capture(context.Context, usecase.CaptureInput) (database.PhotoRecord, error) {
	return database.PhotoRecord{}, errors.New("not supported")
}

func (trackerPhotos) Delete(context.Context, int64) (bool, error) {
	return false, nil
}

func (p trackerPhotos) StartTimelapse(ctx context.Context) (*timelapse.Run, error) {
	return p.rb.CreateTimelapse(ctx)
}
