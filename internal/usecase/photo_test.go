package usecase

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
	"github.com/dentaltracker/dentaltracker/internal/services"
	"github.com/dentaltracker/dentaltracker/internal/storage"
	"github.com/dentaltracker/dentaltracker/internal/timelapse"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe1}

type stubEncoder struct {
	frames int
	err    error
}

func (s *stubEncoder) Encode(_ context.Context, job timelapse.Job) error {
	entries, _ := os.ReadDir(filepath.Dir(job.FramePattern))
	s.frames = len(entries)
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(job.OutputPath, []byte("mp4"), 0o600)
}

type stubPublisher struct {
	paths []string
}

func (s *stubPublisher) Publish(_ context.Context, path string) (storage.Object, error) {
	s.paths = append(s.paths, path)
	return storage.Object{Bucket: "b", Key: storage.ObjectKey(path)}, nil
}

type fixture struct {
	dbCtx    *database.Context
	store    *services.PhotoStore
	encoder  *stubEncoder
	uc       *Photo
	root     string
	pictures string
	movies   string
}

var now = time.Date(2025, 3, 10, 7, 45, 0, 0, time.Local)

func newFixture(t *testing.T, publisher Publisher) *fixture {
	t.Helper()

	dbCtx, err := database.CreateDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDatabase(dbCtx) })

	root := t.TempDir()
	f := &fixture{
		dbCtx:    dbCtx,
		store:    services.NewPhotoStore(dbCtx, zerolog.Nop()),
		encoder:  &stubEncoder{},
		root:     root,
		pictures: filepath.Join(root, "Pictures", "DentalTracker"),
		movies:   filepath.Join(root, "Movies", "DentalTracker"),
	}

	pipeline := timelapse.NewPipeline(timelapse.Options{
		ScratchRoot: filepath.Join(root, "cache", "timelapse_frames"),
		OutputDir:   f.movies,
		Now:         func() time.Time { return now },
	}, f.encoder, zerolog.Nop())

	f.uc = NewPhoto(f.store, PhotoOptions{
		PicturesDir: f.pictures,
		MoviesDir:   f.movies,
		Pipeline:    pipeline,
		Publisher:   publisher,
		Now:         func() time.Time { return now },
	}, zerolog.Nop())
	return f
}

func (f *fixture) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.root, name)
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, jpegHeader...), name...), 0o600))
	return path
}

func TestCaptureCopiesAndRecords(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	src := f.source(t, "IMG_0001.jpg")
	rec, err := f.uc.Capture(ctx, CaptureInput{SourcePath: src, Notes: "week 1"})
	require.NoError(t, err)

	assert.NotZero(t, rec.ID)
	assert.Equal(t, filepath.Join(f.pictures, "DENTAL_20250310_074500.jpg"), rec.FilePath)
	assert.True(t, rec.CapturedAt.Equal(now))
	assert.Equal(t, "week 1", rec.Notes)
	assert.Zero(t, rec.AlignmentScore)

	content, err := os.ReadFile(rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, jpegHeader...), "IMG_0001.jpg"...), content)

	stored, err := f.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, rec.FilePath, stored.FilePath)
}

func TestCaptureUsesExplicitTimestamp(t *testing.T) {
	f := newFixture(t, nil)
	at := time.Date(2024, 12, 24, 20, 0, 0, 0, time.Local)

	rec, err := f.uc.Capture(context.Background(), CaptureInput{SourcePath: f.source(t, "a.jpg"), CapturedAt: at})
	require.NoError(t, err)
	assert.True(t, rec.CapturedAt.Equal(at))
	assert.Equal(t, "DENTAL_20241224_200000.jpg", filepath.Base(rec.FilePath))
}

func TestCaptureRejectsNonJPEG(t *testing.T) {
	f := newFixture(t, nil)

	png := filepath.Join(f.root, "shot.png")
	require.NoError(t, os.WriteFile(png, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0o600))

	_, err := f.uc.Capture(context.Background(), CaptureInput{SourcePath: png})
	assert.ErrorIs(t, err, ErrNotJPEG)

	_, statErr := os.Stat(f.pictures)
	assert.True(t, os.IsNotExist(statErr), "nothing must be copied")
}

func TestCaptureMissingSource(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.uc.Capture(context.Background(), CaptureInput{SourcePath: filepath.Join(f.root, "nope.jpg")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCaptureRemovesFileWhenInsertFails(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, database.CloseDatabase(f.dbCtx))

	_, err := f.uc.Capture(context.Background(), CaptureInput{SourcePath: f.source(t, "a.jpg")})
	require.Error(t, err)

	entries, err := os.ReadDir(f.pictures)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteRemovesFileThenRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.uc.Capture(ctx, CaptureInput{SourcePath: f.source(t, "a.jpg")})
	require.NoError(t, err)

	ok, err := f.uc.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, statErr := os.Stat(rec.FilePath)
	assert.True(t, os.IsNotExist(statErr))

	photos, err := f.store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.uc.Capture(ctx, CaptureInput{SourcePath: f.source(t, "a.jpg")})
	require.NoError(t, err)

	ok, err := f.uc.Delete(ctx, rec.ID+100)
	require.NoError(t, err)
	assert.False(t, ok)

	photos, err := f.store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestDeleteMissingFileStillRemovesRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id, err := f.store.Insert(ctx, database.PhotoRecord{
		FilePath:   filepath.Join(f.root, "already-gone.jpg"),
		CapturedAt: now,
	})
	require.NoError(t, err)

	ok, err := f.uc.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteUndeletableFileStillRemovesRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// A non-empty directory cannot be removed with a plain file delete.
	busy := filepath.Join(f.root, "busy")
	require.NoError(t, os.MkdirAll(busy, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(busy, "keep"), []byte("x"), 0o600))

	id, err := f.store.Insert(ctx, database.PhotoRecord{FilePath: busy, CapturedAt: now})
	require.NoError(t, err)

	ok, err := f.uc.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.DirExists(t, busy)
}

func TestAnnotate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.uc.Capture(ctx, CaptureInput{SourcePath: f.source(t, "a.jpg"), Notes: "before"})
	require.NoError(t, err)

	updated, err := f.uc.Annotate(ctx, rec.ID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Notes)
	assert.Equal(t, rec.ID, updated.ID)

	stored, err := f.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", stored.Notes)
	assert.Equal(t, rec.FilePath, stored.FilePath)
	assert.True(t, stored.CapturedAt.Equal(rec.CapturedAt))

	_, err = f.uc.Annotate(ctx, rec.ID+1, "x")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestBuildTimeline(t *testing.T) {
	first := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	photos := []database.PhotoRecord{
		{ID: 1, FilePath: "a", CapturedAt: first},
		{ID: 2, FilePath: "b", CapturedAt: first.Add(36 * time.Hour)},
		{ID: 3, FilePath: "c", CapturedAt: first.Add(15*24*time.Hour - time.Minute)},
	}

	tl := BuildTimeline(photos)
	assert.Equal(t, 3, tl.Count)
	assert.Equal(t, 14, tl.DaysTracked)
	assert.True(t, tl.First.Equal(first))
	require.Len(t, tl.Entries, 3)
	assert.Equal(t, []int{0, 1, 14}, []int{tl.Entries[0].DayOffset, tl.Entries[1].DayOffset, tl.Entries[2].DayOffset})

	empty := BuildTimeline(nil)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.DaysTracked)
	assert.Empty(t, empty.Entries)
}

func TestTimelineFromStore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i, days := range []int{10, 0, 5} {
		_, err := f.uc.Capture(ctx, CaptureInput{
			SourcePath: f.source(t, string(rune('a'+i))+".jpg"),
			CapturedAt: now.AddDate(0, 0, days),
		})
		require.NoError(t, err)
	}

	tl, err := f.uc.Timeline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, tl.Count)
	assert.Equal(t, 10, tl.DaysTracked)
	assert.Equal(t, 0, tl.Entries[0].DayOffset)
	assert.Equal(t, 5, tl.Entries[1].DayOffset)
	assert.Equal(t, 10, tl.Entries[2].DayOffset)
}

func TestCreateTimelapse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.uc.Capture(ctx, CaptureInput{
			SourcePath: f.source(t, string(rune('a'+i))+".jpg"),
			CapturedAt: now.AddDate(0, 0, i*7),
		})
		require.NoError(t, err)
	}

	var ticks []int
	res := f.uc.CreateTimelapse(ctx, func(p int) { ticks = append(ticks, p) })
	require.True(t, res.Succeeded(), "unexpected failure: %v", res.Err)
	assert.Equal(t, 4, f.encoder.frames)
	assert.Equal(t, 100, ticks[len(ticks)-1])
	assert.FileExists(t, res.OutputPath)

	videos, err := f.uc.Videos()
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, res.OutputPath, videos[0].Path)
}

func TestCreateTimelapseWithoutPhotos(t *testing.T) {
	f := newFixture(t, nil)

	res := f.uc.CreateTimelapse(context.Background(), nil)
	assert.Equal(t, timelapse.StateFailed, res.State)
	assert.ErrorIs(t, res.Err, timelapse.ErrNoPhotos)
	assert.Zero(t, f.encoder.frames)
}

func TestStartTimelapse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.uc.Capture(ctx, CaptureInput{SourcePath: f.source(t, "a.jpg")})
	require.NoError(t, err)

	run, err := f.uc.StartTimelapse(ctx)
	require.NoError(t, err)
	res, err := run.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
}

func TestVideosIgnoresOtherFiles(t *testing.T) {
	f := newFixture(t, nil)

	videos, err := f.uc.Videos()
	require.NoError(t, err)
	assert.Empty(t, videos)

	require.NoError(t, os.MkdirAll(f.movies, 0o750))
	older := filepath.Join(f.movies, "timelapse_20250101_000000.mp4")
	newer := filepath.Join(f.movies, "timelapse_20250201_000000.mp4")
	require.NoError(t, os.WriteFile(older, []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(newer, []byte("22"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.movies, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	videos, err = f.uc.Videos()
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, newer, videos[0].Path)
	assert.Equal(t, int64(2), videos[0].Size)
	assert.Equal(t, older, videos[1].Path)
}

func TestPublish(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.uc.CanPublish())
	_, err := f.uc.Publish(context.Background(), "x.mp4")
	assert.ErrorIs(t, err, ErrPublishingDisabled)

	pub := &stubPublisher{}
	f = newFixture(t, pub)
	assert.True(t, f.uc.CanPublish())
	obj, err := f.uc.Publish(context.Background(), "/movies/x.mp4")
	require.NoError(t, err)
	assert.Equal(t, "timelapses/x.mp4", obj.Key)
	assert.Equal(t, []string{"/movies/x.mp4"}, pub.paths)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, &stubPublisher{})
	ctx := context.Background()

	st, err := f.uc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{SchemaVersion: 1, Publishing: true}, st)

	_, err = f.uc.Capture(ctx, CaptureInput{SourcePath: f.source(t, "a.jpg")})
	require.NoError(t, err)
	res := f.uc.CreateTimelapse(ctx, nil)
	require.True(t, res.Succeeded(), "%v", res.Err)

	st, err = f.uc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Photos)
	assert.Equal(t, 1, st.Videos)
	assert.False(t, st.SchemaDirty)

	unpublished := newFixture(t, nil)
	st, err = unpublished.uc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Publishing)
}
