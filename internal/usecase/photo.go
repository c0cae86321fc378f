package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/filesystem"
	"github.com/dentaltracker/dentaltracker/internal/media/sniffer"
	"github.com/dentaltracker/dentaltracker/internal/services"
	"github.com/dentaltracker/dentaltracker/internal/storage"
	"github.com/dentaltracker/dentaltracker/internal/timelapse"
)

var (
	ErrNotJPEG = errors.New("source image is not a JPEG")
	// ErrPublishingDisabled is returned by Publish when no object store is configured.
	ErrPublishingDisabled = storage.ErrDisabled
)

// Publisher uploads a finished video somewhere outside the data directory.
type Publisher interface {
	Publish(ctx context.Context, path string) (storage.Object, error)
}

type PhotoOptions struct {
	PicturesDir string
	MoviesDir   string
	Pipeline    *timelapse.Pipeline
	// Publisher is optional.
	Publisher Publisher
	Now       func() time.Time
}

type Photo struct {
	store     *services.PhotoStore
	pipeline  *timelapse.Pipeline
	publisher Publisher
	pictures  string
	movies    string
	now       func() time.Time
	log       zerolog.Logger
}

func NewPhoto(store *services.PhotoStore, opts PhotoOptions, logger zerolog.Logger) *Photo {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Photo{
		store:     store,
		pipeline:  opts.Pipeline,
		publisher: opts.Publisher,
		pictures:  opts.PicturesDir,
		movies:    opts.MoviesDir,
		now:       now,
		log:       logger.With().Str("component", "photos").Logger(),
	}
}

// Store exposes the underlying photo store for observers.
func (u *Photo) Store() *services.PhotoStore {
	return u.store
}

type CaptureInput struct {
	SourcePath string
	Notes      string
	// CapturedAt defaults to the current time.
	CapturedAt time.Time
}

// Capture copies a JPEG into the pictures directory and records it.
func (u *Photo) Capture(ctx context.Context, input CaptureInput) (database.PhotoRecord, error) {
	kind, err := sniffer.DetectFile(input.SourcePath)
	if err != nil && !errors.Is(err, sniffer.ErrUnknownType) {
		return database.PhotoRecord{}, fmt.Errorf("read %s: %w", input.SourcePath, err)
	}
	if kind.Type != sniffer.TypeJPEG {
		return database.PhotoRecord{}, fmt.Errorf("%w: %s", ErrNotJPEG, input.SourcePath)
	}

	capturedAt := input.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = u.now()
	}

	path, err := filesystem.SavePhoto(u.pictures, input.SourcePath, capturedAt)
	if err != nil {
		return database.PhotoRecord{}, fmt.Errorf("save photo: %w", err)
	}

	rec := database.PhotoRecord{
		FilePath:   path,
		CapturedAt: capturedAt,
		Notes:      input.Notes,
	}
	id, err := u.store.Insert(ctx, rec)
	if err != nil {
		if rmErr := filesystem.DeleteFile(path); rmErr != nil {
			u.log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove orphaned photo")
		}
		return database.PhotoRecord{}, err
	}
	rec.ID = id

	u.log.Info().Int64("photo_id", id).Str("path", path).Msg("photo captured")
	return rec, nil
}

// Get returns nil when no photo has the id.
func (u *Photo) Get(ctx context.Context, id int64) (*database.PhotoRecord, error) {
	return u.store.Get(ctx, id)
}

// Delete removes the photo file and then its record. A file that cannot be
// removed is logged and does not stop the record removal. It reports false
// when no photo has the id.
func (u *Photo) Delete(ctx context.Context, id int64) (bool, error) {
	rec, err := u.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	if err := filesystem.DeleteFile(rec.FilePath); err != nil {
		u.log.Warn().Err(err).Int64("photo_id", id).Str("path", rec.FilePath).Msg("failed to remove photo file")
	}

	if err := u.store.Delete(ctx, id); err != nil {
		return false, err
	}
	u.log.Info().Int64("photo_id", id).Msg("photo deleted")
	return true, nil
}

// Annotate replaces the note on a photo.
func (u *Photo) Annotate(ctx context.Context, id int64, note string) (database.PhotoRecord, error) {
	rec, err := u.store.Get(ctx, id)
	if err != nil {
		return database.PhotoRecord{}, err
	}
	if rec == nil {
		return database.PhotoRecord{}, fmt.Errorf("photo %d: %w", id, services.ErrNotFound)
	}

	rec.Notes = note
	if err := u.store.Update(ctx, *rec); err != nil {
		return database.PhotoRecord{}, err
	}
	return *rec, nil
}

type TimelineEntry struct {
	Photo database.PhotoRecord
	// DayOffset counts whole days since the first capture.
	DayOffset int
}

type Timeline struct {
	Entries     []TimelineEntry
	Count       int
	DaysTracked int
	First       time.Time
	Last        time.Time
}

func (u *Photo) Timeline(ctx context.Context) (Timeline, error) {
	photos, err := u.store.ListAll(ctx)
	if err != nil {
		return Timeline{}, err
	}
	return BuildTimeline(photos), nil
}

// BuildTimeline summarises photos, which must already be in capture order.
func BuildTimeline(photos []database.PhotoRecord) Timeline {
	tl := Timeline{
		Entries: make([]TimelineEntry, 0, len(photos)),
		Count:   len(photos),
	}
	if len(photos) == 0 {
		return tl
	}

	tl.First = photos[0].CapturedAt
	tl.Last = photos[len(photos)-1].CapturedAt
	tl.DaysTracked = wholeDays(tl.Last.Sub(tl.First))

	for _, p := range photos {
		tl.Entries = append(tl.Entries, TimelineEntry{
			Photo:     p,
			DayOffset: wholeDays(p.CapturedAt.Sub(tl.First)),
		})
	}
	return tl
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

// StartTimelapse loads the ordered photo list and starts a pipeline run.
func (u *Photo) StartTimelapse(ctx context.Context) (*timelapse.Run, error) {
	photos, err := u.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return u.pipeline.Start(ctx, photos), nil
}

// CreateTimelapse runs the pipeline to completion. Storage errors are folded
// into a failed result.
func (u *Photo) CreateTimelapse(ctx context.Context, onProgress func(int)) timelapse.Result {
	photos, err := u.store.ListAll(ctx)
	if err != nil {
		return timelapse.Result{State: timelapse.StateFailed, Err: err}
	}
	return u.pipeline.Create(ctx, photos, onProgress)
}

// Publish uploads a finished timelapse.
func (u *Photo) Publish(ctx context.Context, path string) (storage.Object, error) {
	if u.publisher == nil {
		return storage.Object{}, ErrPublishingDisabled
	}
	return u.publisher.Publish(ctx, path)
}

// CanPublish reports whether a publisher is configured.
func (u *Photo) CanPublish() bool {
	return u.publisher != nil
}

type Video struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Videos lists finished timelapses, newest first.
func (u *Photo) Videos() ([]Video, error) {
	var videos []Video
	err := filesystem.WalkDir(u.movies, func(path string, d fs.DirEntry) error {
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		videos = append(videos, Video{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(videos, func(i, j int) bool {
		if videos[i].ModTime.Equal(videos[j].ModTime) {
			return videos[i].Path > videos[j].Path
		}
		return videos[i].ModTime.After(videos[j].ModTime)
	})
	return videos, nil
}

// Status summarises the local store.
type Status struct {
	SchemaVersion uint
	SchemaDirty   bool
	Photos        int64
	Videos        int
	Publishing    bool
}

func (u *Photo) Status(ctx context.Context) (Status, error) {
	version, dirty, err := u.store.SchemaVersion()
	if err != nil {
		return Status{}, err
	}
	count, err := u.store.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	videos, err := u.Videos()
	if err != nil {
		return Status{}, err
	}
	return Status{
		SchemaVersion: version,
		SchemaDirty:   dirty,
		Photos:        count,
		Videos:        len(videos),
		Publishing:    u.CanPublish(),
	}, nil
}
