package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/config"
	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/log"
	"github.com/dentaltracker/dentaltracker/internal/services"
	"github.com/dentaltracker/dentaltracker/internal/storage"
	"github.com/dentaltracker/dentaltracker/internal/timelapse"
	"github.com/dentaltracker/dentaltracker/internal/tracker"
	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

// app is the object graph shared by every command.
type app struct {
	settings *config.Settings
	log      zerolog.Logger
	dbCtx    *database.Context
	store    *services.PhotoStore
	photos   *usecase.Photo
	tracker  *tracker.Tracker
}

func newApp() (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := settings.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger := log.New(level)

	dbCtx, err := database.CreateDatabase("")
	if err != nil {
		return nil, err
	}

	store := services.NewPhotoStore(dbCtx, logger)

	ff := settings.FFmpeg
	pipeline := timelapse.NewPipeline(timelapse.Options{
		ScratchRoot:     config.GetFramesDir(),
		OutputDir:       config.GetMoviesDir(),
		InputFrameRate:  ff.InputFrameRate,
		OutputFrameRate: ff.OutputFrameRate,
		Codec:           ff.Codec,
		PixelFormat:     ff.PixelFormat,
	}, timelapse.NewFFmpeg(ff.Binary, logger), logger)

	opts := usecase.PhotoOptions{
		PicturesDir: config.GetPicturesDir(),
		MoviesDir:   config.GetMoviesDir(),
		Pipeline:    pipeline,
	}
	objectStore, err := storage.NewObjectStore(settings.Storage, logger)
	switch {
	case err == nil:
		opts.Publisher = objectStore
	case !errors.Is(err, storage.ErrDisabled):
		_ = database.CloseDatabase(dbCtx)
		return nil, fmt.Errorf("storage: %w", err)
	}

	photos := usecase.NewPhoto(store, opts, logger)

	return &app{
		settings: settings,
		log:      logger,
		dbCtx:    dbCtx,
		store:    store,
		photos:   photos,
		tracker:  tracker.New(photos, settings.Tracker.MessageTTL, logger),
	}, nil
}

func (a *app) Close() {
	a.tracker.Close()
	if err := database.CloseDatabase(a.dbCtx); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}
