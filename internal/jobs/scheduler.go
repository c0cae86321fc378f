// Package jobs runs periodic background work for long-lived processes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/timelapse"
	"github.com/dentaltracker/dentaltracker/internal/tracker"
)

// Rebuilder starts a timelapse run; the tracker satisfies it.
type Rebuilder interface {
	CreateTimelapse(ctx context.Context) (*timelapse.Run, error)
}

// Publisher is called with each successfully rebuilt video.
type Publisher func(ctx context.Context, path string) error

type Scheduler struct {
	cron    *cron.Cron
	spec    string
	rebuild Rebuilder
	publish Publisher
	log     zerolog.Logger
	entry   cron.EntryID
}

// NewScheduler parses spec, a six-field cron expression with seconds or a
// descriptor such as "@weekly".
func NewScheduler(spec string, rebuild Rebuilder, publish Publisher, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cron.PrintfLogger(&log)
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	return &Scheduler{
		cron:    c,
		spec:    spec,
		rebuild: rebuild,
		publish: publish,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.entry = id
	s.cron.Start()
	s.log.Info().Str("cron", s.spec).Time("next", s.Next()).Msg("timelapse rebuild scheduled")
	return nil
}

// Stop halts the schedule. The returned context is done once a running
// rebuild has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next is the time of the next scheduled rebuild, or zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunOnce rebuilds the timelapse and waits for the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) timelapse.Result {
	run, err := s.rebuild.CreateTimelapse(ctx)
	switch {
	case errors.Is(err, tracker.ErrBusy):
		s.log.Info().Msg("timelapse already in progress, skipping")
		return timelapse.Result{State: timelapse.StateFailed, Err: err}
	case errors.Is(err, timelapse.ErrNoPhotos):
		s.log.Info().Msg("no photos yet, skipping")
		return timelapse.Result{State: timelapse.StateFailed, Err: err}
	case err != nil:
		s.log.Error().Err(err).Msg("scheduled timelapse failed to start")
		return timelapse.Result{State: timelapse.StateFailed, Err: err}
	}

	res, err := run.Wait(ctx)
	if err != nil {
		return timelapse.Result{State: timelapse.StateFailed, Err: err}
	}
	if !res.Succeeded() {
		s.log.Error().Err(res.Err).Msg("scheduled timelapse failed")
		return res
	}

	if s.publish != nil {
		if err := s.publish(ctx, res.OutputPath); err != nil {
			s.log.Error().Err(err).Str("output", res.OutputPath).Msg("publish failed")
		}
	}
	return res
}
