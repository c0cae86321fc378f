// Package tracker holds the user-facing state of the app: whether a timelapse
// is being built, its progress, and the last success or error message.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/database"
	"github.com/dentaltracker/dentaltracker/internal/timelapse"
	"github.com/dentaltracker/dentaltracker/internal/usecase"
)

const (
	MsgPhotoSaved      = "Photo saved successfully!"
	MsgNoPhotos        = "No photos available to create timelapse"
	MsgTimelapseFailed = "Failed to create timelapse"
	msgSavePrefix      = "Error saving photo: "
	msgDeletePrefix    = "Error deleting photo: "
	msgTimelapsePrefix = "Timelapse created: "

	DefaultMessageTTL = 3 * time.Second
)

// ErrBusy is returned when a timelapse is requested while one is running.
var ErrBusy = errors.New("a timelapse is already being created")

type State struct {
	CreatingTimelapse bool   `json:"creating_timelapse"`
	Progress          int    `json:"progress"`
	SuccessMessage    string `json:"success_message,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	LastTimelapse     string `json:"last_timelapse,omitempty"`
}

// Photos is the subset of the photo use case the tracker drives.
type Photos interface {
	Capture(ctx context.Context, input usecase.CaptureInput) (database.PhotoRecord, error)
	Delete(ctx context.Context, id int64) (bool, error)
	StartTimelapse(ctx context.Context) (*timelapse.Run, error)
}

type Tracker struct {
	photos Photos
	ttl    time.Duration
	log    zerolog.Logger

	mu         sync.Mutex
	state      State
	clearTimer *time.Timer
	busy       bool
	cancelRun  context.CancelFunc
	subs       map[uint64]chan State
	nextID     uint64

	wg sync.WaitGroup
}

// New returns a tracker whose messages clear after ttl. A non-positive ttl
// keeps messages until ClearMessages is called.
func New(photos Photos, ttl time.Duration, logger zerolog.Logger) *Tracker {
	return &Tracker{
		photos: photos,
		ttl:    ttl,
		log:    logger.With().Str("component", "tracker").Logger(),
		subs:   make(map[uint64]chan State),
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe delivers the current state and then every change. A subscriber
// that falls behind only sees the latest state. The channel closes when ctx
// is done.
func (t *Tracker) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	ch <- t.state
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, id)
		close(ch)
		t.mu.Unlock()
	}()

	return ch
}

// SavePhoto captures a photo and reports the outcome as a message.
func (t *Tracker) SavePhoto(ctx context.Context, input usecase.CaptureInput) (database.PhotoRecord, error) {
	rec, err := t.photos.Capture(ctx, input)
	if err != nil {
		t.update(func(s *State) { s.ErrorMessage = msgSavePrefix + err.Error() })
		return database.PhotoRecord{}, err
	}
	t.update(func(s *State) { s.SuccessMessage = MsgPhotoSaved })
	return rec, nil
}

// DeletePhoto removes a photo. Success is silent.
func (t *Tracker) DeletePhoto(ctx context.Context, id int64) (bool, error) {
	ok, err := t.photos.Delete(ctx, id)
	if err != nil {
		t.update(func(s *State) { s.ErrorMessage = msgDeletePrefix + err.Error() })
		return false, err
	}
	return ok, nil
}

// CreateTimelapse starts building a timelapse in the background and returns
// the run. Progress and the outcome are folded into the state as they arrive.
// The run outlives ctx's cancellation; it stops only on Close.
func (t *Tracker) CreateTimelapse(ctx context.Context) (*timelapse.Run, error) {
	t.mu.Lock()
	if t.busy {
		t.mu.Unlock()
		return nil, ErrBusy
	}
	t.busy = true
	t.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run, err := t.photos.StartTimelapse(runCtx)
	if err != nil {
		cancel()
		t.log.Error().Err(err).Msg("could not load photos for timelapse")
		t.update(func(s *State) { s.ErrorMessage = MsgTimelapseFailed })
		t.release()
		return nil, err
	}

	if res, done := finished(run); done && errors.Is(res.Err, timelapse.ErrNoPhotos) {
		cancel()
		t.update(func(s *State) { s.ErrorMessage = MsgNoPhotos })
		t.release()
		return nil, timelapse.ErrNoPhotos
	}

	t.update(func(s *State) {
		s.CreatingTimelapse = true
		s.Progress = 0
	})

	t.mu.Lock()
	t.cancelRun = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.follow(run, cancel)
	return run, nil
}

func (t *Tracker) follow(run *timelapse.Run, cancel context.CancelFunc) {
	defer t.wg.Done()
	defer t.release()
	defer cancel()

	for pct := range run.Progress() {
		t.update(func(s *State) { s.Progress = pct })
	}
	<-run.Done()
	res := run.Result()

	t.update(func(s *State) {
		s.CreatingTimelapse = false
		if res.Succeeded() {
			s.Progress = 100
			s.SuccessMessage = msgTimelapsePrefix + filepath.Base(res.OutputPath)
			s.LastTimelapse = res.OutputPath
			return
		}
		s.Progress = 0
		s.ErrorMessage = MsgTimelapseFailed
	})
}

func (t *Tracker) release() {
	t.mu.Lock()
	t.busy = false
	t.cancelRun = nil
	t.mu.Unlock()
}

func finished(run *timelapse.Run) (timelapse.Result, bool) {
	select {
	case <-run.Done():
		return run.Result(), true
	default:
		return timelapse.Result{}, false
	}
}

func (t *Tracker) ClearMessages() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearMessagesLocked()
}

func (t *Tracker) clearMessagesLocked() {
	if t.clearTimer != nil {
		t.clearTimer.Stop()
		t.clearTimer = nil
	}
	if t.state.SuccessMessage == "" && t.state.ErrorMessage == "" {
		return
	}
	t.state.SuccessMessage = ""
	t.state.ErrorMessage = ""
	t.publishLocked()
}

// Wait blocks until no timelapse is being followed.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close cancels a running timelapse and stops the message timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.cancelRun != nil {
		t.cancelRun()
	}
	if t.clearTimer != nil {
		t.clearTimer.Stop()
		t.clearTimer = nil
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) update(fn func(*State)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.state
	fn(&t.state)
	if t.state == before {
		return
	}

	hasMessage := t.state.SuccessMessage != "" || t.state.ErrorMessage != ""
	messageChanged := t.state.SuccessMessage != before.SuccessMessage || t.state.ErrorMessage != before.ErrorMessage
	if hasMessage && messageChanged {
		t.armClearLocked()
	}
	t.publishLocked()
}

func (t *Tracker) armClearLocked() {
	if t.ttl <= 0 {
		return
	}
	if t.clearTimer != nil {
		t.clearTimer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// A newer message re-armed the timer.
		if t.clearTimer != timer {
			return
		}
		t.clearMessagesLocked()
	})
	t.clearTimer = timer
}

func (t *Tracker) publishLocked() {
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		ch <- t.state
	}
}

func (s State) String() string {
	switch {
	case s.CreatingTimelapse:
		return fmt.Sprintf("creating timelapse (%d%%)", s.Progress)
	case s.ErrorMessage != "":
		return s.ErrorMessage
	case s.SuccessMessage != "":
		return s.SuccessMessage
	default:
		return "idle"
	}
}
