package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/database"
)

var (
	// ErrNotFound is returned by Update when no photo has the given identity.
	ErrNotFound = database.ErrNotFound
	// ErrInvalidPhoto is returned when a record fails validation before it reaches storage.
	ErrInvalidPhoto = errors.New("invalid photo record")
)

// PhotoStore is the ordered CRUD surface over photo records. Every committed
// mutation is pushed, as a full ordered snapshot, to all live observers.
type PhotoStore struct {
	dbCtx *database.Context
	repo  *database.PhotoRepository
	log   zerolog.Logger

	// mu serialises mutations so snapshots are published in commit order.
	mu sync.Mutex

	subsMu sync.Mutex
	subs   map[uint64]chan []database.PhotoRecord
	nextID uint64
}

func NewPhotoStore(dbCtx *database.Context, logger zerolog.Logger) *PhotoStore {
	return &PhotoStore{
		dbCtx: dbCtx,
		repo:  database.NewPhotoRepository(dbCtx),
		log:   logger.With().Str("component", "photo_store").Logger(),
		subs:  make(map[uint64]chan []database.PhotoRecord),
	}
}

// ListAll returns every photo ordered by capture time, oldest first.
func (s *PhotoStore) ListAll(ctx context.Context) ([]database.PhotoRecord, error) {
	photos, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

// Get returns nil, nil when the photo does not exist.
func (s *PhotoStore) Get(ctx context.Context, id int64) (*database.PhotoRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get photo %d: %w", id, err)
	}
	return rec, nil
}

func (s *PhotoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return n, nil
}

// SchemaVersion reports the applied migration version and whether the last
// migration left the schema dirty.
func (s *PhotoStore) SchemaVersion() (uint, bool, error) {
	version, dirty, err := database.SchemaVersion(s.dbCtx)
	if err != nil {
		return 0, false, fmt.Errorf("schema version: %w", err)
	}
	return version, dirty, nil
}

// Insert stores rec under a freshly assigned identity; rec.ID is ignored.
func (s *PhotoStore) Insert(ctx context.Context, rec database.PhotoRecord) (int64, error) {
	if err := validatePhoto(rec); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("insert photo: %w", err)
	}

	s.log.Debug().Int64("photo_id", id).Str("file", rec.FilePath).Msg("photo inserted")
	s.notifyLocked(ctx)
	return id, nil
}

// Update replaces every field of the photo identified by rec.ID. An unknown
// identity yields ErrNotFound and leaves the store untouched.
func (s *PhotoStore) Update(ctx context.Context, rec database.PhotoRecord) error {
	if err := validatePhoto(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Update(ctx, rec); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("update photo %d: %w", rec.ID, ErrNotFound)
		}
		return fmt.Errorf("update photo %d: %w", rec.ID, err)
	}

	s.log.Debug().Int64("photo_id", rec.ID).Msg("photo updated")
	s.notifyLocked(ctx)
	return nil
}

// Delete removes the photo record. Deleting an unknown identity is a no-op.
// The backing file is not touched.
func (s *PhotoStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete photo %d: %w", id, err)
	}
	if !deleted {
		return nil
	}

	s.log.Debug().Int64("photo_id", id).Msg("photo deleted")
	s.notifyLocked(ctx)
	return nil
}

// Observe subscribes to the ordered photo list. The current snapshot is
// delivered first, then a new snapshot after every committed mutation. Each
// subscriber holds at most one pending snapshot and only ever sees the latest
// one. The channel is closed once ctx is done.
func (s *PhotoStore) Observe(ctx context.Context) (<-chan []database.PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	initial, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("observe photos: %w", err)
	}

	ch := make(chan []database.PhotoRecord, 1)
	ch <- initial

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subsMu.Lock()
		delete(s.subs, id)
		close(ch)
		s.subsMu.Unlock()
	}()

	return ch, nil
}

// Subscribers reports how many observers are currently attached.
func (s *PhotoStore) Subscribers() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

// notifyLocked must be called with s.mu held.
func (s *PhotoStore) notifyLocked(ctx context.Context) {
	if s.Subscribers() == 0 {
		return
	}

	snapshot, err := s.repo.ListAll(context.WithoutCancel(ctx))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load snapshot for observers")
		return
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		// Drop any snapshot the subscriber has not consumed yet.
		select {
		case <-ch:
		default:
		}
		ch <- slices.Clone(snapshot)
	}
}

func validatePhoto(rec database.PhotoRecord) error {
	if strings.TrimSpace(rec.FilePath) == "" {
		return fmt.Errorf("%w: file path is empty", ErrInvalidPhoto)
	}
	if rec.CapturedAt.IsZero() {
		return fmt.Errorf("%w: capture time is missing", ErrInvalidPhoto)
	}
	if math.IsNaN(rec.AlignmentScore) || rec.AlignmentScore < 0 || rec.AlignmentScore > 1 {
		return fmt.Errorf("%w: alignment score %v outside [0,1]", ErrInvalidPhoto, rec.AlignmentScore)
	}
	return nil
}
