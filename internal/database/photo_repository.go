package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PhotoRepository struct {
	ctx *Context
}

func NewPhotoRepository(dbCtx *Context) *PhotoRepository {
	return &PhotoRepository{ctx: dbCtx}
}

// FindByID returns nil without error when no row has the given id.
func (r *PhotoRepository) FindByID(ctx context.Context, id int64) (*PhotoRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("photo repository: missing database context")
	}

	row, err := queries.GetPhotoByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	record := PhotoRecordFromRow(row)
	return &record, nil
}

// ListAll returns every photo ordered by capture time, oldest first.
func (r *PhotoRepository) ListAll(ctx context.Context) ([]PhotoRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("photo repository: missing database context")
	}

	rows, err := queries.ListPhotos(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]PhotoRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, PhotoRecordFromRow(row))
	}
	return result, nil
}

func (r *PhotoRepository) Create(ctx context.Context, rec PhotoRecord) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("photo repository: missing database context")
	}

	res, err := queries.InsertPhoto(ctx, PhotoInsertParams(rec))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update replaces every stored field of rec.ID and returns ErrNotFound when
// no such row exists.
func (r *PhotoRepository) Update(ctx context.Context, rec PhotoRecord) error {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("photo repository: missing database context")
	}

	affected, err := queries.UpdatePhoto(ctx, PhotoUpdateParams(rec))
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PhotoRepository) Delete(ctx context.Context, id int64) (bool, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return false, fmt.Errorf("photo repository: missing database context")
	}

	affected, err := queries.DeletePhotoByID(ctx, id)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PhotoRepository) Count(ctx context.Context) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("photo repository: missing database context")
	}

	return queries.CountPhotos(ctx)
}
