package sqldb

import (
	"context"
	"database/sql"
)

const listPhotos = `SELECT id, file_path, captured_at, alignment_score, notes
FROM dental_photos
ORDER BY captured_at ASC, id ASC`

func (q *Queries) ListPhotos(ctx context.Context) ([]DentalPhoto, error) {
	rows, err := q.db.QueryContext(ctx, listPhotos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DentalPhoto
	for rows.Next() {
		var i DentalPhoto
		if err := rows.Scan(&i.ID, &i.FilePath, &i.CapturedAt, &i.AlignmentScore, &i.Notes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPhotoByID = `SELECT id, file_path, captured_at, alignment_score, notes
FROM dental_photos
WHERE id = ?`

func (q *Queries) GetPhotoByID(ctx context.Context, id int64) (DentalPhoto, error) {
	row := q.db.QueryRowContext(ctx, getPhotoByID, id)
	var i DentalPhoto
	err := row.Scan(&i.ID, &i.FilePath, &i.CapturedAt, &i.AlignmentScore, &i.Notes)
	return i, err
}

const insertPhoto = `INSERT INTO dental_photos (file_path, captured_at, alignment_score, notes)
VALUES (?, ?, ?, ?)`

type InsertPhotoParams struct {
	FilePath       string
	CapturedAt     int64
	AlignmentScore float64
	Notes          string
}

func (q *Queries) InsertPhoto(ctx context.Context, arg InsertPhotoParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, insertPhoto, arg.FilePath, arg.CapturedAt, arg.AlignmentScore, arg.Notes)
}

const updatePhoto = `UPDATE dental_photos
SET file_path = ?, captured_at = ?, alignment_score = ?, notes = ?
WHERE id = ?`

type UpdatePhotoParams struct {
	FilePath       string
	CapturedAt     int64
	AlignmentScore float64
	Notes          string
	ID             int64
}

func (q *Queries) UpdatePhoto(ctx context.Context, arg UpdatePhotoParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePhoto, arg.FilePath, arg.CapturedAt, arg.AlignmentScore, arg.Notes, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePhotoByID = `DELETE FROM dental_photos WHERE id = ?`

func (q *Queries) DeletePhotoByID(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePhotoByID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countPhotos = `SELECT COUNT(*) FROM dental_photos`

func (q *Queries) CountPhotos(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPhotos)
	var count int64
	err := row.Scan(&count)
	return count, err
}
