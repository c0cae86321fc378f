package database

import (
	sqldb "github.com/dentaltracker/dentaltracker/internal/database/sqlc"
)

// PhotoRecordFromRow converts a database row to a PhotoRecord.
func PhotoRecordFromRow(row sqldb.DentalPhoto) PhotoRecord {
	return PhotoRecord{
		ID:             row.ID,
		FilePath:       row.FilePath,
		CapturedAt:     millisToTime(row.CapturedAt),
		AlignmentScore: row.AlignmentScore,
		Notes:          row.Notes,
	}
}

// PhotoInsertParams creates insert parameters from a record. The record's ID is ignored.
func PhotoInsertParams(rec PhotoRecord) sqldb.InsertPhotoParams {
	return sqldb.InsertPhotoParams{
		FilePath:       rec.FilePath,
		CapturedAt:     timeToMillis(rec.CapturedAt),
		AlignmentScore: rec.AlignmentScore,
		Notes:          rec.Notes,
	}
}

// PhotoUpdateParams creates update parameters addressing rec.ID.
func PhotoUpdateParams(rec PhotoRecord) sqldb.UpdatePhotoParams {
	return sqldb.UpdatePhotoParams{
		FilePath:       rec.FilePath,
		CapturedAt:     timeToMillis(rec.CapturedAt),
		AlignmentScore: rec.AlignmentScore,
		Notes:          rec.Notes,
		ID:             rec.ID,
	}
}
