package database

import "time"

// PhotoRecord represents a row in the dental_photos table. The record points
// at an image on disk but does not own it; removing the file is the caller's
// job.
type PhotoRecord struct {
	ID       int64
	FilePath string
	// CapturedAt is the sole ordering key for the timeline.
	CapturedAt time.Time
	// AlignmentScore is reserved. It is stored and returned but nothing computes it.
	AlignmentScore float64
	Notes          string
}
