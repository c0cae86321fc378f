package sqldb

// DentalPhoto mirrors a row of the dental_photos table.
type DentalPhoto struct {
	ID             int64
	FilePath       string
	CapturedAt     int64
	AlignmentScore float64
	Notes          string
}
