package store

import "github.com/psantana5/vitals-engine/pkg/models"

// ReadingLog is the append-only record of the current or most recent job.
type ReadingLog interface {
	// Append records one reading and makes it the latest value
	Append(r models.Reading)
	// Reset empties the log and the latest value in one step
	Reset()
	// Snapshot returns a point-in-time copy in arrival order
	Snapshot() []models.Reading
	// Len returns the number of readings currently held
	Len() int
	// Latest returns the most recent reading, if any
	Latest() (models.Reading, bool)
}
