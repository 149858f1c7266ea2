package engine

import (
	"context"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// UnavailableEngine stands in when the sensing engine is absent from the build or
// deployment. Every run ends immediately with zero readings.
type UnavailableEngine struct {
	reason string
}

// NewUnavailableEngine creates an engine that never produces readings
func NewUnavailableEngine(reason string) *UnavailableEngine {
	return &UnavailableEngine{reason: reason}
}

// Name returns the engine name
func (e *UnavailableEngine) Name() string {
	return "unavailable"
}

// Available always returns false
func (e *UnavailableEngine) Available() bool {
	return false
}

// Reason explains why the engine is unavailable
func (e *UnavailableEngine) Reason() string {
	return e.reason
}

// Run returns ErrUnavailable without invoking any callback
func (e *UnavailableEngine) Run(ctx context.Context, src models.VideoRef, credential string, onReading ReadingFunc, onStatus StatusFunc) error {
	return ErrUnavailable
}
