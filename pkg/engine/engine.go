// Package engine is the boundary to the external vital-sign sensing engine.
//
// The engine is a black box: given a video source and a credential it emits
// zero or more timestamped readings through a callback and eventually returns.
package engine

import (
	"context"
	"errors"

	"github.com/psantana5/vitals-engine/pkg/models"
)

// ErrUnavailable is returned when no sensing engine is installed or licensed
var ErrUnavailable = errors.New("sensing engine not available")

// Status is an imaging/processing status code reported by the engine
type Status struct {
	Code        int    `json:"status"`
	Description string `json:"description,omitempty"`
}

// ReadingFunc receives each reading in emission order
type ReadingFunc func(models.Reading)

// StatusFunc receives engine status changes
type StatusFunc func(Status)

// Engine runs vital-sign extraction against one video source
type Engine interface {
	// Name returns the engine name
	Name() string

	// Available reports whether Run can produce readings in this deployment
	Available() bool

	// Run blocks until the input is exhausted or the engine stops.
	// onReading may be called zero or many times before Run returns.
	Run(ctx context.Context, src models.VideoRef, credential string, onReading ReadingFunc, onStatus StatusFunc) error
}

// Kind names an engine implementation in configuration
type Kind string

const (
	KindProcess Kind = "process"
	KindNone    Kind = "none"
)
