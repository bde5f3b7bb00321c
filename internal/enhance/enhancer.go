// Package enhance wraps the external speech-enhancement models the cleaner
// can drive. Every backend takes a PCM WAV and writes an enhanced PCM WAV.
package enhance

import (
	"context"
	"errors"
)

// Built-in backend names.
const (
	BackendDeepFilter = "deepfilter"
	BackendRNNoise    = "rnnoise"
	BackendAFFTDN     = "afftdn"
)

// ErrUnknownBackend is returned when a backend name is not registered.
var ErrUnknownBackend = errors.New("unknown enhancer backend")

// ErrNoOutput is returned when a model run finished without producing audio.
var ErrNoOutput = errors.New("enhancer produced no output")

// Enhancer removes noise from a speech recording.
type Enhancer interface {
	// Name identifies the backend in logs, history and the API.
	Name() string
	// Check verifies that the external model can be invoked.
	Check(ctx context.Context) error
	// Enhance reads inWAV and writes the cleaned recording to outWAV.
	Enhance(ctx context.Context, inWAV, outWAV string) error
}

// Filterer is the part of the ffmpeg driver the filter backends need.
type Filterer interface {
	Check(ctx context.Context) error
	Filter(ctx context.Context, in, out, filter string) error
}
