package enhance

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RNNoise runs the recurrent-network denoiser built into ffmpeg (arnndn).
type RNNoise struct {
	ff        Filterer
	modelPath string
}

// NewRNNoise creates the arnndn backend with the given .rnnn model file.
func NewRNNoise(ff Filterer, modelPath string) *RNNoise {
	return &RNNoise{ff: ff, modelPath: modelPath}
}

// Name implements Enhancer.
func (r *RNNoise) Name() string { return BackendRNNoise }

// Check implements Enhancer.
func (r *RNNoise) Check(ctx context.Context) error {
	if r.modelPath == "" {
		return fmt.Errorf("rnnoise: no model configured")
	}
	if _, err := os.Stat(r.modelPath); err != nil {
		return fmt.Errorf("rnnoise model: %w", err)
	}
	return r.ff.Check(ctx)
}

// FilterGraph returns the ffmpeg -af argument.
func (r *RNNoise) FilterGraph() string {
	return "arnndn=m=" + escapeFilterValue(r.modelPath)
}

// Enhance implements Enhancer.
func (r *RNNoise) Enhance(ctx context.Context, inWAV, outWAV string) error {
	return r.ff.Filter(ctx, inWAV, outWAV, r.FilterGraph())
}

// AFFTDN runs ffmpeg's FFT denoiser. It needs no model file, so it serves
// hosts where neither neural model is installed.
type AFFTDN struct {
	ff         Filterer
	noiseFloor float64
}

// NewAFFTDN creates the afftdn backend with a noise floor in dB.
func NewAFFTDN(ff Filterer, noiseFloor float64) *AFFTDN {
	if noiseFloor == 0 {
		noiseFloor = -25
	}
	return &AFFTDN{ff: ff, noiseFloor: noiseFloor}
}

// Name implements Enhancer.
func (a *AFFTDN) Name() string { return BackendAFFTDN }

// Check implements Enhancer.
func (a *AFFTDN) Check(ctx context.Context) error { return a.ff.Check(ctx) }

// FilterGraph returns the ffmpeg -af argument.
func (a *AFFTDN) FilterGraph() string {
	return "afftdn=nf=" + strconv.FormatFloat(a.noiseFloor, 'f', -1, 64)
}

// Enhance implements Enhancer.
func (a *AFFTDN) Enhance(ctx context.Context, inWAV, outWAV string) error {
	return a.ff.Filter(ctx, inWAV, outWAV, a.FilterGraph())
}

// escapeFilterValue quotes characters that are special inside an ffmpeg
// filter option value.
func escapeFilterValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`)
	return r.Replace(v)
}
