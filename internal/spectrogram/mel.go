// Package spectrogram computes mel spectrograms and renders the
// original-versus-cleaned comparison image.
package spectrogram

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Options controls the mel analysis. Zero values take the usual speech
// defaults: 2048-point FFT, hop 512, 128 bands, 80 dB range.
type Options struct {
	FFTSize   int
	HopLength int
	MelBands  int
	TopDB     float64
	FMin      float64
	FMax      float64 // 0 means Nyquist
}

func (o Options) withDefaults(sampleRate int) Options {
	if o.FFTSize <= 0 {
		o.FFTSize = 2048
	}
	if o.HopLength <= 0 {
		o.HopLength = o.FFTSize / 4
	}
	if o.MelBands <= 0 {
		o.MelBands = 128
	}
	if o.TopDB <= 0 {
		o.TopDB = 80
	}
	nyquist := float64(sampleRate) / 2
	if o.FMax <= 0 || o.FMax > nyquist {
		o.FMax = nyquist
	}
	if o.FMin < 0 || o.FMin >= o.FMax {
		o.FMin = 0
	}
	return o
}

const amin = 1e-10

// Mel is a mel power spectrogram in dB relative to its own maximum, clipped
// to TopDB below it. DB is indexed [band][frame] with band 0 the lowest.
type Mel struct {
	SampleRate int
	HopLength  int
	TopDB      float64
	Bands      int
	Frames     int
	DB         [][]float32
}

// Compute returns the mel spectrogram of mono samples. The signal is centered
// by reflect-padding FFTSize/2 on both sides.
func Compute(samples []float32, sampleRate int, opts Options) *Mel {
	opts = opts.withDefaults(sampleRate)
	n := opts.FFTSize
	hop := opts.HopLength

	mel := &Mel{
		SampleRate: sampleRate,
		HopLength:  hop,
		TopDB:      opts.TopDB,
		Bands:      opts.MelBands,
		DB:         make([][]float32, opts.MelBands),
	}
	if len(samples) == 0 {
		for b := range mel.DB {
			mel.DB[b] = []float32{}
		}
		return mel
	}

	padded := centerPad(samples, n/2)
	frames := 1 + (len(padded)-n)/hop
	mel.Frames = frames

	window := hann(n)
	filters := melFilterbank(sampleRate, n, opts.MelBands, opts.FMin, opts.FMax)
	fft := fourier.NewFFT(n)

	power := make([][]float64, opts.MelBands)
	for b := range power {
		power[b] = make([]float64, frames)
	}

	buf := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	spec := make([]float64, n/2+1)
	maxPower := 0.0

	for t := 0; t < frames; t++ {
		start := t * hop
		for k := 0; k < n; k++ {
			buf[k] = float64(padded[start+k]) * window[k]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			a := cmplx.Abs(c)
			spec[k] = a * a
		}
		for b, f := range filters {
			var sum float64
			for k := f.start; k < f.end; k++ {
				sum += f.weights[k-f.start] * spec[k]
			}
			power[b][t] = sum
			if sum > maxPower {
				maxPower = sum
			}
		}
	}

	ref := 10 * math.Log10(math.Max(amin, maxPower))
	for b := range power {
		row := make([]float32, frames)
		for t, p := range power[b] {
			db := 10*math.Log10(math.Max(amin, p)) - ref
			if db < -opts.TopDB {
				db = -opts.TopDB
			}
			row[t] = float32(db)
		}
		mel.DB[b] = row
	}
	return mel
}

// Downsample averages frames into at most maxFrames columns.
func (m *Mel) Downsample(maxFrames int) [][]float32 {
	if maxFrames <= 0 || m.Frames <= maxFrames {
		out := make([][]float32, m.Bands)
		for b := range m.DB {
			out[b] = append([]float32(nil), m.DB[b]...)
		}
		return out
	}
	out := make([][]float32, m.Bands)
	for b, row := range m.DB {
		cols := make([]float32, maxFrames)
		for c := 0; c < maxFrames; c++ {
			lo := c * m.Frames / maxFrames
			hi := (c + 1) * m.Frames / maxFrames
			if hi <= lo {
				hi = lo + 1
			}
			var sum float64
			for t := lo; t < hi; t++ {
				sum += float64(row[t])
			}
			cols[c] = float32(sum / float64(hi-lo))
		}
		out[b] = cols
	}
	return out
}

// centerPad reflect-pads x by pad samples on both sides. Signals too short
// to reflect are zero-padded.
func centerPad(x []float32, pad int) []float32 {
	out := make([]float32, len(x)+2*pad)
	copy(out[pad:], x)
	if len(x) <= pad {
		return out
	}
	for i := 0; i < pad; i++ {
		out[pad-1-i] = x[i+1]
		out[pad+len(x)+i] = x[len(x)-2-i]
	}
	return out
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

type melFilter struct {
	start, end int
	weights    []float64
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSP
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// melFilterbank builds Slaney-normalized triangular filters over the FFT bins.
func melFilterbank(sampleRate, nfft, bands int, fmin, fmax float64) []melFilter {
	bins := nfft/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}

	lo, hi := hzToMel(fmin), hzToMel(fmax)
	hz := make([]float64, bands+2)
	for i := range hz {
		hz[i] = melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	filters := make([]melFilter, bands)
	for b := 0; b < bands; b++ {
		left, center, right := hz[b], hz[b+1], hz[b+2]
		enorm := 2.0 / (right - left)
		f := melFilter{start: -1}
		var weights []float64
		for k, freq := range fftFreqs {
			lower := (freq - left) / (center - left)
			upper := (right - freq) / (right - center)
			w := math.Max(0, math.Min(lower, upper))
			if w <= 0 {
				if f.start >= 0 {
					break
				}
				continue
			}
			if f.start < 0 {
				f.start = k
			}
			weights = append(weights, w*enorm)
		}
		if f.start < 0 {
			f.start = 0
		}
		f.weights = weights
		f.end = f.start + len(weights)
		filters[b] = f
	}
	return filters
}
