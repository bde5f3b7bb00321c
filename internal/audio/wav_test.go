package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate int, seconds float64, amp float32) []float32 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestWriteReadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sine(440, 16000, 0.5, 0.5)

	require.NoError(t, WriteWAV(path, in, 16000))

	wf, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, wf.SampleRate)
	assert.Equal(t, 1, wf.Channels)
	assert.Equal(t, 16, wf.BitDepth)
	require.Len(t, wf.Samples, len(in))
	assert.InDelta(t, 0.5, wf.Duration(), 1e-6)
	assert.InDelta(t, 0.5, wf.Peak(), 0.01)
	assert.InDelta(t, 0.5/math.Sqrt2, wf.RMS(), 0.01)

	for i := 0; i < len(in); i += 997 {
		assert.InDelta(t, in[i], wf.Samples[i], 1.0/16384)
	}
}

func TestWriteWAV_Clips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, WriteWAV(path, []float32{2, -2, 0}, 8000))

	wf, err := ReadWAV(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, wf.Samples[0], 1e-3)
	assert.InDelta(t, -1.0, wf.Samples[1], 1e-3)
	assert.Equal(t, float32(0), wf.Samples[2])
}

func TestReadWAV_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data"), 0644))

	_, err := ReadWAV(path)
	assert.ErrorIs(t, err, ErrInvalidWAV)

	_, err = ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestMixdown(t *testing.T) {
	// two 16-bit channels: left full scale, right silent
	out := mixdown([]int{32768, 0, -16384, -16384}, 2, 16)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.5, out[0], 1e-6)
	assert.InDelta(t, -0.5, out[1], 1e-6)
}

func TestEmptyWaveform(t *testing.T) {
	wf := &Waveform{}
	assert.Equal(t, 0.0, wf.Duration())
	assert.Equal(t, 0.0, wf.RMS())
	assert.Equal(t, 0.0, wf.Peak())
}

func TestReadInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.wav")
	require.NoError(t, WriteWAV(path, sine(220, 8000, 2, 0.3), 8000))

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 16, info.BitDepth)
	assert.InDelta(t, 2.0, info.Duration, 0.01)

	bad := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))
	_, err = ReadInfo(bad)
	assert.ErrorIs(t, err, ErrInvalidWAV)
}
