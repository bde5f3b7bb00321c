package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8501, cfg.Server.Port)
	assert.Equal(t, "deepfilter", cfg.Enhancer.Backend)
	assert.Equal(t, "deepFilter", cfg.Enhancer.DeepFilterPath)
	assert.Equal(t, []string{".mp3", ".m4a", ".wav", ".flac", ".ogg", ".mov"}, cfg.Media.AcceptedFormats)
	assert.Equal(t, 2048, cfg.Spectrogram.FFTSize)
	assert.Equal(t, 512, cfg.Spectrogram.HopLength)
	assert.Equal(t, 128, cfg.Spectrogram.MelBands)
}

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	// relative defaults are anchored at the config directory
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dir, "data", "history.duckdb"), cfg.Storage.HistoryDatabase)
}

func TestLoadConfig_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  bind_address: 127.0.0.1
  read_timeout_seconds: 10
  idle_timeout_seconds: 60
  body_limit: 200M
media:
  ffmpeg_path: /usr/bin/ffmpeg
  ffprobe_path: /usr/bin/ffprobe
  sample_rate: 16000
  channels: 1
  aac_bitrate: 128k
  accepted_formats: [WAV, "mp3", " .Mov "]
  video_formats: [mov]
enhancer:
  backend: afftdn
  noise_floor_db: -30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, 16000, cfg.Media.SampleRate)
	assert.Equal(t, []string{".wav", ".mp3", ".mov"}, cfg.Media.AcceptedFormats)
	assert.Equal(t, []string{".mov"}, cfg.Media.VideoFormats)
	assert.Equal(t, "afftdn", cfg.Enhancer.Backend)
	assert.Equal(t, -30.0, cfg.Enhancer.NoiseFloor)
	// untouched sections keep their defaults
	assert.Equal(t, 128, cfg.Spectrogram.MelBands)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "elsewhere")

	t.Setenv("PORT", "7777")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("AUDIOCLEANER_ENHANCER", "RNNoise")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg")

	cfg, err := LoadConfig(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, dataDir, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dataDir, "temp"), cfg.Storage.TempDirectory)
	assert.Equal(t, "rnnoise", cfg.Enhancer.Backend)
	assert.Equal(t, "/opt/ffmpeg", cfg.Media.FFmpegPath)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"bad port", func(c *AppConfig) { c.Server.Port = 0 }, "Port"},
		{"unknown backend", func(c *AppConfig) { c.Enhancer.Backend = "magic" }, "Backend"},
		{"no formats", func(c *AppConfig) { c.Media.AcceptedFormats = nil }, "AcceptedFormats"},
		{"sample rate", func(c *AppConfig) { c.Media.SampleRate = 100 }, "SampleRate"},
		{"log level", func(c *AppConfig) { c.Logging.Level = "loud" }, "Level"},
		{"hop exceeds fft", func(c *AppConfig) { c.Spectrogram.HopLength = 4096 }, "hop_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "data")
	cfg.Storage.UploadsDirectory = filepath.Join(dir, "data", "uploads")
	cfg.Storage.TempDirectory = filepath.Join(dir, "tmp")
	cfg.Storage.HistoryDatabase = filepath.Join(dir, "db", "history.duckdb")

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{"data", "data/uploads", "tmp", "db"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
