// Package config provides YAML-based configuration management for the cleaner server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Processing configuration
	Processing ProcessingConfig `yaml:"processing"`

	// Media tool configuration
	Media MediaConfig `yaml:"media"`

	// Enhancement model configuration
	Enhancer EnhancerConfig `yaml:"enhancer"`

	Spectrogram SpectrogramConfig `yaml:"spectrogram"`

	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int    `yaml:"port" validate:"min=1,max=65535"`
	BindAddress          string `yaml:"bind_address"`
	EnableCORS           bool   `yaml:"enable_cors"`
	AllowOrigins         string `yaml:"allow_origins"`
	ReadTimeout          int    `yaml:"read_timeout_seconds" validate:"min=1"`
	WriteTimeout         int    `yaml:"write_timeout_seconds" validate:"min=0"`
	IdleTimeout          int    `yaml:"idle_timeout_seconds" validate:"min=1"`
	BodyLimit            string `yaml:"body_limit" validate:"required"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory" validate:"required"`
	UploadsDirectory string `yaml:"uploads_directory" validate:"required"`
	TempDirectory    string `yaml:"temp_directory" validate:"required"`
	HistoryDatabase  string `yaml:"history_database"`
	AllowFileDelete  bool   `yaml:"allow_file_deletion"`
}

// ProcessingConfig contains session and pipeline settings
type ProcessingConfig struct {
	MaxConcurrentSessions  int  `yaml:"max_concurrent_sessions" validate:"min=1"`
	SessionTimeoutMinutes  int  `yaml:"session_timeout_minutes" validate:"min=1"`
	CleanupIntervalMinutes int  `yaml:"cleanup_interval_minutes" validate:"min=1"`
	JobTimeoutMinutes      int  `yaml:"job_timeout_minutes" validate:"min=1"`
	EnableCompression      bool `yaml:"enable_compression"`
	CompressionLevel       int  `yaml:"compression_level" validate:"min=-1,max=9"`
}

// MediaConfig controls the ffmpeg/ffprobe subprocesses
type MediaConfig struct {
	FFmpegPath      string   `yaml:"ffmpeg_path" validate:"required"`
	FFprobePath     string   `yaml:"ffprobe_path" validate:"required"`
	SampleRate      int      `yaml:"sample_rate" validate:"min=8000,max=192000"`
	Channels        int      `yaml:"channels" validate:"min=1,max=2"`
	AACBitrate      string   `yaml:"aac_bitrate" validate:"required"`
	AcceptedFormats []string `yaml:"accepted_formats" validate:"min=1,dive,required"`
	VideoFormats    []string `yaml:"video_formats"`
	MaxDurationSecs int      `yaml:"max_duration_seconds" validate:"min=0"`
}

// EnhancerConfig selects and configures the external enhancement model
type EnhancerConfig struct {
	Backend          string  `yaml:"backend" validate:"oneof=deepfilter rnnoise afftdn"`
	DeepFilterPath   string  `yaml:"deep_filter_path"`
	ModelDirectory   string  `yaml:"model_directory"`
	AttenuationLimit float64 `yaml:"attenuation_limit_db" validate:"min=0"`
	RNNoiseModel     string  `yaml:"rnnoise_model"`
	NoiseFloor       float64 `yaml:"noise_floor_db" validate:"min=-80,max=-20"`
}

// SpectrogramConfig holds mel spectrogram and rendering parameters
type SpectrogramConfig struct {
	FFTSize     int     `yaml:"fft_size" validate:"min=64"`
	HopLength   int     `yaml:"hop_length" validate:"min=1"`
	MelBands    int     `yaml:"mel_bands" validate:"min=8,max=512"`
	TopDB       float64 `yaml:"top_db" validate:"gt=0"`
	PanelWidth  int     `yaml:"panel_width" validate:"min=64"`
	PanelHeight int     `yaml:"panel_height" validate:"min=64"`
}

// LoggingConfig controls the zap logger and file rotation
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                 8501,
			BindAddress:          "0.0.0.0",
			EnableCORS:           true,
			AllowOrigins:         "*",
			ReadTimeout:          30,
			WriteTimeout:         0,
			IdleTimeout:          120,
			BodyLimit:            "1G",
			EnableRequestLogging: true,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			HistoryDatabase:  "./data/history.duckdb",
			AllowFileDelete:  true,
		},
		Processing: ProcessingConfig{
			MaxConcurrentSessions:  4,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			JobTimeoutMinutes:      20,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Media: MediaConfig{
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			SampleRate:      48000,
			Channels:        1,
			AACBitrate:      "192k",
			AcceptedFormats: []string{".mp3", ".m4a", ".wav", ".flac", ".ogg", ".mov"},
			VideoFormats:    []string{".mov"},
			MaxDurationSecs: 0,
		},
		Enhancer: EnhancerConfig{
			Backend:          "deepfilter",
			DeepFilterPath:   "deepFilter",
			AttenuationLimit: 0,
			RNNoiseModel:     "./data/models/std.rnnn",
			NoiseFloor:       -25,
		},
		Spectrogram: SpectrogramConfig{
			FFTSize:     2048,
			HopLength:   512,
			MelBands:    128,
			TopDB:       80,
			PanelWidth:  600,
			PanelHeight: 300,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A default file is written
// when none exists.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))
	config.normalizeFormats()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# AudioCleaner configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the struct tags of every section.
func (c *AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Spectrogram.HopLength > c.Spectrogram.FFTSize {
		return fmt.Errorf("invalid configuration: spectrogram hop_length %d exceeds fft_size %d",
			c.Spectrogram.HopLength, c.Spectrogram.FFTSize)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.TempDirectory = filepath.Join(dataDir, "temp")
		c.Storage.HistoryDatabase = filepath.Join(dataDir, "history.duckdb")
	}

	if tempDir := os.Getenv("AUDIOCLEANER_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}

	if backend := os.Getenv("AUDIOCLEANER_ENHANCER"); backend != "" {
		c.Enhancer.Backend = strings.ToLower(backend)
	}

	if ffmpeg := os.Getenv("FFMPEG_PATH"); ffmpeg != "" {
		c.Media.FFmpegPath = ffmpeg
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.TempDirectory)
	resolve(&c.Storage.HistoryDatabase)
	resolve(&c.Enhancer.RNNoiseModel)
	resolve(&c.Enhancer.ModelDirectory)
	resolve(&c.Logging.FilePath)
}

// normalizeFormats lowercases extensions and makes sure they start with a dot.
func (c *AppConfig) normalizeFormats() {
	norm := func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, f := range list {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" {
				continue
			}
			if !strings.HasPrefix(f, ".") {
				f = "." + f
			}
			out = append(out, f)
		}
		return out
	}
	c.Media.AcceptedFormats = norm(c.Media.AcceptedFormats)
	c.Media.VideoFormats = norm(c.Media.VideoFormats)
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
	}
	if c.Storage.HistoryDatabase != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.HistoryDatabase))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
