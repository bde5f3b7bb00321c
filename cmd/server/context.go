package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Crazyka51/AudioCleaner/internal/config"
	"github.com/Crazyka51/AudioCleaner/internal/enhance"
	"github.com/Crazyka51/AudioCleaner/internal/history"
	"github.com/Crazyka51/AudioCleaner/internal/logger"
	"github.com/Crazyka51/AudioCleaner/internal/media"
	"github.com/Crazyka51/AudioCleaner/internal/session"
	"github.com/Crazyka51/AudioCleaner/internal/spectrogram"
)

const defaultConfigName = "config.yaml"

// backendOrder is tried after the configured backend.
var backendOrder = []string{enhance.BackendDeepFilter, enhance.BackendRNNoise, enhance.BackendAFFTDN}

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.AppConfig
	configPath string
	configErr  error
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	c.configOnce.Do(func() {
		path, err := c.resolveConfigPath()
		if err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) resolveConfigPath() (string, error) {
	if c.configFlag != nil {
		if p := strings.TrimSpace(*c.configFlag); p != "" {
			return filepath.Abs(p)
		}
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), defaultConfigName), nil
}

// logLevel is the configured level unless --log-level overrides it.
func (c *commandContext) logLevel(cfg *config.AppConfig) string {
	if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
		return *c.levelFlag
	}
	return cfg.Logging.Level
}

func (c *commandContext) newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:      c.logLevel(cfg),
		OutputPath: cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}

// pipeline holds the components every command that cleans media needs.
type pipeline struct {
	ffmpeg   *media.FFmpeg
	formats  *media.Formats
	enhancer enhance.Enhancer
	history  *history.Store
	sessions *session.Manager
}

func (p *pipeline) Close() {
	if p.sessions != nil {
		p.sessions.Close()
	}
	if p.history != nil {
		p.history.Close()
	}
}

// buildPipeline wires ffmpeg, the enhancer and the session manager. A failing
// ffmpeg check is logged, not fatal, so the UI can still report it.
func buildPipeline(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*pipeline, error) {
	runner := media.ExecRunner{}
	ff := media.NewFFmpeg(media.Options{
		FFmpegPath:  cfg.Media.FFmpegPath,
		FFprobePath: cfg.Media.FFprobePath,
		SampleRate:  cfg.Media.SampleRate,
		Channels:    cfg.Media.Channels,
		AACBitrate:  cfg.Media.AACBitrate,
	}, runner, log)

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := ff.Check(checkCtx); err != nil {
		log.Warn("ffmpeg is not usable", zap.Error(err))
	}

	registry := enhance.NewRegistryFromConfig(cfg.Enhancer, ff, runner)
	enhancer, err := registry.FindAvailable(checkCtx, cfg.Enhancer.Backend, backendOrder...)
	if err != nil {
		return nil, err
	}
	if enhancer.Name() != cfg.Enhancer.Backend {
		log.Warn("configured enhancer unavailable, falling back",
			zap.String("configured", cfg.Enhancer.Backend),
			zap.String("using", enhancer.Name()))
	}

	p := &pipeline{
		ffmpeg:   ff,
		formats:  media.NewFormats(cfg.Media.AcceptedFormats, cfg.Media.VideoFormats),
		enhancer: enhancer,
	}

	var recorder session.Recorder
	if cfg.Storage.HistoryDatabase != "" {
		p.history, err = history.Open(cfg.Storage.HistoryDatabase, log.Named("history"))
		if err != nil {
			return nil, err
		}
		recorder = p.history
	}

	p.sessions, err = session.NewManager(ff, enhancer, recorder, session.Options{
		TempDir:     cfg.Storage.TempDirectory,
		MaxSessions: cfg.Processing.MaxConcurrentSessions,
		JobTimeout:  time.Duration(cfg.Processing.JobTimeoutMinutes) * time.Minute,
		MaxDuration: time.Duration(cfg.Media.MaxDurationSecs) * time.Second,
		Spectrogram: spectrogram.Options{
			FFTSize:   cfg.Spectrogram.FFTSize,
			HopLength: cfg.Spectrogram.HopLength,
			MelBands:  cfg.Spectrogram.MelBands,
			TopDB:     cfg.Spectrogram.TopDB,
		},
		Render: spectrogram.RenderOptions{
			PanelWidth:  cfg.Spectrogram.PanelWidth,
			PanelHeight: cfg.Spectrogram.PanelHeight,
		},
	}, log.Named("session"))
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
