package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// ErrNoAudio is returned when a container has no audio stream.
var ErrNoAudio = errors.New("no audio stream found")

// ErrNoVideo is returned when a video upload has no video stream.
var ErrNoVideo = errors.New("no video stream found")

// Options configures the ffmpeg driver.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	SampleRate  int
	Channels    int
	AACBitrate  string
}

// FFmpeg drives ffmpeg and ffprobe subprocesses.
type FFmpeg struct {
	opts   Options
	runner Runner
	log    *zap.Logger
}

// NewFFmpeg creates an ffmpeg driver. A nil runner uses ExecRunner.
func NewFFmpeg(opts Options, runner Runner, log *zap.Logger) *FFmpeg {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.AACBitrate == "" {
		opts.AACBitrate = "192k"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpeg{opts: opts, runner: runner, log: log.Named("ffmpeg")}
}

// SampleRate is the rate every decoded WAV is resampled to.
func (f *FFmpeg) SampleRate() int { return f.opts.SampleRate }

// Channels is the channel count of decoded WAVs.
func (f *FFmpeg) Channels() int { return f.opts.Channels }

// Check verifies that ffmpeg is callable.
func (f *FFmpeg) Check(ctx context.Context) error {
	if _, err := f.runner.Run(ctx, f.opts.FFmpegPath, "-hide_banner", "-version"); err != nil {
		return fmt.Errorf("ffmpeg unavailable: %w", err)
	}
	return nil
}

// ProbeResult is the subset of ffprobe output the pipeline uses.
type ProbeResult struct {
	FormatName      string  `json:"formatName"`
	DurationSeconds float64 `json:"durationSeconds"`
	AudioCodec      string  `json:"audioCodec,omitempty"`
	SampleRate      int     `json:"sampleRate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
	HasAudio        bool    `json:"hasAudio"`
	HasVideo        bool    `json:"hasVideo"`
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	out, err := f.runner.Run(ctx, f.opts.FFprobePath,
		"-v", "error",
		"-show_entries", "format=format_name,duration:stream=codec_type,codec_name,sample_rate,channels",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", filepath.Base(path), err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (*ProbeResult, error) {
	var data probeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	res := &ProbeResult{FormatName: data.Format.FormatName}
	if data.Format.Duration != "" {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			res.DurationSeconds = d
		}
	}
	for _, s := range data.Streams {
		switch s.CodecType {
		case "audio":
			if !res.HasAudio {
				res.HasAudio = true
				res.AudioCodec = s.CodecName
				res.Channels = s.Channels
				if sr, err := strconv.Atoi(s.SampleRate); err == nil {
					res.SampleRate = sr
				}
			}
		case "video":
			res.HasVideo = true
		}
	}
	return res, nil
}

// ToWAV decodes any supported input into 16-bit PCM WAV at the configured
// rate and channel count. Video streams are dropped.
func (f *FFmpeg) ToWAV(ctx context.Context, in, out string) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", in,
		"-vn",
		"-ac", strconv.Itoa(f.opts.Channels),
		"-ar", strconv.Itoa(f.opts.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	}
	f.log.Debug("converting to wav", zap.String("input", filepath.Base(in)))
	if _, err := f.runner.Run(ctx, f.opts.FFmpegPath, args...); err != nil {
		os.Remove(out)
		return fmt.Errorf("converting %s to wav: %w", filepath.Base(in), err)
	}
	return nil
}

// Filter runs an audio filter graph over in and writes PCM WAV to out.
func (f *FFmpeg) Filter(ctx context.Context, in, out, filter string) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", in,
		"-af", filter,
		"-ac", strconv.Itoa(f.opts.Channels),
		"-ar", strconv.Itoa(f.opts.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	}
	if _, err := f.runner.Run(ctx, f.opts.FFmpegPath, args...); err != nil {
		os.Remove(out)
		return fmt.Errorf("filtering with %s: %w", filter, err)
	}
	return nil
}

// RemuxArgs returns the ffmpeg arguments that copy the first video stream of
// video and encode the first audio stream of audio to AAC. The output stops
// at the shorter of the two streams.
func (f *FFmpeg) RemuxArgs(video, audio, out string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", f.opts.AACBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-movflags", "+faststart",
		out,
	}
}

// Remux replaces the audio track of video with audio, writing an MP4.
func (f *FFmpeg) Remux(ctx context.Context, video, audio, out string) error {
	f.log.Debug("remuxing video", zap.String("video", filepath.Base(video)), zap.String("output", filepath.Base(out)))
	if _, err := f.runner.Run(ctx, f.opts.FFmpegPath, f.RemuxArgs(video, audio, out)...); err != nil {
		os.Remove(out)
		return fmt.Errorf("remuxing %s: %w", filepath.Base(video), err)
	}
	return nil
}
