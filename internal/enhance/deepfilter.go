package enhance

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Crazyka51/AudioCleaner/internal/media"
)

// DeepFilterOptions configures the DeepFilterNet command line tool.
type DeepFilterOptions struct {
	BinaryPath       string
	ModelDirectory   string
	AttenuationLimit float64
	PostFilter       bool
}

// DeepFilter runs the pretrained DeepFilterNet model through its CLI.
// The tool writes into an output directory, so each run gets a private one
// next to outWAV.
type DeepFilter struct {
	opts   DeepFilterOptions
	runner media.Runner
}

// NewDeepFilter creates the DeepFilterNet backend.
func NewDeepFilter(opts DeepFilterOptions, runner media.Runner) *DeepFilter {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "deepFilter"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &DeepFilter{opts: opts, runner: runner}
}

// Name implements Enhancer.
func (d *DeepFilter) Name() string { return BackendDeepFilter }

// Check implements Enhancer.
func (d *DeepFilter) Check(ctx context.Context) error {
	if _, err := d.runner.Run(ctx, d.opts.BinaryPath, "--help"); err != nil {
		return fmt.Errorf("deepfilter unavailable: %w", err)
	}
	return nil
}

// Args returns the command line for one input file.
func (d *DeepFilter) Args(inWAV, outDir string) []string {
	args := []string{"--output-dir", outDir}
	if d.opts.ModelDirectory != "" {
		args = append(args, "--model-base-dir", d.opts.ModelDirectory)
	}
	if d.opts.AttenuationLimit > 0 {
		args = append(args, "--atten-lim", strconv.FormatFloat(d.opts.AttenuationLimit, 'f', -1, 64))
	}
	if d.opts.PostFilter {
		args = append(args, "--pf")
	}
	return append(args, inWAV)
}

// Enhance implements Enhancer.
func (d *DeepFilter) Enhance(ctx context.Context, inWAV, outWAV string) error {
	outDir, err := os.MkdirTemp(filepath.Dir(outWAV), "deepfilter-*")
	if err != nil {
		return fmt.Errorf("creating deepfilter output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if _, err := d.runner.Run(ctx, d.opts.BinaryPath, d.Args(inWAV, outDir)...); err != nil {
		return fmt.Errorf("deepfilter: %w", err)
	}

	produced, err := findWAV(outDir)
	if err != nil {
		return err
	}
	return moveFile(produced, outWAV)
}

// findWAV returns the single .wav file the model wrote into dir.
func findWAV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading deepfilter output: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", ErrNoOutput
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying enhanced audio: %w", err)
	}
	return out.Close()
}
