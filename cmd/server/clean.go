package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Crazyka51/AudioCleaner/internal/models"
	"github.com/Crazyka51/AudioCleaner/internal/session"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var output string
	var spectrogramOut string

	cmd := &cobra.Command{
		Use:   "clean <input>",
		Short: "Clean a single file without starting the server",
		Long: "Runs the same convert, enhance and (for video) remux pipeline as the web UI.\n" +
			"Without -o the result is written to the current directory as cleaned_audio.wav\n" +
			"or cleaned_output.mp4.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := buildPipeline(runCtx, cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.formats.Check(absPath); err != nil {
				return err
			}

			name := filepath.Base(absPath)
			sess, err := p.sessions.Start(runCtx, "", absPath, name, p.formats.KindOf(name))
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			events, unsubscribe, err := p.sessions.Subscribe(sess.ID)
			if err != nil {
				return err
			}
			go printProgress(stderr, events)
			defer unsubscribe()

			if _, err := waitStep(runCtx, p.sessions, sess.ID, models.SessionStatusReady); err != nil {
				return err
			}
			if _, err := p.sessions.Clean(sess.ID); err != nil {
				return err
			}
			done, err := waitStep(runCtx, p.sessions, sess.ID, models.SessionStatusComplete)
			if err != nil {
				return err
			}

			src, downloadName, _, err := p.sessions.Result(sess.ID)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = downloadName
			}
			if err := copyFile(src, dest); err != nil {
				return err
			}

			if spectrogramOut != "" {
				png, err := p.sessions.SpectrogramPath(sess.ID)
				if err != nil {
					return err
				}
				if err := copyFile(png, spectrogramOut); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s with %s in %s -> %s\n",
				name, done.Enhancer, formatMillis(done.CleanTimeMs), dest)
			if done.Levels != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Level RMS %s -> %s, peak %s -> %s\n",
					formatDBFS(done.Levels.OriginalRMS), formatDBFS(done.Levels.CleanedRMS),
					formatDBFS(done.Levels.OriginalPeak), formatDBFS(done.Levels.CleanedPeak))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&spectrogramOut, "spectrogram", "", "Also write the comparison PNG to this path")
	return cmd
}

// formatDBFS renders a linear level in decibels relative to full scale.
func formatDBFS(level float64) string {
	if level <= 0 {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", 20*math.Log10(level))
}

// waitStep waits for the running step and fails unless it ended in want.
func waitStep(ctx context.Context, sessions *session.Manager, id string, want models.SessionStatus) (*models.CleanSession, error) {
	s, err := sessions.Wait(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == models.SessionStatusError {
		return nil, errors.New(s.Error)
	}
	if s.Status != want {
		return nil, fmt.Errorf("unexpected session status %q", s.Status)
	}
	return s, nil
}

func printProgress(w io.Writer, events <-chan models.ProgressEvent) {
	last := ""
	for ev := range events {
		stage := ev.Stage
		if stage == "" {
			stage = string(ev.Status)
		}
		if stage == last {
			continue
		}
		last = stage
		fmt.Fprintf(w, "  %3.0f%%  %s\n", ev.Progress, stage)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return out.Close()
}
