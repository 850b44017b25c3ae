// Package builder runs the external build of framework projects.
package builder

import (
	"bytes"
	"codegen-app/internal/apperr"
	"codegen-app/internal/config"
	"codegen-app/internal/logger"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// maxOutputBytes caps captured build output per step
const maxOutputBytes = 64 * 1024

// waitDelay bounds how long output pipes are drained after a step is killed
const waitDelay = 5 * time.Second

// Builder builds a project directory in place
type Builder interface {
	Build(ctx context.Context, dir string) error
	// OutputDir is the subdirectory of the project holding the build output
	OutputDir() string
}

// CommandBuilder runs the steps of a build profile as subprocesses
type CommandBuilder struct {
	profile *config.BuildProfile
}

// NewCommandBuilder creates a builder from a build profile
func NewCommandBuilder(profile *config.BuildProfile) *CommandBuilder {
	if profile == nil {
		profile = config.DefaultBuildProfile()
	}
	return &CommandBuilder{profile: profile}
}

// OutputDir returns the configured output subdirectory
func (b *CommandBuilder) OutputDir() string {
	return b.profile.OutputDir
}

// Build runs every step in dir, stopping at the first failure
func (b *CommandBuilder) Build(ctx context.Context, dir string) error {
	if timeout := b.profile.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for i, step := range b.profile.Steps {
		start := time.Now()
		log := logger.Log.WithFields(logrus.Fields{
			"dir":     dir,
			"step":    i + 1,
			"command": step.Command + " " + strings.Join(step.Args, " "),
		})

		cmd := exec.CommandContext(ctx, step.Command, step.Args...)
		cmd.Dir = dir
		cmd.WaitDelay = waitDelay
		var output bytes.Buffer
		limited := &limitedWriter{w: &output, max: maxOutputBytes}
		cmd.Stdout = limited
		cmd.Stderr = limited

		err := cmd.Run()
		if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
			err = fmt.Errorf("%w (%w)", err, ctxErr)
		}
		if err != nil {
			log.WithError(err).WithField("output", output.String()).Error("Build step failed")
			return fmt.Errorf("%w: step %q failed: %w: %s", apperr.ErrBuild, step.Command, err, strings.TrimSpace(output.String()))
		}

		log.WithFields(logrus.Fields{
			"duration": time.Since(start).String(),
			"output":   output.String(),
		}).Debug("Build step finished")
	}

	return nil
}

// limitedWriter keeps at most max bytes and silently drops the rest
type limitedWriter struct {
	w       *bytes.Buffer
	max     int
	written int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if remaining := l.max - l.written; remaining > 0 {
		chunk := p
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		n, _ := l.w.Write(chunk)
		l.written += n
	}
	return len(p), nil
}
