// Package proc runs external tools (yt-dlp, ffmpeg, whisper-cli) behind an
// interface so callers can substitute a fake in tests.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultGracePeriod is how long a cancelled process may take to exit.
const DefaultGracePeriod = 5 * time.Second

// Result holds the output and status of a completed subprocess.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner abstracts process execution.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct {
	// GracePeriod bounds the wait after the context is cancelled.
	GracePeriod time.Duration
}

// Run executes one command and captures stdout/stderr and exit code.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{ExitCode: -1}, fmt.Errorf("proc: binary is required")
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.WaitDelay = r.GracePeriod
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultGracePeriod
	}

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("proc: %s killed: %w", name, ctx.Err())
		}
		return result, fmt.Errorf("proc: %s exit code %d: %w", name, result.ExitCode, err)
	}

	return result, nil
}

// Available reports whether name resolves to an executable.
func Available(name string) bool {
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// Tail returns the last non-empty line of process output, for error messages.
func Tail(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
