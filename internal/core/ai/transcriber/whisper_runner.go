package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/guiyumin/textube/internal/core/proc"
)

// whisperRunner implements BatchModel by running the whisper.cpp CLI.
type whisperRunner struct {
	binaryPath string
	modelPath  string
	language   string
	threads    int
	runner     proc.Runner
}

// newWhisperRunner checks the model file and binary.
func newWhisperRunner(binaryPath, modelPath, language string, threads int, runner proc.Runner) (*whisperRunner, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found: %s", modelPath)
	}
	if binaryPath == "" {
		binaryPath = "whisper-cli"
	}
	if runner == nil {
		if !proc.Available(binaryPath) {
			return nil, fmt.Errorf("whisper.cpp binary %q not found in PATH", binaryPath)
		}
		runner = proc.ExecRunner{}
	}
	if threads <= 0 {
		// Use available CPU threads
		threads = min(runtime.NumCPU(), 8)
	}
	return &whisperRunner{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		language:   language,
		threads:    threads,
		runner:     runner,
	}, nil
}

// Transcribe runs whisper-cli on one WAV file and reads its text output.
func (w *whisperRunner) Transcribe(ctx context.Context, wavPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "textube-whisper-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputBase := filepath.Join(tmpDir, "output")
	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-otxt",
		"-of", outputBase,
		"-nt",
		"-t", strconv.Itoa(w.threads),
	}
	if w.language != "" && w.language != "auto" {
		args = append(args, "-l", w.language)
	}

	res, err := w.runner.Run(ctx, w.binaryPath, args...)
	if err != nil {
		if tail := proc.Tail(res.Stderr); tail != "" {
			return "", fmt.Errorf("whisper failed: %s: %w", tail, err)
		}
		return "", fmt.Errorf("whisper failed: %w", err)
	}

	content, err := os.ReadFile(outputBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("failed to read output: %w", err)
	}
	return cleanTranscriptText(string(content)), nil
}

func (w *whisperRunner) Close() error {
	return nil
}

var timestampPrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}[.,]\d{3} --> \d{2}:\d{2}:\d{2}[.,]\d{3}\]\s*`)

// cleanTranscriptText strips timestamps and joins lines into one paragraph.
func cleanTranscriptText(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(timestampPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" || line == "[BLANK_AUDIO]" {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
