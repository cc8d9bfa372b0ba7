package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/logging"
	"github.com/guiyumin/textube/internal/core/pipeline"
	"github.com/guiyumin/textube/internal/core/version"
)

// Exit codes of the job command.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitBusy      = 3
	exitCancelled = 130
)

var (
	configPath string
	engineFlag string
	tierFlag   string
	chunkMs    int
	outputPath string
	assumeYes  bool
	plainFlag  bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "textube [url]",
	Short: "Transcribe audio and video from a URL",
	Long: `Fetch audio from a URL, cut it into chunks and transcribe it.

Sources can be direct media links, pages yt-dlp understands, WebDAV URLs
(webdav://host/path) or configured WebDAV remotes (name:/path).

Examples:
  textube https://example.com/podcast.mp3
  textube https://youtu.be/xyz --engine batch --tier medium
  textube nas:/recordings/meeting.m4a -o meeting.txt
  textube https://example.com/talk.mp4 --engine streaming`,
	Version:       version.Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		code := runJob(cmd, args[0])
		if code != exitOK {
			return exitError(code)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/textube/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "recognition engine: streaming or batch")
	rootCmd.Flags().StringVarP(&tierFlag, "tier", "t", "", "batch model tier: base, small, medium, large")
	rootCmd.Flags().IntVar(&chunkMs, "chunk-ms", 0, "chunk duration in milliseconds (default 30000)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the transcript to a file instead of stdout")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation for the large tier")
	rootCmd.Flags().BoolVar(&plainFlag, "plain", false, "print plain progress lines instead of the interactive view")
}

// exitError carries a process exit code through cobra.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	var code exitError
	if errors.As(err, &code) {
		return int(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFailed
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		c, err := config.LoadFrom(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = config.LoadOrDefault()
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// selectorFromFlags resolves the engine selection, letting flags override
// the configured defaults. A tier flag alone implies the batch engine.
func selectorFromFlags(cfg *config.Config, engine, tier string) (transcriber.Selector, error) {
	if engine == "" && tier != "" {
		engine = string(transcriber.KindBatch)
	}
	if engine == "" {
		engine = cfg.Transcribe.Engine
		if tier == "" && engine != string(transcriber.KindStreaming) {
			tier = cfg.Transcribe.Tier
		}
	}
	return transcriber.ParseSelector(engine, tier)
}

func useTUI(plain bool) bool {
	if plain {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// jobLogger writes to stderr in plain mode. The interactive view owns the
// terminal, so logs go to a file in the work directory instead.
func jobLogger(cfg *config.Config, tui bool) (zerolog.Logger, io.Closer) {
	if !tui {
		return logging.New(cfg.Log), io.NopCloser(nil)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err == nil {
		f, err := os.OpenFile(filepath.Join(cfg.WorkDir, "textube.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			return logging.NewWithWriter(config.LogConfig{Level: cfg.Log.Level, Format: "json"}, f), f
		}
	}
	return zerolog.Nop(), io.NopCloser(nil)
}

func runJob(cmd *cobra.Command, source string) int {
	stderr := cmd.ErrOrStderr()

	cfg, err := loadConfig()
	if err != nil {
		printError(stderr, err.Error())
		return exitUsage
	}
	if chunkMs > 0 {
		cfg.Transcribe.ChunkDurationMs = chunkMs
	}

	sel, err := selectorFromFlags(cfg, engineFlag, tierFlag)
	if err != nil {
		printError(stderr, err.Error())
		return exitUsage
	}
	if !confirmSelector(cmd.InOrStdin(), stderr, sel, assumeYes) {
		fmt.Fprintln(stderr, "Aborted.")
		return exitUsage
	}

	tui := useTUI(plainFlag)
	log, closer := jobLogger(cfg, tui)
	defer closer.Close()

	orch, provider := pipeline.NewFromConfig(cfg, log)
	defer provider.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := orch.StartJob(ctx, source, sel)
	if err != nil {
		printError(stderr, err.Error())
		return startExitCode(err)
	}

	var out pipeline.Outcome
	if tui {
		out, err = runTUI(h, sel)
		if err != nil {
			// the view failed; the job still reports through the channel
			h.Cancel()
			out, _ = h.Wait(context.Background())
		}
	} else {
		sink := newPlainSink(stderr)
		pipeline.Dispatch(context.Background(), h.Events(), sink)
		out, _ = h.Wait(context.Background())
	}

	if out.Status == pipeline.StatusSucceeded {
		if err := writeTranscript(cmd.OutOrStdout(), outputPath, out.Transcript); err != nil {
			printError(stderr, err.Error())
			return exitFailed
		}
	}
	return outcomeExitCode(out)
}

func writeTranscript(stdout io.Writer, path, transcript string) error {
	if path == "" {
		_, err := io.WriteString(stdout, transcript)
		return err
	}
	if err := os.WriteFile(path, []byte(transcript), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func startExitCode(err error) int {
	switch pipeline.KindOf(err) {
	case pipeline.KindInvalidInput:
		return exitUsage
	case pipeline.KindBusy:
		return exitBusy
	}
	return exitFailed
}

func outcomeExitCode(out pipeline.Outcome) int {
	switch out.Status {
	case pipeline.StatusSucceeded:
		return exitOK
	case pipeline.StatusCancelled:
		return exitCancelled
	}
	return exitFailed
}
