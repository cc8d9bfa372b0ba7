package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
)

// modelsCmd lists the recognition models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and manage recognition models",
	Long: `List the models behind each batch tier and the streaming engine.

Models are stored in ~/.config/textube/models/ unless transcribe.models_dir
is set.

Examples:
  textube models
  textube models download small
  textube models download streaming`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mm := transcriber.NewModelManager(cfg.Transcribe.ModelsDir)
		printModels(cmd.OutOrStdout(), mm)
		return nil
	},
}

// modelsDownloadCmd downloads a model
var modelsDownloadCmd = &cobra.Command{
	Use:   "download <tier|streaming>",
	Short: "Download a recognition model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name := strings.ToLower(args[0])
		model := transcriber.GetModel(name)
		if model == nil {
			return fmt.Errorf("unknown model %q (want base, small, medium, large or streaming)", name)
		}

		out := cmd.OutOrStdout()
		mm := transcriber.NewModelManager(cfg.Transcribe.ModelsDir)
		if mm.IsModelDownloaded(name) {
			fmt.Fprintf(out, "Model '%s' is already downloaded.\n", name)
			fmt.Fprintf(out, "Location: %s\n", mm.ModelPath(name))
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Fprintf(out, "\nDownloading %s (%s)\n", model.Name, model.Size)
		path, err := mm.EnsureModel(ctx, name, downloadProgress(cmd.ErrOrStderr()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Download complete!\nLocation: %s\n", path)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsDownloadCmd)
	rootCmd.AddCommand(modelsCmd)
}

func printModels(w io.Writer, mm *transcriber.ModelManager) {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	sizeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	fmt.Fprintln(w, headerStyle.Render("Models:"))
	fmt.Fprintln(w)
	for _, m := range mm.ListAvailableModels() {
		status := ""
		if m.Downloaded {
			status = " [downloaded]"
		}
		fmt.Fprintf(w, "  %s %s  %s%s\n",
			nameStyle.Render(fmt.Sprintf("%-10s", m.Name)),
			sizeStyle.Render(fmt.Sprintf("%8s", m.Size)),
			m.Description,
			status,
		)
		if m.Advisory != "" {
			fmt.Fprintf(w, "  %-10s %8s  %s\n", "", "", hintStyle.Render(m.Advisory))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Models directory: %s\n", mm.ModelsDir())
}

// downloadProgress redraws a single progress line on w.
func downloadProgress(w io.Writer) transcriber.ProgressFunc {
	last := -1
	return func(current, total int64) {
		if total <= 0 {
			fmt.Fprintf(w, "\r  %s", transcriber.FormatBytes(current))
			return
		}
		percent := int(current * 100 / total)
		if percent == last {
			return
		}
		last = percent
		fmt.Fprintf(w, "\r  %3d%%  %s / %s", percent, transcriber.FormatBytes(current), transcriber.FormatBytes(total))
	}
}
