package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guiyumin/textube/internal/core/logging"
	"github.com/guiyumin/textube/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for remote transcription",
	Long: `Start an HTTP server that runs transcription jobs via API.

Examples:
  textube serve              # Start server on port 8080
  textube serve -p 9000      # Start server on port 9000

API Endpoints:
  GET    /api/health            # Health check
  GET    /api/models            # Models and download status
  POST   /api/jobs              # Start a job
  GET    /api/jobs              # List jobs
  GET    /api/jobs/current      # The running job
  GET    /api/jobs/:id          # Job status and transcript
  GET    /api/jobs/:id/events   # Server-sent job events
  DELETE /api/jobs/:id          # Cancel or forget a job`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, cfg, logging.New(cfg.Log))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	rootCmd.AddCommand(serveCmd)
}
