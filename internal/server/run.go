package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/logging"
	"github.com/guiyumin/textube/internal/core/pipeline"
)

// shutdownTimeout bounds the wait for the running job and open streams.
const shutdownTimeout = 10 * time.Second

// Run serves the API on cfg.Server.Port until ctx ends.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	orch, provider := pipeline.NewFromConfig(cfg, log)
	defer provider.Close()

	srv := NewServer(Options{
		Port:          cfg.Server.Port,
		APIKey:        cfg.Server.APIKey,
		DefaultEngine: cfg.Transcribe.Engine,
		DefaultTier:   cfg.Transcribe.Tier,
	}, orch, provider.Models(), logging.Component(log, "server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
