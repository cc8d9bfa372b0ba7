package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/logging"
	"github.com/guiyumin/textube/internal/core/segment"
)

// NewFromConfig builds an orchestrator with the production acquirer,
// segmenter and engine provider. The provider is returned so callers can
// list models and close engines on shutdown.
func NewFromConfig(cfg *config.Config, log zerolog.Logger) (*Orchestrator, *transcriber.Provider) {
	acq := acquire.New(cfg, logging.Component(log, "acquire"))
	seg := segment.New(cfg.Transcribe.ChunkDurationMs, logging.Component(log, "segment"))
	provider := transcriber.NewProvider(transcriber.OptionsFromConfig(cfg), logging.Component(log, "transcriber"))
	return New(acq, seg, provider, logging.Component(log, "pipeline")), provider
}
