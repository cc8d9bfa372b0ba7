package transcriber

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/proc"
	"github.com/rs/zerolog"
)

// Batch backends.
const (
	BackendLocal  = "local"  // whisper.cpp bindings in cgo builds, CLI otherwise
	BackendCLI    = "cli"    // whisper.cpp CLI
	BackendOpenAI = "openai" // OpenAI Whisper API
)

// LocalOptions configures the whisper.cpp backends.
type LocalOptions struct {
	BinaryPath string
	Language   string
	Threads    int
	Runner     proc.Runner
}

// OpenAIOptions configures the remote backend.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Options selects and configures engine backends.
type Options struct {
	Backend           string
	ModelsDir         string
	StreamingModelDir string
	Local             LocalOptions
	OpenAI            OpenAIOptions
}

// OptionsFromConfig maps the transcribe section of cfg to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	t := cfg.Transcribe
	apiKey := t.OpenAI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return Options{
		Backend:           t.Backend,
		ModelsDir:         t.ModelsDir,
		StreamingModelDir: t.StreamingModelDir,
		Local: LocalOptions{
			BinaryPath: t.WhisperCLIPath,
			Language:   cfg.Language,
			Threads:    t.Threads,
		},
		OpenAI: OpenAIOptions{
			APIKey:  apiKey,
			BaseURL: t.OpenAI.BaseURL,
			Model:   t.OpenAI.Model,
		},
	}
}

// Provider builds engines for selectors and caches them, so a batch model
// is loaded once and reused by later jobs.
type Provider struct {
	opts    Options
	manager *ModelManager
	log     zerolog.Logger

	// constructors, replaced in tests
	newStreamModel func(dir string, threads int) (StreamModel, error)
	newLocalModel  func(opts LocalOptions, modelPath string) (BatchModel, error)

	mu      sync.Mutex
	engines map[Selector]Engine
}

// NewProvider creates a provider.
func NewProvider(opts Options, log zerolog.Logger) *Provider {
	if opts.Backend == "" {
		opts.Backend = BackendLocal
	}
	if opts.ModelsDir == "" {
		opts.ModelsDir = config.DefaultModelsDir()
	}
	return &Provider{
		opts:           opts,
		manager:        NewModelManager(opts.ModelsDir),
		log:            log,
		newStreamModel: NewStreamModel,
		newLocalModel:  newLocalModel,
		engines:        make(map[Selector]Engine),
	}
}

// Models returns the model manager.
func (p *Provider) Models() *ModelManager {
	return p.manager
}

// Engine returns the engine for sel, creating it on first use.
func (p *Provider) Engine(sel Selector) (Engine, error) {
	sel, err := sel.Normalize()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.engines[sel]; ok {
		return e, nil
	}

	var e Engine
	switch sel.Kind {
	case KindStreaming:
		e, err = p.streamingEngine()
	case KindBatch:
		e, err = p.batchEngine(sel.Tier)
	}
	if err != nil {
		return nil, err
	}

	p.log.Debug().Str("engine", sel.String()).Msg("engine created")
	p.engines[sel] = e
	return e, nil
}

func (p *Provider) streamingEngine() (Engine, error) {
	dir := p.opts.StreamingModelDir
	if dir == "" {
		dir = p.manager.ModelPath(StreamingModelName)
	}
	model, err := p.newStreamModel(dir, p.opts.Local.Threads)
	if err != nil {
		return nil, err
	}
	return NewStreamingEngine(model), nil
}

func (p *Provider) batchEngine(tier Tier) (Engine, error) {
	switch p.opts.Backend {
	case BackendOpenAI:
		o := p.opts.OpenAI
		return NewBatchEngine("openai", tier, func() (BatchModel, error) {
			return newOpenAIModel(o.APIKey, o.BaseURL, o.Model, p.opts.Local.Language)
		}), nil

	case BackendLocal, BackendCLI:
		modelPath := p.manager.TierPath(tier)
		if !p.manager.IsModelDownloaded(string(tier)) {
			return nil, fmt.Errorf("whisper %s model not downloaded (run: textube models download %s)", tier, tier)
		}
		local := p.opts.Local
		if p.opts.Backend == BackendCLI {
			return NewBatchEngine("whisper-cli", tier, func() (BatchModel, error) {
				return newWhisperRunner(local.BinaryPath, modelPath, local.Language, local.Threads, local.Runner)
			}), nil
		}
		return NewBatchEngine("whisper.cpp", tier, func() (BatchModel, error) {
			return p.newLocalModel(local, modelPath)
		}), nil

	default:
		return nil, fmt.Errorf("unknown transcribe backend %q", p.opts.Backend)
	}
}

// Close releases every engine created so far.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for sel, e := range p.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sel, err))
		}
		delete(p.engines, sel)
	}
	return errors.Join(errs...)
}
