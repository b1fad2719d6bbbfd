package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"cuecard/internal/audio"
	"cuecard/internal/config"
	"cuecard/internal/credentials"
	"cuecard/internal/domain"
	"cuecard/internal/ports"
	"cuecard/internal/providers/backend"
	"cuecard/internal/providers/completion"
	"cuecard/internal/providers/deepgram"
	"cuecard/internal/providers/localstore"
	"cuecard/internal/usecase"
	"cuecard/internal/vocabulary"
)

// Options are the per-run inputs that do not come from configuration.
type Options struct {
	InterviewID     string
	Source          domain.AudioSource
	DurationSeconds int
	Events          ports.EventSink
	Log             zerolog.Logger
	HTTPClient      *http.Client
}

// Services is the assembled runtime graph.
type Services struct {
	Orchestrator *usecase.SessionOrchestrator
	Devices      *usecase.DeviceRegistry
	Config       config.Config

	// Store is set in offline mode.
	Store *localstore.Store
}

// Build loads configuration and wires the runtime graph.
func Build(opts Options) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, opts)
}

// Assemble wires the runtime graph for cfg. Without a backend URL the local
// store serves the ledger, answer archive and summaries, and the Deepgram key
// is used directly.
func Assemble(cfg config.Config, opts Options) (*Services, error) {
	if opts.InterviewID == "" {
		return nil, fmt.Errorf("%w: interview id is required", domain.ErrConfiguration)
	}
	if opts.Events == nil {
		return nil, errors.New("event sink is required")
	}
	log := opts.Log

	corrector, err := vocabulary.Load(cfg.Vocabulary.Path, cfg.Vocabulary.IterationLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	tokens := credentials.ForMode(cfg.Backend.AuthToken, cfg.Offline())

	var (
		creds     ports.CredentialProvider
		ledger    ports.UsageLedger
		answers   ports.AnswerStore
		summaries ports.SummaryGenerator
		gen       ports.CompletionProvider
		store     *localstore.Store
	)

	if cfg.Offline() {
		store, err = localstore.Open(cfg.Store.Path, opts.DurationSeconds)
		if err != nil {
			return nil, err
		}
		creds = credentials.Static(cfg.Deepgram.APIKey)
		ledger, answers, summaries = store, store, store
		log.Info().Str("store", cfg.Store.Path).Msg("offline mode")
	} else {
		client, err := backend.NewClient(cfg.Backend.BaseURL, tokens, opts.HTTPClient, log)
		if err != nil {
			return nil, err
		}
		creds, ledger, answers, summaries = client, client, client, client
	}

	if cfg.Backend.CompletionURL != "" {
		gen = completion.NewProvider(cfg.Backend.CompletionURL, tokens.Outbound(), opts.HTTPClient, log)
	} else {
		gen = unavailableCompletion{}
	}

	enumerator := audio.NewPulseEnumerator()
	registry := usecase.NewDeviceRegistry(enumerator, log)

	captureCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		Container:   cfg.Audio.Container,
	}
	capture := usecase.NewCaptureController(audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand), enumerator, captureCfg, log)

	buffer := usecase.NewTranscriptBuffer()
	transcription := usecase.NewTranscriptionClient(
		deepgram.NewProvider(deepgram.Config{
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		corrector,
		buffer,
		opts.Events,
		log,
		transcriptionConfig(cfg),
	)

	generator := usecase.NewAnswerGenerator(gen, answers, log, usecase.GeneratorConfig{
		InterviewID:  opts.InterviewID,
		Provider:     cfg.Generation.Provider,
		SystemPrompt: cfg.Generation.SystemPrompt,
		MaxLines:     cfg.Generation.MaxLines,
		Verbosity:    usecase.ParseVerbosity(cfg.Generation.Verbosity),
	})

	orchestrator := usecase.NewSessionOrchestrator(usecase.OrchestratorDeps{
		Credentials:   creds,
		Tokens:        tokens,
		Ledger:        ledger,
		Summaries:     summaries,
		Devices:       registry,
		Capture:       capture,
		Transcription: transcription,
		Buffer:        buffer,
		Generator:     generator,
		Events:        opts.Events,
	}, log, usecase.OrchestratorConfig{
		InterviewID:        opts.InterviewID,
		Source:             opts.Source,
		DurationSeconds:    opts.DurationSeconds,
		MinTranscriptChars: cfg.Session.MinTranscriptChars,
	})

	return &Services{
		Orchestrator: orchestrator,
		Devices:      registry,
		Config:       cfg,
		Store:        store,
	}, nil
}

// Close releases resources held by the graph. Call after the orchestrator
// has been finalized and drained.
func (s *Services) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

func transcriptionConfig(cfg config.Config) usecase.TranscriptionConfig {
	streaming := ports.StreamingConfig{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		InterimResults: true,
	}
	tc := usecase.TranscriptionConfig{FlushTimeout: cfg.Session.FlushTimeout}

	if cfg.Audio.Container == "webm" {
		streaming.Container = "webm"
		tc.ChunkSize = 4096
	} else {
		streaming.Encoding = "linear16"
		tc.ChunkSize = cfg.Audio.SampleRate * cfg.Audio.Channels * 2 * int(cfg.Audio.ChunkInterval/time.Millisecond) / 1000
		tc.FixedChunks = true
	}
	tc.Streaming = streaming
	return tc
}

// unavailableCompletion rejects generation when no endpoint is configured.
type unavailableCompletion struct{}

func (unavailableCompletion) OpenStream(context.Context, domain.GenerationRequest) (ports.CompletionStream, error) {
	return nil, fmt.Errorf("%w: set CUECARD_COMPLETION_URL or CUECARD_BACKEND_URL to enable answers", domain.ErrConfiguration)
}
