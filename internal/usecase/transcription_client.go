package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

const authFailureMessage = "connection failed: check credentials"

// TranscriptionConfig controls the speech streaming connection.
type TranscriptionConfig struct {
	Streaming    ports.StreamingConfig
	ChunkSize    int
	FixedChunks  bool
	FlushTimeout time.Duration
}

// TranscriptionClient streams captured audio to the speech backend and folds
// the returned fragments into the shared TranscriptBuffer.
//
// States: idle -> connecting -> streaming -> closed | errored.
// A closed or errored client only leaves that state through Start.
type TranscriptionClient struct {
	provider  ports.TranscriptionProvider
	corrector ports.TextCorrector
	buffer    *TranscriptBuffer
	events    ports.EventSink
	log       zerolog.Logger
	cfg       TranscriptionConfig

	mu      sync.Mutex
	state   domain.TranscriptionState
	current *transcriptionRun
}

type transcriptionRun struct {
	cancel context.CancelFunc
	audio  ports.AudioSession

	// stream is nil until the provider signals ready; chunks seen before
	// then are dropped.
	stream atomic.Pointer[streamHolder]

	stopping   atomic.Bool
	eventsDone chan struct{}
	audioDone  chan struct{}
	teardown   sync.Once
}

type streamHolder struct {
	session ports.StreamingSession
}

func NewTranscriptionClient(
	provider ports.TranscriptionProvider,
	corrector ports.TextCorrector,
	buffer *TranscriptBuffer,
	events ports.EventSink,
	log zerolog.Logger,
	cfg TranscriptionConfig,
) *TranscriptionClient {
	if cfg.ChunkSize < minChunkSize {
		cfg.ChunkSize = chunkSizeFor(cfg.Streaming.SampleRate, cfg.Streaming.Channels, 250*time.Millisecond)
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 2 * time.Second
	}
	return &TranscriptionClient{
		provider:  provider,
		corrector: corrector,
		buffer:    buffer,
		events:    events,
		log:       log.With().Str("component", "transcription").Logger(),
		cfg:       cfg,
		state:     domain.TranscriptionIdle,
	}
}

// State returns the current connection state.
func (c *TranscriptionClient) State() domain.TranscriptionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens a new connection for audio and blocks until it is streaming
// or has failed. Any previous connection is stopped first.
func (c *TranscriptionClient) Start(ctx context.Context, audio ports.AudioSession, token string) error {
	c.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	run := &transcriptionRun{
		cancel:     cancel,
		audio:      audio,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}

	c.mu.Lock()
	c.current = run
	c.mu.Unlock()
	c.setState(run, domain.TranscriptionConnecting)

	// The pump drains capture right away so no stale audio piles up while
	// the handshake is in flight.
	go c.pump(run)

	streamCfg := c.cfg.Streaming
	streamCfg.Token = token
	stream, err := c.provider.StartStreaming(runCtx, streamCfg)
	if err != nil {
		close(run.eventsDone)
		c.fail(run, err)
		return err
	}

	run.stream.Store(&streamHolder{session: stream})
	if run.stopping.Load() {
		_ = stream.Close()
		close(run.eventsDone)
		return context.Canceled
	}
	c.setState(run, domain.TranscriptionStreaming)
	c.log.Info().Msg("transcription streaming")

	go c.consume(run, stream)
	return nil
}

// Stop closes the current connection and releases its capture tracks.
// It is safe to call repeatedly.
func (c *TranscriptionClient) Stop() {
	c.mu.Lock()
	run := c.current
	c.current = nil
	c.mu.Unlock()
	if run == nil {
		return
	}

	run.stopping.Store(true)
	c.release(run)
	<-run.audioDone
	<-run.eventsDone

	c.mu.Lock()
	if c.current == nil {
		c.state = domain.TranscriptionClosed
	}
	c.mu.Unlock()
	c.events.TranscriptionStateChanged(domain.TranscriptionClosed)
}

func (c *TranscriptionClient) release(run *transcriptionRun) {
	run.teardown.Do(func() {
		run.stopping.Store(true)
		run.cancel()
		if err := run.audio.Stop(); err != nil {
			c.log.Warn().Err(err).Msg("audio stop")
		}
		if holder := run.stream.Load(); holder != nil {
			_ = holder.session.Close()
		}
	})
}

func (c *TranscriptionClient) pump(run *transcriptionRun) {
	defer close(run.audioDone)

	err := pumpAudioChunks(run.audio, func(chunk []byte) error {
		holder := run.stream.Load()
		if holder == nil {
			return nil
		}
		return holder.session.SendAudio(chunk)
	}, c.cfg.ChunkSize, c.cfg.FixedChunks)

	if run.stopping.Load() {
		return
	}

	if err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
	} else {
		c.events.SessionError(domain.ErrorCodePermission, "audio capture ended; the device may have been disconnected")
	}

	if holder := run.stream.Load(); holder != nil {
		_ = holder.session.CloseSend()
	}
}

func (c *TranscriptionClient) consume(run *transcriptionRun, stream ports.StreamingSession) {
	defer close(run.eventsDone)

	for event := range stream.Events() {
		if run.stopping.Load() {
			continue
		}
		if c.corrector != nil && event.Text != "" {
			corrected, err := c.corrector.Apply(event.Text)
			if err != nil {
				c.log.Warn().Err(err).Msg("vocabulary correction")
			} else {
				event.Text = corrected
			}
		}
		if c.buffer.Apply(event) {
			c.events.TranscriptChanged(c.buffer.Snapshot())
		}
	}

	streamErr := waitForStream(stream, c.cfg.FlushTimeout)
	if run.stopping.Load() {
		return
	}
	if streamErr != nil {
		c.fail(run, streamErr)
		return
	}
	c.close(run)
}

// close handles a connection the server or network ended.
func (c *TranscriptionClient) close(run *transcriptionRun) {
	if !c.detach(run, domain.TranscriptionClosed) {
		return
	}
	c.log.Info().Msg("transcription connection closed")
	c.release(run)
	c.events.TranscriptionStateChanged(domain.TranscriptionClosed)
}

func (c *TranscriptionClient) fail(run *transcriptionRun, err error) {
	if !c.detach(run, domain.TranscriptionErrored) {
		c.release(run)
		return
	}
	c.log.Error().Err(err).Msg("transcription failed")
	c.release(run)
	c.events.TranscriptionStateChanged(domain.TranscriptionErrored)
	c.events.SessionError(domain.ErrorCodeTranscription, transcriptionErrorMessage(err))
}

// detach clears run as the current connection and records the terminal state.
// It reports false when run was already replaced or stopped.
func (c *TranscriptionClient) detach(run *transcriptionRun, state domain.TranscriptionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != run {
		return false
	}
	c.current = nil
	c.state = state
	return true
}

func (c *TranscriptionClient) setState(run *transcriptionRun, state domain.TranscriptionState) {
	c.mu.Lock()
	if c.current != run {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.events.TranscriptionStateChanged(state)
}

func transcriptionErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return authFailureMessage
	case errors.Is(err, domain.ErrConfiguration):
		return err.Error()
	default:
		return fmt.Sprintf("transcription connection error: %v", err)
	}
}
