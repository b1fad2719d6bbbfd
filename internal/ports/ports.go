package ports

import (
	"context"
	"io"

	"cuecard/internal/domain"
)

// DeviceEnumerator lists capture sources known to the host audio server.
type DeviceEnumerator interface {
	Sources(ctx context.Context) ([]domain.AudioDevice, error)
}

// Processing toggles input clean-up applied by the capture backend.
type Processing struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool
}

// AudioConfig describes how audio should be captured.
type AudioConfig struct {
	Source      domain.AudioSource
	SampleRate  int
	Channels    int
	InputFormat string
	Container   string
	Processing  Processing
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	Token          string
	SampleRate     int
	Channels       int
	Encoding       string
	Container      string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
// StartStreaming returns once the provider connection is ready.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// CompletionStream yields raw event-stream payloads. Recv returns io.EOF once
// the server closes the stream.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionProvider opens server-streamed text generation requests.
type CompletionProvider interface {
	OpenStream(ctx context.Context, req domain.GenerationRequest) (CompletionStream, error)
}

// TextCorrector rewrites transcript fragments deterministically.
type TextCorrector interface {
	Apply(text string) (string, error)
}

// CredentialProvider vends the speech backend credential.
type CredentialProvider interface {
	TranscriptionCredential(ctx context.Context) (string, error)
}

// TokenStore holds the user's bearer token.
type TokenStore interface {
	BearerToken() (string, bool)
}

// UsageLedger tracks session time against an interview.
type UsageLedger interface {
	StartSession(ctx context.Context, interviewID string) (domain.UsageSnapshot, error)
	RecordUsage(ctx context.Context, interviewID string, record domain.UsageRecord) error
}

// AnswerStore persists completed answers.
type AnswerStore interface {
	SaveAnswer(ctx context.Context, answer domain.SavedAnswer) error
}

// SummaryGenerator requests an interview summary.
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, interviewID string) error
}

// EventSink emits orchestrator state and events to the host UI.
type EventSink interface {
	PhaseChanged(phase domain.SessionPhase, reason domain.PhaseReason)
	TranscriptionStateChanged(state domain.TranscriptionState)
	TranscriptChanged(snapshot domain.TranscriptSnapshot)
	TurnUpdated(turn domain.InterviewTurn)
	ClockTicked(reading domain.ClockReading)
	DevicesChanged(devices []domain.AudioDevice, supported bool)
	SessionError(code domain.ErrorCode, detail string)
}
