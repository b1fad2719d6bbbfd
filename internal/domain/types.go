package domain

import "time"

// SessionPhase models the coarse interview session lifecycle.
type SessionPhase string

const (
	PhaseInitializing SessionPhase = "initializing"
	PhaseActive       SessionPhase = "active"
	PhaseEnding       SessionPhase = "ending"
	PhaseEnded        SessionPhase = "ended"
)

// PhaseReason provides a structured reason for phase and capture transitions.
type PhaseReason string

const (
	ReasonStarting        PhaseReason = "starting"
	ReasonListening       PhaseReason = "listening"
	ReasonPaused          PhaseReason = "paused"
	ReasonResumed         PhaseReason = "resumed"
	ReasonSourceSwitched  PhaseReason = "source_switched"
	ReasonUserEnded       PhaseReason = "user_ended"
	ReasonBudgetExpired   PhaseReason = "budget_expired"
	ReasonFinalized       PhaseReason = "finalized"
	ReasonStartupFailed   PhaseReason = "startup_failed"
	ReasonCaptureFailed   PhaseReason = "capture_failed"
	ReasonTranscriptError PhaseReason = "transcription_failed"
)

// TranscriptionState is the state of the speech-to-text connection.
type TranscriptionState string

const (
	TranscriptionIdle       TranscriptionState = "idle"
	TranscriptionConnecting TranscriptionState = "connecting"
	TranscriptionStreaming  TranscriptionState = "streaming"
	TranscriptionClosed     TranscriptionState = "closed"
	TranscriptionErrored    TranscriptionState = "errored"
)

// ErrorCode identifies the class of an error surfaced to the user.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeConfiguration ErrorCode = "configuration"
	ErrorCodeCapability    ErrorCode = "capability"
	ErrorCodePermission    ErrorCode = "permission"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeGeneration    ErrorCode = "generation"
	ErrorCodeDecode        ErrorCode = "decode"
)

// SourceKind selects where captured audio comes from.
type SourceKind string

const (
	SourceMicrophone SourceKind = "microphone"
	SourceSystem     SourceKind = "system"
)

// DefaultDeviceID selects the platform default input.
const DefaultDeviceID = "default"

// DeviceKind distinguishes real inputs from monitors of output sinks.
type DeviceKind string

const (
	DeviceKindInput   DeviceKind = "input"
	DeviceKindMonitor DeviceKind = "monitor"
)

// AudioDevice is one enumerated capture source. Label may be empty.
type AudioDevice struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

// AudioSource is the capture selection requested by the user.
type AudioSource struct {
	Kind     SourceKind `json:"kind"`
	DeviceID string     `json:"deviceId,omitempty"`
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// TranscriptSnapshot is a copy of the running transcript buffer.
type TranscriptSnapshot struct {
	Finalized string `json:"finalized"`
	Interim   string `json:"interim"`
}

// Combined returns finalized and interim text joined by a single space.
func (s TranscriptSnapshot) Combined() string {
	switch {
	case s.Finalized == "":
		return s.Interim
	case s.Interim == "":
		return s.Finalized
	default:
		return s.Finalized + " " + s.Interim
	}
}

// InterviewTurn is one question/answer cycle.
type InterviewTurn struct {
	ID              string    `json:"id"`
	QuestionContext string    `json:"questionContext"`
	Answer          string    `json:"answer"`
	IsLoading       bool      `json:"isLoading"`
	Failed          bool      `json:"failed"`
	Stopped         bool      `json:"stopped"`
	Timestamp       time.Time `json:"timestamp"`
}

// SessionBudget is the time allowance for one session run.
// DurationSeconds of zero means unbounded.
type SessionBudget struct {
	DurationSeconds    int       `json:"durationSeconds"`
	UsedSecondsAtStart int       `json:"usedSecondsAtStart"`
	StartedAt          time.Time `json:"startedAt"`
}

// Elapsed returns the consumed seconds at now.
func (b SessionBudget) Elapsed(now time.Time) int {
	run := int(now.Sub(b.StartedAt) / time.Second)
	if run < 0 {
		run = 0
	}
	return b.UsedSecondsAtStart + run
}

// ClockReading is emitted on every session clock tick.
type ClockReading struct {
	ElapsedSeconds   int  `json:"elapsedSeconds"`
	RemainingSeconds int  `json:"remainingSeconds"`
	Unbounded        bool `json:"unbounded"`
	Expired          bool `json:"expired"`
}

// UsageSnapshot is the ledger's view of an interview when a session starts.
type UsageSnapshot struct {
	DurationSeconds int `json:"durationSeconds"`
	UsedSeconds     int `json:"usedSeconds"`
}

// UsageRecord reports time consumed by a session run.
type UsageRecord struct {
	Finalize  bool      `json:"finalize"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// SavedAnswer is handed to answer persistence after a turn completes.
type SavedAnswer struct {
	InterviewID string `json:"interviewId"`
	Question    string `json:"question"`
	AnswerText  string `json:"answerText"`
	Provider    string `json:"provider"`
}

// ChatMessage is one prompt message of a generation request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is serialized into the generation stream parameters.
type GenerationRequest struct {
	Provider  string        `json:"provider"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []ChatMessage `json:"messages"`
}

// Status summarizes the orchestrator for the host.
type Status struct {
	Phase         SessionPhase       `json:"phase"`
	Paused        bool               `json:"paused"`
	Source        AudioSource        `json:"source"`
	Transcription TranscriptionState `json:"transcription"`
	Generating    bool               `json:"generating"`
}
