package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

const (
	defaultQuestionWindow     = 500
	defaultMinTranscriptChars = 3
	backgroundCallTimeout     = 15 * time.Second
)

// OrchestratorConfig controls one interview session.
type OrchestratorConfig struct {
	InterviewID string
	Source      domain.AudioSource
	// DurationSeconds overrides the ledger's allowance when positive.
	DurationSeconds    int
	MinTranscriptChars int
	QuestionWindow     int
	TickInterval       time.Duration
}

// OrchestratorDeps are the collaborators composed by SessionOrchestrator.
type OrchestratorDeps struct {
	Credentials   ports.CredentialProvider
	Tokens        ports.TokenStore
	Ledger        ports.UsageLedger
	Summaries     ports.SummaryGenerator
	Devices       *DeviceRegistry
	Capture       *CaptureController
	Transcription *TranscriptionClient
	Buffer        *TranscriptBuffer
	Generator     *AnswerGenerator
	Events        ports.EventSink
}

var phaseTransitions = map[domain.SessionPhase]map[domain.SessionPhase]bool{
	domain.PhaseInitializing: {domain.PhaseActive: true, domain.PhaseEnding: true, domain.PhaseEnded: true},
	domain.PhaseActive:       {domain.PhaseActive: true, domain.PhaseEnding: true},
	domain.PhaseEnding:       {domain.PhaseEnded: true},
}

// SessionOrchestrator drives one interview session through
// initializing -> active -> ending -> ended.
type SessionOrchestrator struct {
	deps OrchestratorDeps
	cfg  OrchestratorConfig
	log  zerolog.Logger
	now  func() time.Time

	clock   *SessionClock
	startup sessionGuard

	// captureMu serializes capture and transcription restarts.
	captureMu sync.Mutex
	// genMu orders generation admission against finalization.
	genMu sync.Mutex

	mu         sync.Mutex
	phase      domain.SessionPhase
	paused     bool
	source     domain.AudioSource
	credential string
	budget     domain.SessionBudget
	ledgerOpen bool
	ended      bool

	background sync.WaitGroup
}

func NewSessionOrchestrator(deps OrchestratorDeps, log zerolog.Logger, cfg OrchestratorConfig) *SessionOrchestrator {
	if cfg.QuestionWindow <= 0 {
		cfg.QuestionWindow = defaultQuestionWindow
	}
	if cfg.MinTranscriptChars <= 0 {
		cfg.MinTranscriptChars = defaultMinTranscriptChars
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = domain.SourceMicrophone
	}
	o := &SessionOrchestrator{
		deps:   deps,
		cfg:    cfg,
		log:    log.With().Str("component", "orchestrator").Str("interview_id", cfg.InterviewID).Logger(),
		now:    time.Now,
		phase:  domain.PhaseInitializing,
		source: cfg.Source,
	}
	o.clock = NewSessionClock(cfg.TickInterval, deps.Events.ClockTicked, o.onBudgetExpired)
	if deps.Devices != nil {
		deps.Devices.OnDeviceChange(deps.Events.DevicesChanged)
	}
	return o
}

// Start initializes the session: credential, usage ledger, clock and capture.
// Capture failures leave the session active and paused so the user can retry.
func (o *SessionOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	phase := o.phase
	o.mu.Unlock()
	if phase != domain.PhaseInitializing {
		return fmt.Errorf("%w: start from %s", domain.ErrIllegalTransition, phase)
	}
	o.deps.Events.PhaseChanged(domain.PhaseInitializing, domain.ReasonStarting)

	if o.deps.Devices != nil {
		devices := o.deps.Devices.ListInputDevices(ctx)
		o.deps.Events.DevicesChanged(devices, o.deps.Devices.Supported())
	}

	if _, ok := o.bearerToken(); !ok {
		err := fmt.Errorf("%w: missing auth token", domain.ErrConfiguration)
		o.failStartup(domain.ErrorCodeConfiguration, err)
		return err
	}

	var (
		credential string
		snapshot   domain.UsageSnapshot
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		token, err := o.deps.Credentials.TranscriptionCredential(groupCtx)
		if err != nil {
			return fmt.Errorf("transcription credential: %w", err)
		}
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("%w: empty transcription credential", domain.ErrConfiguration)
		}
		credential = token
		return nil
	})
	claimed := o.startup.Claim(o.cfg.InterviewID)
	if claimed && o.deps.Ledger != nil {
		group.Go(func() error {
			usage, err := o.deps.Ledger.StartSession(groupCtx, o.cfg.InterviewID)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			snapshot = usage
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if claimed {
			o.startup.Release(o.cfg.InterviewID)
		}
		code := domain.ErrorCodeStartup
		if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrAuthentication) {
			code = domain.ErrorCodeConfiguration
		}
		o.failStartup(code, err)
		return err
	}

	duration := snapshot.DurationSeconds
	if o.cfg.DurationSeconds > 0 {
		duration = o.cfg.DurationSeconds
	}
	budget := domain.SessionBudget{
		DurationSeconds:    duration,
		UsedSecondsAtStart: snapshot.UsedSeconds,
		StartedAt:          o.now(),
	}

	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		// The session was reported started above, so it still needs its end.
		if claimed && o.deps.Ledger != nil {
			o.closeLedger(budget.StartedAt, budget.StartedAt)
		}
		return domain.ErrSessionEnded
	}
	if err := o.transitionLocked(domain.PhaseActive); err != nil {
		o.mu.Unlock()
		return err
	}
	o.credential = credential
	o.budget = budget
	o.ledgerOpen = claimed && o.deps.Ledger != nil
	o.mu.Unlock()
	o.deps.Events.PhaseChanged(domain.PhaseActive, domain.ReasonListening)
	o.log.Info().Int("duration_seconds", duration).Int("used_seconds", snapshot.UsedSeconds).Msg("session active")

	o.clock.Start(budget)
	if o.clock.Tick().Expired {
		return nil
	}

	o.captureMu.Lock()
	defer o.captureMu.Unlock()
	o.startListeningLocked(ctx, domain.ReasonListening)
	return nil
}

// Pause stops capture and transcription. The clock keeps its baseline.
func (o *SessionOrchestrator) Pause() error {
	o.captureMu.Lock()
	defer o.captureMu.Unlock()

	o.mu.Lock()
	if o.phase != domain.PhaseActive {
		o.mu.Unlock()
		return o.inactiveError()
	}
	if o.paused {
		o.mu.Unlock()
		return nil
	}
	o.paused = true
	o.mu.Unlock()

	o.stopListeningLocked()
	o.recordCheckpoint()
	o.deps.Events.PhaseChanged(domain.PhaseActive, domain.ReasonPaused)
	return nil
}

// Resume restarts capture and transcription after Pause, a capture failure
// or a dropped transcription connection.
func (o *SessionOrchestrator) Resume(ctx context.Context) error {
	o.captureMu.Lock()
	defer o.captureMu.Unlock()

	o.mu.Lock()
	if o.phase != domain.PhaseActive {
		o.mu.Unlock()
		return o.inactiveError()
	}
	o.mu.Unlock()
	if o.listening() {
		return nil
	}

	o.startListeningLocked(ctx, domain.ReasonResumed)
	return nil
}

// TogglePause pauses an active capture or resumes a paused one.
func (o *SessionOrchestrator) TogglePause(ctx context.Context) error {
	if o.listening() {
		return o.Pause()
	}
	return o.Resume(ctx)
}

// SwitchSource selects a new capture source. A listening session reconnects
// immediately; a paused one picks it up on resume.
func (o *SessionOrchestrator) SwitchSource(ctx context.Context, source domain.AudioSource) error {
	o.captureMu.Lock()
	defer o.captureMu.Unlock()

	o.mu.Lock()
	if o.phase != domain.PhaseActive {
		o.mu.Unlock()
		return o.inactiveError()
	}
	if source.Kind == "" {
		source.Kind = domain.SourceMicrophone
	}
	o.source = source
	paused := o.paused
	o.mu.Unlock()

	o.log.Info().Str("source", string(source.Kind)).Str("device", source.DeviceID).Bool("paused", paused).Msg("source switched")
	if paused {
		return nil
	}
	o.stopListeningLocked()
	o.startListeningLocked(ctx, domain.ReasonSourceSwitched)
	return nil
}

// ToggleSource flips between microphone and system audio.
func (o *SessionOrchestrator) ToggleSource(ctx context.Context) error {
	current := o.Status().Source
	next := domain.AudioSource{Kind: domain.SourceSystem}
	if current.Kind == domain.SourceSystem {
		next = domain.AudioSource{Kind: domain.SourceMicrophone, DeviceID: current.DeviceID}
	}
	return o.SwitchSource(ctx, next)
}

// CycleDevice moves the microphone selection to the next known input,
// wrapping through the system default.
func (o *SessionOrchestrator) CycleDevice(ctx context.Context) error {
	ids := []string{domain.DefaultDeviceID}
	if o.deps.Devices != nil {
		for _, d := range o.deps.Devices.Devices() {
			if d.ID != domain.DefaultDeviceID {
				ids = append(ids, d.ID)
			}
		}
	}
	current := o.Status().Source
	next := ids[0]
	for i, id := range ids {
		if id == current.DeviceID {
			next = ids[(i+1)%len(ids)]
			break
		}
	}
	return o.SwitchSource(ctx, domain.AudioSource{Kind: domain.SourceMicrophone, DeviceID: next})
}

// GenerateFromTranscript answers the latest utterance. The tail of the
// combined transcript becomes the current question and the buffer is cleared.
func (o *SessionOrchestrator) GenerateFromTranscript(ctx context.Context) (*GenerationHandle, error) {
	o.genMu.Lock()
	defer o.genMu.Unlock()

	if err := o.admitGeneration(); err != nil {
		return nil, err
	}
	transcript := strings.TrimSpace(o.deps.Buffer.Snapshot().Combined())
	if len([]rune(transcript)) < o.cfg.MinTranscriptChars {
		return nil, domain.ErrTranscriptTooShort
	}
	question := lastRunes(transcript, o.cfg.QuestionWindow)

	o.deps.Buffer.Clear()
	o.deps.Events.TranscriptChanged(o.deps.Buffer.Snapshot())

	return o.deps.Generator.Generate(ctx, GenerationPrompt{Question: question, Context: transcript}, o.generationHandlers())
}

// GenerateFromText answers a typed question without touching the transcript.
func (o *SessionOrchestrator) GenerateFromText(ctx context.Context, text string) (*GenerationHandle, error) {
	o.genMu.Lock()
	defer o.genMu.Unlock()

	if err := o.admitGeneration(); err != nil {
		return nil, err
	}
	question := strings.TrimSpace(text)
	if len([]rune(question)) < o.cfg.MinTranscriptChars {
		return nil, domain.ErrTranscriptTooShort
	}
	return o.deps.Generator.Generate(ctx, GenerationPrompt{Question: lastRunes(question, o.cfg.QuestionWindow)}, o.generationHandlers())
}

// HandleKey triggers generation for space or enter pressed outside a text
// input. It reports whether the key was consumed.
func (o *SessionOrchestrator) HandleKey(ctx context.Context, key string, focusInTextInput bool) (bool, error) {
	if focusInTextInput {
		return false, nil
	}
	switch key {
	case " ", "space", "enter":
		_, err := o.GenerateFromTranscript(ctx)
		return true, err
	default:
		return false, nil
	}
}

// ClearTranscript empties the transcript buffer.
func (o *SessionOrchestrator) ClearTranscript() {
	o.deps.Buffer.Clear()
	o.deps.Events.TranscriptChanged(o.deps.Buffer.Snapshot())
}

// End finalizes the session on user confirmation. It reports whether this
// call performed the finalization.
func (o *SessionOrchestrator) End() bool {
	return o.finalize(domain.ReasonUserEnded)
}

// Status summarizes the session.
func (o *SessionOrchestrator) Status() domain.Status {
	o.mu.Lock()
	status := domain.Status{Phase: o.phase, Paused: o.paused, Source: o.source}
	o.mu.Unlock()
	status.Transcription = o.deps.Transcription.State()
	status.Generating = o.deps.Generator.Active()
	return status
}

// Turns returns every turn, newest first.
func (o *SessionOrchestrator) Turns() []domain.InterviewTurn {
	return o.deps.Generator.Turns()
}

// Clock returns the current session clock reading.
func (o *SessionOrchestrator) Clock() domain.ClockReading {
	return o.clock.Reading()
}

// Wait blocks until fire-and-forget collaborator calls have finished.
func (o *SessionOrchestrator) Wait() {
	o.background.Wait()
	o.deps.Generator.Wait()
}

func (o *SessionOrchestrator) onBudgetExpired() {
	o.log.Info().Msg("session budget exhausted")
	o.finalize(domain.ReasonBudgetExpired)
}

// finalize runs the ending sequence exactly once.
func (o *SessionOrchestrator) finalize(reason domain.PhaseReason) bool {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return false
	}
	if err := o.transitionLocked(domain.PhaseEnding); err != nil {
		o.mu.Unlock()
		return false
	}
	o.ended = true
	budget := o.budget
	ledgerOpen := o.ledgerOpen
	o.mu.Unlock()

	o.deps.Events.PhaseChanged(domain.PhaseEnding, reason)
	o.log.Info().Str("reason", string(reason)).Msg("finalizing session")

	o.genMu.Lock()
	o.deps.Generator.Cancel()
	o.genMu.Unlock()

	o.captureMu.Lock()
	o.stopListeningLocked()
	o.captureMu.Unlock()

	o.clock.Stop()
	endedAt := o.now()

	if ledgerOpen {
		o.closeLedger(budget.StartedAt, endedAt)
	}

	o.mu.Lock()
	_ = o.transitionLocked(domain.PhaseEnded)
	o.mu.Unlock()
	o.deps.Events.PhaseChanged(domain.PhaseEnded, domain.ReasonFinalized)
	return true
}

// closeLedger sends the final usage record and requests the summary in the
// background.
func (o *SessionOrchestrator) closeLedger(startedAt, endedAt time.Time) {
	o.goBackground(func(ctx context.Context) {
		record := domain.UsageRecord{Finalize: true, StartedAt: startedAt, EndedAt: endedAt}
		if err := o.deps.Ledger.RecordUsage(ctx, o.cfg.InterviewID, record); err != nil {
			o.log.Warn().Err(err).Msg("record final usage failed")
		}
		if o.deps.Summaries == nil {
			return
		}
		if err := o.deps.Summaries.GenerateSummary(ctx, o.cfg.InterviewID); err != nil {
			o.log.Warn().Err(err).Msg("generate summary failed")
		}
	})
}

func (o *SessionOrchestrator) failStartup(code domain.ErrorCode, err error) {
	o.log.Error().Err(err).Msg("session startup failed")
	o.mu.Lock()
	if transitionErr := o.transitionLocked(domain.PhaseEnded); transitionErr != nil {
		o.mu.Unlock()
		return
	}
	o.ended = true
	o.mu.Unlock()
	o.deps.Events.SessionError(code, err.Error())
	o.deps.Events.PhaseChanged(domain.PhaseEnded, domain.ReasonStartupFailed)
}

// startListeningLocked acquires capture for the selected source and connects
// transcription. Callers hold captureMu.
func (o *SessionOrchestrator) startListeningLocked(ctx context.Context, reason domain.PhaseReason) {
	o.mu.Lock()
	if o.phase != domain.PhaseActive {
		o.mu.Unlock()
		return
	}
	source := o.source
	credential := o.credential
	o.mu.Unlock()

	if source.Kind == domain.SourceMicrophone && o.deps.Devices != nil && o.deps.Devices.Supported() {
		source.DeviceID = o.deps.Devices.Resolve(source.DeviceID)
	}

	o.deps.Transcription.Stop()
	session, err := o.deps.Capture.Start(ctx, source)
	if err != nil {
		o.setPaused(true)
		o.deps.Events.SessionError(domain.CaptureErrorCode(err), err.Error())
		o.deps.Events.PhaseChanged(domain.PhaseActive, domain.ReasonCaptureFailed)
		return
	}

	o.mu.Lock()
	o.source = session.Source
	o.paused = false
	o.mu.Unlock()
	o.deps.Events.PhaseChanged(domain.PhaseActive, reason)

	if err := o.deps.Transcription.Start(ctx, session.Audio, credential); err != nil {
		o.log.Warn().Err(err).Msg("transcription start failed")
		o.deps.Capture.Stop()
	}
}

// stopListeningLocked releases transcription then capture. Callers hold
// captureMu.
func (o *SessionOrchestrator) stopListeningLocked() {
	o.deps.Transcription.Stop()
	o.deps.Capture.Stop()
}

func (o *SessionOrchestrator) recordCheckpoint() {
	o.mu.Lock()
	ledgerOpen := o.ledgerOpen
	budget := o.budget
	o.mu.Unlock()
	if !ledgerOpen {
		return
	}
	endedAt := o.now()
	o.goBackground(func(ctx context.Context) {
		record := domain.UsageRecord{Finalize: false, StartedAt: budget.StartedAt, EndedAt: endedAt}
		if err := o.deps.Ledger.RecordUsage(ctx, o.cfg.InterviewID, record); err != nil {
			o.log.Warn().Err(err).Msg("record usage checkpoint failed")
		}
	})
}

func (o *SessionOrchestrator) admitGeneration() error {
	o.mu.Lock()
	phase := o.phase
	o.mu.Unlock()
	if phase != domain.PhaseActive {
		return o.inactiveError()
	}
	if o.clock.Expired() {
		return domain.ErrBudgetExpired
	}
	if _, ok := o.bearerToken(); !ok {
		return fmt.Errorf("%w: missing auth token", domain.ErrConfiguration)
	}
	return nil
}

func (o *SessionOrchestrator) generationHandlers() GenerationHandlers {
	events := o.deps.Events
	return GenerationHandlers{
		OnToken:    events.TurnUpdated,
		OnComplete: events.TurnUpdated,
		OnStopped:  events.TurnUpdated,
		OnError: func(turn domain.InterviewTurn, code domain.ErrorCode, err error) {
			events.TurnUpdated(turn)
			events.SessionError(code, err.Error())
		},
	}
}

func (o *SessionOrchestrator) bearerToken() (string, bool) {
	if o.deps.Tokens == nil {
		return "", false
	}
	token, ok := o.deps.Tokens.BearerToken()
	return token, ok && strings.TrimSpace(token) != ""
}

// listening reports whether capture is meant to run and transcription is live.
func (o *SessionOrchestrator) listening() bool {
	o.mu.Lock()
	paused := o.paused
	o.mu.Unlock()
	if paused {
		return false
	}
	switch o.deps.Transcription.State() {
	case domain.TranscriptionConnecting, domain.TranscriptionStreaming:
		return true
	default:
		return false
	}
}

func (o *SessionOrchestrator) setPaused(paused bool) {
	o.mu.Lock()
	o.paused = paused
	o.mu.Unlock()
}

func (o *SessionOrchestrator) inactiveError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.phase {
	case domain.PhaseEnding, domain.PhaseEnded:
		return domain.ErrSessionEnded
	default:
		return domain.ErrNoActiveSession
	}
}

func (o *SessionOrchestrator) transitionLocked(to domain.SessionPhase) error {
	if !phaseTransitions[o.phase][to] {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, o.phase, to)
	}
	o.phase = to
	return nil
}

func (o *SessionOrchestrator) goBackground(fn func(ctx context.Context)) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundCallTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// sessionGuard lets session-start reporting happen once per interview id.
type sessionGuard struct {
	mu      sync.Mutex
	claimed bool
	key     string
}

func (g *sessionGuard) Claim(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed && g.key == key {
		return false
	}
	g.claimed = true
	g.key = key
	return true
}

func (g *sessionGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed && g.key == key {
		g.claimed = false
		g.key = ""
	}
}

func lastRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}
