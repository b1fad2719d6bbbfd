package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

// liveAudioSession blocks reads until a chunk is fed or Stop is called.
type liveAudioSession struct {
	feed     chan []byte
	stopped  chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	stopCalls int
}

func newLiveAudioSession() *liveAudioSession {
	return &liveAudioSession{feed: make(chan []byte), stopped: make(chan struct{})}
}

func (f *liveAudioSession) Read(p []byte) (int, error) {
	select {
	case chunk := <-f.feed:
		return copy(p, chunk), nil
	case <-f.stopped:
		return 0, io.EOF
	}
}

func (f *liveAudioSession) Close() error { return f.Stop() }

func (f *liveAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *liveAudioSession) isStopped() bool {
	select {
	case <-f.stopped:
		return true
	default:
		return false
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	configs  []ports.AudioConfig
	err      error
}

func (f *fakeAudioCapture) Start(_ context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return newLiveAudioSession(), nil
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

func (f *fakeAudioCapture) snapshotConfigs() []ports.AudioConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.AudioConfig(nil), f.configs...)
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []*fakeStreamingSession
	started  []*fakeStreamingSession
	configs  []ports.StreamingConfig
	err      error
	// gate, when set, holds StartStreaming until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeProvider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	gate, entered, err := f.gate, f.entered, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var session *fakeStreamingSession
	if len(f.sessions) > 0 {
		session = f.sessions[0]
		f.sessions = f.sessions[1:]
	} else {
		session = newFakeStreamingSession()
	}
	f.started = append(f.started, session)
	return session, nil
}

func (f *fakeProvider) snapshotStarted() []*fakeStreamingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeStreamingSession(nil), f.started...)
}

type fakeStreamingSession struct {
	events     chan domain.TranscriptEvent
	waitErr    error
	mu         sync.Mutex
	sent       [][]byte
	closeSend  int
	closeCalls int
	closed     bool
	done       chan struct{}
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16), done: make(chan struct{})}
}

func (f *fakeStreamingSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	f.shutdownLocked()
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	<-f.done
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.shutdownLocked()
	return nil
}

// finish simulates the server ending the connection with err.
func (f *fakeStreamingSession) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
	f.shutdownLocked()
}

func (f *fakeStreamingSession) shutdownLocked() {
	if f.closed {
		return
	}
	f.closed = true
	close(f.events)
	close(f.done)
}

func (f *fakeStreamingSession) sentChunks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, c := range f.sent {
		out = append(out, string(c))
	}
	return out
}

func (f *fakeStreamingSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeCorrector struct {
	replace map[string]string
}

func (f *fakeCorrector) Apply(text string) (string, error) {
	if out, ok := f.replace[text]; ok {
		return out, nil
	}
	return text, nil
}

type fakeEnumerator struct {
	mu      sync.Mutex
	sources []domain.AudioDevice
	err     error
	calls   int
}

func (f *fakeEnumerator) Sources(_ context.Context) ([]domain.AudioDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.AudioDevice(nil), f.sources...), nil
}

func (f *fakeEnumerator) set(sources []domain.AudioDevice, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = sources
	f.err = err
}

// fakeCompletion hands out scripted streams in order.
type fakeCompletion struct {
	mu       sync.Mutex
	streams  []*fakeCompletionStream
	requests []domain.GenerationRequest
	err      error
}

func (f *fakeCompletion) OpenStream(_ context.Context, req domain.GenerationRequest) (ports.CompletionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.streams) == 0 {
		return nil, errors.New("no completion stream configured")
	}
	stream := f.streams[0]
	f.streams = f.streams[1:]
	return stream, nil
}

func (f *fakeCompletion) snapshotRequests() []domain.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GenerationRequest(nil), f.requests...)
}

type fakeCompletionStream struct {
	payloads   chan string
	closed     chan struct{}
	closeOnce  sync.Once
	mu         sync.Mutex
	closeCalls int
}

func newFakeCompletionStream(buffer int) *fakeCompletionStream {
	return &fakeCompletionStream{payloads: make(chan string, buffer), closed: make(chan struct{})}
}

func scriptedStream(payloads ...string) *fakeCompletionStream {
	s := newFakeCompletionStream(len(payloads))
	for _, p := range payloads {
		s.payloads <- p
	}
	close(s.payloads)
	return s
}

func (f *fakeCompletionStream) Recv() (string, error) {
	select {
	case p, ok := <-f.payloads:
		if !ok {
			return "", io.EOF
		}
		return p, nil
	case <-f.closed:
		return "", context.Canceled
	}
}

func (f *fakeCompletionStream) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeCompletionStream) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type fakeLedger struct {
	mu         sync.Mutex
	snapshot   domain.UsageSnapshot
	startErr   error
	recordErr  error
	startCalls int
	records    []domain.UsageRecord

	// entered and release, when set, hold StartSession until release closes.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeLedger) StartSession(_ context.Context, _ string) (domain.UsageSnapshot, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.snapshot, f.startErr
}

func (f *fakeLedger) RecordUsage(_ context.Context, _ string, record domain.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.recordErr
}

func (f *fakeLedger) finalizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.Finalize {
			n++
		}
	}
	return n
}

func (f *fakeLedger) snapshotRecords() []domain.UsageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UsageRecord(nil), f.records...)
}

type fakeAnswers struct {
	mu    sync.Mutex
	saved []domain.SavedAnswer
	err   error
}

func (f *fakeAnswers) SaveAnswer(_ context.Context, answer domain.SavedAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, answer)
	return f.err
}

func (f *fakeAnswers) snapshot() []domain.SavedAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SavedAnswer(nil), f.saved...)
}

type fakeSummaries struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSummaries) GenerateSummary(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeSummaries) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCredentials struct {
	token string
	err   error
}

func (f *fakeCredentials) TranscriptionCredential(_ context.Context) (string, error) {
	return f.token, f.err
}

type fakeTokens struct {
	token string
}

func (f *fakeTokens) BearerToken() (string, bool) {
	return f.token, f.token != ""
}

type phaseEvent struct {
	phase  domain.SessionPhase
	reason domain.PhaseReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu sync.Mutex

	phases      []phaseEvent
	states      []domain.TranscriptionState
	transcripts []domain.TranscriptSnapshot
	turns       []domain.InterviewTurn
	clocks      []domain.ClockReading
	devices     [][]domain.AudioDevice
	supported   []bool
	errors      []errEvent
}

func (f *fakeEventSink) PhaseChanged(phase domain.SessionPhase, reason domain.PhaseReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = append(f.phases, phaseEvent{phase: phase, reason: reason})
}

func (f *fakeEventSink) TranscriptionStateChanged(state domain.TranscriptionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeEventSink) TranscriptChanged(snapshot domain.TranscriptSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, snapshot)
}

func (f *fakeEventSink) TurnUpdated(turn domain.InterviewTurn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
}

func (f *fakeEventSink) ClockTicked(reading domain.ClockReading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clocks = append(f.clocks, reading)
}

func (f *fakeEventSink) DevicesChanged(devices []domain.AudioDevice, supported bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, devices)
	f.supported = append(f.supported, supported)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotPhases() []phaseEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]phaseEvent(nil), f.phases...)
}

func (f *fakeEventSink) snapshotStates() []domain.TranscriptionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TranscriptionState(nil), f.states...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotTranscripts() []domain.TranscriptSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TranscriptSnapshot(nil), f.transcripts...)
}

func (f *fakeEventSink) countPhase(phase domain.SessionPhase) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.phases {
		if p.phase == phase {
			n++
		}
	}
	return n
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
