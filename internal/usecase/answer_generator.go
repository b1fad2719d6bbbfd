package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

const (
	stoppedAnnotation = "[Generation stopped]"
	saveAnswerTimeout = 10 * time.Second
)

// GeneratorConfig controls prompt construction and persistence.
type GeneratorConfig struct {
	InterviewID  string
	Provider     string
	SystemPrompt string
	MaxLines     int
	Verbosity    Verbosity
}

// GenerationPrompt is the input of one generation. Question anchors the
// answer; Context is the wider transcript shown to the model.
type GenerationPrompt struct {
	Question string
	Context  string
}

// GenerationHandlers receive turn snapshots for one generation. Calls for a
// single generator are serialized. Nil handlers are skipped.
type GenerationHandlers struct {
	OnToken    func(turn domain.InterviewTurn)
	OnComplete func(turn domain.InterviewTurn)
	OnError    func(turn domain.InterviewTurn, code domain.ErrorCode, err error)
	OnStopped  func(turn domain.InterviewTurn)
}

// GenerationHandle cancels one generation.
type GenerationHandle struct {
	gen *AnswerGenerator
	run *generationRun
}

// TurnID identifies the turn the handle drives.
func (h *GenerationHandle) TurnID() string { return h.run.turnID }

// Done is closed once the stream goroutine has exited.
func (h *GenerationHandle) Done() <-chan struct{} { return h.run.done }

// Cancel stops the generation if it is still active. Safe to call repeatedly.
func (h *GenerationHandle) Cancel() { h.gen.cancelRun(h.run) }

// AnswerGenerator runs single-flight answer generation against a completion
// stream. Starting a new generation cancels the active one and marks its turn
// stopped.
type AnswerGenerator struct {
	completion ports.CompletionProvider
	answers    ports.AnswerStore
	log        zerolog.Logger
	cfg        GeneratorConfig
	now        func() time.Time

	emitMu sync.Mutex

	mu       sync.Mutex
	turns    []*domain.InterviewTurn
	activeID string
	active   *generationRun

	background sync.WaitGroup
}

type generationRun struct {
	turnID   string
	turn     *domain.InterviewTurn
	question string
	handlers GenerationHandlers
	cancel   context.CancelFunc
	stream   ports.CompletionStream
	done     chan struct{}
}

func NewAnswerGenerator(completion ports.CompletionProvider, answers ports.AnswerStore, log zerolog.Logger, cfg GeneratorConfig) *AnswerGenerator {
	return &AnswerGenerator{
		completion: completion,
		answers:    answers,
		log:        log.With().Str("component", "generation").Logger(),
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate starts a new turn for prompt.
func (g *AnswerGenerator) Generate(ctx context.Context, prompt GenerationPrompt, handlers GenerationHandlers) (*GenerationHandle, error) {
	question := strings.TrimSpace(prompt.Question)
	if question == "" {
		return nil, domain.ErrTranscriptTooShort
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &generationRun{
		turnID:   id.String(),
		question: question,
		handlers: handlers,
		cancel:   cancel,
		done:     make(chan struct{}),
		turn: &domain.InterviewTurn{
			ID:              id.String(),
			QuestionContext: question,
			IsLoading:       true,
			Timestamp:       g.now(),
		},
	}
	req := g.buildRequest(prompt, question)

	g.emitMu.Lock()
	g.mu.Lock()
	previous := g.active
	var stopped domain.InterviewTurn
	wasStopped := false
	if previous != nil {
		wasStopped = g.stopLocked(previous)
		stopped = *previous.turn
	}
	g.turns = append(g.turns, run.turn)
	g.active = run
	g.activeID = run.turnID
	first := *run.turn
	g.mu.Unlock()

	if previous != nil {
		g.releaseRun(previous)
		if wasStopped && previous.handlers.OnStopped != nil {
			previous.handlers.OnStopped(stopped)
		}
	}
	if handlers.OnToken != nil {
		handlers.OnToken(first)
	}
	g.emitMu.Unlock()

	g.log.Info().Str("turn_id", run.turnID).Int("max_tokens", req.MaxTokens).Msg("generation started")
	go g.stream(runCtx, run, req)
	return &GenerationHandle{gen: g, run: run}, nil
}

// Cancel stops the active generation, if any.
func (g *AnswerGenerator) Cancel() {
	g.mu.Lock()
	run := g.active
	g.mu.Unlock()
	if run != nil {
		g.cancelRun(run)
	}
}

// Active reports whether a generation is in flight.
func (g *AnswerGenerator) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil
}

// Turns returns copies of every turn, newest first.
func (g *AnswerGenerator) Turns() []domain.InterviewTurn {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.InterviewTurn, 0, len(g.turns))
	for i := len(g.turns) - 1; i >= 0; i-- {
		out = append(out, *g.turns[i])
	}
	return out
}

// Wait blocks until pending answer saves have finished.
func (g *AnswerGenerator) Wait() {
	g.background.Wait()
}

func (g *AnswerGenerator) buildRequest(prompt GenerationPrompt, question string) domain.GenerationRequest {
	var messages []domain.ChatMessage
	if system := strings.TrimSpace(g.cfg.SystemPrompt); system != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: system})
	}
	content := question
	if ctxText := strings.TrimSpace(prompt.Context); ctxText != "" && ctxText != question {
		content = "Interview transcript so far:\n" + ctxText + "\n\nCurrent question:\n" + question
	}
	messages = append(messages, domain.ChatMessage{Role: "user", Content: content})
	return domain.GenerationRequest{
		Provider:  g.cfg.Provider,
		MaxTokens: TokenBudget(question, g.cfg.MaxLines, g.cfg.Verbosity),
		Messages:  messages,
	}
}

func (g *AnswerGenerator) stream(ctx context.Context, run *generationRun, req domain.GenerationRequest) {
	defer close(run.done)

	stream, err := g.completion.OpenStream(ctx, req)
	if err != nil {
		g.fail(run, domain.ErrorCodeGeneration, err)
		return
	}
	if !g.attach(run, stream) {
		_ = stream.Close()
		return
	}
	defer stream.Close()

	for {
		payload, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			g.complete(run)
			return
		}
		if err != nil {
			g.fail(run, domain.ErrorCodeGeneration, err)
			return
		}

		frame := DecodeFrame(payload)
		switch frame.Kind {
		case FrameToken:
			if !g.appendToken(run, frame.Text) {
				return
			}
		case FrameDone:
			g.complete(run)
			return
		case FrameError:
			g.fail(run, domain.ErrorCodeGeneration, errors.New(frame.Text))
			return
		default:
			g.fail(run, domain.ErrorCodeDecode, domain.ErrMalformedPayload)
			return
		}
	}
}

func (g *AnswerGenerator) attach(run *generationRun, stream ports.CompletionStream) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.activeID != run.turnID {
		return false
	}
	run.stream = stream
	return true
}

// appendToken applies a token only while run's turn is the active turn and
// reports whether the stream should keep reading.
func (g *AnswerGenerator) appendToken(run *generationRun, token string) bool {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if g.activeID != run.turnID {
		g.mu.Unlock()
		return false
	}
	run.turn.Answer += token
	snapshot := *run.turn
	g.mu.Unlock()

	if token != "" && run.handlers.OnToken != nil {
		run.handlers.OnToken(snapshot)
	}
	return true
}

func (g *AnswerGenerator) complete(run *generationRun) {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if g.activeID != run.turnID {
		g.mu.Unlock()
		return
	}
	run.turn.Answer = strings.TrimSpace(run.turn.Answer)
	run.turn.IsLoading = false
	snapshot := *run.turn
	g.clearActiveLocked(run)
	g.mu.Unlock()

	run.cancel()
	g.log.Info().Str("turn_id", run.turnID).Int("answer_chars", len(snapshot.Answer)).Msg("generation complete")
	if snapshot.Answer != "" {
		g.saveAnswer(run.question, snapshot.Answer)
	}
	if run.handlers.OnComplete != nil {
		run.handlers.OnComplete(snapshot)
	}
}

func (g *AnswerGenerator) fail(run *generationRun, code domain.ErrorCode, err error) {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if g.activeID != run.turnID {
		g.mu.Unlock()
		return
	}
	run.turn.IsLoading = false
	run.turn.Failed = true
	snapshot := *run.turn
	g.clearActiveLocked(run)
	g.mu.Unlock()

	run.cancel()
	g.log.Warn().Err(err).Str("turn_id", run.turnID).Str("code", string(code)).Msg("generation failed")
	if run.handlers.OnError != nil {
		run.handlers.OnError(snapshot, code, err)
	}
}

func (g *AnswerGenerator) cancelRun(run *generationRun) {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if g.activeID != run.turnID {
		g.mu.Unlock()
		return
	}
	stopped := g.stopLocked(run)
	snapshot := *run.turn
	g.clearActiveLocked(run)
	g.mu.Unlock()

	g.releaseRun(run)
	g.log.Info().Str("turn_id", run.turnID).Msg("generation cancelled")
	if stopped && run.handlers.OnStopped != nil {
		run.handlers.OnStopped(snapshot)
	}
}

// stopLocked annotates run's turn as stopped once.
func (g *AnswerGenerator) stopLocked(run *generationRun) bool {
	turn := run.turn
	if turn.Stopped {
		return false
	}
	turn.Stopped = true
	turn.IsLoading = false
	if strings.TrimSpace(turn.Answer) == "" {
		turn.Answer = stoppedAnnotation
	} else {
		turn.Answer = strings.TrimRight(turn.Answer, " \n") + "\n\n" + stoppedAnnotation
	}
	return true
}

func (g *AnswerGenerator) clearActiveLocked(run *generationRun) {
	if g.active == run {
		g.active = nil
		g.activeID = ""
	}
}

// releaseRun cancels the request and closes its stream before returning.
func (g *AnswerGenerator) releaseRun(run *generationRun) {
	run.cancel()
	g.mu.Lock()
	stream := run.stream
	g.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
}

func (g *AnswerGenerator) saveAnswer(question, answer string) {
	if g.answers == nil {
		return
	}
	record := domain.SavedAnswer{
		InterviewID: g.cfg.InterviewID,
		Question:    question,
		AnswerText:  answer,
		Provider:    g.cfg.Provider,
	}
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveAnswerTimeout)
		defer cancel()
		if err := g.answers.SaveAnswer(ctx, record); err != nil {
			g.log.Warn().Err(err).Str("interview_id", record.InterviewID).Msg("save answer failed")
		}
	}()
}
