package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cuecard/internal/domain"
	"cuecard/internal/usecase"
)

// Controller is the session surface driven by the TUI.
type Controller interface {
	Start(ctx context.Context) error
	TogglePause(ctx context.Context) error
	ToggleSource(ctx context.Context) error
	CycleDevice(ctx context.Context) error
	ClearTranscript()
	HandleKey(ctx context.Context, key string, focusInTextInput bool) (bool, error)
	GenerateFromText(ctx context.Context, text string) (*usecase.GenerationHandle, error)
	End() bool
	Status() domain.Status
}

// Focus tracks which element receives typed keys.
type Focus int

const (
	FocusTranscript Focus = iota
	FocusQuestion
)

const transientErrorTTL = 4 * time.Second

// Options seeds the model before the first session events arrive.
type Options struct {
	InterviewID string
	Source      domain.AudioSource
}

// Model is the root bubbletea model for a live interview session.
type Model struct {
	ctrl        Controller
	ctx         context.Context
	interviewID string

	phase         domain.SessionPhase
	reason        domain.PhaseReason
	paused        bool
	source        domain.AudioSource
	generating    bool
	transcription domain.TranscriptionState
	transcript    domain.TranscriptSnapshot
	turns         []domain.InterviewTurn
	clock         domain.ClockReading
	clockSeen     bool

	devices          []domain.AudioDevice
	devicesSupported bool

	focus      Focus
	question   []rune
	confirmEnd bool

	errorText string
	errorSeq  int

	quitting bool
	width    int
	height   int
}

func New(ctx context.Context, ctrl Controller, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ctrl:             ctrl,
		ctx:              ctx,
		interviewID:      opts.InterviewID,
		phase:            domain.PhaseInitializing,
		reason:           domain.ReasonStarting,
		source:           opts.Source,
		transcription:    domain.TranscriptionIdle,
		devicesSupported: true,
		focus:            FocusTranscript,
	}
}

func (m Model) Init() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return startedMsg{err: ctrl.Start(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case PhaseMsg:
		m.phase = msg.Phase
		m.reason = msg.Reason
		switch msg.Reason {
		case domain.ReasonPaused, domain.ReasonCaptureFailed:
			m.paused = true
		case domain.ReasonListening, domain.ReasonResumed, domain.ReasonSourceSwitched:
			m.paused = false
		}
		if msg.Phase == domain.PhaseEnding || msg.Phase == domain.PhaseEnded {
			m.confirmEnd = false
			m.generating = false
			m.focus = FocusTranscript
		}
		return m, m.statusCmd()

	case TranscriptionStateMsg:
		m.transcription = msg.State
		return m, nil

	case TranscriptMsg:
		m.transcript = msg.Snapshot
		return m, nil

	case TurnMsg:
		m.upsertTurn(msg.Turn)
		m.generating = msg.Turn.IsLoading
		return m, nil

	case ClockMsg:
		m.clock = msg.Reading
		m.clockSeen = true
		return m, nil

	case DevicesMsg:
		m.devices = msg.Devices
		m.devicesSupported = msg.Supported
		return m, nil

	case SessionErrorMsg:
		m.errorText = errorMessage(msg.Code, msg.Detail)
		m.errorSeq++
		return m, nil

	case startedMsg:
		if msg.err != nil && m.errorText == "" {
			m.errorText = actionErrorText(msg.err)
			m.errorSeq++
		}
		return m, m.statusCmd()

	case actionMsg:
		if msg.status != nil {
			m.source = msg.status.Source
			m.paused = msg.status.Paused
			m.generating = msg.status.Generating
		}
		if msg.err != nil {
			m.errorText = actionErrorText(msg.err)
			m.errorSeq++
			if isTransient(msg.err) {
				return m, clearErrorCmd(m.errorSeq)
			}
		}
		return m, nil

	case clearErrorMsg:
		if msg.seq == m.errorSeq {
			m.errorText = ""
		}
		return m, nil

	case quitMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}
	if m.quitting {
		return m, nil
	}
	if m.phase == domain.PhaseEnded || m.phase == domain.PhaseEnding {
		if msg.String() == "q" || msg.Type == tea.KeyEsc {
			return m.quit()
		}
		return m, nil
	}
	if m.focus == FocusQuestion {
		return m.handleQuestionKey(msg)
	}

	if m.confirmEnd {
		m.confirmEnd = false
		if msg.String() == "y" || msg.String() == "Y" {
			return m, m.endCmd()
		}
		return m, nil
	}

	switch msg.String() {
	case " ", "space", "enter":
		key := msg.String()
		return m, m.action("generate", func(ctrl Controller, ctx context.Context) error {
			_, err := ctrl.HandleKey(ctx, key, false)
			return err
		})

	case "tab":
		m.focus = FocusQuestion
		return m, nil

	case "p":
		return m, m.action("pause", Controller.TogglePause)

	case "s":
		return m, m.action("source", Controller.ToggleSource)

	case "d":
		return m, m.action("device", Controller.CycleDevice)

	case "c":
		return m, m.action("clear", func(ctrl Controller, _ context.Context) error {
			ctrl.ClearTranscript()
			return nil
		})

	case "e":
		m.confirmEnd = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleQuestionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyEsc:
		m.focus = FocusTranscript
		return m, nil

	case tea.KeyEnter:
		text := strings.TrimSpace(string(m.question))
		if text == "" {
			return m, nil
		}
		m.question = nil
		m.focus = FocusTranscript
		return m, m.action("ask", func(ctrl Controller, ctx context.Context) error {
			_, err := ctrl.GenerateFromText(ctx, text)
			return err
		})

	case tea.KeyBackspace:
		if len(m.question) > 0 {
			m.question = m.question[:len(m.question)-1]
		}
		return m, nil

	case tea.KeyCtrlU:
		m.question = nil
		return m, nil

	case tea.KeySpace:
		m.question = append(m.question, ' ')
		return m, nil

	case tea.KeyRunes:
		m.question = append(m.question, msg.Runes...)
		return m, nil
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	m.quitting = true
	ctrl := m.ctrl
	return m, func() tea.Msg {
		ctrl.End()
		return quitMsg{}
	}
}

func (m *Model) upsertTurn(turn domain.InterviewTurn) {
	for i := range m.turns {
		if m.turns[i].ID == turn.ID {
			m.turns[i] = turn
			return
		}
	}
	m.turns = append([]domain.InterviewTurn{turn}, m.turns...)
}

func (m Model) action(name string, fn func(Controller, context.Context) error) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		err := fn(ctrl, ctx)
		status := ctrl.Status()
		return actionMsg{action: name, err: err, status: &status}
	}
}

func (m Model) endCmd() tea.Cmd {
	return m.action("end", func(ctrl Controller, _ context.Context) error {
		ctrl.End()
		return nil
	})
}

func (m Model) statusCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		status := ctrl.Status()
		return actionMsg{action: "status", status: &status}
	}
}

func clearErrorCmd(seq int) tea.Cmd {
	return tea.Tick(transientErrorTTL, func(time.Time) tea.Msg {
		return clearErrorMsg{seq: seq}
	})
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTranscriptTooShort) ||
		errors.Is(err, domain.ErrBudgetExpired) ||
		errors.Is(err, domain.ErrSessionEnded) ||
		errors.Is(err, domain.ErrNoActiveSession)
}

func errorMessage(code domain.ErrorCode, detail string) string {
	var headline string
	switch code {
	case domain.ErrorCodeStartup:
		headline = "Startup failed"
	case domain.ErrorCodeConfiguration:
		headline = "Configuration error"
	case domain.ErrorCodeCapability:
		headline = "Audio capture unavailable"
	case domain.ErrorCodePermission:
		headline = "Audio device unavailable"
	case domain.ErrorCodeAudioStream:
		headline = "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		headline = "Transcription error"
	case domain.ErrorCodeGeneration:
		headline = "Answer generation failed"
	case domain.ErrorCodeDecode:
		headline = "Unreadable answer stream"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
	if detail == "" {
		return headline
	}
	return headline + ": " + detail
}

func actionErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrTranscriptTooShort):
		return "Not enough transcript to answer yet"
	case errors.Is(err, domain.ErrBudgetExpired):
		return "Session time is used up"
	case errors.Is(err, domain.ErrSessionEnded):
		return "Session has ended"
	case errors.Is(err, domain.ErrNoActiveSession):
		return "Session is not active yet"
	default:
		return err.Error()
	}
}
