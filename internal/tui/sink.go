package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"cuecard/internal/domain"
	"cuecard/internal/ports"
)

var _ ports.EventSink = (*Sink)(nil)

// Sink forwards session events into a running bubbletea program. Events
// emitted before Attach are dropped.
type Sink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func NewSink() *Sink {
	return &Sink{}
}

// Attach routes events to p.
func (s *Sink) Attach(p *tea.Program) {
	s.bind(p.Send)
}

func (s *Sink) bind(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

func (s *Sink) emit(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (s *Sink) PhaseChanged(phase domain.SessionPhase, reason domain.PhaseReason) {
	s.emit(PhaseMsg{Phase: phase, Reason: reason})
}

func (s *Sink) TranscriptionStateChanged(state domain.TranscriptionState) {
	s.emit(TranscriptionStateMsg{State: state})
}

func (s *Sink) TranscriptChanged(snapshot domain.TranscriptSnapshot) {
	s.emit(TranscriptMsg{Snapshot: snapshot})
}

func (s *Sink) TurnUpdated(turn domain.InterviewTurn) {
	s.emit(TurnMsg{Turn: turn})
}

func (s *Sink) ClockTicked(reading domain.ClockReading) {
	s.emit(ClockMsg{Reading: reading})
}

func (s *Sink) DevicesChanged(devices []domain.AudioDevice, supported bool) {
	copied := append([]domain.AudioDevice(nil), devices...)
	s.emit(DevicesMsg{Devices: copied, Supported: supported})
}

func (s *Sink) SessionError(code domain.ErrorCode, detail string) {
	s.emit(SessionErrorMsg{Code: code, Detail: detail})
}
